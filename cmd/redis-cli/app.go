package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/promexporter"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var Version = "dev"

const sessionKey = "session"

type session struct {
	cfg    Config
	client *redis.Client
	logger *slog.Logger
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "redis-cli",
		Usage:     "Send commands to a Redis server",
		ArgsUsage: "[COMMAND [ARG...]]",
		Version:   Version,
		Flags:     globalFlags(),
		Before:    setup,
		After:     teardown,
		Action:    rootAction,
		Commands: []*cli.Command{
			scanCommand(),
			subscribeCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (.yaml or .toml)",
		},
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "Server URL (redis://[[user]:password@]host[:port][/db] or unix:///path)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout of every command",
		},
		&cli.IntFlag{
			Name:  "pool",
			Usage: "Maximum number of connections",
		},
		&cli.BoolFlag{
			Name:  "resp3",
			Usage: "Negotiate RESP3 with HELLO",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Connection name (CLIENT SETNAME)",
		},
		&cli.StringFlag{
			Name:  "metrics",
			Usage: "Serve Prometheus metrics on this address, e.g. :9121",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log connection events and show command timings",
		},
	}
}

// flagOverrides returns the flags given on the command line, keyed like Config.
func flagOverrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	for _, name := range []string{"url", "name", "metrics"} {
		if c.IsSet(name) {
			m[name] = c.String(name)
		}
	}
	for _, name := range []string{"resp3", "verbose"} {
		if c.IsSet(name) {
			m[name] = c.Bool(name)
		}
	}
	if c.IsSet("timeout") {
		m["timeout"] = c.Duration("timeout")
	}
	if c.IsSet("pool") {
		m["pool"] = c.Int("pool")
	}
	return m
}

func setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}

	info, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	var opts []redis.DialOption
	if cfg.RESP3 {
		opts = append(opts, redis.WithRESP3())
	}
	if cfg.ClientName != "" {
		opts = append(opts, redis.WithClientName(cfg.ClientName))
	}

	client, err := redis.NewClient(info, redis.Config{
		MaxSize:           cfg.PoolSize,
		Dialer:            &net.Dialer{Timeout: cfg.Timeout},
		DialOptions:       opts,
		Logger:            logger,
		NewCircuitBreaker: redis.NewCircuitBreakerConfig(1, time.Minute, 5*time.Second),
	})
	if err != nil {
		return err
	}

	if cfg.Metrics != "" {
		exporter := promexporter.NewExporter()
		if err := exporter.Register(client, "redis-cli"); err != nil {
			client.Close()
			return err
		}
		go func() {
			if err := exporter.ListenAndServe(cfg.Metrics); err != nil {
				logger.Error("metrics server stopped", "addr", cfg.Metrics, "error", err)
			}
		}()
	}

	logger.Debug("client ready", "server", info.String(), "pool", cfg.PoolSize)
	c.App.Metadata[sessionKey] = &session{cfg: cfg, client: client, logger: logger}
	return nil
}

func teardown(c *cli.Context) error {
	if s := getSession(c); s != nil {
		s.client.Close()
	}
	return nil
}

func getSession(c *cli.Context) *session {
	s, _ := c.App.Metadata[sessionKey].(*session)
	return s
}

func (s *session) repl(c *cli.Context) *repl {
	return &repl{
		exec:    s.client,
		out:     c.App.Writer,
		timeout: s.cfg.Timeout,
		timing:  s.cfg.Verbose,
	}
}

// rootAction runs the arguments as a single command, or starts the
// interactive session when there are none.
func rootAction(c *cli.Context) error {
	s := getSession(c)
	r := s.repl(c)

	if c.Args().Present() {
		// execute already printed the error
		if err := r.execute(c.Context, c.Args().Slice()); err != nil {
			return cli.Exit("", 1)
		}
		return nil
	}

	fmt.Fprintf(c.App.Writer, "Connected to %s\n", s.cfg.URL)
	return r.run(c.Context, os.Stdin)
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "List keys with SCAN",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "match", Usage: "Glob-style key pattern"},
			&cli.IntFlag{Name: "count", Usage: "Page size hint", Value: 100},
			&cli.StringFlag{Name: "type", Usage: "Only keys of this type"},
		},
		Action: func(c *cli.Context) error {
			s := getSession(c)
			opts := redis.ScanOptions{
				Match: c.String("match"),
				Count: c.Int("count"),
				Type:  c.String("type"),
			}

			return s.client.WithConn(c.Context, func(conn *redis.Connection) error {
				it := redis.ScanKeys(conn, opts)
				for it.Next(c.Context) {
					fmt.Fprintln(c.App.Writer, it.Value().Text())
				}
				return it.Err()
			})
		},
	}
}

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Print messages published on channels until interrupted",
		ArgsUsage: "CHANNEL...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pattern", Aliases: []string{"p"}, Usage: "Arguments are glob patterns (PSUBSCRIBE)"},
		},
		Action: func(c *cli.Context) error {
			if !c.Args().Present() {
				return cli.Exit("subscribe needs at least one channel", 2)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()

			ps, err := getSession(c).client.PubSub(ctx)
			if err != nil {
				return err
			}
			defer ps.Close()

			if c.Bool("pattern") {
				err = ps.PSubscribe(ctx, c.Args().Slice()...)
			} else {
				err = ps.Subscribe(ctx, c.Args().Slice()...)
			}
			if err != nil {
				return err
			}

			for {
				msg, err := ps.GetMessage(ctx)
				if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrNotSubscribed) {
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s: %s\n", msg.Channel, msg.Payload)
			}
		},
	}
}
