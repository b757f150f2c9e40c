package redis

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/pior/redis/resp"
	"github.com/sony/gobreaker/v2"
)

// Config holds configuration for the client connection pool.
type Config struct {
	// MaxSize is the maximum number of connections in the pool.
	// Defaults to 10.
	MaxSize int32

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// DialOptions are passed to Dial for every new connection.
	DialOptions []DialOption

	// Pool is the connection pool factory function.
	// If nil, uses the default channel-based pool.
	// To use puddle: Pool: redis.NewPuddlePool
	Pool PoolFactory

	// NewCircuitBreaker creates the circuit breaker guarding the client.
	// Called once with the server address and the client logger.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(name string, logger *slog.Logger) *CircuitBreaker

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// for testing purposes only
	constructor func(ctx context.Context) (*Connection, error)
}

// Client is a pool of connections to one server.
//
// Every operation checks a connection out of the pool, uses it, and gives
// it back. A connection that is no longer usable (transport or protocol
// failure), left in subscribe mode or switched to another database is
// destroyed instead of being released.
//
// Client is safe for concurrent use.
type Client struct {
	*Commands

	info           ConnectionInfo
	pool           Pool
	circuitBreaker *CircuitBreaker // nil if not configured
	constructor    func(ctx context.Context) (*Connection, error)
	logger         *slog.Logger

	stats clientStatsCollector
}

var (
	_ Executor      = (*Client)(nil)
	_ BatchExecutor = (*Client)(nil)
)

// NewClient creates a client for the server described by info.
// Connections are dialed lazily.
func NewClient(info ConnectionInfo, config Config) (*Client, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = 10
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Pool == nil {
		config.Pool = NewChannelPool
	}

	c := &Client{
		info:   info,
		logger: config.Logger,
	}

	c.constructor = config.constructor
	if c.constructor == nil {
		opts := make([]DialOption, 0, len(config.DialOptions)+2)
		opts = append(opts, WithLogger(config.Logger))
		if config.Dialer != nil {
			opts = append(opts, WithDialer(config.Dialer))
		}
		opts = append(opts, config.DialOptions...)

		c.constructor = func(ctx context.Context) (*Connection, error) {
			return Dial(ctx, info, opts...)
		}
	}

	pool, err := config.Pool(c.constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}
	c.pool = pool

	if config.NewCircuitBreaker != nil {
		c.circuitBreaker = config.NewCircuitBreaker(info.Address, config.Logger)
	}

	c.Commands = NewCommands(c)
	return c, nil
}

// Close closes the pool and its idle connections.
// Connections checked out are closed when they are given back.
func (c *Client) Close() {
	c.pool.Close()
}

// Do sends one command on a pooled connection.
func (c *Client) Do(ctx context.Context, cmd *Cmd) (resp.Value, error) {
	c.stats.recordCommand()

	var v resp.Value
	err := c.WithConn(ctx, func(conn *Connection) (err error) {
		v, err = conn.RequestOne(ctx, cmd)
		return err
	})
	if err != nil {
		return resp.Value{}, err
	}
	return v, nil
}

// Exec runs a pipeline on a pooled connection.
func (c *Client) Exec(ctx context.Context, p *Pipeline) ([]resp.Value, error) {
	c.stats.recordPipeline()

	var values []resp.Value
	err := c.WithConn(ctx, func(conn *Connection) (err error) {
		values, err = p.Exec(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Transaction runs an optimistic transaction on a pooled connection.
// See the package-level Transaction for the retry semantics; results are
// captured by fn.
func (c *Client) Transaction(ctx context.Context, keys []string, fn func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) error) error {
	c.stats.recordTransaction()

	return c.WithConn(ctx, func(conn *Connection) error {
		return runTransaction(ctx, conn, keys, c.logger, c.stats.recordTxRetry, fn)
	})
}

// WithConn checks a connection out for the duration of fn.
//
// fn must not keep the connection after returning.
func (c *Client) WithConn(ctx context.Context, fn func(conn *Connection) error) error {
	err := c.guard(func() (bool, error) {
		return c.withConnDirect(ctx, fn)
	})
	if err != nil {
		c.stats.recordError()
	}
	return err
}

// guard runs fn through the circuit breaker. Only failures reported as
// fatal by fn count against the breaker: errors of the caller's own code,
// error replies and cancellations leave it untouched.
func (c *Client) guard(fn func() (fatal bool, err error)) error {
	if c.circuitBreaker == nil {
		_, err := fn()
		return err
	}

	var opErr error
	_, err := c.circuitBreaker.Execute(func() (bool, error) {
		var fatal bool
		fatal, opErr = fn()
		if fatal {
			return false, opErr
		}
		return true, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.stats.recordRejected()
		return err
	}
	return opErr
}

// withConnDirect runs fn on a pooled connection. fatal reports a server or
// transport failure: the connection could not be obtained or broke.
func (c *Client) withConnDirect(ctx context.Context, fn func(conn *Connection) error) (fatal bool, err error) {
	resource, err := c.pool.Acquire(ctx)
	if err != nil {
		fatal = ShouldCloseConnection(err) && !errors.Is(err, ErrPoolClosed)
		return fatal, err
	}

	conn := resource.Value()
	err = fn(conn)

	switch {
	case !conn.Usable():
		c.logger.Debug("redis: destroying broken connection", "addr", c.info.Address, "error", err)
		resource.Destroy()
		return err != nil, err
	case conn.InPubSub():
		c.logger.Debug("redis: destroying connection left in subscribe mode", "addr", c.info.Address)
		resource.Destroy()
	case conn.DB() != c.info.DB:
		c.logger.Debug("redis: destroying connection switched to another database", "addr", c.info.Address, "db", conn.DB())
		resource.Destroy()
	default:
		resource.Release()
	}

	return false, err
}

// PubSub opens a dedicated connection, outside the pool, for subscriptions.
// Close it when done.
func (c *Client) PubSub(ctx context.Context) (*PubSub, error) {
	conn, err := c.constructor(ctx)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return conn.PubSub(), nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// PoolStats returns a snapshot of pool statistics.
func (c *Client) PoolStats() PoolStats {
	return c.pool.Stats()
}

// CircuitBreakerState returns the breaker state, StateClosed when none is configured.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return c.circuitBreaker.State()
}
