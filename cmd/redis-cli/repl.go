package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/pior/redis"
)

// executor is the part of redis.Client the REPL uses.
type executor interface {
	redis.Executor
	Stats() redis.ClientStats
	PoolStats() redis.PoolStats
}

type repl struct {
	exec    executor
	out     io.Writer
	timeout time.Duration
	timing  bool
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "Type 'help' for help, 'quit' to exit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}

		args, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintf(r.out, "Invalid input: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch strings.ToLower(args[0]) {
		case "quit", "exit":
			return nil
		case "help":
			r.help()
		case "stats":
			r.stats()
		default:
			r.execute(ctx, args)
		}
	}

	return scanner.Err()
}

// execute sends one command and prints its reply. It returns the error
// for one-shot mode; the REPL only prints it.
func (r *repl) execute(ctx context.Context, args []string) error {
	cmdArgs := make([]any, len(args)-1)
	for i, a := range args[1:] {
		cmdArgs[i] = a
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	v, err := r.exec.Do(ctx, redis.NewCmd(args[0], cmdArgs...))
	elapsed := time.Since(start)

	var serverErr *redis.ServerError
	switch {
	case errors.As(err, &serverErr):
		fmt.Fprintf(r.out, "(error) %s %s\n", serverErr.Code, serverErr.Message)
	case err != nil:
		fmt.Fprintf(r.out, "Error: %v\n", err)
	default:
		printValue(r.out, v)
	}

	if r.timing {
		fmt.Fprintf(r.out, "(took %v)\n", elapsed)
	}
	return err
}

func (r *repl) help() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  <COMMAND> [ARG...]   - Send a command, e.g. SET key \"a value\"")
	fmt.Fprintln(r.out, "  stats                - Show client and pool statistics")
	fmt.Fprintln(r.out, "  help                 - Show this help")
	fmt.Fprintln(r.out, "  quit                 - Exit the CLI")
}

func (r *repl) stats() {
	s := r.exec.Stats()
	p := r.exec.PoolStats()

	fmt.Fprintln(r.out, "Client:")
	fmt.Fprintf(r.out, "  Commands: %d\n", s.Commands)
	fmt.Fprintf(r.out, "  Errors: %d\n", s.Errors)
	fmt.Fprintf(r.out, "  Rejected: %d\n", s.Rejected)
	fmt.Fprintln(r.out, "Pool:")
	fmt.Fprintf(r.out, "  Connections: %d (%d active, %d idle)\n", p.TotalConns, p.ActiveConns, p.IdleConns)
	fmt.Fprintf(r.out, "  Created: %d\n", p.CreatedConns)
	fmt.Fprintf(r.out, "  Destroyed: %d\n", p.DestroyedConns)
}

// splitArgs splits a line into arguments. Double-quoted arguments accept
// \n, \r, \t and \" escapes; single-quoted ones are taken literally.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			if c == '\\' && quote == '"' && i+1 < len(runes) {
				i++
				switch runes[i] {
				case 'n':
					current.WriteRune('\n')
				case 'r':
					current.WriteRune('\r')
				case 't':
					current.WriteRune('\t')
				default:
					current.WriteRune(runes[i])
				}
				continue
			}
			current.WriteRune(c)

		case c == '"' || c == '\'':
			quote = c
			inArg = true

		case unicode.IsSpace(c):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}

		default:
			current.WriteRune(c)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unbalanced quotes")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
