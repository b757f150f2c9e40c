package redis

import (
	"context"
	"fmt"

	"github.com/pior/redis/resp"
)

// Pipeline batches commands into a single round trip.
//
// Replies are returned for retained commands only, in the order the
// commands were added. An atomic pipeline is wrapped in MULTI/EXEC.
type Pipeline struct {
	cmds    []*Cmd
	ignored []bool
	atomic  bool
}

func Pipe() *Pipeline {
	return &Pipeline{}
}

// Add appends a command built from name and args.
func (p *Pipeline) Add(name string, args ...any) *Pipeline {
	return p.Cmd(NewCmd(name, args...))
}

// Cmd appends a command.
func (p *Pipeline) Cmd(c *Cmd) *Pipeline {
	p.cmds = append(p.cmds, c)
	p.ignored = append(p.ignored, false)
	return p
}

// Ignore drops the reply of the last added command from the results.
func (p *Pipeline) Ignore() *Pipeline {
	if n := len(p.ignored); n > 0 {
		p.ignored[n-1] = true
	}
	return p
}

// Atomic makes the pipeline run as a MULTI/EXEC transaction.
func (p *Pipeline) Atomic() *Pipeline {
	p.atomic = true
	return p
}

// IsAtomic reports whether the pipeline runs as a transaction.
func (p *Pipeline) IsAtomic() bool {
	return p.atomic
}

// Len returns the number of commands, ignored ones included.
func (p *Pipeline) Len() int {
	return len(p.cmds)
}

// Clear removes all commands. The atomic flag is kept.
func (p *Pipeline) Clear() {
	p.cmds = p.cmds[:0]
	p.ignored = p.ignored[:0]
}

// Exec sends the batch and returns the replies of retained commands.
//
// The first error reply, ignored commands included, fails the whole batch
// with *ServerError. An atomic pipeline whose EXEC replied nil returns
// ErrTxAborted.
func (p *Pipeline) Exec(ctx context.Context, conn ConnectionLike) ([]resp.Value, error) {
	if len(p.cmds) == 0 {
		return []resp.Value{}, nil
	}
	if p.atomic {
		return p.execAtomic(ctx, conn)
	}

	replies, err := conn.RequestMany(ctx, p.cmds)
	if err != nil {
		return nil, err
	}
	return p.retained(replies)
}

func (p *Pipeline) execAtomic(ctx context.Context, conn ConnectionLike) ([]resp.Value, error) {
	cmds := make([]*Cmd, 0, len(p.cmds)+2)
	cmds = append(cmds, NewCmd("MULTI"))
	cmds = append(cmds, p.cmds...)
	cmds = append(cmds, NewCmd("EXEC"))

	replies, err := conn.RequestMany(ctx, cmds)
	if err != nil {
		return nil, err
	}

	// MULTI and queuing errors come before the EXEC reply, which is then EXECABORT.
	for _, v := range replies[:len(replies)-1] {
		if v.IsError() {
			return nil, newServerError(v)
		}
	}

	exec := replies[len(replies)-1]
	switch {
	case exec.IsNil():
		return nil, ErrTxAborted
	case exec.IsError():
		return nil, newServerError(exec)
	case !exec.IsAggregate():
		return nil, typeMismatch(exec, []resp.Value(nil), "unexpected EXEC reply")
	case len(exec.Elems) != len(p.cmds):
		return nil, typeMismatch(exec, []resp.Value(nil),
			fmt.Sprintf("EXEC returned %d replies for %d commands", len(exec.Elems), len(p.cmds)))
	}
	return p.retained(exec.Elems)
}

func (p *Pipeline) retained(replies []resp.Value) ([]resp.Value, error) {
	out := make([]resp.Value, 0, len(replies))
	for i, v := range replies {
		if v.IsError() {
			return nil, newServerError(v)
		}
		if !p.ignored[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

// Scan runs the pipeline and converts each retained reply into the
// matching destination, as Convert does. The number of destinations must
// match the number of retained commands.
func (p *Pipeline) Scan(ctx context.Context, conn ConnectionLike, dst ...any) error {
	values, err := p.Exec(ctx, conn)
	if err != nil {
		return err
	}
	if len(values) != len(dst) {
		return &TypeMismatchError{
			Kind:   resp.KindArray,
			Target: fmt.Sprintf("%d destinations", len(dst)),
			Detail: fmt.Sprintf("pipeline returned %d results", len(values)),
		}
	}
	for i, v := range values {
		if err := Convert(v, dst[i]); err != nil {
			return fmt.Errorf("redis: pipeline result %d: %w", i, err)
		}
	}
	return nil
}
