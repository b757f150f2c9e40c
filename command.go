package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pior/redis/resp"
)

// Cmd is a command and its encoded arguments.
//
// Arguments are encoded as they are added. An argument of an unsupported
// type is recorded and returned as *ArgumentError when the command is
// executed; nothing is written in that case.
type Cmd struct {
	args   [][]byte
	cursor int // index of the cursor argument, 0 when none
	err    error
}

// NewCmd builds a command. name is sent as the first argument.
func NewCmd(name string, args ...any) *Cmd {
	c := &Cmd{args: make([][]byte, 0, 1+len(args))}
	c.args = append(c.args, []byte(name))
	for _, a := range args {
		c.Arg(a)
	}
	return c
}

// Arg appends one argument. Sequences append one argument per element.
func (c *Cmd) Arg(v any) *Cmd {
	var ok bool
	pos := len(c.args)
	if c.args, ok = appendArg(c.args, v); !ok && c.err == nil {
		c.err = &ArgumentError{Index: pos, Type: fmt.Sprintf("%T", v)}
	}
	return c
}

// CursorArg appends the cursor of a scan command. Iter replaces it on
// every page.
func (c *Cmd) CursorArg(cursor uint64) *Cmd {
	c.cursor = len(c.args)
	c.args = append(c.args, strconv.AppendUint(nil, cursor, 10))
	return c
}

// Name returns the command name.
func (c *Cmd) Name() string {
	return string(c.args[0])
}

// Args returns the encoded arguments, including the command name.
func (c *Cmd) Args() [][]byte {
	return c.args
}

// Err returns the argument error recorded while building the command.
func (c *Cmd) Err() error {
	return c.err
}

// Exec sends the command and returns its reply.
func (c *Cmd) Exec(ctx context.Context, conn ConnectionLike) (resp.Value, error) {
	return conn.RequestOne(ctx, c)
}

// withCursor returns a copy of the command with its cursor argument replaced.
func (c *Cmd) withCursor(cursor []byte) *Cmd {
	args := make([][]byte, len(c.args))
	copy(args, c.args)
	args[c.cursor] = cursor
	return &Cmd{args: args, cursor: c.cursor, err: c.err}
}

func (c *Cmd) String() string {
	var b strings.Builder
	for i, a := range c.args {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == 0 {
			b.Write(a)
			continue
		}
		b.WriteString(strconv.Quote(string(a)))
	}
	return b.String()
}

// Query sends cmd and converts its reply to T.
func Query[T any](ctx context.Context, conn ConnectionLike, cmd *Cmd) (T, error) {
	v, err := conn.RequestOne(ctx, cmd)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}
