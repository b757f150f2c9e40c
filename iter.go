package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pior/redis/resp"
)

var errNoCursor = errors.New("redis: iterator command has no cursor argument")

// Iter walks the pages of a cursor-based scan (SCAN, SSCAN, HSCAN, ZSCAN).
//
//	it := redis.ScanKeys(conn, redis.ScanOptions{Match: "user:*"})
//	for it.Next(ctx) {
//	    key, _ := redis.As[string](it.Value())
//	}
//	if err := it.Err(); err != nil {
//	    ...
//	}
//
// Elements of a page are yielded one at a time: HSCAN and ZSCAN pages
// alternate field and value. Once the server returns cursor 0 and the last
// page is consumed, Next returns false for good. Start a new Iter to scan
// again.
type Iter struct {
	conn ConnectionLike
	cmd  *Cmd

	cursor  []byte
	started bool
	done    bool

	page  []resp.Value
	value resp.Value
	err   error
}

// NewIter returns an iterator for cmd, which must have a cursor argument
// added with CursorArg.
func NewIter(conn ConnectionLike, cmd *Cmd) *Iter {
	it := &Iter{conn: conn, cmd: cmd}
	if cmd.cursor == 0 {
		it.err = errNoCursor
	}
	return it
}

// Next advances to the next element, fetching a page when needed.
func (it *Iter) Next(ctx context.Context) bool {
	for len(it.page) == 0 {
		if it.err != nil || it.done {
			return false
		}
		it.fetch(ctx)
	}
	it.value = it.page[0]
	it.page = it.page[1:]
	return true
}

func (it *Iter) fetch(ctx context.Context) {
	cmd := it.cmd
	if it.started {
		cmd = cmd.withCursor(it.cursor)
	}

	v, err := it.conn.RequestOne(ctx, cmd)
	if err != nil {
		it.err = err
		return
	}
	if !v.IsAggregate() || len(v.Elems) != 2 || !v.Elems[1].IsAggregate() {
		it.err = &TypeMismatchError{Kind: v.Kind, Target: "scan page", Detail: "expected [cursor, elements]"}
		return
	}

	cursor, err := As[string](v.Elems[0])
	if err != nil {
		it.err = err
		return
	}
	if _, err := strconv.ParseUint(cursor, 10, 64); err != nil {
		it.err = typeMismatch(v.Elems[0], uint64(0), "invalid cursor "+strconv.Quote(cursor))
		return
	}

	it.started = true
	it.cursor = []byte(cursor)
	it.done = cursor == "0"
	it.page = v.Elems[1].Elems
}

// Value returns the current element.
func (it *Iter) Value() resp.Value {
	return it.value
}

// Err returns the error that stopped the iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// CollectIter drains it and converts every element to T.
func CollectIter[T any](ctx context.Context, it *Iter) ([]T, error) {
	var out []T
	for it.Next(ctx) {
		v, err := As[T](it.Value())
		if err != nil {
			return out, fmt.Errorf("redis: element %d: %w", len(out), err)
		}
		out = append(out, v)
	}
	return out, it.Err()
}

// ScanOptions are the optional arguments of the SCAN family.
type ScanOptions struct {
	Match string // Glob-style pattern
	Count int    // Hint for the page size
	Type  string // Key type filter, SCAN only
}

func (o ScanOptions) AppendArgs(dst [][]byte) [][]byte {
	if o.Match != "" {
		dst = append(dst, []byte("MATCH"), []byte(o.Match))
	}
	if o.Count > 0 {
		dst = append(dst, []byte("COUNT"), strconv.AppendInt(nil, int64(o.Count), 10))
	}
	if o.Type != "" {
		dst = append(dst, []byte("TYPE"), []byte(o.Type))
	}
	return dst
}

// ScanKeys iterates the keys of the current database.
func ScanKeys(conn ConnectionLike, opts ScanOptions) *Iter {
	return NewIter(conn, NewCmd("SCAN").CursorArg(0).Arg(opts))
}

// SScan iterates the members of a set.
func SScan(conn ConnectionLike, key string, opts ScanOptions) *Iter {
	opts.Type = ""
	return NewIter(conn, NewCmd("SSCAN", key).CursorArg(0).Arg(opts))
}

// HScan iterates a hash, yielding fields and values alternately.
func HScan(conn ConnectionLike, key string, opts ScanOptions) *Iter {
	opts.Type = ""
	return NewIter(conn, NewCmd("HSCAN", key).CursorArg(0).Arg(opts))
}

// ZScan iterates a sorted set, yielding members and scores alternately.
func ZScan(conn ConnectionLike, key string, opts ScanOptions) *Iter {
	opts.Type = ""
	return NewIter(conn, NewCmd("ZSCAN", key).CursorArg(0).Arg(opts))
}
