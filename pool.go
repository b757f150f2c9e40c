package redis

import (
	"context"
	"errors"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("redis: pool closed")

// Resource is a connection checked out of a Pool.
// Exactly one of Release or Destroy must be called.
type Resource interface {
	Value() *Connection

	// Release returns the connection to the pool.
	Release()

	// Destroy closes the connection and frees its slot.
	Destroy()
}

// Pool is the arena of connections used by Client.
// The pool knows nothing about commands: callers decide whether a
// connection goes back with Release or is dropped with Destroy.
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)
	Close()
	Stats() PoolStats
}

// PoolFactory builds a Pool from a connection constructor.
type PoolFactory func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)
