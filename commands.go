package redis

import (
	"context"
	"errors"
	"time"

	"github.com/pior/redis/resp"
)

// NoTTL stores a key without expiration.
const NoTTL = 0

// ErrNotStored is returned by Add when the key already exists.
var ErrNotStored = errors.New("redis: key already exists")

// Item is a string key and its value.
type Item struct {
	Key   string
	Value []byte
	TTL   time.Duration
	Found bool // Set by Get: false when the key does not exist
}

type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, item Item) error
	Add(ctx context.Context, item Item) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Executor runs a single command.
// Both *Connection and *Client implement it.
type Executor interface {
	Do(ctx context.Context, cmd *Cmd) (resp.Value, error)
}

// BatchExecutor is an optional interface for executors that can run a
// Pipeline in one round trip. Commands falls back to sequential Do calls
// when the executor doesn't implement it.
type BatchExecutor interface {
	Executor
	Exec(ctx context.Context, p *Pipeline) ([]resp.Value, error)
}

// Do sends one command. It is RequestOne under the Executor name.
func (c *Connection) Do(ctx context.Context, cmd *Cmd) (resp.Value, error) {
	return c.RequestOne(ctx, cmd)
}

// Exec runs a pipeline on the connection.
func (c *Connection) Exec(ctx context.Context, p *Pipeline) ([]resp.Value, error) {
	return p.Exec(ctx, c)
}

// Commands provides a small set of typed helpers over an Executor.
// Anything else goes through NewCmd and Query.
type Commands struct {
	executor Executor
}

var _ Querier = (*Commands)(nil)

func NewCommands(executor Executor) *Commands {
	return &Commands{
		executor: executor,
	}
}

// Get retrieves a string value. A missing key is not an error: Found is false.
func (c *Commands) Get(ctx context.Context, key string) (Item, error) {
	v, err := c.executor.Do(ctx, NewCmd("GET", key))
	if err != nil {
		return Item{}, err
	}
	if v.IsNil() {
		return Item{Key: key, Found: false}, nil
	}

	value, err := As[[]byte](v)
	if err != nil {
		return Item{}, err
	}
	return Item{Key: key, Value: value, Found: true}, nil
}

// Set stores a value, with an expiration when item.TTL is positive.
func (c *Commands) Set(ctx context.Context, item Item) error {
	_, err := c.executor.Do(ctx, setCmd(item))
	return err
}

// Add stores a value only if the key doesn't exist yet.
func (c *Commands) Add(ctx context.Context, item Item) error {
	v, err := c.executor.Do(ctx, setCmd(item).Arg("NX"))
	if err != nil {
		return err
	}
	if v.IsNil() {
		return ErrNotStored
	}
	return nil
}

func setCmd(item Item) *Cmd {
	cmd := NewCmd("SET", item.Key, item.Value)
	if item.TTL > 0 {
		cmd.Arg("PX").Arg(item.TTL.Milliseconds())
	}
	return cmd
}

// Delete removes keys and returns how many existed.
func (c *Commands) Delete(ctx context.Context, keys ...string) (int64, error) {
	v, err := c.executor.Do(ctx, NewCmd("DEL", keys))
	if err != nil {
		return 0, err
	}
	return As[int64](v)
}

// Increment adds delta to a counter and returns the new value. A missing
// key starts at 0. When ttl is positive the key expiration is set in the
// same transaction.
func (c *Commands) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	incr := NewCmd("INCRBY", key, delta)
	if ttl <= 0 {
		v, err := c.executor.Do(ctx, incr)
		if err != nil {
			return 0, err
		}
		return As[int64](v)
	}

	expire := NewCmd("PEXPIRE", key, ttl.Milliseconds())

	be, ok := c.executor.(BatchExecutor)
	if !ok {
		v, err := c.executor.Do(ctx, incr)
		if err != nil {
			return 0, err
		}
		if _, err := c.executor.Do(ctx, expire); err != nil {
			return 0, err
		}
		return As[int64](v)
	}

	values, err := be.Exec(ctx, Pipe().Atomic().Cmd(incr).Cmd(expire).Ignore())
	if err != nil {
		return 0, err
	}
	return As[int64](values[0])
}

// Exists returns how many of the keys exist.
func (c *Commands) Exists(ctx context.Context, keys ...string) (int64, error) {
	v, err := c.executor.Do(ctx, NewCmd("EXISTS", keys))
	if err != nil {
		return 0, err
	}
	return As[int64](v)
}

func (c *Commands) Ping(ctx context.Context) error {
	_, err := c.executor.Do(ctx, NewCmd("PING"))
	return err
}

// Publish posts a message and returns the number of subscribers that received it.
func (c *Commands) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	v, err := c.executor.Do(ctx, NewCmd("PUBLISH", channel, payload))
	if err != nil {
		return 0, err
	}
	return As[int64](v)
}

// Select switches the database of a single connection and records it.
// It takes a ConnectionLike: selecting a database through a pool would
// change whichever connection happens to serve the command.
func Select(ctx context.Context, conn ConnectionLike, db int) error {
	if _, err := conn.RequestOne(ctx, NewCmd("SELECT", db)); err != nil {
		return err
	}
	conn.NoteDatabaseIndex(db)
	return nil
}
