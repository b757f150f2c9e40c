package redis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, dialer *mockDialer, responses []string, configure ...func(*Config)) *Client {
	t.Helper()

	config := Config{MaxSize: 2, constructor: dialer.dial(responses...)}
	for _, f := range configure {
		f(&config)
	}

	client, err := NewClient(TCP("localhost:6379"), config)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClient_ReusesConnection(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{"+OK\r\n", "$1\r\nv\r\n"})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), item.Value)

	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, uint64(2), client.Stats().Commands)
	assert.Equal(t, int32(1), client.PoolStats().IdleConns)
}

func TestClient_ServerErrorKeepsConnection(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{"-WRONGTYPE bad\r\n", "+PONG\r\n"})
	ctx := context.Background()

	_, err := client.Get(ctx, "list")
	assert.True(t, IsServerError(err, "WRONGTYPE"))

	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, uint64(1), client.Stats().Errors)
}

func TestClient_BrokenConnectionIsDestroyed(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, nil) // every read hits EOF
	ctx := context.Background()

	err := client.Ping(ctx)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)

	assert.True(t, dialer.mocks[0].IsClosed())
	assert.Equal(t, uint64(1), client.PoolStats().DestroyedConns)

	_ = client.Ping(ctx)
	assert.Equal(t, 2, dialer.count(), "a fresh connection replaces the broken one")
}

func TestClient_SwitchedDatabaseIsDestroyed(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{"+OK\r\n"})

	err := client.WithConn(context.Background(), func(conn *Connection) error {
		return Select(context.Background(), conn, 4)
	})
	require.NoError(t, err)

	assert.True(t, dialer.mocks[0].IsClosed())
	assert.Equal(t, int32(0), client.PoolStats().TotalConns)
}

func TestClient_SubscribedConnectionIsDestroyed(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{ack("subscribe", "c", 1)})

	err := client.WithConn(context.Background(), func(conn *Connection) error {
		return conn.PubSub().Subscribe(context.Background(), "c")
	})
	require.NoError(t, err)
	assert.True(t, dialer.mocks[0].IsClosed())
}

func TestClient_Exec(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{"+OK\r\n", ":2\r\n"})

	values, err := client.Exec(context.Background(), Pipe().Add("SET", "a", 1).Ignore().Add("INCR", "a"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(2), values[0].Int)
	assert.Equal(t, uint64(1), client.Stats().Pipelines)
}

func TestClient_Transaction(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{
		"+OK\r\n", "$1\r\n1\r\n", "+OK\r\n", "+QUEUED\r\n", "*-1\r\n",
		"+OK\r\n", "$1\r\n2\r\n", "+OK\r\n", "+QUEUED\r\n", "*1\r\n+OK\r\n",
		"+OK\r\n",
	})

	var result int64
	calls := 0
	err := client.Transaction(context.Background(), []string{"counter"}, func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) error {
		var err error
		result, err = incrementBody(&calls)(ctx, conn, pipe)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result)
	assert.Equal(t, 2, calls)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Transactions)
	assert.Equal(t, uint64(1), stats.TxRetries)
	assert.Equal(t, int32(1), client.PoolStats().IdleConns)
}

func TestClient_PubSubUsesDedicatedConnection(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, []string{ack("subscribe", "c", 1), message("c", "m")})
	ctx := context.Background()

	ps, err := client.PubSub(ctx)
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, ps.Subscribe(ctx, "c"))
	msg, err := ps.GetMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m", string(msg.Payload))

	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, int32(0), client.PoolStats().TotalConns, "the pool is not involved")
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	dialer := &mockDialer{err: &ConnectionError{Op: "dial", Err: errors.New("connection refused")}}
	client := newTestClient(t, dialer, nil, func(c *Config) {
		c.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	})
	ctx := context.Background()

	for range 3 {
		var connErr *ConnectionError
		require.ErrorAs(t, client.Ping(ctx), &connErr)
	}
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	err := client.Ping(ctx)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, uint64(4), stats.Errors)
}

func TestClient_CircuitBreakerIgnoresServerErrors(t *testing.T) {
	dialer := &mockDialer{}
	responses := []string{"-ERR a\r\n", "-ERR b\r\n", "-ERR c\r\n", "-ERR d\r\n"}
	client := newTestClient(t, dialer, responses, func(c *Config) {
		c.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	})

	for range 4 {
		assert.True(t, IsServerError(client.Ping(context.Background()), "ERR"))
	}
	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
}

func TestClient_CircuitBreakerIgnoresCallerErrors(t *testing.T) {
	dialer := &mockDialer{}
	responses := []string{}
	for range 4 {
		responses = append(responses, "+OK\r\n", "+OK\r\n") // WATCH, UNWATCH
	}
	responses = append(responses, "+OK\r\n", "+PONG\r\n")
	client := newTestClient(t, dialer, responses, func(c *Config) {
		c.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	})
	ctx := context.Background()
	errBalance := errors.New("insufficient balance")

	for range 4 {
		err := client.Transaction(ctx, []string{"balance"}, func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) error {
			return errBalance
		})
		require.ErrorIs(t, err, errBalance)
	}

	err := client.WithConn(ctx, func(conn *Connection) error {
		if _, err := conn.RequestOne(ctx, NewCmd("SET", "k", "v")); err != nil {
			return err
		}
		return errBalance
	})
	require.ErrorIs(t, err, errBalance)

	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, uint64(0), client.Stats().Rejected)
}

func TestClient_CircuitBreakerCountsBrokenConnections(t *testing.T) {
	dialer := &mockDialer{}
	client := newTestClient(t, dialer, nil, func(c *Config) { // every read hits EOF
		c.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	})
	ctx := context.Background()

	for range 3 {
		err := client.WithConn(ctx, func(conn *Connection) error {
			if _, err := conn.RequestOne(ctx, NewCmd("PING")); err != nil {
				return errors.New("lookup failed")
			}
			return nil
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
}

func TestClient_CircuitBreakerLogsToClientLogger(t *testing.T) {
	var logs bytes.Buffer
	dialer := &mockDialer{err: &ConnectionError{Op: "dial", Err: errors.New("connection refused")}}
	client := newTestClient(t, dialer, nil, func(c *Config) {
		c.Logger = slog.New(slog.NewTextHandler(&logs, nil))
		c.NewCircuitBreaker = NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	})

	for range 3 {
		_ = client.Ping(context.Background())
	}
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Contains(t, logs.String(), "circuit breaker state changed")
	assert.Contains(t, logs.String(), "to=open")
}

func TestClient_NoCircuitBreaker(t *testing.T) {
	client := newTestClient(t, &mockDialer{}, nil)
	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
}

func TestClient_Defaults(t *testing.T) {
	client, err := NewClient(TCP("localhost"), Config{})
	require.NoError(t, err)
	defer client.Close()

	assert.NotNil(t, client.pool)
	assert.NotNil(t, client.constructor)
	assert.Equal(t, "localhost:6379", client.info.Address)
}

func TestClient_Closed(t *testing.T) {
	client := newTestClient(t, &mockDialer{}, nil)
	client.Close()

	err := client.Ping(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}
