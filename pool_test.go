package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pior/redis/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolFactories = map[string]PoolFactory{
	"channel": NewChannelPool,
	"puddle":  NewPuddlePool,
}

type mockDialer struct {
	mu    sync.Mutex
	mocks []*testutils.ConnectionMock
	err   error
}

func (d *mockDialer) dial(responses ...string) func(ctx context.Context) (*Connection, error) {
	return func(ctx context.Context) (*Connection, error) {
		if d.err != nil {
			return nil, d.err
		}
		mock := testutils.NewConnectionMock(responses...)

		d.mu.Lock()
		d.mocks = append(d.mocks, mock)
		d.mu.Unlock()

		return NewConnection(mock), nil
	}
}

func (d *mockDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mocks)
}

func TestPool_ReuseReleasedConnection(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.dial(), 2)
			require.NoError(t, err)
			defer pool.Close()

			ctx := context.Background()

			res, err := pool.Acquire(ctx)
			require.NoError(t, err)
			first := res.Value()
			res.Release()

			res, err = pool.Acquire(ctx)
			require.NoError(t, err)
			assert.Same(t, first, res.Value())
			res.Release()

			assert.Equal(t, 1, dialer.count())

			stats := pool.Stats()
			assert.Equal(t, uint64(2), stats.AcquireCount)
			assert.Equal(t, uint64(1), stats.CreatedConns)
			assert.Equal(t, int32(1), stats.TotalConns)
			assert.Equal(t, int32(1), stats.IdleConns)
			assert.Equal(t, int32(0), stats.ActiveConns)
		})
	}
}

func TestPool_DestroyClosesConnection(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.dial(), 1)
			require.NoError(t, err)
			defer pool.Close()

			ctx := context.Background()

			res, err := pool.Acquire(ctx)
			require.NoError(t, err)
			res.Destroy()

			// The slot is free again: a new connection is dialed.
			res, err = pool.Acquire(ctx)
			require.NoError(t, err)
			res.Release()
			assert.Equal(t, 2, dialer.count())

			// puddle destroys in the background
			require.Eventually(t, func() bool {
				return pool.Stats().DestroyedConns == 1
			}, time.Second, time.Millisecond)
			assert.True(t, dialer.mocks[0].IsClosed())

			stats := pool.Stats()
			assert.Equal(t, int32(1), stats.TotalConns)
			assert.Equal(t, int32(0), stats.ActiveConns)
		})
	}
}

func TestPool_WaitsForRelease(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			pool, err := factory((&mockDialer{}).dial(), 1)
			require.NoError(t, err)
			defer pool.Close()

			ctx := context.Background()

			res, err := pool.Acquire(ctx)
			require.NoError(t, err)

			var acquired atomic.Bool
			done := make(chan struct{})
			go func() {
				defer close(done)
				r, err := pool.Acquire(ctx)
				if err == nil {
					acquired.Store(true)
					r.Release()
				}
			}()

			time.Sleep(20 * time.Millisecond)
			assert.False(t, acquired.Load(), "pool is full")

			res.Release()
			<-done
			assert.True(t, acquired.Load())
			assert.GreaterOrEqual(t, pool.Stats().AcquireWaitCount, uint64(1))
		})
	}
}

func TestPool_AcquireHonorsContext(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			pool, err := factory((&mockDialer{}).dial(), 1)
			require.NoError(t, err)
			defer pool.Close()

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			defer res.Release()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			_, err = pool.Acquire(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestPool_ConstructorError(t *testing.T) {
	dialErr := errors.New("connection refused")

	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			pool, err := factory((&mockDialer{err: dialErr}).dial(), 1)
			require.NoError(t, err)
			defer pool.Close()

			_, err = pool.Acquire(context.Background())
			require.ErrorIs(t, err, dialErr)
			assert.Equal(t, int32(0), pool.Stats().TotalConns)
		})
	}
}

func TestPool_Close(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.dial(), 2)
			require.NoError(t, err)

			ctx := context.Background()

			idle, err := pool.Acquire(ctx)
			require.NoError(t, err)
			busy, err := pool.Acquire(ctx)
			require.NoError(t, err)
			idle.Release()

			// A connection given back after Close is closed.
			go func() {
				time.Sleep(10 * time.Millisecond)
				busy.Release()
			}()

			pool.Close()

			_, err = pool.Acquire(ctx)
			require.ErrorIs(t, err, ErrPoolClosed)

			require.Eventually(t, func() bool {
				return dialer.mocks[0].IsClosed() && dialer.mocks[1].IsClosed()
			}, time.Second, time.Millisecond)
		})
	}
}
