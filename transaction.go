package redis

import (
	"context"
	"errors"
	"log/slog"
)

// TxFunc is the body of an optimistic transaction.
//
// It reads through conn, queues writes on pipe (already atomic) and runs
// it with pipe.Exec or pipe.Scan. It may run several times and must be
// safe to retry.
type TxFunc[T any] func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) (T, error)

// Transaction runs fn with keys watched and retries it until the
// transaction commits.
//
// When EXEC reports that a watched key changed (fn returns ErrTxAborted),
// the keys are watched again and fn is called again. There is no retry
// limit and no backoff between attempts: callers facing heavy contention
// bound the loop with ctx.
//
// UNWATCH is sent before returning, including when fn returned without
// running a transaction or returned an error, as long as the connection
// is still usable.
func Transaction[T any](ctx context.Context, conn ConnectionLike, keys []string, fn TxFunc[T]) (T, error) {
	var result T
	err := runTransaction(ctx, conn, keys, slog.Default(), nil, func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) error {
		var err error
		result, err = fn(ctx, conn, pipe)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func runTransaction(
	ctx context.Context,
	conn ConnectionLike,
	keys []string,
	logger *slog.Logger,
	onRetry func(),
	fn func(ctx context.Context, conn ConnectionLike, pipe *Pipeline) error,
) error {
	pipe := Pipe().Atomic()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return unwatch(ctx, conn, err)
		}

		if len(keys) > 0 {
			if _, err := conn.RequestOne(ctx, NewCmd("WATCH", keys)); err != nil {
				return unwatch(ctx, conn, err)
			}
		}

		pipe.Clear()
		err := fn(ctx, conn, pipe)
		if errors.Is(err, ErrTxAborted) {
			logger.Debug("redis: transaction aborted, retrying", "attempt", attempt, "keys", keys)
			if onRetry != nil {
				onRetry()
			}
			continue
		}

		return unwatch(ctx, conn, err)
	}
}

// unwatch clears the watched keys and returns err, or the UNWATCH error
// when err is nil.
func unwatch(ctx context.Context, conn ConnectionLike, err error) error {
	if !conn.Usable() {
		return err
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if _, uerr := conn.RequestOne(ctx, NewCmd("UNWATCH")); uerr != nil && err == nil {
		return uerr
	}
	return err
}
