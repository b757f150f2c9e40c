package redis

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards every operation of a Client.
// The bool result is unused: results are captured by the guarded closure,
// so one breaker serves commands, pipelines and transactions alike.
type CircuitBreaker = gobreaker.CircuitBreaker[bool]

// NewCircuitBreakerConfig returns a function that creates circuit breakers.
// This is a helper for common use cases.
//
// Only errors that break the connection (I/O and protocol errors) count as
// failures: error replies and conversion errors mean the server is healthy.
// State changes are logged at warn level on the given logger.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(name string, logger *slog.Logger) *CircuitBreaker {
	return func(name string, logger *slog.Logger) *CircuitBreaker {
		if logger == nil {
			logger = slog.Default()
		}

		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return !ShouldCloseConnection(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("redis: circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}
