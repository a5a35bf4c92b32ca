package ircline

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards the writes to one recipient.
// *gobreaker.CircuitBreaker[int] implements it.
type CircuitBreaker interface {
	Execute(req func() (int, error)) (int, error)
	State() gobreaker.State
}

// NewCircuitBreakerConfig returns a function that creates circuit breakers for recipients.
// This is a helper for common use cases.
//
// A breaker opens once at least 3 writes were seen in the interval and 60% of
// them failed. While open, writes are dropped without calling the recipient.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(id string) CircuitBreaker {
	return func(id string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        id,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[int](settings)
	}
}

// isBreakerRejection reports whether err comes from a breaker refusing the
// write rather than from the recipient.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
