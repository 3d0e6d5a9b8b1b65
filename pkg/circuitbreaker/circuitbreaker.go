// Package circuitbreaker builds the breakers that guard outbound calls to
// Redis and SMTP.
package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type Settings struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset. Zero never resets.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxRequests:      5,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// New returns a breaker that logs every state change.
func New(s Settings, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = DefaultSettings(s.Name).FailureThreshold
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// Do runs fn through cb.
func Do(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
