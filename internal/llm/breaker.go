package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	appLog "lifepilot/internal/log"
)

// BreakerConfig holds configuration for the model-call circuit breaker.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests calls have been seen in the current interval.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Breaker short-circuits model calls after repeated failures, so a run made
// while the API is down degrades to its fallbacks immediately instead of
// waiting on every timeout. One Breaker is shared by all runs of a process.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a Breaker from config.
func NewBreaker(config BreakerConfig) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		// A caller abandoning its own request says nothing about the model.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			appLog.Info("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{cb: cb}
}

// State reports the breaker state name ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Wrap returns a Generator whose calls pass through the breaker. A nil
// Breaker returns gen unchanged.
func (b *Breaker) Wrap(gen Generator) Generator {
	if b == nil {
		return gen
	}
	return breakerGenerator{cb: b.cb, next: gen}
}

type breakerGenerator struct {
	cb   *gobreaker.CircuitBreaker
	next Generator
}

func (g breakerGenerator) Generate(ctx context.Context, prompts []string) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		text, err := g.next.Generate(ctx, prompts)
		if err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}
