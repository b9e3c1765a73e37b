package engines

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// CircuitBreaker stops calling an endpoint that keeps failing, so a dead
// server degrades records quickly instead of stalling every batch.
type CircuitBreaker struct {
	engine LLM
	cb     *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(engine LLM, name string, config *BreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= config.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			entry := log.WithField("model", name)
			if to == gobreaker.StateOpen {
				entry.Warnf("circuit breaker tripped (%s -> %s)", from, to)
				return
			}
			entry.Infof("circuit breaker changed state (%s -> %s)", from, to)
		},
	}
	return &CircuitBreaker{
		engine: engine,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *CircuitBreaker) Chat(ctx context.Context, prompt *ChatPrompt) (*ChatMessage, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.engine.Chat(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*ChatMessage), nil
}
