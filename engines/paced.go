package engines

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced limits how often the wrapped engine is called.
type Paced struct {
	engine  LLM
	limiter *rate.Limiter
}

func NewPaced(engine LLM, requestsPerSecond float64) *Paced {
	return &Paced{
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (p *Paced) Chat(ctx context.Context, prompt *ChatPrompt) (*ChatMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return p.engine.Chat(ctx, prompt)
}
