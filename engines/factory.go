package engines

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnknownProvider = errors.New("unknown model provider")

type engineOptions struct {
	httpClient *http.Client
	retry      *RetryConfig
	breaker    *BreakerConfig
}

type EngineOption func(*engineOptions)

func WithHTTPClient(client *http.Client) EngineOption {
	return func(o *engineOptions) {
		o.httpClient = client
	}
}

func WithRetry(config *RetryConfig) EngineOption {
	return func(o *engineOptions) {
		o.retry = config
	}
}

func WithCircuitBreaker(config *BreakerConfig) EngineOption {
	return func(o *engineOptions) {
		o.breaker = config
	}
}

// NewEngine builds the engine for a model and layers the optional
// wrappers around it. Pacing sits outermost so retries are paced too.
func NewEngine(model Model, opts ...EngineOption) (LLM, error) {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var engine LLM
	var err error
	switch model.Provider {
	case ProviderOpenAI, ProviderAzure, "":
		engine, err = NewGPTEngine(model, options.httpClient)
	case ProviderRAG:
		engine, err = NewRAGEngine(model, options.httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, model.Provider)
	}
	if err != nil {
		return nil, err
	}

	if options.breaker != nil {
		engine = NewCircuitBreaker(engine, model.Name, options.breaker)
	}
	if options.retry != nil {
		engine = NewRetry(engine, model.Name, options.retry)
	}
	if model.RequestsPerSecond > 0 {
		engine = NewPaced(engine, model.RequestsPerSecond)
	}
	return engine, nil
}
