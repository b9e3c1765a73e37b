package agents

import (
	"errors"
	"fmt"

	"github.com/natexcvi/go-llm-eval/engines"
	"github.com/natexcvi/go-llm-eval/prompts"
)

// NewSynthesisRouteAgent extracts one item per synthesis step. The
// prediction is always {"results": [...]}; a bare array answer is taken
// as the results list.
func NewSynthesisRouteAgent(model engines.Model, engine engines.LLM, opts ...Option) *ChatAgent {
	opts = append([]Option{
		WithSystemPrompt(prompts.SynthesisRouteSystemPrompt),
		WithArrayPayload("results"),
	}, opts...)
	return NewChatAgent(SynthesisRouteKind, model, engine, resultsOutput, opts...)
}

// NewReactionFieldAgent extracts reaction fields. The prediction is the
// decoded object as returned by the model.
func NewReactionFieldAgent(model engines.Model, engine engines.LLM, opts ...Option) *ChatAgent {
	opts = append([]Option{WithSystemPrompt(prompts.ReactionFieldSystemPrompt)}, opts...)
	return NewChatAgent(ReactionFieldKind, model, engine, wholeOutput, opts...)
}

func resultsOutput(decoded map[string]any) map[string]any {
	results, ok := decoded["results"].([]any)
	if !ok {
		results = []any{}
	}
	return map[string]any{"results": results}
}

func wholeOutput(decoded map[string]any) map[string]any {
	return decoded
}

var ErrUnknownKind = errors.New("unknown agent kind")

// Kinds lists every agent kind New can build.
var Kinds = []string{SynthesisRouteKind, ReactionFieldKind}

// New builds an agent by kind.
func New(kind string, model engines.Model, engine engines.LLM, opts ...Option) (*ChatAgent, error) {
	switch kind {
	case SynthesisRouteKind:
		return NewSynthesisRouteAgent(model, engine, opts...), nil
	case ReactionFieldKind:
		return NewReactionFieldAgent(model, engine, opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
