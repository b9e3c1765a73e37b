package agents

import (
	"context"
	"fmt"

	"github.com/natexcvi/go-llm-eval/engines"
	"github.com/natexcvi/go-llm-eval/extract"
	"github.com/natexcvi/go-llm-eval/prompts"
	"github.com/natexcvi/go-llm-eval/records"
	log "github.com/sirupsen/logrus"
)

const (
	SynthesisRouteKind = "PatentSynthesisRouteAgent"
	ReactionFieldKind  = "PatentReactionFieldAgent"
)

// Agent turns one record's input into a filled prediction. Process never
// fails: invocation and parse errors leave the record with an empty
// prediction and a nil response.
//
//go:generate mockgen -source=agent.go -destination=mocks/agent.go -package=mocks
type Agent interface {
	// Name is the agent's unique label, <kind>_<model name>.
	Name() string
	Model() engines.Model
	Process(ctx context.Context, rec *records.Record) *records.Record
}

// OutputBuilder maps the decoded model answer to the stored prediction.
type OutputBuilder func(decoded map[string]any) map[string]any

type ChatAgent struct {
	kind         string
	model        engines.Model
	engine       engines.LLM
	systemPrompt string
	userTemplate string
	buildOutput  OutputBuilder
	repairer     *extract.Repairer
	arrayKey     string
}

type Option func(*ChatAgent)

func WithSystemPrompt(prompt string) Option {
	return func(a *ChatAgent) {
		a.systemPrompt = prompt
	}
}

func WithUserTemplate(template string) Option {
	return func(a *ChatAgent) {
		a.userTemplate = template
	}
}

// WithRepairer enables repair of answers that fail to decode.
func WithRepairer(repairer *extract.Repairer) Option {
	return func(a *ChatAgent) {
		a.repairer = repairer
	}
}

// WithArrayPayload accepts answers whose payload is a bare JSON array and
// decodes them as {key: array}.
func WithArrayPayload(key string) Option {
	return func(a *ChatAgent) {
		a.arrayKey = key
	}
}

func NewChatAgent(kind string, model engines.Model, engine engines.LLM, buildOutput OutputBuilder, opts ...Option) *ChatAgent {
	agent := &ChatAgent{
		kind:         kind,
		model:        model,
		engine:       engine,
		userTemplate: prompts.UserTemplate,
		buildOutput:  buildOutput,
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

func (a *ChatAgent) Name() string {
	return fmt.Sprintf("%s_%s", a.kind, a.model.Name)
}

func (a *ChatAgent) Model() engines.Model {
	return a.model
}

func (a *ChatAgent) compile(userContent string) *engines.ChatPrompt {
	return &engines.ChatPrompt{
		History: []*engines.ChatMessage{
			{
				Role: engines.ConvRoleSystem,
				Text: a.systemPrompt,
			},
			{
				Role: engines.ConvRoleUser,
				Text: prompts.Render(a.userTemplate, userContent),
			},
		},
	}
}

func (a *ChatAgent) Process(ctx context.Context, rec *records.Record) *records.Record {
	logger := log.WithFields(log.Fields{"agent": a.Name(), "record_id": rec.ID})
	prompt := a.compile(rec.UserContent())
	rec.Input = make([]records.Message, len(prompt.History))
	for i, msg := range prompt.History {
		rec.Input[i] = records.Message{Role: string(msg.Role), Content: msg.Text}
	}

	resp, err := a.engine.Chat(ctx, prompt)
	if err == nil && resp == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		logger.Warnf("model invocation failed: %s", err)
		rec.LLMResponse = nil
		rec.PredictOutput = map[string]any{}
		return rec
	}
	return a.postProcessResponse(ctx, rec, resp.Text)
}

func (a *ChatAgent) postProcessResponse(ctx context.Context, rec *records.Record, response string) *records.Record {
	logger := log.WithFields(log.Fields{"agent": a.Name(), "record_id": rec.ID})
	raw := response
	rec.LLMResponse = &raw
	label := a.Name()
	rec.Model = &label

	if a.model.Reasoning {
		var thinking string
		thinking, response = extract.SplitThinking(response)
		logger.Debugf("stripped %d bytes of thinking", len(thinking))
	}

	if a.arrayKey != "" && extract.IsArrayPayload(response) {
		if list, err := extract.Array(extract.JSONArrayText(response)); err == nil {
			rec.PredictOutput = a.buildOutput(map[string]any{a.arrayKey: list})
			return rec
		}
	}
	decoded, err := a.decode(ctx, extract.JSONText(response))
	if err != nil {
		logger.Warnf("failed to parse JSON from response: %s\n%s", err, response)
		rec.PredictOutput = map[string]any{}
		return rec
	}
	rec.PredictOutput = a.buildOutput(decoded)
	return rec
}

func (a *ChatAgent) decode(ctx context.Context, text string) (map[string]any, error) {
	decoded, err := extract.Object(text)
	if err == nil || a.repairer == nil {
		return decoded, err
	}
	repaired, repairErr := a.repairer.Repair(ctx, text)
	if repairErr != nil {
		return nil, fmt.Errorf("%w (repair failed: %s)", err, repairErr)
	}
	return extract.Object(repaired)
}
