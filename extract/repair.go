package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/kaptinlin/jsonrepair"
	"github.com/natexcvi/go-llm-eval/engines"
	log "github.com/sirupsen/logrus"
)

var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

var wrappedJSONRegex = regexp.MustCompile("```(?:json)?\\s(?P<json>[\\s\\S]+)\\s```")

// Repairer fixes malformed JSON. It first applies jsonrepair and, when an
// engine is configured, falls back to asking a model to fix the payload.
type Repairer struct {
	engine     engines.LLM
	maxRetries int
	repair     func(string) (string, error)
}

func NewRepairer(engine engines.LLM, maxRetries int) *Repairer {
	return &Repairer{
		engine:     engine,
		maxRetries: maxRetries,
		repair:     jsonrepair.JSONRepair,
	}
}

func (r *Repairer) prompt(raw string) *engines.ChatPrompt {
	return &engines.ChatPrompt{
		History: []*engines.ChatMessage{
			{
				Role: engines.ConvRoleSystem,
				Text: "You are an automated JSON fixer. " +
					"You will receive a JSON payload that might contain " +
					"errors, and you must fix them and return a valid JSON payload.",
			},
			{
				Role: engines.ConvRoleUser,
				Text: `{"compound_id": "Compound "2", "detail_ids": ["12"], "refs": null}`,
			},
			{
				Role: engines.ConvRoleAssistant,
				Text: `{"compound_id": "Compound \"2", "detail_ids": ["12"], "refs": null}`,
			},
			{
				Role: engines.ConvRoleUser,
				Text: raw,
			},
		},
	}
}

func validateJSON(raw string) error {
	var obj any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func extractJSONFromResponse(response string) string {
	if wrappedJSONRegex.MatchString(response) {
		return wrappedJSONRegex.FindStringSubmatch(response)[1]
	}
	return response
}

func (r *Repairer) Repair(ctx context.Context, raw string) (string, error) {
	if err := validateJSON(raw); err == nil {
		return raw, nil
	}
	var cumErr *multierror.Error
	repaired, err := r.repair(raw)
	if err == nil {
		if err = validateJSON(repaired); err == nil {
			log.Debugf("JSON repaired without model assistance")
			return repaired, nil
		}
	}
	cumErr = multierror.Append(cumErr, fmt.Errorf("jsonrepair: %w", err))
	if r.engine == nil {
		return "", cumErr.ErrorOrNil()
	}

	log.Debugf("Running JSON fixer")
	prompt := r.prompt(raw)
	for i := 0; i < r.maxRetries; i++ {
		resp, err := r.engine.Chat(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("error running JSON auto fixer: %w", err)
		}
		respJSON := extractJSONFromResponse(resp.Text)
		if err := validateJSON(respJSON); err != nil {
			cumErr = multierror.Append(cumErr, fmt.Errorf("invalid JSON returned by JSON auto fixer: %w", err))
			continue
		}
		log.Debugf("JSON auto fixer succeeded after %d retries", i+1)
		return respJSON, nil
	}
	return "", multierror.Append(cumErr, ErrMaxRetriesExceeded)
}
