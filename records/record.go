package records

import (
	"bytes"
	"encoding/json"

	"github.com/samber/lo"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is one unit of work: the conversation fed to the model, the
// expected output and what the model predicted.
type Record struct {
	ID            string         `json:"id"`
	Input         []Message      `json:"input"`
	Output        map[string]any `json:"output"`
	PredictOutput map[string]any `json:"predict_output"`
	LLMResponse   *string        `json:"llm_response"`
	Model         *string        `json:"model"`
	Status        *string        `json:"status"`
	Name          *string        `json:"name"`
	HeaderName    *string        `json:"header_name"`
}

// UserContent returns the content of the first user turn.
func (r *Record) UserContent() string {
	msg, ok := lo.Find(r.Input, func(m Message) bool {
		return m.Role == "user"
	})
	if !ok {
		return ""
	}
	return msg.Content
}

// Clone returns a deep copy that shares no mutable state with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := &Record{
		ID:            r.ID,
		Output:        cloneMap(r.Output),
		PredictOutput: cloneMap(r.PredictOutput),
		LLMResponse:   cloneString(r.LLMResponse),
		Model:         cloneString(r.Model),
		Status:        cloneString(r.Status),
		Name:          cloneString(r.Name),
		HeaderName:    cloneString(r.HeaderName),
	}
	if r.Input != nil {
		clone.Input = append([]Message(nil), r.Input...)
	}
	return clone
}

func CloneAll(recs []*Record) []*Record {
	return lo.Map(recs, func(r *Record, _ int) *Record {
		return r.Clone()
	})
}

func (r *Record) MarshalIndented() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		// decoded JSON scalars are immutable
		return val
	}
}
