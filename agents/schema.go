package agents

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// WithOutputSchema appends the JSON schema of v to the system prompt.
// Options apply in order, so use it after any WithSystemPrompt.
func WithOutputSchema(v any) Option {
	return func(a *ChatAgent) {
		schema, err := jsonschema.Reflect(v).MarshalJSON()
		if err != nil {
			panic(err)
		}
		a.systemPrompt = fmt.Sprintf("%s\n# Output JSON Schema\n%s\n", a.systemPrompt, schema)
	}
}
