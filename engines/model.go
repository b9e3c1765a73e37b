package engines

import "time"

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderAzure  Provider = "azure"
	ProviderRAG    Provider = "rag"
)

// Model describes a model endpoint together with the capability flags
// that change how agents and runners treat it.
type Model struct {
	// Name is the short identifier used in agent labels and output file
	// names, e.g. "gpt-4o" or "QWEN25_32B".
	Name     string
	Provider Provider
	// Model is the name sent on the wire. For Azure it is the deployment.
	Model      string
	BaseURL    string
	APIKey     string
	APIVersion string

	Stop        []string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration

	// Restricted endpoints are invoked strictly one request at a time.
	Restricted bool
	// Reasoning models prefix their answer with a <think>...</think> block.
	Reasoning bool
	// RequestsPerSecond paces calls when positive.
	RequestsPerSecond float64

	KnowledgeBases []string
	SessionID      string
}

func (m Model) wireModel() string {
	if m.Model != "" {
		return m.Model
	}
	return m.Name
}
