package engines

type ConvRole string

const (
	ConvRoleUser      ConvRole = "user"
	ConvRoleSystem    ConvRole = "system"
	ConvRoleAssistant ConvRole = "assistant"
)

type ChatMessage struct {
	Role ConvRole `json:"role"`
	Text string   `json:"content"`
}

type ChatPrompt struct {
	History []*ChatMessage
}

// LastUserMessage returns the index of the last user turn, or -1.
func (p *ChatPrompt) LastUserMessage() int {
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Role == ConvRoleUser {
			return i
		}
	}
	return -1
}
