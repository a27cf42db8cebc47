package models

// Conversation roles understood by the prompt builder.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged conversational turn.
type Message struct {
	Role    string
	Content string
}

// Usage records token accounting reported by the upstream.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewUsage derives a Usage from the two upstream counters. The total is
// always the sum; negative counts are treated as zero.
func NewUsage(promptTokens, completionTokens int) Usage {
	promptTokens = max(promptTokens, 0)
	completionTokens = max(completionTokens, 0)
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// Model identifies a model installed on the upstream.
type Model struct {
	ID      string
	OwnedBy string
}
