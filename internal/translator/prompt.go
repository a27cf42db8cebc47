package translator

import (
	"strings"

	"ollama-bridge/internal/models"
)

const assistantCue = "Assistant:"

// BuildPrompt flattens a conversation into the single prompt string the
// upstream expects. Unknown roles are dropped. The result always ends with
// "Assistant:" so the model continues as the assistant.
//
// Content is not escaped: a message containing "\n\nHuman:" is
// indistinguishable from a new turn.
func BuildPrompt(messages []models.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			b.WriteString("System: ")
		case models.RoleUser:
			b.WriteString("Human: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	if !strings.HasSuffix(b.String(), assistantCue) {
		b.WriteString(assistantCue)
	}
	return b.String()
}
