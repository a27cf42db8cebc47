package translator

import (
	"strings"

	"github.com/google/uuid"
)

const (
	chatIDPrefix       = "chatcmpl-"
	completionIDPrefix = "cmpl-"
	idLength           = 8
)

// NewChatID returns an identifier of the form "chatcmpl-" + 8 hex chars.
func NewChatID() string {
	return chatIDPrefix + randomHex()
}

// NewCompletionID returns an identifier of the form "cmpl-" + 8 hex chars.
func NewCompletionID() string {
	return completionIDPrefix + randomHex()
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}
