package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Defaults applied to optional request fields that are absent or null.
const (
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

var (
	errEmptyModel      = errors.New("model must be provided")
	errMissingMessages = errors.New("messages must be provided")
	errMissingPrompt   = errors.New("prompt must be provided")
	errInvalidContent  = errors.New("invalid message content")
)

// ChatCompletionRequest models the OpenAI chat/completions request payload
// with defaults applied.
type ChatCompletionRequest struct {
	Model            string
	Messages         []ChatMessage
	Stream           bool
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// UnmarshalJSON decodes the request, applies defaults and validates the
// required fields. Roles and numeric ranges are not checked.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Model            string        `json:"model"`
		Messages         []ChatMessage `json:"messages"`
		Stream           *bool         `json:"stream"`
		Temperature      *float64      `json:"temperature"`
		MaxTokens        *int          `json:"max_tokens"`
		TopP             *float64      `json:"top_p"`
		FrequencyPenalty *float64      `json:"frequency_penalty"`
		PresencePenalty  *float64      `json:"presence_penalty"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	r.Model = strings.TrimSpace(raw.Model)
	r.Messages = raw.Messages
	r.Stream = valueOr(raw.Stream, false)
	r.Temperature = valueOr(raw.Temperature, DefaultTemperature)
	r.MaxTokens = valueOr(raw.MaxTokens, DefaultMaxTokens)
	r.TopP = valueOr(raw.TopP, DefaultTopP)
	r.FrequencyPenalty = valueOr(raw.FrequencyPenalty, DefaultFrequencyPenalty)
	r.PresencePenalty = valueOr(raw.PresencePenalty, DefaultPresencePenalty)

	if r.Model == "" {
		return errEmptyModel
	}
	if raw.Messages == nil {
		return errMissingMessages
	}
	return nil
}

// ChatMessage captures a single message within a chat request or response.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON supports string and array-of-text content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing content", errInvalidContent)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type != "text" {
				return "", fmt.Errorf("%w: segment type %q not supported", errInvalidContent, segment.Type)
			}
			builder.WriteString(segment.Text)
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", errInvalidContent)
}

// CompletionRequest models the legacy OpenAI text completions request
// payload with defaults applied.
type CompletionRequest struct {
	Model       string
	Prompt      string
	Stream      bool
	Temperature float64
	MaxTokens   int
}

// UnmarshalJSON decodes the request, applies defaults and validates the
// required fields.
func (r *CompletionRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Model       string          `json:"model"`
		Prompt      json.RawMessage `json:"prompt"`
		Stream      *bool           `json:"stream"`
		Temperature *float64        `json:"temperature"`
		MaxTokens   *int            `json:"max_tokens"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode completion request: %w", err)
	}

	prompt, err := extractPrompt(raw.Prompt)
	if err != nil {
		return err
	}

	r.Model = strings.TrimSpace(raw.Model)
	r.Prompt = prompt
	r.Stream = valueOr(raw.Stream, false)
	r.Temperature = valueOr(raw.Temperature, DefaultTemperature)
	r.MaxTokens = valueOr(raw.MaxTokens, DefaultMaxTokens)

	if r.Model == "" {
		return errEmptyModel
	}
	return nil
}

func extractPrompt(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errMissingPrompt
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, "\n"), nil
	}

	return "", errors.New("unsupported prompt type")
}

func valueOr[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}
