package translator

import (
	"ollama-bridge/internal/models"
	"ollama-bridge/internal/ollama"
)

// Finish reasons emitted to clients.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   OpenAIUsage  `json:"usage"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// OpenAIUsage mirrors the token usage block in OpenAI responses.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse models the OpenAI text completion response payload.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   OpenAIUsage        `json:"usage"`
}

// CompletionChoice represents a single completion choice.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

// UsageFrom derives usage from the upstream evaluation counters.
func UsageFrom(resp *ollama.GenerateResponse) models.Usage {
	return models.NewUsage(resp.PromptEvalCount, resp.EvalCount)
}

func toOpenAIUsage(u models.Usage) OpenAIUsage {
	return OpenAIUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// FromGenerateChat builds a chat completion from the upstream's single
// aggregate response. The text is used as-is; fragments are never joined.
func FromGenerateChat(model string, createdUnix int64, resp *ollama.GenerateResponse) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      NewChatID(),
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ChatMessage{
					Role:    models.RoleAssistant,
					Content: resp.Response,
				},
				FinishReason: FinishStop,
			},
		},
		Usage: toOpenAIUsage(UsageFrom(resp)),
	}
}

// FromGenerateCompletion builds a text completion from the upstream's
// single aggregate response.
func FromGenerateCompletion(model string, createdUnix int64, resp *ollama.GenerateResponse) CompletionResponse {
	return CompletionResponse{
		ID:      NewCompletionID(),
		Object:  "text_completion",
		Created: createdUnix,
		Model:   model,
		Choices: []CompletionChoice{
			{
				Text:         resp.Response,
				Index:        0,
				FinishReason: FinishStop,
			},
		},
		Usage: toOpenAIUsage(UsageFrom(resp)),
	}
}

// ModelList is the OpenAI /models response.
type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelObject is one entry of a ModelList.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsFromTags maps installed upstream models to domain models.
func ModelsFromTags(tags *ollama.TagsResponse) []models.Model {
	out := make([]models.Model, 0, len(tags.Models))
	for _, tag := range tags.Models {
		out = append(out, models.Model{ID: tag.Name, OwnedBy: "ollama"})
	}
	return out
}

// NewModelList renders models in the OpenAI list shape.
func NewModelList(ms []models.Model, createdUnix int64) ModelList {
	data := make([]ModelObject, 0, len(ms))
	for _, m := range ms {
		data = append(data, ModelObject{
			ID:      m.ID,
			Object:  "model",
			Created: createdUnix,
			OwnedBy: m.OwnedBy,
		})
	}
	return ModelList{Object: "list", Data: data}
}
