package translator

import (
	"ollama-bridge/internal/models"
	"ollama-bridge/internal/ollama"
)

// ToUpstream converts the chat request into a generate payload. Frequency
// and presence penalties have no upstream equivalent and are dropped.
func (r ChatCompletionRequest) ToUpstream() ollama.GenerateRequest {
	msgs := make([]models.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, models.Message{Role: m.Role, Content: m.Content})
	}

	topP := r.TopP
	return ollama.GenerateRequest{
		Model:  r.Model,
		Prompt: BuildPrompt(msgs),
		Stream: r.Stream,
		Options: ollama.GenerateOptions{
			Temperature: r.Temperature,
			NumPredict:  r.MaxTokens,
			TopP:        &topP,
		},
	}
}

// ToUpstream converts the completion request into a generate payload. The
// prompt is forwarded verbatim and top_p is never sent.
func (r CompletionRequest) ToUpstream() ollama.GenerateRequest {
	return ollama.GenerateRequest{
		Model:  r.Model,
		Prompt: r.Prompt,
		Stream: r.Stream,
		Options: ollama.GenerateOptions{
			Temperature: r.Temperature,
			NumPredict:  r.MaxTokens,
		},
	}
}
