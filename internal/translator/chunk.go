package translator

import "time"

// ChunkFactory builds the OpenAI object carried by one SSE frame. An empty
// text with a nil finish reason never occurs in practice; a non-nil finish
// reason marks a terminal chunk.
type ChunkFactory interface {
	Chunk(text string, finishReason *string) any
}

// ChatCompletionChunk is one streamed chat completion frame.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the incremental delta of a chat chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta serialises as {} when there is no content.
type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

// CompletionChunk is one streamed text completion frame.
type CompletionChunk struct {
	ID      string                  `json:"id"`
	Object  string                  `json:"object"`
	Created int64                   `json:"created"`
	Model   string                  `json:"model"`
	Choices []CompletionChunkChoice `json:"choices"`
}

// CompletionChunkChoice carries the incremental text of a completion chunk.
type CompletionChunkChoice struct {
	Text         string  `json:"text"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
}

// NewChatChunks returns a factory for chat.completion.chunk frames. All
// chunks of one stream share an id.
func NewChatChunks(model string, now func() time.Time) ChunkFactory {
	return chatChunks{id: NewChatID(), model: model, now: now}
}

// NewCompletionChunks returns a factory for text_completion frames.
func NewCompletionChunks(model string, now func() time.Time) ChunkFactory {
	return completionChunks{id: NewCompletionID(), model: model, now: now}
}

type chatChunks struct {
	id    string
	model string
	now   func() time.Time
}

func (f chatChunks) Chunk(text string, finishReason *string) any {
	return ChatCompletionChunk{
		ID:      f.id,
		Object:  "chat.completion.chunk",
		Created: f.now().Unix(),
		Model:   f.model,
		Choices: []ChunkChoice{
			{Index: 0, Delta: ChunkDelta{Content: text}, FinishReason: finishReason},
		},
	}
}

type completionChunks struct {
	id    string
	model string
	now   func() time.Time
}

func (f completionChunks) Chunk(text string, finishReason *string) any {
	return CompletionChunk{
		ID:      f.id,
		Object:  "text_completion",
		Created: f.now().Unix(),
		Model:   f.model,
		Choices: []CompletionChunkChoice{
			{Text: text, Index: 0, FinishReason: finishReason},
		},
	}
}
