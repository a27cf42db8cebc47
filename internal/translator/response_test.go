package translator

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"ollama-bridge/internal/ollama"
)

var (
	chatIDPattern       = regexp.MustCompile(`^chatcmpl-[0-9a-f]{8}$`)
	completionIDPattern = regexp.MustCompile(`^cmpl-[0-9a-f]{8}$`)
)

func TestIDs(t *testing.T) {
	if id := NewChatID(); !chatIDPattern.MatchString(id) {
		t.Fatalf("chat id %q has wrong shape", id)
	}
	if id := NewCompletionID(); !completionIDPattern.MatchString(id) {
		t.Fatalf("completion id %q has wrong shape", id)
	}
}

func TestFromGenerateChat(t *testing.T) {
	resp := &ollama.GenerateResponse{Response: "Hello", Done: true, PromptEvalCount: 12, EvalCount: 5}
	out := FromGenerateChat("llama3", 1700000000, resp)

	if !chatIDPattern.MatchString(out.ID) {
		t.Fatalf("id = %q", out.ID)
	}
	if out.Object != "chat.completion" || out.Model != "llama3" || out.Created != 1700000000 {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if len(out.Choices) != 1 {
		t.Fatalf("choices = %d", len(out.Choices))
	}
	choice := out.Choices[0]
	if choice.Message.Role != "assistant" || choice.Message.Content != "Hello" || choice.FinishReason != FinishStop {
		t.Fatalf("unexpected choice: %+v", choice)
	}
	if out.Usage.PromptTokens != 12 || out.Usage.CompletionTokens != 5 || out.Usage.TotalTokens != 17 {
		t.Fatalf("unexpected usage: %+v", out.Usage)
	}
}

func TestFromGenerateChatMissingCounts(t *testing.T) {
	out := FromGenerateChat("m", 0, &ollama.GenerateResponse{Response: "x", Done: true})

	payload, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}`) {
		t.Fatalf("usage must always be present: %s", payload)
	}
}

func TestFromGenerateCompletion(t *testing.T) {
	out := FromGenerateCompletion("m", 1, &ollama.GenerateResponse{Response: "text", PromptEvalCount: 2, EvalCount: 3})
	if !completionIDPattern.MatchString(out.ID) || out.Object != "text_completion" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if out.Choices[0].Text != "text" || out.Choices[0].FinishReason != FinishStop {
		t.Fatalf("unexpected choice: %+v", out.Choices[0])
	}
	if out.Usage.TotalTokens != 5 {
		t.Fatalf("total = %d", out.Usage.TotalTokens)
	}
}

func TestChatChunks(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	f := NewChatChunks("llama3", func() time.Time { return fixed })

	first, err := json.Marshal(f.Chunk("Hel", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	stop := FinishStop
	last, err := json.Marshal(f.Chunk("", &stop))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var a, b ChatCompletionChunk
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(last, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID != b.ID || !chatIDPattern.MatchString(a.ID) {
		t.Fatalf("chunks of one stream must share an id: %q %q", a.ID, b.ID)
	}
	if a.Object != "chat.completion.chunk" || a.Created != fixed.Unix() {
		t.Fatalf("unexpected chunk: %+v", a)
	}
	if !strings.Contains(string(first), `"delta":{"content":"Hel"},"finish_reason":null`) {
		t.Fatalf("content chunk shape: %s", first)
	}
	if !strings.Contains(string(last), `"delta":{},"finish_reason":"stop"`) {
		t.Fatalf("stop chunk shape: %s", last)
	}
}

func TestCompletionChunks(t *testing.T) {
	f := NewCompletionChunks("m", time.Now)
	payload, err := json.Marshal(f.Chunk("abc", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"object":"text_completion"`) ||
		!strings.Contains(string(payload), `"text":"abc"`) ||
		!strings.Contains(string(payload), `"finish_reason":null`) {
		t.Fatalf("unexpected completion chunk: %s", payload)
	}
}

func TestModelList(t *testing.T) {
	tags := &ollama.TagsResponse{Models: []ollama.Tag{{Name: "llama3:latest"}, {Name: "mistral"}}}
	list := NewModelList(ModelsFromTags(tags), 42)

	if list.Object != "list" || len(list.Data) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Data[0].ID != "llama3:latest" || list.Data[0].Object != "model" ||
		list.Data[0].OwnedBy != "ollama" || list.Data[0].Created != 42 {
		t.Fatalf("unexpected entry: %+v", list.Data[0])
	}

	empty := NewModelList(ModelsFromTags(&ollama.TagsResponse{}), 0)
	payload, _ := json.Marshal(empty)
	if !strings.Contains(string(payload), `"data":[]`) {
		t.Fatalf("empty list must serialise data as []: %s", payload)
	}
}
