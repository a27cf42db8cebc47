// Package stream converts the upstream NDJSON generation stream into
// OpenAI-style server-sent events.
package stream

import (
	"bytes"
	"encoding/json"

	"ollama-bridge/internal/models"
	"ollama-bridge/internal/ollama"
	"ollama-bridge/internal/translator"
)

// State is the lifecycle position of one client stream.
type State int

const (
	Streaming State = iota
	ErrorSent
	Done
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case ErrorSent:
		return "error_sent"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

var (
	framePrefix = []byte("data: ")
	frameSuffix = []byte("\n\n")

	// DoneFrame terminates a successful stream.
	DoneFrame = []byte("data: [DONE]\n\n")
)

// Translator turns upstream lines into SSE frames for a single client
// stream. It performs no I/O and is not safe for concurrent use.
type Translator struct {
	chunks  translator.ChunkFactory
	state   State
	usage   models.Usage
	skipped int
	failure string
}

// NewTranslator returns a translator in the Streaming state.
func NewTranslator(chunks translator.ChunkFactory) *Translator {
	return &Translator{chunks: chunks}
}

// Line consumes one upstream line and returns the frames to forward, in
// order. Blank and malformed lines yield nothing. Once the translator is
// terminal every call yields nothing.
func (t *Translator) Line(line []byte) [][]byte {
	if t.state != Streaming {
		return nil
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	var event ollama.GenerateResponse
	if err := json.Unmarshal(line, &event); err != nil {
		t.skipped++
		return nil
	}

	if event.Error != "" {
		return [][]byte{t.fail(event.Error)}
	}

	var frames [][]byte
	if event.Response != "" {
		frames = append(frames, t.frame(event.Response, nil))
	}
	if event.Done {
		stop := translator.FinishStop
		frames = append(frames, t.frame("", &stop), DoneFrame)
		t.usage = translator.UsageFrom(&event)
		t.state = Done
	}
	return frames
}

// Reject produces the single error frame sent when the upstream refused
// the request. The body is forwarded as received. No [DONE] terminator
// follows it.
func (t *Translator) Reject(body []byte) []byte {
	return t.fail(string(body))
}

// Fail produces the error frame for a fault that ended the stream. No
// [DONE] terminator follows it.
func (t *Translator) Fail(err error) []byte {
	return t.fail(err.Error())
}

func (t *Translator) fail(msg string) []byte {
	if t.state != Streaming {
		return nil
	}
	t.state = ErrorSent
	t.failure = msg
	reason := translator.FinishError
	return t.frame("Error: "+msg, &reason)
}

// State reports the current lifecycle position.
func (t *Translator) State() State { return t.state }

// Usage reports the token counts carried by the done event. It is zero
// until the translator reaches Done.
func (t *Translator) Usage() models.Usage { return t.usage }

// Failure reports the message carried by the error frame, if one was sent.
func (t *Translator) Failure() string { return t.failure }

// Skipped reports how many malformed lines were discarded.
func (t *Translator) Skipped() int { return t.skipped }

func (t *Translator) frame(text string, finishReason *string) []byte {
	payload, err := json.Marshal(t.chunks.Chunk(text, finishReason))
	if err != nil {
		// chunk types are plain structs; unreachable
		return nil
	}
	out := make([]byte, 0, len(framePrefix)+len(payload)+len(frameSuffix))
	out = append(out, framePrefix...)
	out = append(out, payload...)
	return append(out, frameSuffix...)
}
