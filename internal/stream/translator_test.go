package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"ollama-bridge/internal/translator"
)

type deltaView struct {
	Content string `json:"content"`
}

type chunkView struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Choices []struct {
		Text         string    `json:"text"`
		Delta        deltaView `json:"delta"`
		FinishReason *string   `json:"finish_reason"`
	} `json:"choices"`
}

func parseFrame(t *testing.T, frame []byte) chunkView {
	t.Helper()
	s := string(frame)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("frame not SSE framed: %q", s)
	}
	var v chunkView
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")), &v); err != nil {
		t.Fatalf("frame payload: %v", err)
	}
	return v
}

func newChatTranslator() *Translator {
	return NewTranslator(translator.NewChatChunks("llama3", time.Now))
}

func TestTranslatorHappyPath(t *testing.T) {
	tr := newChatTranslator()

	var frames [][]byte
	for _, line := range []string{
		`{"response":"Hel"}`,
		`{"response":"lo"}`,
		`{"done":true,"prompt_eval_count":5,"eval_count":2}`,
	} {
		frames = append(frames, tr.Line([]byte(line))...)
	}

	if len(frames) != 4 {
		t.Fatalf("frames = %d, want 4", len(frames))
	}
	if c := parseFrame(t, frames[0]); c.Choices[0].Delta.Content != "Hel" || c.Choices[0].FinishReason != nil {
		t.Fatalf("first chunk: %+v", c)
	}
	if c := parseFrame(t, frames[1]); c.Choices[0].Delta.Content != "lo" {
		t.Fatalf("second chunk: %+v", c)
	}
	stop := parseFrame(t, frames[2])
	if stop.Choices[0].FinishReason == nil || *stop.Choices[0].FinishReason != "stop" || stop.Choices[0].Delta.Content != "" {
		t.Fatalf("stop chunk: %+v", stop)
	}
	if !bytes.Equal(frames[3], DoneFrame) {
		t.Fatalf("last frame = %q", frames[3])
	}
	if tr.State() != Done {
		t.Fatalf("state = %s", tr.State())
	}
	if u := tr.Usage(); u.PromptTokens != 5 || u.CompletionTokens != 2 || u.TotalTokens != 7 {
		t.Fatalf("usage = %+v", u)
	}
	if ids := []string{parseFrame(t, frames[0]).ID, stop.ID}; ids[0] != ids[1] {
		t.Fatalf("ids differ within one stream: %v", ids)
	}

	if extra := tr.Line([]byte(`{"response":"late"}`)); extra != nil {
		t.Fatalf("terminal translator emitted %q", extra)
	}
}

func TestTranslatorSkipsBlankAndMalformed(t *testing.T) {
	tr := newChatTranslator()

	var frames [][]byte
	for _, line := range []string{
		``,
		`   `,
		`{"response":"a"}`,
		`{not json`,
		`{"response":"b"`,
		`42`,
		`{"response":""}`,
		`{"response":"c"}`,
	} {
		frames = append(frames, tr.Line([]byte(line))...)
	}

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if tr.State() != Streaming {
		t.Fatalf("malformed input changed state to %s", tr.State())
	}
	if tr.Skipped() != 3 {
		t.Fatalf("skipped = %d, want 3", tr.Skipped())
	}
}

func TestTranslatorTextAndDoneOnOneLine(t *testing.T) {
	tr := newChatTranslator()
	frames := tr.Line([]byte(`{"response":"end","done":true}`))
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if c := parseFrame(t, frames[0]); c.Choices[0].Delta.Content != "end" {
		t.Fatalf("content chunk: %+v", c)
	}
	if !bytes.Equal(frames[2], DoneFrame) {
		t.Fatalf("missing terminator")
	}
}

func TestTranslatorReject(t *testing.T) {
	tr := newChatTranslator()
	frame := tr.Reject([]byte(`{"error":"model not found"}` + "\n"))

	c := parseFrame(t, frame)
	if c.Choices[0].Delta.Content != `Error: {"error":"model not found"}`+"\n" {
		t.Fatalf("content = %q", c.Choices[0].Delta.Content)
	}
	if c.Choices[0].FinishReason == nil || *c.Choices[0].FinishReason != "error" {
		t.Fatalf("finish_reason = %v", c.Choices[0].FinishReason)
	}
	if tr.State() != ErrorSent {
		t.Fatalf("state = %s", tr.State())
	}
	if tr.Fail(errors.New("again")) != nil {
		t.Fatalf("second error frame emitted")
	}
}

func TestTranslatorInBandError(t *testing.T) {
	tr := newChatTranslator()

	var frames [][]byte
	for _, line := range []string{
		`{"response":"partial"}`,
		`{"error":"model 'x' not found"}`,
		`{"response":"late"}`,
		`{"done":true}`,
	} {
		frames = append(frames, tr.Line([]byte(line))...)
	}

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	c := parseFrame(t, frames[1])
	if c.Choices[0].Delta.Content != "Error: model 'x' not found" {
		t.Fatalf("content = %q", c.Choices[0].Delta.Content)
	}
	if c.Choices[0].FinishReason == nil || *c.Choices[0].FinishReason != "error" {
		t.Fatalf("finish_reason = %v", c.Choices[0].FinishReason)
	}
	if tr.State() != ErrorSent || tr.Failure() != "model 'x' not found" {
		t.Fatalf("state = %s failure = %q", tr.State(), tr.Failure())
	}
}

func TestTranslatorCompletionChunks(t *testing.T) {
	tr := NewTranslator(translator.NewCompletionChunks("m", time.Now))
	frames := tr.Line([]byte(`{"response":"x","done":true}`))

	c := parseFrame(t, frames[0])
	if c.Object != "text_completion" || c.Choices[0].Text != "x" {
		t.Fatalf("completion chunk: %+v", c)
	}
	if stop := parseFrame(t, frames[1]); *stop.Choices[0].FinishReason != "stop" {
		t.Fatalf("stop chunk: %+v", stop)
	}
}

type recordingSink struct {
	frames [][]byte
	err    error
}

func (s *recordingSink) Send(frame []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func TestPumpStopsAtDone(t *testing.T) {
	body := strings.NewReader("{\"response\":\"Hel\"}\n\n{\"response\":\"lo\"}\n{\"done\":true}\n{\"response\":\"ignored\"}\n")
	sink := &recordingSink{}

	if err := Pump(context.Background(), body, newChatTranslator(), sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if len(sink.frames) != 4 {
		t.Fatalf("frames = %d, want 4", len(sink.frames))
	}
	if !bytes.Equal(sink.frames[3], DoneFrame) {
		t.Fatalf("last frame = %q", sink.frames[3])
	}
}

func TestPumpTrailingLineWithoutNewline(t *testing.T) {
	body := strings.NewReader("{\"response\":\"a\"}\n{\"done\":true}")
	sink := &recordingSink{}

	if err := Pump(context.Background(), body, newChatTranslator(), sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if got := sink.frames[len(sink.frames)-1]; !bytes.Equal(got, DoneFrame) {
		t.Fatalf("last frame = %q", got)
	}
}

func TestPumpPrematureEOF(t *testing.T) {
	body := strings.NewReader("{\"response\":\"a\"}\n")
	sink := &recordingSink{}
	tr := newChatTranslator()

	if err := Pump(context.Background(), body, tr, sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(sink.frames))
	}
	c := parseFrame(t, sink.frames[1])
	if !strings.Contains(c.Choices[0].Delta.Content, ErrIncomplete.Error()) {
		t.Fatalf("error chunk = %q", c.Choices[0].Delta.Content)
	}
	if tr.State() != ErrorSent {
		t.Fatalf("state = %s", tr.State())
	}
}

func TestPumpInBandErrorStopsStream(t *testing.T) {
	body := strings.NewReader("{\"error\":\"model 'x' not found\"}\n{\"response\":\"ignored\"}\n")
	sink := &recordingSink{}

	if err := Pump(context.Background(), body, newChatTranslator(), sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(sink.frames))
	}
	c := parseFrame(t, sink.frames[0])
	if c.Choices[0].Delta.Content != "Error: model 'x' not found" {
		t.Fatalf("error chunk = %q", c.Choices[0].Delta.Content)
	}
	if bytes.Contains(sink.frames[0], []byte("[DONE]")) {
		t.Fatalf("error path must not emit [DONE]")
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestPumpReadFault(t *testing.T) {
	fault := errors.New("connection reset")
	body := &failingReader{data: []byte("{\"response\":\"a\"}\n"), err: fault}
	sink := &recordingSink{}

	if err := Pump(context.Background(), body, newChatTranslator(), sink); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	c := parseFrame(t, sink.frames[len(sink.frames)-1])
	if c.Choices[0].Delta.Content != "Error: connection reset" || *c.Choices[0].FinishReason != "error" {
		t.Fatalf("error chunk: %+v", c)
	}
}

func TestPumpClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := &failingReader{err: context.Canceled}
	sink := &recordingSink{}

	err := Pump(ctx, body, newChatTranslator(), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("frames written after client left: %d", len(sink.frames))
	}
}

func TestPumpSinkFailure(t *testing.T) {
	sinkErr := errors.New("broken pipe")
	sink := &recordingSink{err: sinkErr}

	err := Pump(context.Background(), strings.NewReader("{\"response\":\"a\"}\n"), newChatTranslator(), sink)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("err = %v", err)
	}
}
