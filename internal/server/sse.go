package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// sseSink writes pre-framed server-sent events and flushes after each one.
// Headers are committed lazily on the first frame so that a client that
// disconnects before anything is produced receives nothing.
type sseSink struct {
	resp    *echo.Response
	flusher http.Flusher
	started bool
}

func newSSESink(resp *echo.Response) (*sseSink, error) {
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return nil, requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    errTypeServer,
		}
	}
	return &sseSink{resp: resp, flusher: flusher}, nil
}

func (s *sseSink) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if !s.started {
		header := s.resp.Header()
		header.Set(echo.HeaderContentType, "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.resp.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := s.resp.Write(frame); err != nil {
		return fmt.Errorf("write SSE frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
