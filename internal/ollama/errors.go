package ollama

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectTimeout is the cause recorded when no response headers
	// arrived in time for a streaming call.
	ErrConnectTimeout = errors.New("timed out waiting for upstream response")

	// ErrStreamIdle is the cause recorded when a stream produced no data
	// for longer than the idle timeout.
	ErrStreamIdle = errors.New("upstream stream idle timeout")
)

// UnavailableError reports that no HTTP response was obtained from the
// upstream: connection refused, DNS failure, or a timeout.
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama %s returned status %d: %s", e.Endpoint, e.StatusCode, strings.TrimSpace(string(e.Body)))
}
