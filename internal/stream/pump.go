package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// ErrIncomplete is reported in-band when the upstream closes the stream
// without sending its done event.
var ErrIncomplete = errors.New("upstream stream ended before completion")

// Sink receives frames as soon as they are produced. Implementations flush
// every frame.
type Sink interface {
	Send(frame []byte) error
}

// Pump reads upstream lines from r, translates them and forwards each frame
// to sink without batching. It returns when the translator becomes
// terminal, the sink fails, or ctx is cancelled. A read fault or a
// premature EOF is reported to the client as an error frame; a cancelled
// ctx means the client is gone and nothing more is written.
func Pump(ctx context.Context, r io.Reader, t *Translator, sink Sink) error {
	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			for _, frame := range t.Line(line) {
				if err := sink.Send(frame); err != nil {
					return err
				}
			}
			if t.State() != Streaming {
				return nil
			}
		}
		if readErr == nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		cause := readErr
		if errors.Is(readErr, io.EOF) {
			cause = ErrIncomplete
		}
		return sink.Send(t.Fail(cause))
	}
}
