package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// idleReader wraps a streaming body and cancels the request when no bytes
// arrive within the idle window. There is no overall deadline.
type idleReader struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	body   io.ReadCloser
	idle   time.Duration
	timer  *time.Timer
}

func newIdleReader(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, idle time.Duration) *idleReader {
	return &idleReader{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		idle:   idle,
		timer:  time.AfterFunc(idle, func() { cancel(ErrStreamIdle) }),
	}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if n > 0 {
		r.timer.Reset(r.idle)
	}
	if err != nil && !errors.Is(err, io.EOF) && errors.Is(context.Cause(r.ctx), ErrStreamIdle) {
		err = fmt.Errorf("%w: no data for %s", ErrStreamIdle, r.idle)
	}
	return n, err
}

func (r *idleReader) Close() error {
	r.timer.Stop()
	err := r.body.Close()
	r.cancel(nil)
	return err
}
