package cdp

import (
	"context"
	"time"
)

// CombineContext returns a context derived from session that is also
// cancelled when op is done. Values, and therefore the chromedp target, come
// from session; op typically carries the caller's deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(session)

	go func() {
		select {
		case <-op.Done():
			cancel(context.Cause(op))
		case <-combined.Done():
		}
	}()

	return combined, func() { cancel(context.Canceled) }
}

// valueOnlyContext keeps its parent's values but none of its cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that carries ctx's values (the CDP target) but
// outlives it, for cleanup that must run after the caller gave up.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
