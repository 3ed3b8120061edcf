// Package interaction performs actions on logical elements, retrying through
// per-action fallback chains and re-resolving elements that go stale.
//
// The executor does not log or capture screenshots; callers observe the
// returned schemas.ActionResult.
package interaction

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/resolver"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
)

const (
	DefaultAttempts = 4
	DefaultDelay    = 500 * time.Millisecond
)

// Resolver finds elements; *resolver.Engine satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, elementID string, primary schemas.Locator) (*resolver.Resolved, error)
}

// Executor runs actions for one browser session.
type Executor struct {
	drv      driver.Driver
	resolver Resolver
	attempts int
	delay    time.Duration
}

// New builds an Executor. Non-positive attempts fall back to the default.
func New(cfg config.InteractionConfig, drv driver.Driver, res Resolver) *Executor {
	e := &Executor{drv: drv, resolver: res, attempts: cfg.Attempts, delay: cfg.Delay}
	if e.attempts <= 0 {
		e.attempts = DefaultAttempts
	}
	if e.delay < 0 {
		e.delay = DefaultDelay
	}
	return e
}

// Perform resolves elementID and applies action, making up to the configured
// number of attempts. Attempts run strictly one after another so an action is
// never fired twice concurrently. The outcome, including any error, is
// reported in the result; Perform never panics on driver failures.
func (e *Executor) Perform(ctx context.Context, elementID string, primary schemas.Locator, action schemas.Action) schemas.ActionResult {
	result := schemas.ActionResult{}
	if err := action.Validate(); err != nil {
		result.Err = &ActionError{ElementID: elementID, Action: action.Kind, Last: err}
		return result
	}

	var last error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, e.delay); err != nil {
				last = err
				break
			}
		}
		result.Attempts = attempt

		res, err := e.resolver.Resolve(ctx, elementID, primary)
		if err != nil {
			last = err
			// A page that is still rendering may resolve on the next attempt.
			if ctx.Err() != nil || !errors.Is(err, resolver.ErrResolutionFailed) {
				break
			}
			continue
		}
		result.FinalLocator = res.Locator

		strategy, value, err := e.run(ctx, res.Handle, action)
		if err == nil {
			result.Success = true
			result.Strategy = strategy
			result.Value = value
			return result
		}
		last = err
		if ctx.Err() != nil || !recoverable(err) {
			break
		}
	}

	result.Err = &ActionError{ElementID: elementID, Action: action.Kind, Attempts: result.Attempts, Last: last}
	return result
}

// run walks the fallback chain for action against h. A stale handle ends the
// chain early since every later step would fail the same way.
func (e *Executor) run(ctx context.Context, h driver.Handle, action schemas.Action) (string, string, error) {
	var last error
	for _, s := range e.chain(action) {
		value, err := s.do(ctx, h)
		if err == nil {
			return s.name, value, nil
		}
		last = err
		if !recoverable(err) || errors.Is(err, driver.ErrStaleReference) {
			return "", "", err
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	return "", "", last
}

func recoverable(err error) bool {
	return driver.IsRecoverable(err) || errors.Is(err, errEmptyRead)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
