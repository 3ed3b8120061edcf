// Package cdp implements driver.Driver on a live Chrome tab through the
// DevTools protocol. Nodes are addressed by backend node id, which stays
// valid for as long as the node exists in the page; every primitive
// re-resolves it, so a removed node surfaces as driver.ErrStaleReference.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	cdptypes "github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json/jsontext"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

const (
	DefaultOperationTimeout = 15 * time.Second
	DefaultPollInterval     = 100 * time.Millisecond
)

// Option configures a Driver.
type Option func(*Driver)

// WithOperationTimeout bounds each primitive (one click, one query).
func WithOperationTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.opTimeout = d
		}
	}
}

// WithPollInterval sets how often FindElements re-queries while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.pollInterval = d
		}
	}
}

// Driver drives one tab. It is safe for concurrent use, though a page
// serialises interactions anyway.
type Driver struct {
	ctx          context.Context
	logger       *zap.Logger
	opTimeout    time.Duration
	pollInterval time.Duration
	groups       atomic.Uint64

	mu      sync.Mutex
	pointer *point
}

type point struct{ x, y float64 }

// NewDriver wraps a chromedp tab context, as returned by chromedp.NewContext.
func NewDriver(tabCtx context.Context, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		ctx:          tabCtx,
		logger:       logger.Named("cdp"),
		opTimeout:    DefaultOperationTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type handle struct {
	id cdptypes.BackendNodeID
}

func (h *handle) Ref() string    { return strconv.FormatInt(int64(h.id), 10) }
func (h *handle) String() string { return "cdp:" + h.Ref() }

func backendID(h driver.Handle) (cdptypes.BackendNodeID, error) {
	hh, ok := h.(*handle)
	if !ok || hh == nil {
		return 0, fmt.Errorf("foreign handle %T: %w", h, driver.ErrStaleReference)
	}
	return hh.id, nil
}

func handles(ids []cdptypes.BackendNodeID) []driver.Handle {
	out := make([]driver.Handle, 0, len(ids))
	for _, id := range ids {
		out = append(out, &handle{id: id})
	}
	return out
}

// run executes fn against the tab, bounded by both ctx and the operation
// timeout. An operation that merely ran out of time is reported as
// intercepted so the caller may retry; the caller's own cancellation and a
// closed session are returned as context errors.
func (d *Driver) run(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancelOp := context.WithTimeout(ctx, d.opTimeout)
	defer cancelOp()
	runCtx, cancel := CombineContext(d.ctx, opCtx)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(fn))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case d.ctx.Err() != nil:
		return fmt.Errorf("browser session closed: %w", d.ctx.Err())
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: operation exceeded %s", driver.ErrActionIntercepted, d.opTimeout)
	}
	return err
}

// -- Finder --

// FindElements implements driver.Finder. Polling is paced by a rate limiter
// so a slow page is not hammered with queries.
func (d *Driver) FindElements(ctx context.Context, loc schemas.Locator, wait time.Duration) ([]driver.Handle, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if wait <= 0 {
		hs, err := d.query(ctx, nil, loc)
		if err != nil {
			return nil, err
		}
		if len(hs) == 0 {
			return nil, fmt.Errorf("%s: %w", loc.Key(), driver.ErrElementNotFound)
		}
		return hs, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(d.pollInterval), 1)
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		hs, err := d.query(pollCtx, nil, loc)
		switch {
		case err == nil && len(hs) > 0:
			return hs, nil
		case err == nil:
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case pollCtx.Err() != nil:
		case errors.Is(err, driver.ErrStaleReference) || errors.Is(err, driver.ErrActionIntercepted):
			// The document was replaced mid-query; poll again.
			d.logger.Debug("Transient query failure while polling.", zap.String("locator", loc.Key()), zap.Error(err))
		default:
			return nil, err
		}
		if pollCtx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s: %w", loc.Key(), driver.ErrElementNotFound)
}

// FindWithin implements driver.Finder.
func (d *Driver) FindWithin(ctx context.Context, parent driver.Handle, loc schemas.Locator) ([]driver.Handle, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	id, err := backendID(parent)
	if err != nil {
		return nil, err
	}
	return d.query(ctx, &id, loc)
}

var queryFunctions = map[schemas.Strategy]string{
	schemas.StrategyID:     queryID,
	schemas.StrategyCSS:    queryCSS,
	schemas.StrategyXPath:  queryXPath,
	schemas.StrategyScript: queryScript,
}

func (d *Driver) query(ctx context.Context, scope *cdptypes.BackendNodeID, loc schemas.Locator) ([]driver.Handle, error) {
	var ids []cdptypes.BackendNodeID
	err := d.run(ctx, func(c context.Context) error {
		group := fmt.Sprintf("scalpel-heal-query-%d", d.groups.Add(1))
		defer release(c, runtime.ReleaseObjectGroup(group))

		var err error
		ids, err = evaluateLocator(c, group, scope, loc)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return handles(ids), nil
}

// anyOf returns the first non-empty child result. A failing child is
// skipped and its error only surfaces when every child failed.
func anyOf(ctx context.Context, children []schemas.Locator, eval func(schemas.Locator) ([]cdptypes.BackendNodeID, error)) ([]cdptypes.BackendNodeID, error) {
	var (
		last error
		ran  bool
	)
	for _, child := range children {
		ids, err := eval(child)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			last = err
			continue
		}
		ran = true
		if len(ids) > 0 {
			return ids, nil
		}
	}
	if ran {
		return nil, nil
	}
	return nil, last
}

// evaluateLocator composes any/all locators in Go so each leaf query stays a
// single page round trip.
func evaluateLocator(ctx context.Context, group string, scope *cdptypes.BackendNodeID, loc schemas.Locator) ([]cdptypes.BackendNodeID, error) {
	switch loc.Strategy() {
	case schemas.StrategyAnyOf:
		return anyOf(ctx, loc.Children(), func(child schemas.Locator) ([]cdptypes.BackendNodeID, error) {
			return evaluateLocator(ctx, group, scope, child)
		})
	case schemas.StrategyAllOf:
		var result []cdptypes.BackendNodeID
		for i, child := range loc.Children() {
			ids, err := evaluateLocator(ctx, group, scope, child)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				result = ids
				continue
			}
			result = slices.DeleteFunc(result, func(id cdptypes.BackendNodeID) bool {
				return !slices.Contains(ids, id)
			})
		}
		return result, nil
	}

	fn, ok := queryFunctions[loc.Strategy()]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", driver.ErrInvalidLocator, loc.Strategy())
	}
	return runQuery(ctx, group, scope, fn, loc.Value())
}

func runQuery(ctx context.Context, group string, scope *cdptypes.BackendNodeID, fn, arg string) ([]cdptypes.BackendNodeID, error) {
	var scopeID runtime.RemoteObjectID
	if scope == nil {
		doc, exc, err := runtime.Evaluate("document").WithObjectGroup(group).Do(ctx)
		if err != nil {
			return nil, err
		}
		if exc != nil {
			return nil, scriptException(exc)
		}
		scopeID = doc.ObjectID
	} else {
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(*scope).WithObjectGroup(group).Do(ctx)
		if err != nil {
			return nil, err
		}
		scopeID = obj.ObjectID
	}

	list, err := callFunction(ctx, scopeID, group, fn, false, arg)
	if err != nil {
		var se *scriptError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: %v", driver.ErrInvalidLocator, err)
		}
		return nil, err
	}

	props, _, _, exc, err := runtime.GetProperties(list.ObjectID).WithOwnProperties(true).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, scriptException(exc)
	}

	type indexed struct {
		index int
		id    cdptypes.BackendNodeID
	}
	found := make([]indexed, 0, len(props))
	for _, p := range props {
		idx, err := strconv.Atoi(p.Name)
		if err != nil || p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		node, err := cdpdom.DescribeNode().WithObjectID(p.Value.ObjectID).Do(ctx)
		if err != nil {
			return nil, err
		}
		found = append(found, indexed{index: idx, id: node.BackendNodeID})
	}
	slices.SortFunc(found, func(a, b indexed) int { return a.index - b.index })

	ids := make([]cdptypes.BackendNodeID, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.id)
	}
	return ids, nil
}

// -- Script plumbing --

const releaseTimeout = time.Second

// release frees remote objects even when ctx has already expired, so a timed
// out query does not leak its results into the page.
func release(ctx context.Context, action chromedp.Action) {
	rctx, cancel := context.WithTimeout(Detach(ctx), releaseTimeout)
	defer cancel()
	_ = action.Do(rctx)
}

// scriptError is a JavaScript exception thrown by an evaluated function.
type scriptError struct {
	text string
}

func (e *scriptError) Error() string { return "script exception: " + e.text }

func scriptException(exc *runtime.ExceptionDetails) error {
	text := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		text = exc.Exception.Description
	}
	return &scriptError{text: text}
}

func callFunction(ctx context.Context, objectID runtime.RemoteObjectID, group, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	params := runtime.CallFunctionOn(fn).
		WithObjectID(objectID).
		WithReturnByValue(byValue).
		WithAwaitPromise(true)
	if group != "" {
		params = params.WithObjectGroup(group)
	}
	if len(args) > 0 {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			raw, err := json.Marshal(a)
			if err != nil {
				return nil, fmt.Errorf("encode script argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: jsontext.Value(raw)})
		}
		params = params.WithArguments(callArgs)
	}

	res, exc, err := params.Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, scriptException(exc)
	}
	return res, nil
}

// callOn invokes fn with this bound to the node and returns its JSON value.
func callOn(ctx context.Context, id cdptypes.BackendNodeID, fn string, args ...any) (json.RawMessage, error) {
	obj, err := cdpdom.ResolveNode().WithBackendNodeID(id).Do(ctx)
	if err != nil {
		return nil, err
	}
	defer release(ctx, runtime.ReleaseObject(obj.ObjectID))

	res, err := callFunction(ctx, obj.ObjectID, "", fn, true, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(res.Value), nil
}

// callValue runs fn on h and decodes its result into out, which may be nil.
func (d *Driver) callValue(ctx context.Context, h driver.Handle, fn string, out any, args ...any) error {
	id, err := backendID(h)
	if err != nil {
		return err
	}
	err = d.run(ctx, func(c context.Context) error {
		raw, err := callOn(c, id, fn, args...)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode script result: %w", err)
		}
		return nil
	})
	return classify(err)
}

// Evaluate implements driver.ScriptEvaluator.
func (d *Driver) Evaluate(ctx context.Context, fn string, target driver.Handle, args ...any) (json.RawMessage, error) {
	id, err := backendID(target)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = d.run(ctx, func(c context.Context) error {
		var err error
		out, err = callOn(c, id, fn, args...)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

var _ driver.Driver = (*Driver)(nil)
