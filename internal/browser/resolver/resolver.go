// Package resolver finds a logical element on the current page using, in
// order, its primary locator, locators that found it before, and attribute
// similarity against its last known snapshot.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/similarity"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
	"github.com/xkilldash9x/scalpel-heal/internal/observability"
)

// Tier identifies which stage of resolution produced an element.
type Tier int

const (
	TierPrimary Tier = iota + 1
	TierHistory
	TierProximity
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierHistory:
		return "history"
	case TierProximity:
		return "proximity"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Browser is the part of the driver resolution needs.
type Browser interface {
	driver.Finder
	driver.Inspector
}

// History is the locator memory shared across sessions.
type History interface {
	Record(elementID string, loc schemas.Locator, snap schemas.AttributeSnapshot) int
	Alternates(elementID string, excluding schemas.Locator) []schemas.Locator
	BestSnapshot(elementID string) (schemas.AttributeSnapshot, bool)
}

// Extractor captures element snapshots.
type Extractor interface {
	Extract(ctx context.Context, drv driver.Inspector, h driver.Handle) schemas.AttributeSnapshot
}

// Scorer ranks candidate snapshots against a target.
type Scorer interface {
	RankContext(ctx context.Context, target schemas.AttributeSnapshot, candidates []schemas.AttributeSnapshot) ([]similarity.Candidate, error)
}

// Resolved is a live element with the locator and snapshot that produced it.
// The handle is only valid for the current resolve-act cycle.
type Resolved struct {
	Handle   driver.Handle
	Locator  schemas.Locator
	Snapshot schemas.AttributeSnapshot
	Tier     Tier
	// Score is the similarity of a proximity match; 1 for the other tiers.
	Score float64
}

// Engine resolves elements for one browser session.
type Engine struct {
	logger    *zap.Logger
	cfg       config.ResolverConfig
	browser   Browser
	history   History
	extractor Extractor
	scorer    Scorer
}

// New builds an Engine. The history is typically shared by every session's engine.
func New(logger *zap.Logger, cfg config.ResolverConfig, browser Browser, history History, extractor Extractor, scorer Scorer) *Engine {
	return &Engine{
		logger:    logger.Named("resolver"),
		cfg:       cfg,
		browser:   browser,
		history:   history,
		extractor: extractor,
		scorer:    scorer,
	}
}

// Resolve locates elementID, trying each tier only after the previous one is
// exhausted. Success reinforces the winning locator in the history; failure
// leaves the history untouched and returns a *ResolutionError.
func (e *Engine) Resolve(ctx context.Context, elementID string, primary schemas.Locator) (*Resolved, error) {
	logger := e.logger.With(observability.ElementID(elementID))
	fail := &ResolutionError{ElementID: elementID, Primary: primary}

	// -- Tier 1: primary locator --
	if !primary.IsZero() {
		fail.Tiers = append(fail.Tiers, TierPrimary)
		h, err := e.first(ctx, primary, e.cfg.Wait)
		if err == nil {
			return e.accept(ctx, elementID, h, primary, TierPrimary, 1), nil
		}
		if ctx.Err() != nil {
			fail.Cause = ctx.Err()
			return nil, fail
		}
		fail.Cause = err
		logger.Debug("Primary locator failed.", observability.Locator("locator", primary), zap.Error(err))
	}

	// -- Tier 2: previously successful locators --
	alternates := e.history.Alternates(elementID, primary)
	if len(alternates) > 0 {
		fail.Tiers = append(fail.Tiers, TierHistory)
	}
	for _, alt := range alternates {
		h, err := e.first(ctx, alt, e.cfg.Wait)
		if err == nil {
			logger.Debug("Resolved via history alternate.", observability.Locator("locator", alt))
			return e.accept(ctx, elementID, h, alt, TierHistory, 1), nil
		}
		if ctx.Err() != nil {
			fail.Cause = ctx.Err()
			return nil, fail
		}
		fail.Cause = err
	}

	// -- Tier 3: proximity search --
	target, ok := e.history.BestSnapshot(elementID)
	if !ok {
		logger.Debug("No snapshot on record; proximity search skipped.")
		return nil, fail
	}
	fail.Tiers = append(fail.Tiers, TierProximity)
	res, err := e.proximity(ctx, elementID, primary, target)
	if err != nil {
		fail.Cause = err
		return nil, fail
	}
	logger.Info("Element healed by proximity search.",
		observability.Locator("primary", primary),
		observability.Locator("locator", res.Locator),
		zap.Float64("score", res.Score),
	)
	return res, nil
}

// first returns the first element loc matches within wait.
func (e *Engine) first(ctx context.Context, loc schemas.Locator, wait time.Duration) (driver.Handle, error) {
	hs, err := e.browser.FindElements(ctx, loc, wait)
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, fmt.Errorf("%s: %w", loc.Key(), driver.ErrElementNotFound)
	}
	return hs[0], nil
}

func (e *Engine) accept(ctx context.Context, elementID string, h driver.Handle, loc schemas.Locator, tier Tier, score float64) *Resolved {
	snap := e.extractor.Extract(ctx, e.browser, h)
	e.history.Record(elementID, loc, snap)
	return &Resolved{Handle: h, Locator: loc, Snapshot: snap, Tier: tier, Score: score}
}

// proximity scores every present element sharing the target's tag and
// accepts the best one at or above the scorer's threshold.
func (e *Engine) proximity(ctx context.Context, elementID string, primary schemas.Locator, target schemas.AttributeSnapshot) (*Resolved, error) {
	if target.Tag() == "" {
		return nil, fmt.Errorf("snapshot has no tag: %w", driver.ErrElementNotFound)
	}
	handles, err := e.browser.FindElements(ctx, schemas.ByCSS(target.Tag()), 0)
	if err != nil {
		return nil, fmt.Errorf("enumerate <%s> candidates: %w", target.Tag(), err)
	}
	if len(handles) > e.cfg.MaxCandidates {
		e.logger.Debug("Candidate set truncated.", zap.Int("found", len(handles)), zap.Int("max", e.cfg.MaxCandidates))
		handles = handles[:e.cfg.MaxCandidates]
	}

	kept := make([]driver.Handle, 0, len(handles))
	snaps := make([]schemas.AttributeSnapshot, 0, len(handles))
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := e.extractor.Extract(ctx, e.browser, h)
		if !e.withinRadius(target.Box(), snap.Box()) {
			continue
		}
		kept = append(kept, h)
		snaps = append(snaps, snap)
	}

	ranked, err := e.scorer.RankContext(ctx, target, snaps)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("no <%s> candidate out of %d met the similarity threshold: %w",
			target.Tag(), len(kept), driver.ErrElementNotFound)
	}

	var lastErr error
	for _, c := range ranked {
		h := kept[c.Index]
		loc, err := e.Synthesize(ctx, h, c.Snapshot, primary)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The candidate may have gone stale between scoring and synthesis.
			lastErr = err
			continue
		}
		e.history.Record(elementID, loc, c.Snapshot)
		return &Resolved{Handle: h, Locator: loc, Snapshot: c.Snapshot, Tier: TierProximity, Score: c.Score}, nil
	}
	return nil, lastErr
}

func (e *Engine) withinRadius(last, candidate schemas.BoundingBox) bool {
	if e.cfg.ProximityRadius <= 0 || last.IsZero() || candidate.IsZero() {
		return true
	}
	return last.DistanceTo(candidate) <= e.cfg.ProximityRadius
}

// errNotUnique marks a synthesized locator that does not single out the element.
var errNotUnique = errors.New("locator does not uniquely match the element")
