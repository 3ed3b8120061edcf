// Package service wires the resolution and interaction components into the
// single entry point used by the CLI and the step engine. One Service holds
// the element history shared by every browser session it hands out.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/extract"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/history"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/interaction"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/resolver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/similarity"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
	"github.com/xkilldash9x/scalpel-heal/internal/observability"
)

// Service owns the state shared across sessions.
type Service struct {
	cfg       config.Interface
	logger    *zap.Logger
	store     *history.Store
	scorer    *similarity.Scorer
	extractor *extract.Extractor
}

// New builds a Service from cfg. The resolver and scorer sections are
// validated here so a bad config fails before any browser is touched.
func New(cfg config.Interface, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("service: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rcfg := cfg.Resolver()
	if err := rcfg.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	scfg := cfg.Scorer()
	if scfg.Threshold <= 0 || scfg.Threshold > 1 {
		return nil, fmt.Errorf("service: scorer threshold %v outside (0, 1]", scfg.Threshold)
	}

	hcfg := cfg.History()
	return &Service{
		cfg:    cfg,
		logger: logger.Named("service"),
		store: history.New(
			history.WithCapacity(hcfg.Capacity),
			history.WithFanout(rcfg.Fanout),
			history.WithMaxElements(hcfg.MaxElements),
		),
		scorer:    similarity.New(similarity.WithThreshold(scfg.Threshold), similarity.WithWeights(scfg.Weights)),
		extractor: extract.New(),
	}, nil
}

// Session binds the shared history to one browser. Sessions are cheap; the
// caller owns drv and its lifecycle.
func (s *Service) Session(drv driver.Driver) *Session {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id))
	res := resolver.New(logger, s.cfg.Resolver(), drv, s.store, s.extractor, s.scorer)
	return &Session{
		id:       id,
		logger:   logger,
		resolver: res,
		executor: interaction.New(s.cfg.Interaction(), drv, res),
	}
}

// History returns a copy of what is known about elementID.
func (s *Service) History(elementID string) (history.ElementHistory, bool) {
	return s.store.History(elementID)
}

// ClearHistory forgets every element.
func (s *Service) ClearHistory() {
	s.store.Clear()
	s.logger.Info("Cleared element history.")
}

// ClearElementHistory forgets one element.
func (s *Service) ClearElementHistory(elementID string) {
	s.store.ClearElement(elementID)
	s.logger.Debug("Cleared element history.", observability.ElementID(elementID))
}

// Session resolves and acts on elements in one browser. It is not safe for
// concurrent use: a browser page serialises interactions anyway.
type Session struct {
	id       string
	logger   *zap.Logger
	resolver *resolver.Engine
	executor *interaction.Executor
}

func (s *Session) ID() string { return s.id }

// Resolve finds the element, healing the locator when the primary no longer
// matches.
func (s *Session) Resolve(ctx context.Context, elementID string, primary schemas.Locator) (*resolver.Resolved, error) {
	return s.resolver.Resolve(ctx, elementID, primary)
}

// Perform runs action against the element and reports the outcome.
func (s *Session) Perform(ctx context.Context, elementID string, primary schemas.Locator, action schemas.Action) schemas.ActionResult {
	result := s.executor.Perform(ctx, elementID, primary, action)
	fields := []zap.Field{
		observability.ElementID(elementID),
		observability.Action(action),
		zap.Int("attempts", result.Attempts),
	}
	if result.Success {
		fields = append(fields, zap.String("strategy", result.Strategy), observability.Locator("final_locator", result.FinalLocator))
		s.logger.Debug("Action succeeded.", fields...)
	} else {
		s.logger.Warn("Action failed.", append(fields, zap.Error(result.Err))...)
	}
	return result
}
