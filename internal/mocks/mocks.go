// Package mocks holds testify mocks for the interfaces components are wired
// through, so packages can be tested without a browser.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Resolver() config.ResolverConfig {
	args := m.Called()
	return args.Get(0).(config.ResolverConfig)
}

func (m *MockConfig) Scorer() config.ScorerConfig {
	args := m.Called()
	return args.Get(0).(config.ScorerConfig)
}

func (m *MockConfig) History() config.HistoryConfig {
	args := m.Called()
	return args.Get(0).(config.HistoryConfig)
}

func (m *MockConfig) Interaction() config.InteractionConfig {
	args := m.Called()
	return args.Get(0).(config.InteractionConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	args := m.Called()
	return args.Get(0).(config.EngineConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetResolverWait(d time.Duration) {
	m.Called(d)
}

func (m *MockConfig) SetEngineConcurrency(n int) {
	m.Called(n)
}

var _ config.Interface = (*MockConfig)(nil)

// -- Engine Mocks --

// MockSink mocks the engine's report sink.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Report(ctx context.Context, report *schemas.JobReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// MockPerformer mocks a browser session as seen by the engine.
type MockPerformer struct {
	mock.Mock
}

func (m *MockPerformer) ID() string {
	return m.Called().String(0)
}

func (m *MockPerformer) Perform(ctx context.Context, elementID string, primary schemas.Locator, action schemas.Action) schemas.ActionResult {
	args := m.Called(ctx, elementID, primary, action)
	return args.Get(0).(schemas.ActionResult)
}
