package interaction_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/resolver"
)

type ref string

func (r ref) Ref() string { return string(r) }

// stubResolver always hands back the same handle.
type stubResolver struct {
	h     driver.Handle
	loc   schemas.Locator
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, _ string, _ schemas.Locator) (*resolver.Resolved, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &resolver.Resolved{Handle: s.h, Locator: s.loc, Tier: resolver.TierPrimary}, nil
}

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) FindElements(ctx context.Context, loc schemas.Locator, wait time.Duration) ([]driver.Handle, error) {
	args := m.Called(ctx, loc, wait)
	hs, _ := args.Get(0).([]driver.Handle)
	return hs, args.Error(1)
}

func (m *mockDriver) FindWithin(ctx context.Context, parent driver.Handle, loc schemas.Locator) ([]driver.Handle, error) {
	args := m.Called(ctx, parent, loc)
	hs, _ := args.Get(0).([]driver.Handle)
	return hs, args.Error(1)
}

func (m *mockDriver) TagName(ctx context.Context, h driver.Handle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) Attribute(ctx context.Context, h driver.Handle, name string) (string, bool, error) {
	args := m.Called(ctx, h, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockDriver) Property(ctx context.Context, h driver.Handle, name string) (string, error) {
	args := m.Called(ctx, h, name)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) Text(ctx context.Context, h driver.Handle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) BoundingBox(ctx context.Context, h driver.Handle) (schemas.BoundingBox, error) {
	args := m.Called(ctx, h)
	box, _ := args.Get(0).(schemas.BoundingBox)
	return box, args.Error(1)
}

func (m *mockDriver) XPath(ctx context.Context, h driver.Handle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) Click(ctx context.Context, h driver.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockDriver) ScrollIntoView(ctx context.Context, h driver.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockDriver) MoveTo(ctx context.Context, h driver.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockDriver) PointerClick(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) SendKeys(ctx context.Context, h driver.Handle, text string) error {
	return m.Called(ctx, h, text).Error(0)
}

func (m *mockDriver) Clear(ctx context.Context, h driver.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockDriver) PressKey(ctx context.Context, h driver.Handle, key string, mods schemas.KeyModifier) error {
	return m.Called(ctx, h, key, mods).Error(0)
}

func (m *mockDriver) SelectByText(ctx context.Context, h driver.Handle, text string) error {
	return m.Called(ctx, h, text).Error(0)
}

func (m *mockDriver) SelectByValue(ctx context.Context, h driver.Handle, value string) error {
	return m.Called(ctx, h, value).Error(0)
}

func (m *mockDriver) Evaluate(ctx context.Context, fn string, target driver.Handle, args ...any) (json.RawMessage, error) {
	ret := m.Called(ctx, fn, target, args)
	raw, _ := ret.Get(0).(json.RawMessage)
	return raw, ret.Error(1)
}

// methods lists the names of the calls m received, in order.
func (m *mockDriver) methods() []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Method)
	}
	return out
}

var _ driver.Driver = (*mockDriver)(nil)
