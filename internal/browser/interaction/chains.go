package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

// Strategy names reported in schemas.ActionResult.Strategy.
const (
	StrategyNativeClick     = "native-click"
	StrategyScrollClick     = "scroll-click"
	StrategyPointerClick    = "pointer-click"
	StrategyScriptClick     = "script-click"
	StrategyNativeInput     = "native-input"
	StrategyFocusInput      = "focus-input"
	StrategyScriptValue     = "script-value"
	StrategyNativeClear     = "native-clear"
	StrategySelectAllDelete = "select-all-delete"
	StrategyScriptReset     = "script-reset"
	StrategyNativeSelect    = "native-select"
	StrategyOpenAndSelect   = "open-and-select"
	StrategyOptionClick     = "option-click"
	StrategyPointerMove     = "pointer-move"
	StrategyScriptHover     = "script-mouseover"
	StrategyText            = "text"
	StrategyValueAttribute  = "value-attribute"
	StrategyTextContent     = "text-content"
	StrategyScriptRead      = "script-read"
)

type step struct {
	name string
	do   func(ctx context.Context, h driver.Handle) (string, error)
}

// chain returns the ordered fallbacks for action. Later steps are more
// invasive; the first one that succeeds wins.
func (e *Executor) chain(action schemas.Action) []step {
	switch action.Kind {
	case schemas.ActionClick:
		return e.clickChain()
	case schemas.ActionType:
		return e.typeChain(action.Text, action.ClearFirst)
	case schemas.ActionClear:
		return e.clearChain()
	case schemas.ActionSelect:
		return e.selectChain(action.SelectBy, action.Text)
	case schemas.ActionHover:
		return e.hoverChain()
	case schemas.ActionReadText:
		return e.readChain()
	}
	return nil
}

func (e *Executor) clickChain() []step {
	return []step{
		{StrategyNativeClick, func(ctx context.Context, h driver.Handle) (string, error) {
			return "", e.drv.Click(ctx, h)
		}},
		{StrategyScrollClick, func(ctx context.Context, h driver.Handle) (string, error) {
			if err := e.drv.ScrollIntoView(ctx, h); err != nil {
				return "", err
			}
			return "", e.drv.Click(ctx, h)
		}},
		{StrategyPointerClick, func(ctx context.Context, h driver.Handle) (string, error) {
			if err := e.drv.MoveTo(ctx, h); err != nil {
				return "", err
			}
			return "", e.drv.PointerClick(ctx)
		}},
		{StrategyScriptClick, func(ctx context.Context, h driver.Handle) (string, error) {
			_, err := e.drv.Evaluate(ctx, dom.ScriptClick, h)
			return "", err
		}},
	}
}

func (e *Executor) typeChain(text string, clearFirst bool) []step {
	// Appending steps share the value read before the first one so a
	// fallback never types on top of a partial write.
	var (
		base  string
		known bool
	)
	prepare := func(ctx context.Context, h driver.Handle) error {
		if clearFirst {
			return e.drv.Clear(ctx, h)
		}
		if !known {
			v, err := e.drv.Property(ctx, h, "value")
			if err != nil {
				return err
			}
			base, known = v, true
			return nil
		}
		_, err := e.drv.Evaluate(ctx, dom.ScriptSetValue, h, base, false)
		return err
	}
	input := func(ctx context.Context, h driver.Handle) error {
		if err := prepare(ctx, h); err != nil {
			return err
		}
		return e.drv.SendKeys(ctx, h, text)
	}
	return []step{
		{StrategyNativeInput, func(ctx context.Context, h driver.Handle) (string, error) {
			return "", input(ctx, h)
		}},
		{StrategyFocusInput, func(ctx context.Context, h driver.Handle) (string, error) {
			if err := e.drv.Click(ctx, h); err != nil {
				return "", err
			}
			return "", input(ctx, h)
		}},
		{StrategyScriptValue, func(ctx context.Context, h driver.Handle) (string, error) {
			want := text
			if !clearFirst {
				if !known {
					v, err := e.drv.Property(ctx, h, "value")
					if err != nil {
						return "", err
					}
					base, known = v, true
				}
				want = base + text
			}
			_, err := e.drv.Evaluate(ctx, dom.ScriptSetValue, h, want, false)
			return "", err
		}},
	}
}

func (e *Executor) clearChain() []step {
	return []step{
		{StrategyNativeClear, func(ctx context.Context, h driver.Handle) (string, error) {
			return "", e.drv.Clear(ctx, h)
		}},
		{StrategySelectAllDelete, func(ctx context.Context, h driver.Handle) (string, error) {
			if err := e.drv.PressKey(ctx, h, "a", schemas.ModCtrl); err != nil {
				return "", err
			}
			return "", e.drv.PressKey(ctx, h, "Delete", schemas.ModNone)
		}},
		{StrategyScriptReset, func(ctx context.Context, h driver.Handle) (string, error) {
			_, err := e.drv.Evaluate(ctx, dom.ScriptSetValue, h, "", false)
			return "", err
		}},
	}
}

func (e *Executor) selectChain(by schemas.SelectBy, wanted string) []step {
	native := func(ctx context.Context, h driver.Handle) error {
		if by == schemas.SelectByOptionValue {
			return e.drv.SelectByValue(ctx, h, wanted)
		}
		return e.drv.SelectByText(ctx, h, wanted)
	}
	return []step{
		{StrategyNativeSelect, func(ctx context.Context, h driver.Handle) (string, error) {
			return "", native(ctx, h)
		}},
		{StrategyOpenAndSelect, func(ctx context.Context, h driver.Handle) (string, error) {
			if err := e.drv.Click(ctx, h); err != nil {
				return "", err
			}
			return "", native(ctx, h)
		}},
		{StrategyOptionClick, func(ctx context.Context, h driver.Handle) (string, error) {
			options, err := e.drv.FindWithin(ctx, h, optionLocator(by, wanted))
			if err != nil {
				return "", err
			}
			if len(options) == 0 {
				return "", fmt.Errorf("no option with %s %q: %w", by, wanted, driver.ErrElementNotFound)
			}
			return "", e.drv.Click(ctx, options[0])
		}},
	}
}

func optionLocator(by schemas.SelectBy, wanted string) schemas.Locator {
	if by == schemas.SelectByOptionValue {
		return schemas.ByXPath(".//option[@value=" + dom.Literal(wanted) + "]")
	}
	return schemas.ByXPath(".//option[normalize-space(.)=" + dom.Literal(strings.TrimSpace(wanted)) + "]")
}

func (e *Executor) hoverChain() []step {
	return []step{
		{StrategyPointerMove, func(ctx context.Context, h driver.Handle) (string, error) {
			return "", e.drv.MoveTo(ctx, h)
		}},
		{StrategyScriptHover, func(ctx context.Context, h driver.Handle) (string, error) {
			_, err := e.drv.Evaluate(ctx, dom.ScriptHover, h)
			return "", err
		}},
	}
}

// readChain tolerates empty reads until the final script read, which may
// legitimately return an empty string.
func (e *Executor) readChain() []step {
	nonEmpty := func(s string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errEmptyRead
		}
		return s, nil
	}
	return []step{
		{StrategyText, func(ctx context.Context, h driver.Handle) (string, error) {
			s, err := e.drv.Text(ctx, h)
			if err != nil {
				return "", err
			}
			return nonEmpty(s)
		}},
		{StrategyValueAttribute, func(ctx context.Context, h driver.Handle) (string, error) {
			s, ok, err := e.drv.Attribute(ctx, h, "value")
			if err != nil {
				return "", err
			}
			if !ok {
				return "", errEmptyRead
			}
			return nonEmpty(s)
		}},
		{StrategyTextContent, func(ctx context.Context, h driver.Handle) (string, error) {
			s, err := e.drv.Property(ctx, h, "textContent")
			if err != nil {
				return "", err
			}
			return nonEmpty(s)
		}},
		{StrategyScriptRead, func(ctx context.Context, h driver.Handle) (string, error) {
			raw, err := e.drv.Evaluate(ctx, dom.ScriptReadText, h)
			if err != nil {
				return "", err
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return "", fmt.Errorf("decode read_text result: %w", err)
			}
			return s, nil
		}},
	}
}
