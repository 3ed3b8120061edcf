package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/service"
)

type actionFlags struct {
	kind       string
	text       string
	clearFirst bool
	selectBy   string
}

func (f *actionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "action", "", "click, type, clear, select, hover or read_text")
	cmd.Flags().StringVar(&f.text, "text", "", "text to type, or the option to select")
	cmd.Flags().BoolVar(&f.clearFirst, "clear-first", false, "clear the field before typing")
	cmd.Flags().StringVar(&f.selectBy, "select-by", string(schemas.SelectByVisibleText), "match select options by text or value")
	_ = cmd.MarkFlagRequired("action")
}

func (f actionFlags) action() (schemas.Action, error) {
	a := schemas.Action{
		Kind:       schemas.ActionKind(f.kind),
		Text:       f.text,
		ClearFirst: f.clearFirst,
	}
	if a.Kind == schemas.ActionSelect {
		a.SelectBy = schemas.SelectBy(f.selectBy)
	}
	return a, a.Validate()
}

// errActionFailed signals a non-zero exit after the result has been printed.
var errActionFailed = errors.New("action failed")

func newPerformCommand(a *app) *cobra.Command {
	var (
		t         target
		locs      locatorFlags
		acts      actionFlags
		elementID string
	)
	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Resolve an element and perform one action on it with retries and fallbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, err := locs.locator()
			if err != nil {
				return err
			}
			action, err := acts.action()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			drv, release, err := a.open(ctx, t)
			if err != nil {
				return err
			}
			defer release()

			svc, err := service.New(a.cfg, a.logger)
			if err != nil {
				return err
			}
			result := svc.Session(drv).Perform(ctx, elementIDOr(elementID, primary), primary, action)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%w: %v", errActionFailed, result.Err)
			}
			return nil
		},
	}
	t.bind(cmd)
	locs.bind(cmd)
	acts.bind(cmd)
	cmd.Flags().StringVar(&elementID, "element", "", "logical element id (defaults to the locator key)")
	return cmd
}
