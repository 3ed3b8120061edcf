package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/service"
)

type resolveOutput struct {
	ElementID string                    `json:"element_id"`
	Tier      string                    `json:"tier"`
	Score     float64                   `json:"score"`
	Locator   schemas.Locator           `json:"locator"`
	Ref       string                    `json:"ref"`
	Snapshot  schemas.AttributeSnapshot `json:"snapshot"`
}

func newResolveCommand(a *app) *cobra.Command {
	var (
		t         target
		locs      locatorFlags
		elementID string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an element and print the locator and snapshot that matched",
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, err := locs.locator()
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
			res, err := svc.Session(drv).Resolve(ctx, elementIDOr(elementID, primary), primary)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resolveOutput{
				ElementID: elementIDOr(elementID, primary),
				Tier:      res.Tier.String(),
				Score:     res.Score,
				Locator:   res.Locator,
				Ref:       res.Handle.Ref(),
				Snapshot:  res.Snapshot,
			})
		},
	}
	t.bind(cmd)
	locs.bind(cmd)
	cmd.Flags().StringVar(&elementID, "element", "", "logical element id (defaults to the locator key)")
	return cmd
}

// elementIDOr falls back to the locator key so one-off lookups need no id.
func elementIDOr(id string, loc schemas.Locator) string {
	if id != "" {
		return id
	}
	return loc.Key()
}
