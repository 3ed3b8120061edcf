package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/browser/htmldoc"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
	"github.com/xkilldash9x/scalpel-heal/internal/service"
)

const checkoutPage = `<html><body><form>
	<input id="qty" name="qty" value="1">
	<select id="ship" name="ship"><option value="std">Standard</option><option value="exp">Express</option></select>
	<button id="buy" class="btn-buy" type="submit">Buy now</button>
</form></body></html>`

func TestRun_SessionsShareOneService(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetResolverWait(5 * time.Millisecond)
	cfg.SetEngineConcurrency(3)
	cfg.InteractionCfg.Delay = time.Millisecond

	logger := zaptest.NewLogger(t)
	svc, err := service.New(cfg, logger)
	require.NoError(t, err)

	steps := []schemas.Step{
		{ElementID: "quantity", Locator: schemas.ByID("qty"), Action: schemas.TypeText("3", true)},
		{ElementID: "shipping", Locator: schemas.ByCSS("select[name=ship]"), Action: schemas.SelectByValue("exp")},
		{ElementID: "promo", Locator: schemas.ByID("promo"), Action: schemas.TypeText("SAVE", false), ContinueOnFailure: true},
		{ElementID: "buy", Locator: schemas.ByID("buy"), Action: schemas.Click()},
	}

	var (
		docs []*htmldoc.Document
		jobs []Job
	)
	for i := 0; i < 3; i++ {
		doc, err := htmldoc.ParseString(checkoutPage, htmldoc.WithPollInterval(time.Millisecond))
		require.NoError(t, err)
		docs = append(docs, doc)
		jobs = append(jobs, Job{Session: svc.Session(doc), Steps: steps})
	}

	e, err := New(cfg, logger, &collector{})
	require.NoError(t, err)
	reports, err := e.Run(context.Background(), jobs)
	require.NoError(t, err)

	for i, r := range reports {
		require.Len(t, r.Steps, 4)
		assert.Empty(t, r.Error)
		assert.Equal(t, schemas.StepFailed, r.Steps[2].Status)
		assert.Equal(t, schemas.StepSucceeded, r.Steps[3].Status)

		qty, _ := docs[i].Value("#qty")
		assert.Equal(t, "3", qty)
		ship, _ := docs[i].Value("#ship")
		assert.Equal(t, "exp", ship)
	}

	h, ok := svc.History("buy")
	require.True(t, ok)
	require.Len(t, h.Records, 1)
	assert.Equal(t, 3, h.Records[0].SuccessCount)
}
