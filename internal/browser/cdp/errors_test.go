package cdp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scalpel-heal/internal/browser/driver"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"missing node", errors.New("Could not find node with given id (-32000)"), driver.ErrStaleReference},
		{"no node", errors.New("No node with given id found"), driver.ErrStaleReference},
		{"detached script", errors.New("exception: stale: node is detached"), driver.ErrStaleReference},
		{"navigated away", errors.New("Cannot find context with specified id"), driver.ErrStaleReference},
		{"other failure", errors.New("Node does not have a layout object"), driver.ErrActionIntercepted},
		{"already classified", fmt.Errorf("wrapped: %w", driver.ErrUnsupported), driver.ErrUnsupported},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), context.Canceled},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	assert.NoError(t, classify(nil))
	assert.False(t, driver.IsRecoverable(classify(context.Canceled)))
	assert.True(t, driver.IsRecoverable(classify(errors.New("Node is not visible"))))
}
