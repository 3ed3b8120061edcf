package observability

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
)

// Shared field constructors keep key names consistent across components.

func ElementID(id string) zap.Field { return zap.String("element_id", id) }

func Locator(key string, loc schemas.Locator) zap.Field {
	return zap.String(key, loc.Key())
}

func Action(a schemas.Action) zap.Field { return zap.String("action", string(a.Kind)) }
