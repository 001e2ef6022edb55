// Package extract resolves article fields from rendered pages via ordered
// fallback chains. Partial success is the normal case: every field has a
// degraded default and only an empty body makes a result unusable.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Strategy resolves one candidate value for a field. Implementations must be
// side-effect free so chains can be exercised with stubs.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context) (string, error)
}

// FirstNonEmpty executes strategies in order and returns the first non-empty
// trimmed value along with the name of the strategy that produced it.
// Strategy errors are not fatal; they advance the chain.
func FirstNonEmpty(ctx context.Context, logger *zap.Logger, strategies []Strategy) (string, string) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return "", ""
		}
		value, err := s.Resolve(ctx)
		if err != nil {
			logger.Debug("strategy missed", zap.String("strategy", s.Name), zap.Error(err))
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed, s.Name
		}
	}
	return "", ""
}
