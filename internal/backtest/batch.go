package backtest

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Batch runs fn once per symbol with at most limit running at a time.
// Each symbol is an isolated series; the first error cancels the rest.
func Batch(ctx context.Context, symbols []string, limit int, fn func(ctx context.Context, symbol string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		sym := sym
		g.Go(func() error {
			return fn(gctx, sym)
		})
	}
	return g.Wait()
}
