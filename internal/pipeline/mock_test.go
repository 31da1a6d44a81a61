package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/registry"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/regrid"
)

// countingSource wraps a registry source and counts lookups.
type countingSource struct {
	inner registry.Source
	calls atomic.Int32
}

func (c *countingSource) ByNumber(ctx context.Context, number string, scope regrid.Scope) ([]byte, error) {
	c.calls.Add(1)
	return c.inner.ByNumber(ctx, number, scope)
}

func (c *countingSource) ByAddress(ctx context.Context, address string, scope regrid.Scope) ([]byte, error) {
	c.calls.Add(1)
	return c.inner.ByAddress(ctx, address, scope)
}
