// Package registry resolves parcel identifiers into boundary records against
// a parcel registry backend.
package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/regrid"
)

// Source fetches raw registry responses. Implementations return nil with a
// nil error when the registry has no match.
type Source interface {
	ByNumber(ctx context.Context, number string, scope regrid.Scope) ([]byte, error)
	ByAddress(ctx context.Context, address string, scope regrid.Scope) ([]byte, error)
}

// Resolver turns an identifier record into a boundary. A nil record with a
// nil error means no match.
type Resolver interface {
	Resolve(ctx context.Context, id model.IdentifierRecord) (*model.BoundaryRecord, error)
}

// ResolverOption configures a SearchResolver.
type ResolverOption func(*SearchResolver)

// WithAliases replaces the property alias table.
func WithAliases(aliases AliasTable) ResolverOption {
	return func(r *SearchResolver) {
		r.aliases = aliases
	}
}

// SearchResolver queries a Source by assessor number first and falls back to
// the address.
type SearchResolver struct {
	source  Source
	aliases AliasTable
}

// NewSearchResolver creates a SearchResolver over src.
func NewSearchResolver(src Source, opts ...ResolverOption) *SearchResolver {
	r := &SearchResolver{source: src, aliases: DefaultAliases}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type lookupFunc func(ctx context.Context, key string, scope regrid.Scope) ([]byte, error)

// Resolve runs the search strategy. The number lookup short-circuits the
// address lookup when it finds a parcel; a source error is returned as-is
// without trying the next key.
func (r *SearchResolver) Resolve(ctx context.Context, id model.IdentifierRecord) (*model.BoundaryRecord, error) {
	if !id.HasSearchKey() {
		return nil, nil
	}

	scope := regrid.NewScope(id.County, id.State)

	if id.AssessorNumber != "" {
		b, err := r.lookup(ctx, "number", id.AssessorNumber, scope, r.source.ByNumber)
		if err != nil || b != nil {
			return b, err
		}
	}

	if id.Address != "" {
		return r.lookup(ctx, "address", id.Address, scope, r.source.ByAddress)
	}

	return nil, nil
}

func (r *SearchResolver) lookup(ctx context.Context, kind, key string, scope regrid.Scope, fn lookupFunc) (*model.BoundaryRecord, error) {
	log := zap.L().With(
		zap.String("lookup", kind),
		zap.String("key", key),
		zap.String("county", scope.County),
		zap.String("state", scope.State),
	)

	payload, err := fn(ctx, key, scope)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: %s lookup %q", kind, key)
	}
	if payload == nil {
		log.Debug("registry: no match")
		return nil, nil
	}

	b, err := Normalize(payload, key, r.aliases)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: %s lookup %q", kind, key)
	}
	if b == nil {
		log.Debug("registry: empty parcel collection")
		return nil, nil
	}

	log.Info("registry: parcel matched",
		zap.String("canonical_id", b.CanonicalID),
		zap.Int("vertices", len(b.Vertices)),
	)
	return b, nil
}
