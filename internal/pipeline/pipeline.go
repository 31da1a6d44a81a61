// Package pipeline drives map images through identifier extraction, registry
// resolution and artifact persistence.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/extract"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/imagery"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/registry"
)

// DefaultConcurrency bounds in-flight extraction and resolution calls.
const DefaultConcurrency = 4

// ReasonNoGeometry is recorded when a matched parcel carries no polygon.
const ReasonNoGeometry = "boundary has no polygon geometry"

// Persister stores the artifacts for a resolved boundary.
type Persister interface {
	Persist(b *model.BoundaryRecord) ([]string, error)
}

// Pipeline runs batches. It holds no per-batch state and is safe for
// concurrent use.
type Pipeline struct {
	extractor   extract.Extractor
	resolver    registry.Resolver
	persister   Persister
	concurrency int
}

// New creates a Pipeline. persister may be nil to skip writing artifacts and
// extractor may be nil when only RunIdentifiers is used.
func New(extractor extract.Extractor, resolver registry.Resolver, persister Persister, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		extractor:   extractor,
		resolver:    resolver,
		persister:   persister,
		concurrency: concurrency,
	}
}

type runIDKey struct{}

// WithRunID tags ctx with a batch run ID that Run logs under.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run ID carried by ctx, if any.
func RunIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}

// Run extracts identifiers from every image, then resolves each one. The
// result has one entry per image, in input order. Per-item failures and
// cancellation are recorded on the item and never abort the batch.
func (p *Pipeline) Run(ctx context.Context, images []imagery.Image) []model.ParcelResult {
	log := batchLogger(ctx, len(images))
	start := time.Now()

	ids, errs := p.extractAll(ctx, images)
	log.Info("pipeline: extraction complete", zap.Duration("elapsed", time.Since(start)))

	results := p.resolveAll(ctx, ids, errs)
	logSummary(log, results, start)
	return results
}

// RunIdentifiers resolves and persists pre-built identifier records, for
// entry points that skip image extraction.
func (p *Pipeline) RunIdentifiers(ctx context.Context, ids []model.IdentifierRecord) []model.ParcelResult {
	log := batchLogger(ctx, len(ids))
	start := time.Now()

	results := p.resolveAll(ctx, ids, make([]error, len(ids)))
	logSummary(log, results, start)
	return results
}

// extractAll runs the extractor over every image with bounded concurrency.
// Outputs are written by index.
func (p *Pipeline) extractAll(ctx context.Context, images []imagery.Image) ([]model.IdentifierRecord, []error) {
	ids := make([]model.IdentifierRecord, len(images))
	errs := make([]error, len(images))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, img := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			if p.extractor == nil {
				errs[i] = errors.New("pipeline: no extractor configured")
				return nil
			}
			ids[i], errs[i] = p.extractor.Extract(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	return ids, errs
}

// resolveAll resolves each identifier whose extraction succeeded.
func (p *Pipeline) resolveAll(ctx context.Context, ids []model.IdentifierRecord, extractErrs []error) []model.ParcelResult {
	results := make([]model.ParcelResult, len(ids))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range ids {
		g.Go(func() error {
			results[i] = p.resolveOne(ctx, i, ids[i], extractErrs[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) resolveOne(ctx context.Context, index int, id model.IdentifierRecord, extractErr error) model.ParcelResult {
	log := zap.L().With(zap.Int("index", index))

	if extractErr != nil {
		if cancelled(ctx, extractErr) {
			return model.Failed(index, id, nil, model.ReasonCancelled)
		}
		log.Warn("pipeline: extraction failed", zap.Error(extractErr))
		return model.Failed(index, id, nil, extractErr.Error())
	}

	if err := ctx.Err(); err != nil {
		return model.Failed(index, id, nil, model.ReasonCancelled)
	}

	b, err := p.resolver.Resolve(ctx, id)
	if err != nil {
		if cancelled(ctx, err) {
			return model.Failed(index, id, nil, model.ReasonCancelled)
		}
		log.Warn("pipeline: resolution failed", zap.Error(err))
		return model.Failed(index, id, nil, err.Error())
	}
	if b == nil {
		log.Info("pipeline: no parcel found",
			zap.String("assessor_number", id.AssessorNumber),
			zap.String("address", id.Address),
		)
		return model.NotFound(index, id)
	}
	if !b.HasGeometry() {
		log.Warn("pipeline: parcel has no polygon", zap.String("canonical_id", b.CanonicalID))
		return model.Failed(index, id, b, ReasonNoGeometry)
	}

	var paths []string
	if p.persister != nil {
		paths, err = p.persister.Persist(b)
		if err != nil {
			log.Error("pipeline: persist failed", zap.String("canonical_id", b.CanonicalID), zap.Error(err))
			return model.Failed(index, id, b, err.Error())
		}
	}

	return model.Succeeded(index, id, b, paths)
}

// cancelled reports whether err stems from the batch being cancelled.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func batchLogger(ctx context.Context, items int) *zap.Logger {
	fields := []zap.Field{zap.Int("items", items)}
	if id, ok := RunIDFrom(ctx); ok {
		fields = append(fields, zap.String("run_id", id.String()))
	}
	return zap.L().With(fields...)
}

func logSummary(log *zap.Logger, results []model.ParcelResult, start time.Time) {
	s := model.Summarize(results)
	log.Info("pipeline: batch complete",
		zap.Int("success", s.Success),
		zap.Int("not_found", s.NotFound),
		zap.Int("failed", s.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}
