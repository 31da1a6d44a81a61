package main

import (
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/artifact"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/config"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/extract"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/pipeline"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/registry"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/resilience"
	anthropicpkg "github.com/HansenHomeAI/RegridParcelBoundaries/pkg/anthropic"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/regrid"
)

// pipelineEnv holds the collaborators built from config for the
// process/resolve/coords/serve commands.
type pipelineEnv struct {
	Pipeline  *pipeline.Pipeline
	Extractor extract.Extractor // nil unless vision was requested
	Resolver  registry.Resolver
	Writer    *artifact.Writer // nil when artifacts are not written
}

// envOptions selects which collaborators initPipeline builds.
type envOptions struct {
	Vision    bool   // build the vision extractor (requires anthropic.key)
	OutputDir string // artifact directory; empty disables persistence
	Shapefile bool
}

// initPipeline validates config for the requested entry point and wires the
// registry source, resolver, extractor and artifact writer.
func initPipeline(c *config.Config, opts envOptions) (*pipelineEnv, error) {
	if err := c.Validate(opts.Vision); err != nil {
		return nil, err
	}

	src, err := initSource(c)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{Resolver: registry.NewSearchResolver(src)}

	if opts.Vision {
		client := anthropicpkg.NewClient(c.Anthropic.Key, option.WithMaxRetries(2))
		env.Extractor = extract.NewVisionExtractor(client, extract.VisionConfig{
			Model:       c.Anthropic.Model,
			MaxTokens:   c.Anthropic.MaxTokens,
			Temperature: c.Anthropic.Temperature,
		})
	}

	var persister pipeline.Persister
	if opts.OutputDir != "" {
		env.Writer = artifact.NewWriter(opts.OutputDir, opts.Shapefile)
		persister = env.Writer
	}

	env.Pipeline = pipeline.New(env.Extractor, env.Resolver, persister, c.Pipeline.Concurrency)
	return env, nil
}

// initSource returns the fixture catalog in demo mode and the live Regrid
// client otherwise.
func initSource(c *config.Config) (registry.Source, error) {
	if c.Demo() {
		cat, err := loadCatalog(c.Registry.FixturePath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using demo parcel catalog", zap.Int("parcels", len(cat.Parcels)))
		return registry.NewFixtureSource(cat), nil
	}

	opts := []regrid.Option{
		regrid.WithRetry(resilience.FromMillis(
			c.Regrid.Retry.MaxAttempts,
			c.Regrid.Retry.InitialBackoffMs,
			c.Regrid.Retry.MaxBackoffMs,
		)),
	}
	if c.Regrid.RateLimit > 0 {
		opts = append(opts, regrid.WithRateLimit(c.Regrid.RateLimit))
	}
	if c.Regrid.BaseURL != "" {
		opts = append(opts, regrid.WithBaseURL(c.Regrid.BaseURL))
	}
	if c.Regrid.TimeoutSecs > 0 {
		opts = append(opts, regrid.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Regrid.TimeoutSecs) * time.Second}))
	}
	return regrid.NewClient(c.Regrid.Token, opts...), nil
}

func loadCatalog(path string) (registry.Catalog, error) {
	if path == "" {
		return registry.DefaultCatalog()
	}
	cat, err := registry.LoadCatalog(path)
	if err != nil {
		return registry.Catalog{}, eris.Wrapf(err, "load demo catalog %s", path)
	}
	return cat, nil
}
