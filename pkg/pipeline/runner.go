package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/svg2img/pkg/cache"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/observability"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/scene"
)

// cacheKeyType labels cache events from the runner.
const cacheKeyType = "artifact"

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute converts svg to an image and delivers it to opts.Output.
//
// Options are validated before the input is looked at, so an invalid format
// or supersampling factor is reported even for unparsable input. Intermediate
// buffers are owned by this call and dropped on failure; no partial output
// is delivered.
func (r *Runner) Execute(ctx context.Context, svg []byte, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger

	start := time.Now()
	res, err := r.execute(ctx, svg, &opts, logger)
	size := 0
	if res != nil {
		size = len(res.Data)
	}
	observability.Pipeline().OnRenderComplete(ctx, opts.Format.String(), size, time.Since(start), err)
	return res, err
}

func (r *Runner) execute(ctx context.Context, svg []byte, opts *Options, logger *log.Logger) (*Result, error) {
	result := &Result{Format: opts.Format}

	// Stage 1: Parse
	parseStart := time.Now()
	sc, err := stageValue(ctx, errors.StageParse, func() (*scene.Scene, error) { return Parse(svg, *opts) })
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	result.Stats.ParseTime = time.Since(parseStart)

	// Stage 2: Plan
	p, err := stageValue(ctx, errors.StagePlan, func() (plan.Plan, error) { return Plan(sc, *opts) })
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	result.Width, result.Height = p.TargetWidth, p.TargetHeight
	result.Stats.CanvasWidth, result.Stats.CanvasHeight = p.CanvasWidth, p.CanvasHeight

	logger.Debug("planned render",
		"intrinsic", fmt.Sprintf("%gx%g", sc.Width(), sc.Height()),
		"canvas", fmt.Sprintf("%dx%d", p.CanvasWidth, p.CanvasHeight),
		"target", fmt.Sprintf("%dx%d", p.TargetWidth, p.TargetHeight),
		"parse_duration", result.Stats.ParseTime)

	cacheKey := r.Keyer.ArtifactKey(cache.Hash(svg), opts.ArtifactKeyOpts(p))
	hooks := observability.Cache()

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			hooks.OnCacheHit(ctx, cacheKeyType)
			result.Data = data
			result.CacheHit = true
		} else {
			if err != nil {
				logger.Warn("cache lookup failed", "error", err)
			}
			hooks.OnCacheMiss(ctx, cacheKeyType)
		}
	}

	if !result.CacheHit {
		// Stages 3-5: Rasterize, convert, downsample
		renderStart := time.Now()
		img, err := Render(ctx, sc, p, *opts)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.Stats.RenderTime = time.Since(renderStart)

		// Stage 6: Encode
		encodeStart := time.Now()
		data, err := Encode(ctx, img, *opts)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		result.Stats.EncodeTime = time.Since(encodeStart)
		result.Data = data

		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact); err != nil {
			logger.Warn("cache store failed", "error", err)
		} else {
			hooks.OnCacheSet(ctx, cacheKeyType, len(data))
		}

		logger.Debug("rendered image",
			"format", opts.Format,
			"size", fmt.Sprintf("%dx%d", p.TargetWidth, p.TargetHeight),
			"bytes", len(data),
			"duration", result.Stats.RenderTime+result.Stats.EncodeTime)
	} else {
		logger.Debug("rendered image from cache", "format", opts.Format, "bytes", len(result.Data))
	}

	// Stage 7: Deliver
	deliverStart := time.Now()
	path, err := stageValue(ctx, errors.StageDeliver, func() (string, error) {
		return opts.Output.Deliver(ctx, result.Data, opts.Format)
	})
	if err != nil {
		return nil, fmt.Errorf("deliver: %w", err)
	}
	result.Path = path
	result.Stats.DeliverTime = time.Since(deliverStart)

	if result.Path != "" {
		logger.Debug("wrote image", "path", result.Path, "duration", result.Stats.DeliverTime)
	}
	return result, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
