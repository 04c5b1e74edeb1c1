package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/observability"
	"github.com/matzehuels/svg2img/pkg/pixel"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/raster"
	"github.com/matzehuels/svg2img/pkg/scene"
)

// Parse parses svg with the options' strictness.
func Parse(svg []byte, opts Options) (*scene.Scene, error) {
	var sopts []scene.Option
	if opts.Strict {
		sopts = append(sopts, scene.WithStrict())
	}
	return scene.Parse(svg, sopts...)
}

// Plan negotiates the output size of s.
func Plan(s *scene.Scene, opts Options) (plan.Plan, error) {
	return plan.New(s.Width(), s.Height(), opts.Sizer, opts.SuperSampling)
}

// Render rasterizes s according to p and returns the image at the target
// size. The supersampled canvas is not retained.
func Render(ctx context.Context, s *scene.Scene, p plan.Plan, opts Options) (*image.NRGBA, error) {
	var ropts []raster.Option
	if opts.Engine != nil {
		ropts = append(ropts, raster.WithEngine(opts.Engine))
	}

	canvas, err := stageValue(ctx, errors.StageRasterize, func() (*raster.Canvas, error) {
		return raster.Rasterize(s, p, ropts...)
	})
	if err != nil {
		return nil, err
	}

	img, err := stageValue(ctx, errors.StageConvert, func() (*image.NRGBA, error) {
		return pixel.FromCanvas(canvas)
	})
	if err != nil {
		return nil, err
	}

	return stageValue(ctx, errors.StageDownscale, func() (*image.NRGBA, error) {
		return pixel.Downsample(img, p.TargetWidth, p.TargetHeight, opts.Filter)
	})
}

// Encode encodes img in the options' format.
func Encode(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	return stageValue(ctx, errors.StageEncode, func() ([]byte, error) {
		return encode.Encode(img, opts.Format, opts.EncodeOptions()...)
	})
}

// stageValue runs fn between observability hooks. The context is checked
// first; cancellation surfaces as the context's error.
func stageValue[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	start := time.Now()
	v, err := fn()
	hooks.OnStageComplete(ctx, name, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	return v, nil
}
