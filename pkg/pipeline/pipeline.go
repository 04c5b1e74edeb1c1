// Package pipeline runs the SVG to raster conversion for every entry point.
//
// The CLI, the HTTP service and library users all go through the same
// Runner, so option validation, stage ordering, error tagging and caching
// behave identically everywhere.
//
// # Architecture
//
// A render runs these stages strictly in order:
//
//  1. Parse: SVG bytes to a scene with an intrinsic size (pkg/scene)
//  2. Plan: negotiate the output size and the centering transform (pkg/plan)
//  3. Rasterize: paint the scene on a supersampled canvas (pkg/raster)
//  4. Convert: premultiplied canvas to a straight-alpha image (pkg/pixel)
//  5. Downsample: supersampled image to the output size (pkg/pixel)
//  6. Encode: image to PNG, JPEG, GIF or WEBP bytes (pkg/encode)
//  7. Deliver: bytes to a file, a temp file or the caller (pkg/sink)
//
// Stages 3 to 6 are skipped when the encoded bytes are already cached.
// Every failure is an *errors.Error whose code names the failing stage,
// except cancellation, which returns the context's error.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.Execute(ctx, svg, pipeline.Options{
//	    Format: encode.JPEG,
//	    Sizer:  plan.Fixed{W: 256, H: 256},
//	    Output: sink.File{Path: "out.jpg"},
//	})
//	if err != nil {
//	    log.Fatal(errors.UserMessage(err))
//	}
//	fmt.Println(res.Path)
package pipeline

import (
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/svg2img/pkg/cache"
	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/pixel"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/raster"
	"github.com/matzehuels/svg2img/pkg/sink"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and library use
// =============================================================================

const (
	// DefaultSuperSampling renders at twice the output size before
	// downsampling.
	DefaultSuperSampling = 2

	// DefaultFormat is the output format when none is given.
	DefaultFormat = encode.PNG

	// DefaultFilter is the downsampling kernel.
	DefaultFilter = pixel.Lanczos

	// DefaultJPEGQuality is the JPEG quality when none is given.
	DefaultJPEGQuality = encode.DefaultJPEGQuality
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one render. The zero value renders a PNG at intrinsic
// size with 2x supersampling into a new temp file.
type Options struct {
	Format        encode.Format
	SuperSampling int
	Sizer         plan.Sizer
	Output        sink.Destination
	Filter        pixel.Filter

	// Background is a colour (name, #rgb, #rrggbb) that JPEG output is
	// composited over. Empty keeps the colour channels and drops alpha.
	Background  string
	JPEGQuality int

	// Strict rejects documents using elements the renderer cannot draw.
	// StrictSet marks Strict as given explicitly, so that Override applies
	// a false value too.
	Strict    bool
	StrictSet bool

	// Refresh skips the cache lookup but still stores the result.
	Refresh bool

	// Runtime options (not part of the cache key)
	Logger *log.Logger
	Engine raster.Engine

	background color.Color
	validated  bool
}

// Result is the outcome of a render.
type Result struct {
	// Data is the encoded image.
	Data []byte

	// Format is the encoding of Data.
	Format encode.Format

	// Path is where Data was written, or "" for in-memory output.
	Path string

	// Width and Height are the output dimensions in pixels.
	Width  int
	Height int

	Stats    Stats
	CacheHit bool
}

// Stats holds per-stage timings.
type Stats struct {
	CanvasWidth  int
	CanvasHeight int
	ParseTime    time.Duration
	RenderTime   time.Duration // rasterize + convert + downsample
	EncodeTime   time.Duration
	DeliverTime  time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every option and fills defaults. It is
// idempotent. Invalid options fail with INVALID_FORMAT or INVALID_OPTION
// before any input is parsed.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.Format == 0 {
		o.Format = DefaultFormat
	}
	if !o.Format.Valid() {
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %d", int(o.Format))
	}

	if o.SuperSampling == 0 {
		o.SuperSampling = DefaultSuperSampling
	}
	if err := errors.ValidateSuperSampling(o.SuperSampling); err != nil {
		return err
	}

	f, err := pixel.ParseFilter(string(o.Filter))
	if err != nil {
		return err
	}
	o.Filter = f

	if o.JPEGQuality == 0 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return errors.New(errors.ErrCodeInvalidOption, "jpeg_quality must be in [1, 100], got %d", o.JPEGQuality)
	}

	if o.Background != "" {
		c, err := encode.ParseColor(o.Background)
		if err != nil {
			return err
		}
		o.background = c
	}

	if o.Sizer == nil {
		o.Sizer = plan.Identity{}
	}
	if o.Output == nil {
		o.Output = sink.Temp{}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// Override returns o with every set field of other applied on top. It is
// used to layer request or flag values over configured defaults. The result
// is not validated.
func (o Options) Override(other Options) Options {
	if other.Format != 0 {
		o.Format = other.Format
	}
	if other.SuperSampling != 0 {
		o.SuperSampling = other.SuperSampling
	}
	if other.Sizer != nil {
		o.Sizer = other.Sizer
	}
	if other.Output != nil {
		o.Output = other.Output
	}
	if other.Filter != "" {
		o.Filter = other.Filter
	}
	if other.Background != "" {
		o.Background = other.Background
	}
	if other.JPEGQuality != 0 {
		o.JPEGQuality = other.JPEGQuality
	}
	if other.Logger != nil {
		o.Logger = other.Logger
	}
	if other.Engine != nil {
		o.Engine = other.Engine
	}
	if other.StrictSet {
		o.Strict, o.StrictSet = other.Strict, true
	} else if other.Strict {
		o.Strict = true
	}
	o.Refresh = o.Refresh || other.Refresh
	o.background = nil
	o.validated = false
	return o
}

// EncodeOptions returns the encoder options for this render.
func (o *Options) EncodeOptions() []encode.Option {
	opts := []encode.Option{encode.WithJPEGQuality(o.JPEGQuality)}
	if o.background != nil {
		opts = append(opts, encode.WithBackground(o.background))
	}
	return opts
}

// ArtifactKeyOpts returns cache key options for a planned render.
func (o *Options) ArtifactKeyOpts(p plan.Plan) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{
		Format:        o.Format.String(),
		CanvasWidth:   p.CanvasWidth,
		CanvasHeight:  p.CanvasHeight,
		TargetWidth:   p.TargetWidth,
		TargetHeight:  p.TargetHeight,
		SuperSampling: p.SuperSampling,
		Filter:        string(o.Filter),
		Strict:        o.Strict,
	}
	if o.Format == encode.JPEG {
		k.Background = o.Background
		k.JPEGQuality = o.JPEGQuality
	}
	return k
}

// String summarises the options for logging.
func (o *Options) String() string {
	return fmt.Sprintf("format=%s super_sampling=%d size=%v filter=%s", o.Format, o.SuperSampling, o.Sizer, o.Filter)
}
