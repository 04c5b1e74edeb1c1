// Package encode serializes images into PNG, JPEG, GIF or WEBP bytes.
//
// Encoding knows nothing about destinations: it returns bytes, and the
// caller decides whether they go to a file or back to a client.
//
// JPEG cannot carry alpha, so the alpha channel is dropped before encoding.
// By default the straight RGB values are kept as they are; with
// [WithBackground] the image is composited over a solid colour instead.
package encode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// Encoder defaults.
const (
	DefaultJPEGQuality = 90
	DefaultGIFColors   = 256
)

// Option configures Encode.
type Option func(*config)

type config struct {
	jpegQuality int
	gifColors   int
	background  color.Color
}

// WithJPEGQuality sets the JPEG quality in [1, 100].
func WithJPEGQuality(q int) Option {
	return func(c *config) { c.jpegQuality = q }
}

// WithGIFColors sets the GIF palette size in [1, 256].
func WithGIFColors(n int) Option {
	return func(c *config) { c.gifColors = n }
}

// WithBackground composites the image over bg before encoding to a format
// without alpha. Formats that keep alpha ignore it.
func WithBackground(bg color.Color) Option {
	return func(c *config) { c.background = bg }
}

// Encode serializes img in format f.
func Encode(img image.Image, f Format, opts ...Option) ([]byte, error) {
	cfg := config{jpegQuality: DefaultJPEGQuality, gifColors: DefaultGIFColors}
	for _, opt := range opts {
		opt(&cfg)
	}
	if img == nil {
		return nil, errors.New(errors.ErrCodeEncode, "nil image")
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errors.New(errors.ErrCodeEncode, "image has no pixels (%v)", b)
	}

	var buf bytes.Buffer
	var err error
	switch f {
	case PNG:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case JPEG:
		if cfg.jpegQuality < 1 || cfg.jpegQuality > 100 {
			return nil, errors.New(errors.ErrCodeInvalidOption, "jpeg quality must be in [1, 100], got %d", cfg.jpegQuality)
		}
		err = imaging.Encode(&buf, DropAlpha(img, cfg.background), imaging.JPEG, imaging.JPEGQuality(cfg.jpegQuality))
	case GIF:
		if cfg.gifColors < 1 || cfg.gifColors > 256 {
			return nil, errors.New(errors.ErrCodeInvalidOption, "gif colors must be in [1, 256], got %d", cfg.gifColors)
		}
		err = imaging.Encode(&buf, img, imaging.GIF, imaging.GIFNumColors(cfg.gifColors))
	case WEBP:
		err = nativewebp.Encode(&buf, img, nil)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %d", int(f))
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "encode %s", f)
	}
	return buf.Bytes(), nil
}

// DropAlpha returns an opaque copy of img. With a nil background the colour
// channels are kept and alpha is set to 255; otherwise img is composited
// over bg.
func DropAlpha(img image.Image, bg color.Color) *image.NRGBA {
	b := img.Bounds()
	if bg != nil {
		r, g, bl, _ := bg.RGBA()
		opaque := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255}
		return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), opaque), img, image.Pt(0, 0), 1.0)
	}

	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// ParseColor parses an SVG/CSS colour: a name, #rgb, #rrggbb or rgb(...).
func ParseColor(s string) (color.Color, error) {
	c, err := oksvg.ParseSVGColor(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidOption, err, "invalid color %q", s)
	}
	if c == nil {
		return nil, errors.New(errors.ErrCodeInvalidOption, "invalid color %q", s)
	}
	return c, nil
}
