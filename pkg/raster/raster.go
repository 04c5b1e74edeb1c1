// Package raster paints a parsed scene onto a pixel canvas.
//
// Rasterize is the only entry point into the vector engine. The engine is
// treated as untrusted: a panic raised while painting is recovered at this
// boundary and returned as an *errors.Error with code RENDER_ENGINE_ABORTED,
// so one pathological document cannot take down the process or sibling
// renders running in other goroutines.
//
// # Usage
//
//	c, err := raster.Rasterize(s, p)
//	if errors.Is(err, errors.ErrCodeEngineAborted) {
//	    // the document crashed the engine; nothing was leaked
//	}
package raster

import (
	"fmt"
	"image"
	"math"
	"runtime/debug"

	"github.com/srwiley/rasterx"

	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/plan"
	"github.com/matzehuels/svg2img/pkg/scene"
)

// MaxCanvasPixels bounds a single canvas allocation (1 GiB of RGBA).
const MaxCanvasPixels = 1 << 28

// Canvas is the raw buffer written by the engine: 4 bytes per pixel in
// premultiplied R, G, B, A order, rows Stride bytes apart.
type Canvas struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// NewCanvas allocates a zeroed (fully transparent) canvas.
func NewCanvas(width, height int) (c *Canvas, err error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeAllocationFailed, "canvas dimensions must be positive, got %dx%d", width, height)
	}
	if width > MaxCanvasPixels/height {
		return nil, errors.New(errors.ErrCodeAllocationFailed, "canvas %dx%d exceeds %d pixels", width, height, MaxCanvasPixels)
	}
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = errors.New(errors.ErrCodeAllocationFailed, "allocating %dx%d canvas: %v", width, height, r)
		}
	}()
	return &Canvas{
		Width:  width,
		Height: height,
		Stride: 4 * width,
		Pix:    make([]byte, 4*width*height),
	}, nil
}

// RGBA returns an image view sharing the canvas memory.
func (c *Canvas) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    c.Pix,
		Stride: c.Stride,
		Rect:   image.Rect(0, 0, c.Width, c.Height),
	}
}

// Engine paints a scene onto a canvas under the transform m, which maps
// viewBox user units to canvas pixels.
type Engine interface {
	Paint(s *scene.Scene, m rasterx.Matrix2D, c *Canvas) error
}

// Option configures Rasterize.
type Option func(*config)

type config struct {
	engine Engine
}

// WithEngine replaces the default OKSVG engine.
func WithEngine(e Engine) Option {
	return func(c *config) { c.engine = e }
}

// Rasterize allocates a canvas of p.CanvasWidth×p.CanvasHeight and paints s
// onto it using the plan's scale and translation.
func Rasterize(s *scene.Scene, p plan.Plan, opts ...Option) (*Canvas, error) {
	cfg := config{engine: OKSVG{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if s == nil {
		return nil, errors.New(errors.ErrCodeInternal, "rasterize: nil scene")
	}

	c, err := NewCanvas(p.CanvasWidth, p.CanvasHeight)
	if err != nil {
		return nil, err
	}
	if err := paint(cfg.engine, s, Transform(s, p), c); err != nil {
		return nil, err
	}
	// Content outside the root viewport is hidden, as overflow on the
	// outermost <svg> is.
	c.clip(Viewport(s, p))
	return c, nil
}

// paint runs the engine behind the recovery boundary. On any failure the
// caller drops the canvas.
func paint(e Engine, s *scene.Scene, m rasterx.Matrix2D, c *Canvas) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.Error{
				Code:    errors.ErrCodeEngineAborted,
				Message: fmt.Sprintf("render engine aborted: %v", r),
				Cause:   &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	if err := e.Paint(s, m, c); err != nil {
		if errors.GetCode(err) != "" {
			return err
		}
		return errors.Wrap(errors.ErrCodeEngineAborted, err, "render engine failed")
	}
	return nil
}

// PanicError carries the value and stack of a recovered engine panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Transform composes the plan placement with the viewBox mapping:
// translate(plan) · scale(plan) · align(viewBox → intrinsic) · translate(-viewBox.min).
// The viewBox is fitted into the intrinsic size per the scene's
// preserveAspectRatio.
func Transform(s *scene.Scene, p plan.Plan) rasterx.Matrix2D {
	vb := s.ViewBox()
	ar := s.AspectRatio()
	w, h := s.Width(), s.Height()

	kx, ky := w/vb.W, h/vb.H
	if !ar.None {
		k := min(kx, ky)
		if ar.Slice {
			k = max(kx, ky)
		}
		kx, ky = k, k
	}
	ox := (w - vb.W*kx) * ar.AlignX
	oy := (h - vb.H*ky) * ar.AlignY

	return rasterx.Identity.
		Translate(p.TranslateX, p.TranslateY).
		Scale(p.ScaleX, p.ScaleY).
		Translate(ox, oy).
		Scale(kx, ky).
		Translate(-vb.X, -vb.Y)
}

// Viewport returns the canvas rectangle covered by the scene's intrinsic
// box. Pixels partially covered are included.
func Viewport(s *scene.Scene, p plan.Plan) image.Rectangle {
	x0 := math.Floor(p.TranslateX)
	y0 := math.Floor(p.TranslateY)
	x1 := math.Ceil(p.TranslateX + s.Width()*p.ScaleX)
	y1 := math.Ceil(p.TranslateY + s.Height()*p.ScaleY)
	r := image.Rect(int(x0), int(y0), int(x1), int(y1))
	return r.Intersect(image.Rect(0, 0, p.CanvasWidth, p.CanvasHeight))
}

// clip clears every pixel outside r.
func (c *Canvas) clip(r image.Rectangle) {
	for y := 0; y < c.Height; y++ {
		row := c.Pix[y*c.Stride : y*c.Stride+4*c.Width]
		if y < r.Min.Y || y >= r.Max.Y {
			clear(row)
			continue
		}
		clear(row[:4*r.Min.X])
		clear(row[4*r.Max.X:])
	}
}
