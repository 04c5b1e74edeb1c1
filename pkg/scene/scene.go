// Package scene parses SVG markup into an in-memory scene graph.
//
// The element tree is handled by oksvg; the root <svg> element's sizing
// attributes (width, height, viewBox, preserveAspectRatio) are scanned separately so that the
// intrinsic size honours physical units and the viewBox-only and
// width/height-only forms alike.
//
// A parsed [Scene] is immutable: renderers copy the icon before applying a
// transform, so one Scene may be rendered by several goroutines.
//
// # Usage
//
//	s, err := scene.Parse(data)
//	if err != nil {
//	    return err // *errors.Error with code PARSE_FAILED
//	}
//	w, h := s.IntrinsicSize()
package scene

import (
	"bytes"
	"fmt"
	"math"

	"github.com/srwiley/oksvg"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// ViewBox is the user-space rectangle mapped onto the intrinsic size.
type ViewBox struct {
	X, Y, W, H float64
}

// Valid reports whether the box has a positive, finite extent.
func (vb ViewBox) Valid() bool {
	return positive(vb.W) && positive(vb.H) && finite(vb.X) && finite(vb.Y)
}

// Scene is a parsed SVG document with its intrinsic size.
type Scene struct {
	icon    *oksvg.SvgIcon
	viewBox ViewBox
	aspect  AspectRatio
	width   float64
	height  float64
}

// Width returns the intrinsic width in CSS pixels.
func (s *Scene) Width() float64 { return s.width }

// Height returns the intrinsic height in CSS pixels.
func (s *Scene) Height() float64 { return s.height }

// ViewBox returns the user-space coordinate box.
func (s *Scene) ViewBox() ViewBox { return s.viewBox }

// AspectRatio returns the root preserveAspectRatio (xMidYMid meet when
// absent).
func (s *Scene) AspectRatio() AspectRatio { return s.aspect }

// IntrinsicSize returns the intrinsic size rounded up to whole pixels.
func (s *Scene) IntrinsicSize() (int, int) {
	return int(math.Ceil(s.width)), int(math.Ceil(s.height))
}

// Icon returns a shallow copy of the parsed icon. Callers may set the copy's
// Transform without affecting the scene.
func (s *Scene) Icon() *oksvg.SvgIcon {
	icon := *s.icon
	return &icon
}

// Option configures parsing.
type Option func(*config)

type config struct {
	mode oksvg.ErrorMode
}

// WithStrict rejects documents that use elements or attributes the renderer
// does not support, instead of silently skipping them.
func WithStrict() Option {
	return func(c *config) { c.mode = oksvg.StrictErrorMode }
}

// Parse parses SVG markup. It fails with an *errors.Error (PARSE_FAILED) when
// the markup is not well-formed, the root element is not <svg>, or the
// document has no usable positive size.
func Parse(data []byte, opts ...Option) (s *Scene, err error) {
	cfg := config{mode: oksvg.IgnoreErrorMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "SVG input is empty")
	}

	root, err := scanRoot(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "failed to parse SVG")
	}

	// oksvg indexes into attribute lists while building paths; a malformed
	// path can panic before any rendering happens.
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = errors.New(errors.ErrCodeParse, "failed to parse SVG: parser aborted: %v", r)
		}
	}()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), cfg.mode)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "failed to parse SVG")
	}

	vb, w, h, err := resolveSize(root, ViewBox(icon.ViewBox))
	if err != nil {
		return nil, err
	}
	icon.ViewBox.X, icon.ViewBox.Y, icon.ViewBox.W, icon.ViewBox.H = vb.X, vb.Y, vb.W, vb.H

	return &Scene{icon: icon, viewBox: vb, aspect: root.aspect, width: w, height: h}, nil
}

// resolveSize combines the root attributes with what oksvg recorded.
// Explicit width/height win; a missing one is derived from the viewBox
// aspect ratio. A missing viewBox is synthesised from width/height.
func resolveSize(root rootAttrs, parsed ViewBox) (ViewBox, float64, float64, error) {
	vb := root.viewBox
	if !root.hasViewBox || !vb.Valid() {
		vb = parsed
	}
	if !vb.Valid() {
		if root.hasWidth && root.hasHeight {
			vb = ViewBox{W: root.width, H: root.height}
		}
	}

	w, h := root.width, root.height
	switch {
	case root.hasWidth && root.hasHeight:
	case root.hasWidth && vb.Valid():
		h = w * vb.H / vb.W
	case root.hasHeight && vb.Valid():
		w = h * vb.W / vb.H
	default:
		w, h = vb.W, vb.H
	}

	if !positive(w) || !positive(h) {
		return ViewBox{}, 0, 0, errors.New(errors.ErrCodeParse,
			"SVG has no usable size (width=%s, height=%s)", fmtLength(w), fmtLength(h))
	}
	if !vb.Valid() {
		vb = ViewBox{W: w, H: h}
	}
	return vb, w, h, nil
}

func positive(v float64) bool { return v > 0 && finite(v) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func fmtLength(v float64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%g", v)
}
