// Package plan computes the raster canvas and the affine transform that
// places a scene on it.
//
// The policy is fit-inside-and-center: content is scaled uniformly so that it
// fits the canvas on the tighter axis, never cropped and never stretched, and
// the other axis is padded symmetrically.
//
// # Size negotiation
//
// The requested output size comes from a [Sizer]. [Identity] keeps the
// intrinsic size, [Fixed] forces an exact size, [Fit] shrinks to a bounding
// box and [Scale] multiplies. [SizerFunc] adapts an ordinary function.
//
// # Usage
//
//	p, err := plan.New(s.Width(), s.Height(), plan.Fixed{W: 64, H: 64}, 2)
//	if err != nil {
//	    return err // *errors.Error with code SIZE_INVALID
//	}
//	// p.CanvasWidth == 128, p.TargetWidth == 64
package plan

import (
	"math"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// MaxCanvasDimension is the largest canvas edge, after supersampling, that a
// plan may request.
const MaxCanvasDimension = 1 << 16

// Plan is the result of size negotiation: the supersampled canvas and the
// transform mapping intrinsic scene coordinates onto it.
type Plan struct {
	CanvasWidth  int
	CanvasHeight int
	ScaleX       float64
	ScaleY       float64
	TranslateX   float64
	TranslateY   float64

	// TargetWidth and TargetHeight are the negotiated output size; the canvas
	// is SuperSampling times larger on each axis.
	TargetWidth   int
	TargetHeight  int
	SuperSampling int
}

// New negotiates the output size for a scene of intrinsic size w×h and
// computes the centering transform on a canvas superSampling times larger.
//
// superSampling is expected to be validated upstream; New still rejects
// values below one and canvas sizes that would overflow.
func New(w, h float64, sizer Sizer, superSampling int) (Plan, error) {
	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return Plan{}, errors.New(errors.ErrCodeSize, "intrinsic size must be positive, got %gx%g", w, h)
	}
	if superSampling < 1 {
		return Plan{}, errors.New(errors.ErrCodeSize, "super sampling must be at least 1, got %d", superSampling)
	}
	if sizer == nil {
		sizer = Identity{}
	}

	iw, ih := int(math.Ceil(w)), int(math.Ceil(h))
	tw, th, err := sizer.Size(iw, ih)
	if err != nil {
		if errors.Is(err, errors.ErrCodeSize) {
			return Plan{}, err
		}
		return Plan{}, errors.Wrap(errors.ErrCodeSize, err, "size negotiation failed")
	}
	if tw <= 0 || th <= 0 {
		return Plan{}, errors.New(errors.ErrCodeSize, "negotiated size must be positive, got %dx%d", tw, th)
	}

	cw, ok1 := mulDim(tw, superSampling)
	ch, ok2 := mulDim(th, superSampling)
	if !ok1 || !ok2 {
		return Plan{}, errors.New(errors.ErrCodeSize,
			"canvas %dx%d at super sampling %d exceeds %d pixels per side",
			tw, th, superSampling, MaxCanvasDimension)
	}

	scale := fitScale(w, h, float64(cw), float64(ch))
	return Plan{
		CanvasWidth:   cw,
		CanvasHeight:  ch,
		ScaleX:        scale,
		ScaleY:        scale,
		TranslateX:    (float64(cw) - w*scale) / 2,
		TranslateY:    (float64(ch) - h*scale) / 2,
		TargetWidth:   tw,
		TargetHeight:  th,
		SuperSampling: superSampling,
	}, nil
}

// fitScale returns the uniform scale that fits content w×h inside a canvas
// cw×ch. Wider-than-canvas content fits the width; everything else,
// including equal ratios, fits the height.
func fitScale(w, h, cw, ch float64) float64 {
	if w/h > cw/ch {
		return cw / w
	}
	return ch / h
}

func mulDim(n, factor int) (int, bool) {
	if n > MaxCanvasDimension/factor {
		return 0, false
	}
	return n * factor, true
}

// Padded reports whether the content leaves empty bands on either axis.
func (p Plan) Padded() bool {
	const eps = 1e-9
	return p.TranslateX > eps || p.TranslateY > eps
}
