package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// Sizer negotiates the output size from the scene's intrinsic size, rounded
// up to whole pixels. Returning an error or a non-positive dimension aborts
// the render with SIZE_INVALID.
type Sizer interface {
	Size(width, height int) (int, int, error)
}

// SizerFunc adapts a function to the Sizer interface.
type SizerFunc func(width, height int) (int, int, error)

// Size calls f.
func (f SizerFunc) Size(width, height int) (int, int, error) { return f(width, height) }

// Identity keeps the intrinsic size.
type Identity struct{}

// Size returns width and height unchanged.
func (Identity) Size(width, height int) (int, int, error) { return width, height, nil }

func (Identity) String() string { return "identity" }

// Fixed requests an exact output size regardless of the intrinsic size.
type Fixed struct {
	W, H int
}

// Size returns f.W and f.H.
func (f Fixed) Size(_, _ int) (int, int, error) { return f.W, f.H, nil }

func (f Fixed) String() string { return fmt.Sprintf("%dx%d", f.W, f.H) }

// Fit shrinks the intrinsic size to fit within MaxWidth×MaxHeight, keeping
// the aspect ratio. It never enlarges. A zero bound is unconstrained. The
// width bound is applied first, then the height bound to the result.
type Fit struct {
	MaxWidth  int
	MaxHeight int
}

// Size applies the bounds with integer arithmetic, truncating the derived
// dimension.
func (f Fit) Size(width, height int) (int, int, error) {
	if f.MaxWidth < 0 || f.MaxHeight < 0 {
		return 0, 0, errors.New(errors.ErrCodeSize, "max size must not be negative, got %dx%d", f.MaxWidth, f.MaxHeight)
	}
	w, h := width, height
	if f.MaxWidth > 0 && w > f.MaxWidth {
		h = h * f.MaxWidth / w
		w = f.MaxWidth
	}
	if f.MaxHeight > 0 && h > f.MaxHeight {
		w = w * f.MaxHeight / h
		h = f.MaxHeight
	}
	return max(w, 1), max(h, 1), nil
}

func (f Fit) String() string { return fmt.Sprintf("fit %dx%d", f.MaxWidth, f.MaxHeight) }

// Scale multiplies the intrinsic size by Factor, rounding to the nearest pixel.
type Scale struct {
	Factor float64
}

// Size applies the factor.
func (s Scale) Size(width, height int) (int, int, error) {
	if !(s.Factor > 0) || math.IsInf(s.Factor, 0) {
		return 0, 0, errors.New(errors.ErrCodeSize, "scale factor must be positive, got %g", s.Factor)
	}
	w, err := scaleDim(width, s.Factor)
	if err != nil {
		return 0, 0, err
	}
	h, err := scaleDim(height, s.Factor)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func (s Scale) String() string { return fmt.Sprintf("x%g", s.Factor) }

// scaleDim rounds n*factor to the nearest pixel, at least one. Products
// above MaxCanvasDimension are rejected before the float-to-int conversion.
func scaleDim(n int, factor float64) (int, error) {
	v := math.Round(float64(n) * factor)
	if math.IsInf(v, 0) || math.IsNaN(v) || v > MaxCanvasDimension {
		return 0, errors.New(errors.ErrCodeSize, "scaled size %d×%g exceeds %d pixels per side", n, factor, MaxCanvasDimension)
	}
	return max(int(v), 1), nil
}

// ParseSize parses "WxH" (e.g. "640x480") into a Fixed sizer.
func ParseSize(s string) (Fixed, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Fixed{}, errors.New(errors.ErrCodeInvalidOption, "size must be WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return Fixed{}, errors.New(errors.ErrCodeInvalidOption, "invalid width in size %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return Fixed{}, errors.New(errors.ErrCodeInvalidOption, "invalid height in size %q", s)
	}
	if err := errors.ValidateDimensions(w, h); err != nil {
		return Fixed{}, err
	}
	return Fixed{W: w, H: h}, nil
}
