package pixel

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/svg2img/pkg/errors"
)

// Filter names a resampling kernel.
type Filter string

// Supported filters. Lanczos is the 3-lobe windowed sinc.
const (
	Lanczos         Filter = "lanczos"
	CatmullRom      Filter = "catmullrom"
	Linear          Filter = "linear"
	Box             Filter = "box"
	NearestNeighbor Filter = "nearest"
)

// DefaultFilter is used when no filter is configured.
const DefaultFilter = Lanczos

var filters = map[Filter]imaging.ResampleFilter{
	Lanczos:         imaging.Lanczos,
	CatmullRom:      imaging.CatmullRom,
	Linear:          imaging.Linear,
	Box:             imaging.Box,
	NearestNeighbor: imaging.NearestNeighbor,
}

// Filters lists the accepted filter names.
func Filters() []Filter {
	return []Filter{Lanczos, CatmullRom, Linear, Box, NearestNeighbor}
}

// ParseFilter validates a filter name. The empty string selects DefaultFilter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return DefaultFilter, nil
	}
	f := Filter(s)
	if _, ok := filters[f]; !ok {
		return "", errors.New(errors.ErrCodeInvalidOption,
			"unknown filter %q (must be one of: lanczos, catmullrom, linear, box, nearest)", s)
	}
	return f, nil
}

// Downsample reduces a supersampled image to width×height. The source must
// be an exact integer multiple of the target on both axes, by the same
// factor; anything else is a programmer error and fails with INTERNAL_ERROR.
// When the sizes already match the result is a copy of img.
func Downsample(img *image.NRGBA, width, height int, f Filter) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New(errors.ErrCodeInternal, "downsample: nil image")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New(errors.ErrCodeInternal, "downsample: target must be positive, got %dx%d", width, height)
	}
	sw, sh := img.Rect.Dx(), img.Rect.Dy()
	if sw%width != 0 || sh%height != 0 || sw/width != sh/height || sw < width {
		return nil, errors.New(errors.ErrCodeInternal,
			"downsample: %dx%d is not an integer multiple of %dx%d", sw, sh, width, height)
	}
	if f == "" {
		f = DefaultFilter
	}
	rf, ok := filters[f]
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "downsample: unknown filter %q", f)
	}

	if sw == width {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, width, height, rf), nil
}
