// Package pixel converts engine canvases into straight-alpha images and
// resamples them to the output size.
package pixel

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/raster"
)

// FromCanvas copies a premultiplied RGBA canvas into a new straight-alpha
// NRGBA image. The canvas is validated rather than trusted: a buffer whose
// length or stride disagrees with its dimensions fails with
// CONVERSION_FAILED.
func FromCanvas(c *raster.Canvas) (*image.NRGBA, error) {
	if c == nil {
		return nil, errors.New(errors.ErrCodeConversion, "nil canvas")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, errors.New(errors.ErrCodeConversion, "canvas dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Stride != 4*c.Width {
		return nil, errors.New(errors.ErrCodeConversion, "canvas stride %d does not match width %d", c.Stride, c.Width)
	}
	if want := 4 * c.Width * c.Height; len(c.Pix) != want {
		return nil, errors.New(errors.ErrCodeConversion,
			"canvas holds %d bytes, want %d for %dx%d", len(c.Pix), want, c.Width, c.Height)
	}

	// imaging un-premultiplies *image.RGBA per pixel while copying.
	return imaging.Clone(c.RGBA()), nil
}
