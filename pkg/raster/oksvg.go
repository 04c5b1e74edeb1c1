package raster

import (
	"github.com/srwiley/rasterx"

	"github.com/matzehuels/svg2img/pkg/scene"
)

// OKSVG paints with srwiley/oksvg on a rasterx anti-aliasing scanner.
// Element opacity comes from the document itself.
type OKSVG struct{}

// Paint draws the scene. The icon is copied so concurrent renders of the
// same scene do not race on its transform.
func (OKSVG) Paint(s *scene.Scene, m rasterx.Matrix2D, c *Canvas) error {
	img := c.RGBA()
	scanner := rasterx.NewScannerGV(c.Width, c.Height, img, img.Bounds())
	dasher := rasterx.NewDasher(c.Width, c.Height, scanner)

	icon := s.Icon()
	icon.Transform = m
	icon.Draw(dasher, 1)
	return nil
}
