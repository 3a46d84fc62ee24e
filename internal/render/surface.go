// Package render draws vector features onto tile surfaces backed by an
// in-memory RGBA pixmap.
package render

import (
	"image"
	"io"

	"github.com/gogpu/gg"
)

// Surface is one tile's drawing target. Its backing pixmap is
// TileSize*Resolution pixels on each side, and drawing coordinates are in
// tile pixels.
type Surface struct {
	size int
	res  float64
	pm   *gg.Pixmap
	dc   *gg.Context
}

// NewSurface allocates a transparent surface for a tile of size pixels.
// A resolution below 1 is treated as 1.
func NewSurface(size int, resolution float64) *Surface {
	if resolution < 1 {
		resolution = 1
	}
	w := int(float64(size) * resolution)
	pm := gg.NewPixmap(w, w)
	dc := gg.NewContext(w, w, gg.WithPixmap(pm))
	dc.Scale(resolution, resolution)
	return &Surface{size: size, res: resolution, pm: pm, dc: dc}
}

// Size is the tile edge in tile pixels.
func (s *Surface) Size() int { return s.size }

// Resolution is the device pixel ratio of the backing pixmap.
func (s *Surface) Resolution() float64 { return s.res }

// Context exposes the drawing context, already scaled to tile pixels.
func (s *Surface) Context() *gg.Context { return s.dc }

// Pixel returns the color at tile pixel (x, y). Pixels outside the tile
// read as fully transparent.
func (s *Surface) Pixel(x, y int) gg.RGBA {
	return s.pm.GetPixel(int(float64(x)*s.res), int(float64(y)*s.res))
}

// IsTransparent reports whether the tile pixel (x, y) has zero alpha.
func (s *Surface) IsTransparent(x, y int) bool {
	return s.Pixel(x, y).A == 0
}

// Image returns a snapshot of the backing pixmap.
func (s *Surface) Image() image.Image {
	_ = s.dc.FlushGPU()
	return s.dc.Image()
}

// EncodePNG writes the surface as a PNG image.
func (s *Surface) EncodePNG(w io.Writer) error {
	if err := s.dc.FlushGPU(); err != nil {
		return err
	}
	return s.dc.EncodePNG(w)
}

// Close releases the drawing context.
func (s *Surface) Close() error {
	return s.dc.Close()
}
