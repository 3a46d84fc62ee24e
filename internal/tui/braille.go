package tui

import (
	"github.com/paulmach/orb"

	"geolayer/internal/layer"
	"geolayer/internal/viewport"
)

type brailleBuf struct {
	w, h int       // in cells
	m    [][]uint8 // per-cell 8-bit mask
}

func newBrailleBuf(w, h int) *brailleBuf {
	m := make([][]uint8, h)
	for i := range m {
		m[i] = make([]uint8, w)
	}
	return &brailleBuf{w: w, h: h, m: m}
}

var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// setPixel sets a micro-pixel at micro coords (2x4 per cell)
func (b *brailleBuf) setPixel(mx, my int) {
	if mx < 0 || my < 0 {
		return
	}
	cx, cy := mx/2, my/4
	if cy >= b.h || cx >= b.w {
		return
	}
	b.m[cy][cx] |= brailleBits[mx%2][my%4]
}

func (b *brailleBuf) cell(cx, cy int) rune {
	mask := b.m[cy][cx]
	if mask == 0 {
		return ' '
	}
	return rune(0x2800 + int(mask))
}

func (b *brailleBuf) toLines() []string {
	out := make([]string, b.h)
	for y := 0; y < b.h; y++ {
		row := make([]rune, b.w)
		for x := 0; x < b.w; x++ {
			row[x] = b.cell(x, y)
		}
		out[y] = string(row)
	}
	return out
}

// sampleLayer sets one dot per map pixel the layer has drawn on. Pixels
// of tiles that are not drawn yet stay blank.
func sampleLayer(l *layer.DataLayer, m *viewport.Map, w, h int) *brailleBuf {
	b := newBrailleBuf(w, h)
	o := m.PixelOrigin()
	z := m.Zoom()
	for my := 0; my < h*4; my++ {
		for mx := 0; mx < w*2; mx++ {
			px := orb.Point{o[0] + float64(mx), o[1] + float64(my)}
			if opaque, _ := l.OpaqueAtPixel(px, z); opaque {
				b.setPixel(mx, my)
			}
		}
	}
	return b
}
