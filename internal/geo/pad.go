package geo

import "math"

// Pad is a pixel margin around a box, in CSS order.
type Pad struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Uniform returns a pad of p on every side.
func Uniform(p float64) Pad {
	return Pad{Top: p, Right: p, Bottom: p, Left: p}
}

// NewPad normalizes a pad given as a scalar, [vertical, horizontal],
// [top, right, bottom] or [top, right, bottom, left]. Missing or NaN
// entries never fail: they are mirrored or read as 0.
func NewPad(v ...float64) Pad {
	vals := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(x) {
			x = 0
		}
		vals[i] = x
	}
	switch len(vals) {
	case 0:
		return Pad{}
	case 1:
		return Uniform(vals[0])
	case 2:
		return Pad{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
	case 3:
		return Pad{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}
	default:
		return Pad{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
	}
}

// Neg returns the pad with every side negated, which shrinks instead of grows.
func (p Pad) Neg() Pad {
	return Pad{Top: -p.Top, Right: -p.Right, Bottom: -p.Bottom, Left: -p.Left}
}

// Max returns the side-wise maximum of two pads.
func (p Pad) Max(o Pad) Pad {
	return Pad{
		Top:    math.Max(p.Top, o.Top),
		Right:  math.Max(p.Right, o.Right),
		Bottom: math.Max(p.Bottom, o.Bottom),
		Left:   math.Max(p.Left, o.Left),
	}
}

// IsZero reports whether no side has any margin.
func (p Pad) IsZero() bool {
	return p == Pad{}
}
