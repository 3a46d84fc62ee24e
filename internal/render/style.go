package render

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"
	"github.com/perimeterx/marshmallow"

	"geolayer/internal/geo"
)

// Style says how much room a layer's drawing needs around a tile and how
// each feature is painted.
type Style interface {
	TilePad(zoom int) geo.Pad
	Symbol(f *geojson.Feature, zoom int) Symbol
}

// Symbol holds the draw parameters for one feature. An empty color skips
// that part of the drawing.
type Symbol struct {
	Fill      string
	Stroke    string
	LineWidth float64
	Radius    float64
}

// Visible reports whether the symbol paints anything at all.
func (s Symbol) Visible() bool {
	return s.Fill != "" || (s.Stroke != "" && s.LineWidth > 0)
}

// SimpleStyle paints every feature the same way. Where restricts it to
// features whose properties carry the given values.
type SimpleStyle struct {
	Name      string            `mapstructure:"name" json:"name"`
	Fill      string            `default:"#3388ff80" mapstructure:"fill" json:"fill" validate:"omitempty,hexcolor|len=9"`
	Stroke    string            `default:"#3388ff" mapstructure:"stroke" json:"stroke" validate:"omitempty,hexcolor|len=9"`
	LineWidth float64           `default:"2" mapstructure:"line_width" json:"line_width" validate:"gte=0"`
	Radius    float64           `default:"4" mapstructure:"radius" json:"radius" validate:"gte=0"`
	Pad       []float64         `mapstructure:"pad" json:"pad" validate:"max=4"`
	MinZoom   int               `default:"0" mapstructure:"min_zoom" json:"min_zoom" validate:"gte=0"`
	MaxZoom   int               `default:"22" mapstructure:"max_zoom" json:"max_zoom" validate:"gtefield=MinZoom"`
	Where     map[string]string `mapstructure:"where" json:"-"`
}

// NewSimpleStyle returns a style with every default filled in.
func NewSimpleStyle() *SimpleStyle {
	s := &SimpleStyle{}
	_ = defaults.Set(s)
	return s
}

// UnmarshalStyle reads a style from JSON. Known keys configure the style,
// any other string key becomes a property filter.
func UnmarshalStyle(data []byte) (*SimpleStyle, error) {
	s := NewSimpleStyle()
	rest, err := marshmallow.Unmarshal(data, s, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return nil, err
	}
	for k, v := range rest {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("style filter %q should be a string", k)
		}
		if s.Where == nil {
			s.Where = make(map[string]string)
		}
		s.Where[k] = str
	}
	return s, s.Validate()
}

// Validate checks the style's values.
func (s *SimpleStyle) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(s)
}

// TilePad is the configured pad, or enough room for a point marker and
// half a line when none is configured.
func (s *SimpleStyle) TilePad(zoom int) geo.Pad {
	if len(s.Pad) > 0 {
		return geo.NewPad(s.Pad...)
	}
	return geo.Uniform(math.Ceil(s.Radius + s.LineWidth))
}

func (s *SimpleStyle) Symbol(f *geojson.Feature, zoom int) Symbol {
	if zoom < s.MinZoom || zoom > s.MaxZoom || !s.matches(f) {
		return Symbol{}
	}
	return Symbol{Fill: s.Fill, Stroke: s.Stroke, LineWidth: s.LineWidth, Radius: s.Radius}
}

func (s *SimpleStyle) matches(f *geojson.Feature) bool {
	for k, want := range s.Where {
		if f == nil || fmt.Sprint(f.Properties[k]) != want {
			return false
		}
	}
	return true
}
