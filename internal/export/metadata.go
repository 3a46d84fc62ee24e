package export

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// MBTileVersion is the MBTiles format version written to metadata.
const MBTileVersion = "1.2"

// Metadata describes an export run.
type Metadata struct {
	ID          string
	Name        string
	Description string
	Bounds      orb.Bound
	MinZoom     int
	MaxZoom     int
	TileSize    int
}

// NewMetadata returns metadata with a fresh run id.
func NewMetadata(name string, bounds orb.Bound, minZoom, maxZoom, tileSize int) Metadata {
	return Metadata{
		ID:       uuid.New().String(),
		Name:     name,
		Bounds:   bounds,
		MinZoom:  minZoom,
		MaxZoom:  maxZoom,
		TileSize: tileSize,
	}
}

// Items lists the metadata table rows.
func (m Metadata) Items() map[string]string {
	b := m.Bounds
	c := b.Center()
	return map[string]string{
		"id":          m.ID,
		"name":        m.Name,
		"description": m.Description,
		"format":      "png",
		"type":        "overlay",
		"version":     MBTileVersion,
		"pixel_scale": strconv.Itoa(m.TileSize),
		"bounds":      fmt.Sprintf("%f,%f,%f,%f", b.Min[0], b.Min[1], b.Max[0], b.Max[1]),
		"center":      fmt.Sprintf("%f,%f,%d", c[0], c[1], (m.MinZoom+m.MaxZoom)/2),
		"minzoom":     strconv.Itoa(m.MinZoom),
		"maxzoom":     strconv.Itoa(m.MaxZoom),
	}
}
