// Package server exposes the tile pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"geolayer/internal/geo"
	"geolayer/internal/layer"
	"geolayer/internal/provider"
)

const maxZoom = 22

type Options struct {
	// HitRadius is the pixel radius /hit collects features in.
	HitRadius float64
	Log       *log.Entry
}

type Server struct {
	pipeline layer.Pipeline
	opts     Options
	log      *log.Entry
}

func New(p layer.Pipeline, opts Options) *Server {
	if opts.HitRadius <= 0 {
		opts.HitRadius = layer.DefaultHitRadius
	}
	if opts.Log == nil {
		opts.Log = log.WithField("component", "server")
	}
	return &Server{pipeline: p, opts: opts, log: opts.Log}
}

// Router returns the gin engine serving the tile, feature and hit routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/tiles/:z/:x/:y", s.tile)
	r.GET("/features", s.features)
	r.GET("/hit", s.hit)
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithField("status", c.Writer.Status()).
			Debugf("%s %s %s", c.Request.Method, c.Request.URL.Path, time.Since(start))
	}
}

func (s *Server) tile(c *gin.Context) {
	coord, err := parseTile(c.Param("z"), c.Param("x"), strings.TrimSuffix(c.Param("y"), ".png"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := s.pipeline.Render(c.Request.Context(), coord)
	defer t.Close()
	if err != nil {
		s.log.WithField("tile", coord).Warnf("load data: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "data unavailable"})
		return
	}
	var buf bytes.Buffer
	if err := t.Surface.EncodePNG(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) features(c *gin.Context) {
	bbox, err := parseBBox(c.Query("bbox"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.writeFeatures(c, bbox)
}

func (s *Server) writeFeatures(c *gin.Context, bbox orb.Bound) {
	if s.pipeline.Provider == nil {
		c.JSON(http.StatusOK, geojson.NewFeatureCollection())
		return
	}
	fs, err := s.pipeline.Provider.LoadData(c.Request.Context(), provider.Query{BBox: bbox})
	if err != nil {
		s.log.Warnf("load data: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "data unavailable"})
		return
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = provider.Collect(fs)
	c.JSON(http.StatusOK, fc)
}

// hitResult tells whether the drawn tile is opaque under a point and which
// features are there.
type hitResult struct {
	Opaque   bool                       `json:"opaque"`
	Tile     string                     `json:"tile"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
}

func (s *Server) hit(c *gin.Context) {
	z, err := strconv.Atoi(c.Query("z"))
	if err != nil || z < 0 || z > maxZoom {
		c.JSON(http.StatusBadRequest, gin.H{"error": "z must be a zoom level"})
		return
	}
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLng != nil || errLat != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lng and lat must be numbers"})
		return
	}
	ll := orb.Point{lng, lat}
	g := s.pipeline.Grid
	px := g.Project(ll, z)
	coord := g.TileAt(px, z)

	t, err := s.pipeline.Render(c.Request.Context(), coord)
	defer t.Close()
	if err != nil {
		s.log.WithField("tile", coord).Warnf("load data: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "data unavailable"})
		return
	}
	lp := g.LocalPixel(px)
	res := hitResult{
		Opaque: !t.Surface.IsTransparent(lp.X, lp.Y),
		Tile:   fmt.Sprintf("%d/%d/%d", coord.Z, coord.X, coord.Y),
	}
	if res.Opaque && s.pipeline.Provider != nil {
		bbox := g.PixelsToBBox(z, ll, geo.Uniform(s.opts.HitRadius))
		fs, err := s.pipeline.Provider.LoadData(c.Request.Context(), provider.Query{BBox: bbox})
		if err == nil {
			res.Features = geojson.NewFeatureCollection()
			res.Features.Features = provider.Collect(fs)
		}
	}
	c.JSON(http.StatusOK, res)
}

func parseTile(zs, xs, ys string) (maptile.Tile, error) {
	z, err := strconv.Atoi(zs)
	if err != nil || z < 0 || z > maxZoom {
		return maptile.Tile{}, fmt.Errorf("bad zoom %q", zs)
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("bad column %q", xs)
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, fmt.Errorf("bad row %q", ys)
	}
	n := uint64(1) << uint(z)
	if x >= n || y >= n {
		return maptile.Tile{}, fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// parseBBox reads "west,south,east,north".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("bbox must be west,south,east,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, errors.New("bbox min exceeds max")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			s.log.Warnf("shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
