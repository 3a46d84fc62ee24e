package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"geolayer/internal/layer"
)

// Exporter renders tiles on a pool of workers and hands them to a sink
// through a single save pipe.
type Exporter struct {
	Pipeline  layer.Pipeline
	Sink      Sink
	Workers   int
	BatchSize int
	// KeepEmpty stores tiles with nothing drawn on them.
	KeepEmpty bool
	// Progress receives a progress bar when set.
	Progress io.Writer
	Log      *log.Entry
}

// Stats summarizes a run.
type Stats struct {
	Total   int
	Saved   int
	Empty   int
	Failed  int
	Batches int
}

func (e *Exporter) logger() *log.Entry {
	if e.Log != nil {
		return e.Log
	}
	return log.WithField("component", "export")
}

// Run renders every tile covering b between minZoom and maxZoom. Tiles whose
// data fails to load are counted and skipped; a sink error stops the run.
func (e *Exporter) Run(ctx context.Context, b orb.Bound, minZoom, maxZoom int) (Stats, error) {
	if e.Sink == nil {
		return Stats{}, errors.New("export: no sink")
	}
	workers := max(1, e.Workers)
	batchSize := max(1, e.BatchSize)
	l := e.logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := Stats{Total: Count(b, minZoom, maxZoom)}
	var bar *pb.ProgressBar
	if e.Progress != nil {
		bar = pb.New(stats.Total)
		bar.SetWriter(e.Progress)
		bar.Start()
		defer bar.Finish()
	}

	coords := make(chan maptile.Tile, workers)
	saving := make(chan TileData, batchSize)

	var mu sync.Mutex
	count := func(f func(*Stats)) {
		mu.Lock()
		f(&stats)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range coords {
				td, ok := e.renderTile(ctx, c, count)
				if bar != nil {
					bar.Increment()
				}
				if !ok {
					continue
				}
				select {
				case saving <- td:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	saveErr := make(chan error, 1)
	go func() {
		saveErr <- e.savePipe(ctx, cancel, saving, batchSize, count)
	}()

	go func() {
		defer close(coords)
		for c := range Tiles(b, minZoom, maxZoom) {
			select {
			case coords <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(saving)
	if err := <-saveErr; err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	l.Infof("exported %d tiles (%d empty, %d failed) in %d batches", stats.Saved, stats.Empty, stats.Failed, stats.Batches)
	return stats, nil
}

func (e *Exporter) renderTile(ctx context.Context, c maptile.Tile, count func(func(*Stats))) (TileData, bool) {
	t, err := e.Pipeline.Render(ctx, c)
	defer t.Close()
	if err != nil {
		e.logger().WithField("tile", c).Warnf("load data: %v", err)
		count(func(s *Stats) { s.Failed++ })
		return TileData{}, false
	}
	if t.Drawn == 0 && !e.KeepEmpty {
		count(func(s *Stats) { s.Empty++ })
		return TileData{}, false
	}
	var buf bytes.Buffer
	if err := t.Surface.EncodePNG(&buf); err != nil {
		e.logger().WithField("tile", c).Warnf("encode: %v", err)
		count(func(s *Stats) { s.Failed++ })
		return TileData{}, false
	}
	return TileData{Coord: c, Data: buf.Bytes()}, true
}

func (e *Exporter) savePipe(ctx context.Context, cancel context.CancelFunc, saving <-chan TileData, size int, count func(func(*Stats))) error {
	var batch []TileData
	var failed error
	flush := func() {
		if len(batch) == 0 || failed != nil {
			batch = batch[:0]
			return
		}
		if err := e.Sink.Save(ctx, batch); err != nil {
			failed = fmt.Errorf("save batch: %w", err)
			cancel()
		} else {
			n := len(batch)
			count(func(s *Stats) {
				s.Saved += n
				s.Batches++
			})
		}
		batch = batch[:0]
	}
	for td := range saving {
		batch = append(batch, td)
		if len(batch) == size {
			flush()
		}
	}
	flush()
	return failed
}
