package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gin-gonic/gin"
	"github.com/iancoleman/strcase"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"geolayer/internal/config"
	"geolayer/internal/export"
	"geolayer/internal/layer"
	"geolayer/internal/provider"
	"geolayer/internal/server"
	"geolayer/internal/tui"
)

const (
	CONFIG    = `config`
	BBOX      = `bbox`
	MINZOOM   = `minzoom`
	MAXZOOM   = `maxzoom`
	FORMAT    = `format`
	OUTPUT    = `output`
	MYSQL     = `mysql`
	WORKERS   = `workers`
	KEEPEMPTY = `keepEmpty`
	ADDR      = `addr`
	DB        = `db`
)

func envVars(name string) []string {
	return []string{"GEOLAYER_" + strcase.ToScreamingSnake(name)}
}

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "geolayer"
	app.Usage = "Render vector data onto map tiles: view, export or serve them"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "TOML config `file`",
			Value:   "conf.toml",
			EnvVars: envVars(CONFIG),
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "view",
			Usage:     "Browse data in the terminal",
			ArgsUsage: "[file]",
			Action:    viewAction,
		},
		{
			Name:      "render",
			Usage:     "Render a tile range into MBTiles, MySQL or z/x/y.png files",
			ArgsUsage: "[file...]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: BBOX, Aliases: []string{"b"}, Usage: "west,south,east,north; defaults to the data bounds", EnvVars: envVars(BBOX)},
				&cli.IntFlag{Name: MINZOOM, Usage: "first zoom level", Value: -1, EnvVars: envVars(MINZOOM)},
				&cli.IntFlag{Name: MAXZOOM, Usage: "last zoom level", Value: -1, EnvVars: envVars(MAXZOOM)},
				&cli.StringFlag{Name: FORMAT, Aliases: []string{"f"}, Usage: "mbtiles, mysql or files", EnvVars: envVars(FORMAT)},
				&cli.StringFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "output directory", EnvVars: envVars(OUTPUT)},
				&cli.StringFlag{Name: MYSQL, Usage: "MySQL DSN for the mysql format", EnvVars: envVars(MYSQL)},
				&cli.IntFlag{Name: WORKERS, Aliases: []string{"w"}, Usage: "render workers", EnvVars: envVars(WORKERS)},
				&cli.BoolFlag{Name: KEEPEMPTY, Usage: "store tiles with nothing drawn", EnvVars: envVars(KEEPEMPTY)},
			},
			Action: renderAction,
		},
		{
			Name:      "serve",
			Usage:     "Serve tiles, features and hit tests over HTTP",
			ArgsUsage: "[file...]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: ADDR, Aliases: []string{"a"}, Usage: "listen address", EnvVars: envVars(ADDR)},
			},
			Action: serveAction,
		},
		{
			Name:      "import",
			Usage:     "Import files into the sqlite feature store",
			ArgsUsage: "file...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: DB, Usage: "sqlite database; defaults to provider.path", EnvVars: envVars(DB)},
			},
			Action: importAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String(CONFIG))
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func viewAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// The terminal belongs to the UI, so logs always go to a file.
	if cfg.Log.File == "" {
		cfg.Log.File = "geolayer.log"
	}
	closer, err := config.SetupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := tui.Options{
		Styles: cfg.LayerStyles(),
		Layer:  layerOptions(cfg),
		Path:   c.Args().First(),
	}
	if cfg.Provider.Type != "memory" {
		src, err := openSource(c.Context, cfg, nil)
		if err != nil {
			return err
		}
		defer src.Close()
		opts.Provider = src.Provider
	}
	return tui.Run(opts)
}

func renderAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	closer, err := config.SetupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	ec := applyExportFlags(c, cfg.Export)
	cfg.Export = ec
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	src, err := openSource(ctx, cfg, c.Args().Slice())
	if err != nil {
		return err
	}
	defer src.Close()

	bbox := src.Bounds
	if s := c.String(BBOX); s != "" {
		if bbox, err = parseBBox(s); err != nil {
			return err
		}
	} else if !src.HasBounds {
		return errors.New("no data bounds: pass --bbox")
	}

	meta := export.NewMetadata(ec.Name, bbox, ec.MinZoom, ec.MaxZoom, cfg.Tile.Size)
	sink, err := openSink(ec, meta)
	if err != nil {
		return err
	}
	defer sink.Close()

	e := &export.Exporter{
		Pipeline:  pipeline(cfg, src.Provider),
		Sink:      sink,
		Workers:   ec.Workers,
		BatchSize: ec.BatchSize,
		KeepEmpty: c.Bool(KEEPEMPTY),
		Progress:  os.Stderr,
	}
	stats, err := e.Run(ctx, bbox, ec.MinZoom, ec.MaxZoom)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d tiles saved, %d empty, %d failed\n", stats.Saved, stats.Empty, stats.Failed)
	return nil
}

func applyExportFlags(c *cli.Context, ec config.ExportConfig) config.ExportConfig {
	if v := c.Int(MINZOOM); v >= 0 {
		ec.MinZoom = v
	}
	if v := c.Int(MAXZOOM); v >= 0 {
		ec.MaxZoom = v
	}
	if v := c.String(FORMAT); v != "" {
		ec.Format = v
	}
	if v := c.String(OUTPUT); v != "" {
		ec.Output = v
	}
	if v := c.String(MYSQL); v != "" {
		ec.MySQL = v
	}
	if v := c.Int(WORKERS); v > 0 {
		ec.Workers = v
	}
	return ec
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	closer, err := config.SetupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := signalContext(c)
	defer cancel()
	src, err := openSource(ctx, cfg, c.Args().Slice())
	if err != nil {
		return err
	}
	defer src.Close()

	addr := cfg.Server.Addr
	if v := c.String(ADDR); v != "" {
		addr = v
	}
	s := server.New(pipeline(cfg, src.Provider), server.Options{HitRadius: cfg.Tile.HitRadius})
	return s.ListenAndServe(ctx, addr)
}

func importAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	closer, err := config.SetupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	if c.NArg() == 0 {
		return errors.New("import: no files given")
	}
	path := c.String(DB)
	if path == "" {
		path = cfg.Provider.Path
	}
	if path == "" {
		return errors.New("import: pass --db or set provider.path")
	}
	db, err := provider.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	n, err := importFiles(c.Context, db, c.Args().Slice())
	if err != nil {
		return err
	}
	log.Infof("imported %d features into %s", n, path)
	return nil
}

func layerOptions(cfg *config.Config) layer.Options {
	return layer.Options{
		TileSize:     cfg.Tile.Size,
		Resolution:   cfg.Tile.Resolution,
		RedrawDelay:  cfg.Tile.RedrawDelay,
		CleanupDelay: cfg.Tile.CleanupDelay,
		HitRadius:    cfg.Tile.HitRadius,
	}
}
