package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Sink stores batches of encoded tiles.
type Sink interface {
	Save(ctx context.Context, batch []TileData) error
	Close() error
}

// MBTiles writes into an sqlite file with the MBTiles schema.
type MBTiles struct {
	db *sql.DB
}

// OpenMBTiles creates or reuses the MBTiles file at path and records meta.
// Existing metadata rows are kept.
func OpenMBTiles(path string, meta Metadata) (*MBTiles, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open mbtiles: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := optimizeConnection(db); err != nil {
		db.Close()
		return nil, err
	}
	stmts := []string{
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
		"create unique index if not exists name on metadata (name);",
		"create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup mbtiles: %w", err)
		}
	}
	for name, value := range meta.Items() {
		if _, err := db.Exec("insert or ignore into metadata (name, value) values (?, ?)", name, value); err != nil {
			db.Close()
			return nil, fmt.Errorf("write metadata: %w", err)
		}
	}
	return &MBTiles{db: db}, nil
}

func optimizeConnection(db *sql.DB) error {
	for _, p := range []string{"PRAGMA synchronous=1", "PRAGMA locking_mode=EXCLUSIVE", "PRAGMA journal_mode=OFF"} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *MBTiles) Save(ctx context.Context, batch []TileData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const q = "insert or ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);"
	for _, t := range batch {
		if _, err := tx.ExecContext(ctx, q, t.Coord.Z, t.Coord.X, flipY(t.Coord), t.Data); err != nil {
			return fmt.Errorf("save tile %v: %w", t.Coord, err)
		}
	}
	return tx.Commit()
}

// DB exposes the underlying database, mainly for inspection.
func (s *MBTiles) DB() *sql.DB { return s.db }

func (s *MBTiles) Close() error { return s.db.Close() }

// MySQL writes into MySQL tables laid out like MBTiles.
type MySQL struct {
	db *sql.DB
}

// OpenMySQL connects with dsn, creates the tables and records meta.
func OpenMySQL(dsn string, meta Metadata) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	stmts := []string{
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data mediumblob, unique index tile_index (zoom_level, tile_column, tile_row));",
		"create table if not exists metadata (name varchar(50), value mediumtext, unique index name (name));",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup mysql: %w", err)
		}
	}
	for name, value := range meta.Items() {
		if _, err := db.Exec("insert ignore into metadata (name, value) values (?, ?)", name, value); err != nil {
			db.Close()
			return nil, fmt.Errorf("write metadata: %w", err)
		}
	}
	return &MySQL{db: db}, nil
}

// bulkInsert builds one multi-row insert for batch.
func bulkInsert(batch []TileData) (string, []any) {
	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*4)
	for _, t := range batch {
		values = append(values, "(?,?,?,?)")
		args = append(args, t.Coord.Z, t.Coord.X, flipY(t.Coord), t.Data)
	}
	q := "insert ignore into tiles (zoom_level, tile_column, tile_row, tile_data) values " + strings.Join(values, ",")
	return q, args
}

func (s *MySQL) Save(ctx context.Context, batch []TileData) error {
	if len(batch) == 0 {
		return nil
	}
	q, args := bulkInsert(batch)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	rows, _ := res.RowsAffected()
	log.Debugf("save batch count %d, insert %d", len(batch), rows)
	return nil
}

func (s *MySQL) Close() error { return s.db.Close() }

// Files writes dir/z/x/y.png.
type Files struct {
	dir string
}

func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

func (s *Files) Save(_ context.Context, batch []TileData) error {
	for _, t := range batch {
		dir := filepath.Join(s.dir, strconv.Itoa(int(t.Coord.Z)), strconv.Itoa(int(t.Coord.X)))
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
		name := filepath.Join(dir, strconv.Itoa(int(t.Coord.Y))+".png")
		if err := os.WriteFile(name, t.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func (s *Files) Close() error { return nil }
