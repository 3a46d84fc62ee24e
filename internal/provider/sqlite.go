package provider

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

// SQLite stores features as GeoJSON text next to their bounds and answers
// queries with an index range scan on the bounds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the feature table in path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	s := &SQLite{db: db}
	if err := s.setup(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare feature table: %w", err)
	}
	return s, nil
}

func (s *SQLite) setup() error {
	stmts := []string{
		"create table if not exists features (id integer primary key autoincrement, minx real, miny real, maxx real, maxy real, feature text);",
		"create index if not exists features_bbox on features (minx, maxx, miny, maxy);",
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Import inserts features in one transaction and returns how many were
// stored. Features without geometry are skipped.
func (s *SQLite) Import(ctx context.Context, features []*geojson.Feature) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, "insert into features (minx, miny, maxx, maxy, feature) values (?, ?, ?, ?, ?);")
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		data, err := f.MarshalJSON()
		if err != nil {
			_ = tx.Rollback()
			return n, fmt.Errorf("encode feature %d: %w", n, err)
		}
		b := f.Geometry.Bound()
		if _, err := stmt.ExecContext(ctx, b.Min[0], b.Min[1], b.Max[0], b.Max[1], string(data)); err != nil {
			_ = tx.Rollback()
			return n, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Infof("imported %d features", n)
	return n, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "select count(*) from features;").Scan(&n)
	return n, err
}

// Bound is the box around every stored feature. ok is false when empty.
func (s *SQLite) Bound(ctx context.Context) (b orb.Bound, ok bool, err error) {
	var minx, miny, maxx, maxy sql.NullFloat64
	err = s.db.QueryRowContext(ctx, "select min(minx), min(miny), max(maxx), max(maxy) from features;").
		Scan(&minx, &miny, &maxx, &maxy)
	if err != nil || !minx.Valid {
		return b, false, err
	}
	return orb.Bound{Min: orb.Point{minx.Float64, miny.Float64}, Max: orb.Point{maxx.Float64, maxy.Float64}}, true, nil
}

func (s *SQLite) LoadData(ctx context.Context, q Query) (FeatureSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"select feature from features where maxx >= ? and minx <= ? and maxy >= ? and miny <= ? order by id;",
		q.BBox.Min[0], q.BBox.Max[0], q.BBox.Min[1], q.BBox.Max[1])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		f, err := geojson.UnmarshalFeature([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode stored feature: %w", err)
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Collection{FC: fc}, nil
}

func (s *SQLite) Geometry(f *geojson.Feature) orb.Geometry {
	return geometryOf(f)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
