// Package store persists loss surfaces to a SQLite database, one row per
// grid value, so a run can be reloaded without re-evaluating the model.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/losscape/internal/monitoring"
)

// Field names used for the stored matrices.
const (
	FieldX      = "X"
	FieldY      = "Y"
	FieldLosses = "losses"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("store: run not found")

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// RunMeta describes one stored run.
type RunMeta struct {
	ID        string
	Kind      string
	CreatedAt time.Time
	XMin      float64
	XMax      float64
	YMin      float64
	YMax      float64
	NumPoints int
}

// Surface is the stored grid of a 2D run.
type Surface struct {
	X, Y, Losses mat.Matrix
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSurface records the run and every value of X, Y and Losses in one
// transaction.
func (s *Store) SaveSurface(ctx context.Context, meta RunMeta, surface Surface) error {
	if meta.ID == "" {
		return errors.New("store: run ID is required")
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	fields := []struct {
		name string
		m    mat.Matrix
	}{
		{FieldX, surface.X},
		{FieldY, surface.Y},
		{FieldLosses, surface.Losses},
	}
	for _, f := range fields {
		if f.m == nil {
			return fmt.Errorf("store: field %s is nil", f.name)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, created_at, x_min, x_max, y_min, y_max, num_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Kind, meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		meta.XMin, meta.XMax, meta.YMin, meta.YMax, meta.NumPoints)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", meta.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_values (run_id, field, row, col, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare grid insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, f := range fields {
		r, c := f.m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if _, err := stmt.ExecContext(ctx, meta.ID, f.name, i, j, f.m.At(i, j)); err != nil {
					return fmt.Errorf("insert %s[%d,%d]: %w", f.name, i, j, err)
				}
				count++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	monitoring.Logf("[store] saved run %s (%d values)", meta.ID, count)
	return nil
}

// LoadSurface returns the metadata and matrices of a stored run.
func (s *Store) LoadSurface(ctx context.Context, id string) (RunMeta, Surface, error) {
	meta, err := s.loadMeta(ctx, id)
	if err != nil {
		return RunMeta{}, Surface{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, row, col, value FROM grid_values WHERE run_id = ? ORDER BY field, row, col`, id)
	if err != nil {
		return RunMeta{}, Surface{}, fmt.Errorf("query grid %s: %w", id, err)
	}
	defer rows.Close()

	type cell struct {
		row, col int
		value    float64
	}
	cells := make(map[string][]cell)
	dims := make(map[string][2]int)
	for rows.Next() {
		var (
			field string
			c     cell
			value sql.NullFloat64
		)
		if err := rows.Scan(&field, &c.row, &c.col, &value); err != nil {
			return RunMeta{}, Surface{}, fmt.Errorf("scan grid %s: %w", id, err)
		}
		// SQLite stores NaN as NULL.
		c.value = nanIfNull(value)
		cells[field] = append(cells[field], c)
		d := dims[field]
		d[0] = max(d[0], c.row+1)
		d[1] = max(d[1], c.col+1)
		dims[field] = d
	}
	if err := rows.Err(); err != nil {
		return RunMeta{}, Surface{}, fmt.Errorf("iterate grid %s: %w", id, err)
	}

	build := func(field string) (*mat.Dense, error) {
		d, ok := dims[field]
		if !ok {
			return nil, fmt.Errorf("store: run %s has no %s field", id, field)
		}
		m := mat.NewDense(d[0], d[1], nil)
		for _, c := range cells[field] {
			m.Set(c.row, c.col, c.value)
		}
		return m, nil
	}

	var out [3]*mat.Dense
	for k, field := range []string{FieldX, FieldY, FieldLosses} {
		if out[k], err = build(field); err != nil {
			return RunMeta{}, Surface{}, err
		}
	}
	return meta, Surface{X: out[0], Y: out[1], Losses: out[2]}, nil
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, created_at, x_min, x_max, y_min, y_max, num_points
		FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMeta
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Store) loadMeta(ctx context.Context, id string) (RunMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, created_at, x_min, x_max, y_min, y_max, num_points
		FROM runs WHERE id = ?`, id)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return meta, err
}

func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(sc scanner) (RunMeta, error) {
	var (
		meta    RunMeta
		created string
	)
	err := sc.Scan(&meta.ID, &meta.Kind, &created, &meta.XMin, &meta.XMax, &meta.YMin, &meta.YMax, &meta.NumPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunMeta{}, err
		}
		return RunMeta{}, fmt.Errorf("scan run: %w", err)
	}
	meta.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return RunMeta{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return meta, nil
}
