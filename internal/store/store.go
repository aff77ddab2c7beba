// Package store persists the last viewed angle of each catalog spinner and
// a log of widget views in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a spinner has no saved position.
var ErrNotFound = errors.New("store: no saved position")

// Position is the saved state of a catalog spinner.
type Position struct {
	Spinner   string    `json:"spinner"`
	Angle     float64   `json:"angle"`
	Frame     int       `json:"frame"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is one widget instance lifetime.
type View struct {
	Instance string
	Spinner  string
	Opened   time.Time
	Closed   time.Time
}

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			spinner TEXT PRIMARY KEY,
			angle REAL NOT NULL,
			frame INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS views (
			instance TEXT PRIMARY KEY,
			spinner TEXT NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS views_spinner ON views(spinner);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// Save records the current angle and frame of a spinner.
func (s *Store) Save(ctx context.Context, spinnerID string, angle float64, frame int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO positions(spinner, angle, frame, updated_at) VALUES(?,?,?,?)
		ON CONFLICT(spinner) DO UPDATE SET angle=excluded.angle, frame=excluded.frame, updated_at=excluded.updated_at`,
		spinnerID, angle, frame, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", spinnerID, err)
	}
	return nil
}

// Load returns the saved position of a spinner, or ErrNotFound.
func (s *Store) Load(ctx context.Context, spinnerID string) (Position, error) {
	p := Position{Spinner: spinnerID}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT angle, frame, updated_at FROM positions WHERE spinner=?`, spinnerID).
		Scan(&p.Angle, &p.Frame, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, fmt.Errorf("%w: %s", ErrNotFound, spinnerID)
	}
	if err != nil {
		return Position{}, fmt.Errorf("store: load %s: %w", spinnerID, err)
	}
	p.UpdatedAt = time.UnixMilli(ms).UTC()
	return p, nil
}

// RecordView logs the opening of a widget instance.
func (s *Store) RecordView(ctx context.Context, instanceID, spinnerID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO views(instance, spinner, opened_at, closed_at) VALUES(?,?,?,0)`,
		instanceID, spinnerID, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: record view %s: %w", instanceID, err)
	}
	return nil
}

// CloseView marks a widget instance as closed.
func (s *Store) CloseView(ctx context.Context, instanceID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE views SET closed_at=? WHERE instance=? AND closed_at=0`,
		s.now().UnixMilli(), instanceID)
	if err != nil {
		return fmt.Errorf("store: close view %s: %w", instanceID, err)
	}
	return nil
}

// Views returns the logged views of a spinner, oldest first.
func (s *Store) Views(ctx context.Context, spinnerID string) ([]View, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance, spinner, opened_at, closed_at FROM views WHERE spinner=? ORDER BY opened_at, instance`, spinnerID)
	if err != nil {
		return nil, fmt.Errorf("store: views %s: %w", spinnerID, err)
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var (
			v              View
			opened, closed int64
		)
		if err := rows.Scan(&v.Instance, &v.Spinner, &opened, &closed); err != nil {
			return nil, fmt.Errorf("store: views %s: %w", spinnerID, err)
		}
		v.Opened = time.UnixMilli(opened).UTC()
		if closed != 0 {
			v.Closed = time.UnixMilli(closed).UTC()
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
