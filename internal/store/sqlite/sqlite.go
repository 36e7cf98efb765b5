package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/librebrowser/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path, creating its directory.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	if p != ":memory:" && !strings.HasPrefix(p, "file:") {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return nil, err
		}
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// every pooled connection to :memory: would be its own database
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profile_session(
			label TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			last_status TEXT NOT NULL,
			launch_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		);`)
	return err
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Record(ctx context.Context, rec store.Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_session(label, pid, last_status, launch_id, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			pid=excluded.pid,
			last_status=excluded.last_status,
			launch_id=excluded.launch_id,
			updated_at=excluded.updated_at;`,
		rec.Label, rec.PID, rec.LastStatus, rec.LaunchID, rec.UpdatedAt.UTC())
	return err
}

func (s *DB) GetByLabel(ctx context.Context, label string) (store.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, pid, last_status, launch_id, updated_at
		FROM profile_session WHERE label=?;`, label)
	var r store.Record
	if err := row.Scan(&r.Label, &r.PID, &r.LastStatus, &r.LaunchID, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, err
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func (s *DB) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, pid, last_status, launch_id, updated_at
		FROM profile_session ORDER BY label;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []store.Record
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.Label, &r.PID, &r.LastStatus, &r.LaunchID, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) Delete(ctx context.Context, label string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profile_session WHERE label=?;`, label)
	return err
}
