package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/librebrowser/internal/store"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profile_session(
			label TEXT PRIMARY KEY,
			pid INTEGER NOT NULL,
			last_status TEXT NOT NULL,
			launch_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);`)
	return err
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Record(ctx context.Context, rec store.Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO profile_session(label, pid, last_status, launch_id, updated_at)
		VALUES($1,$2,$3,$4,$5)
		ON CONFLICT(label) DO UPDATE SET
			pid=EXCLUDED.pid,
			last_status=EXCLUDED.last_status,
			launch_id=EXCLUDED.launch_id,
			updated_at=EXCLUDED.updated_at;`,
		rec.Label, rec.PID, rec.LastStatus, rec.LaunchID, rec.UpdatedAt.UTC())
	return err
}

func (p *DB) GetByLabel(ctx context.Context, label string) (store.Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT label, pid, last_status, launch_id, updated_at
		FROM profile_session WHERE label=$1;`, label)
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

func (p *DB) List(ctx context.Context) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
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

func (p *DB) Delete(ctx context.Context, label string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM profile_session WHERE label=$1;`, label)
	return err
}
