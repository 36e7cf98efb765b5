package factory

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFactoryDSNSelection(t *testing.T) {
	if _, err := NewFromDSN(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	// sql.Open does not connect, so a postgres DSN needs no server here
	pg, err := NewFromDSN("postgres://user@localhost/db")
	if err != nil || pg == nil {
		t.Fatalf("postgres dsn: err=%v obj=%T", err, pg)
	}
	_ = pg.Close()

	s1, err := NewFromDSN("sqlite://:memory:")
	if err != nil || s1 == nil {
		t.Fatalf("sqlite scheme: err=%v obj=%T", err, s1)
	}
	_ = s1.Close()

	path := filepath.Join(t.TempDir(), "ledger", "sessions.db")
	s2, err := NewFromDSN(path)
	if err != nil || s2 == nil {
		t.Fatalf("bare sqlite: err=%v obj=%T", err, s2)
	}
	defer func() { _ = s2.Close() }()
	if err := s2.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema on %s: %v", path, err)
	}
}
