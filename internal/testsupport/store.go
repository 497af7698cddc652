package testsupport

import (
	"context"
	"testing"

	"vidforge/internal/config"
	"vidforge/internal/database"
	"vidforge/internal/project"
)

// MustOpenDB opens the config's database and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MustOpenStore opens a project store on the config's database.
func MustOpenStore(t testing.TB, cfg *config.Config) (*project.Store, *database.DB) {
	t.Helper()
	db := MustOpenDB(t, cfg)
	store, err := project.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("open project store: %v", err)
	}
	return store, db
}
