package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const versionsTable = `CREATE TABLE IF NOT EXISTS schema_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL
)`

// Migrate creates component's schema on first use and verifies the recorded
// version afterwards. Schema text may hold several statements separated by
// semicolons; each is executed in one transaction.
func (d *DB) Migrate(ctx context.Context, component string, version int, schema string) error {
	if _, err := d.Exec(ctx, versionsTable); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	var current int
	err := d.QueryRow(ctx, `SELECT version FROM schema_versions WHERE component = ?`, component).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return d.createSchema(ctx, component, version, schema)
	case err != nil:
		return fmt.Errorf("read %s schema version: %w", component, err)
	case current != version:
		return fmt.Errorf("%w: %s has version %d, expected %d (drop the %s tables or point database.dsn at a fresh database)",
			ErrSchemaMismatch, component, current, version, component)
	}
	return nil
}

func (d *DB) createSchema(ctx context.Context, component string, version int, schema string) error {
	return d.WithTx(ctx, func(tx *Tx) error {
		for _, stmt := range SplitStatements(schema) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create %s schema: %w", component, err)
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_versions (component, version) VALUES (?, ?)`, component, version); err != nil {
			return fmt.Errorf("record %s schema version: %w", component, err)
		}
		return nil
	})
}

// SplitStatements breaks a schema script into individual statements,
// dropping blank entries and full-line -- comments.
func SplitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	parts := strings.Split(strings.Join(lines, "\n"), ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Placeholders returns a comma separated list of n ? placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
