package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration directions
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Migration is one schema file
type Migration struct {
	Version string
	File    string
}

// Plan returns the migrations to run for direction given the applied
// versions, in execution order. steps limits the count when positive.
func Plan(files []string, applied map[string]bool, direction string, steps int) ([]Migration, error) {
	suffix, err := suffixFor(direction)
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, f := range files {
		if !strings.HasSuffix(f, suffix) {
			continue
		}
		v := strings.TrimSuffix(f, suffix)
		if applied[v] == (direction == DirectionUp) {
			continue
		}
		out = append(out, Migration{Version: v, File: f})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	if direction == DirectionDown {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if steps > 0 && len(out) > steps {
		out = out[:steps]
	}
	return out, nil
}

func suffixFor(direction string) (string, error) {
	switch direction {
	case DirectionUp:
		return ".up.sql", nil
	case DirectionDown:
		return ".down.sql", nil
	default:
		return "", fmt.Errorf("direction must be %q or %q, got %q", DirectionUp, DirectionDown, direction)
	}
}

// Migrate applies the schema files in fsys. Each file runs in its own
// transaction together with its schema_migrations bookkeeping.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, direction string, steps int, logger *slog.Logger) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, fmt.Errorf("failed to list migration files: %w", err)
	}

	plan, err := Plan(files, applied, direction, steps)
	if err != nil {
		return 0, err
	}

	for i, m := range plan {
		content, err := fs.ReadFile(fsys, m.File)
		if err != nil {
			return i, fmt.Errorf("failed to read migration %s: %w", m.File, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return i, fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			tx.Rollback(ctx)
			return i, fmt.Errorf("failed to execute migration %s: %w", m.File, err)
		}

		bookkeeping := "INSERT INTO schema_migrations (version) VALUES ($1)"
		if direction == DirectionDown {
			bookkeeping = "DELETE FROM schema_migrations WHERE version = $1"
		}
		if _, err := tx.Exec(ctx, bookkeeping, m.Version); err != nil {
			tx.Rollback(ctx)
			return i, fmt.Errorf("failed to update migrations table: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return i, fmt.Errorf("failed to commit migration %s: %w", m.File, err)
		}
		logger.Info("applied migration", "version", m.Version, "direction", direction)
	}

	return len(plan), nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
