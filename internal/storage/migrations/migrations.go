// Package migrations applies versioned, append-only schema changes. The
// applied versions are recorded in a schema_migrations table.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one schema step. Down reverts Up.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Manager applies a fixed set of migrations in version order.
type Manager struct {
	steps []Migration
}

// NewManager creates a manager for steps. Duplicate versions are a
// programming error and panic.
func NewManager(steps ...Migration) *Manager {
	sorted := append([]Migration(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			panic(fmt.Sprintf("migrations: duplicate version %d", sorted[i].Version))
		}
	}
	return &Manager{steps: sorted}
}

// Latest returns the highest known version.
func (m *Manager) Latest() int {
	if len(m.steps) == 0 {
		return 0
	}
	return m.steps[len(m.steps)-1].Version
}

// Apply runs every step newer than the recorded version. Each step commits
// together with its version row, so a failed step leaves earlier ones in
// place and records nothing for itself.
func (m *Manager) Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := Version(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	for _, step := range m.steps {
		if step.Version <= current {
			continue
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
				step.Version, step.Description, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", step.Version, step.Description, err)
		}
	}
	return nil
}

// Rollback reverts the most recent applied step.
func (m *Manager) Rollback(ctx context.Context, db *sql.DB) error {
	current, err := Version(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current == 0 {
		return fmt.Errorf("no migrations to roll back")
	}

	i := sort.Search(len(m.steps), func(i int) bool { return m.steps[i].Version >= current })
	if i == len(m.steps) || m.steps[i].Version != current {
		return fmt.Errorf("migration %d is not known to this build", current)
	}
	step := m.steps[i]
	err = inTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, step.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", step.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to roll back migration %d: %w", step.Version, err)
	}
	return nil
}

// Version returns the highest applied version, 0 when none.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
