package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gareflow/gareflow/internal/storage/migrations"
)

const memoryPath = ":memory:"

// SQLiteStorage implements the tender store on SQLite
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" keeps everything in a single in-memory connection.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := path
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.NewManager(schemaMigrations...).Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, logger: slog.Default()}, nil
}

// WithLogger replaces the logger used for schema upgrade notices.
func (s *SQLiteStorage) WithLogger(logger *slog.Logger) *SQLiteStorage {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
