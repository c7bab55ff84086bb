package storage

import (
	"context"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/storage/sqlite"
)

// Storage persists tender states and their side data per tenant. Missing
// tenders and profiles are reported as gara.ErrNotFound.
type Storage interface {
	// Tender state
	GetTender(ctx context.Context, tenantID, tenderID string) (gara.State, error)
	SaveTender(ctx context.Context, tenantID, tenderID string, state gara.State) error
	ListTenders(ctx context.Context, tenantID string) ([]gara.TenderSummary, error)

	// Conversation log
	AppendMessages(ctx context.Context, tenantID, tenderID string, messages ...gara.ChatMessage) error
	GetConversation(ctx context.Context, tenantID, tenderID string) ([]gara.ChatMessage, error)

	// Uploaded documents
	SaveDocuments(ctx context.Context, tenantID, tenderID string, docs []gara.Document) error
	GetDocuments(ctx context.Context, tenantID, tenderID string) ([]gara.Document, error)

	// Company profile
	SaveCompanyProfile(ctx context.Context, tenantID string, profile map[string]any) error
	GetCompanyProfile(ctx context.Context, tenantID string) (map[string]any, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".gare/gare.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultPath is the database location relative to the working directory.
const DefaultPath = ".gare/gare.db"

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{Path: DefaultPath}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return sqlite.New(ctx, cfg.Path)
}
