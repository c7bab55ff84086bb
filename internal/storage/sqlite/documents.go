package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gareflow/gareflow/internal/gara"
)

// SaveDocuments replaces the document registry of a tender.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, tenantID, tenderID string, docs []gara.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM documents WHERE tenant_id = ? AND tender_id = ?
	`, tenantID, tenderID); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document %s: %w", doc.StoredAs, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (tenant_id, tender_id, stored_as, position, document)
			VALUES (?, ?, ?, ?, ?)
		`, tenantID, tenderID, doc.StoredAs, i, string(data)); err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.StoredAs, err)
		}
	}
	return tx.Commit()
}

// GetDocuments returns the document registry in upload order.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, tenantID, tenderID string) ([]gara.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document FROM documents
		WHERE tenant_id = ? AND tender_id = ?
		ORDER BY position ASC
	`, tenantID, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []gara.Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc gara.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveCompanyProfile replaces a tenant's company profile.
func (s *SQLiteStorage) SaveCompanyProfile(ctx context.Context, tenantID string, profile map[string]any) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode company profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO company_profiles (tenant_id, profile, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			profile = excluded.profile,
			updated_at = excluded.updated_at
	`, tenantID, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save company profile: %w", err)
	}
	return nil
}

// GetCompanyProfile loads a tenant's company profile.
func (s *SQLiteStorage) GetCompanyProfile(ctx context.Context, tenantID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT profile FROM company_profiles WHERE tenant_id = ?
	`, tenantID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company profile for %s: %w", tenantID, gara.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company profile: %w", err)
	}

	var profile map[string]any
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode company profile: %w", err)
	}
	return profile, nil
}
