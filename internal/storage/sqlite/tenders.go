package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/mod/semver"

	"github.com/gareflow/gareflow/internal/gara"
)

// GetTender loads a tender state. States written under an older (or
// missing) schema version are re-normalized and written back.
func (s *SQLiteStorage) GetTender(ctx context.Context, tenantID, tenderID string) (gara.State, error) {
	var raw, version string
	err := s.db.QueryRowContext(ctx, `
		SELECT state, schema_version FROM tenders
		WHERE tenant_id = ? AND tender_id = ?
	`, tenantID, tenderID).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tender %s: %w", tenderID, gara.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tender: %w", err)
	}

	if !needsUpgrade(version) {
		var state gara.State
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("failed to decode tender %s: %w", tenderID, err)
		}
		return state, nil
	}

	state := gara.NormalizeJSON(tenderID, []byte(raw))
	s.logger.Info("upgrading stored tender state",
		"tenant", tenantID,
		"tender", tenderID,
		"from", version,
		"to", gara.SchemaVersion)
	if err := s.SaveTender(ctx, tenantID, tenderID, state); err != nil {
		return nil, fmt.Errorf("failed to upgrade tender %s: %w", tenderID, err)
	}
	return state, nil
}

// needsUpgrade reports whether a stored schema version predates
// gara.SchemaVersion. Unparseable versions are upgraded.
func needsUpgrade(version string) bool {
	if !semver.IsValid(version) {
		return true
	}
	return semver.Compare(version, gara.SchemaVersion) < 0
}

// SaveTender upserts a tender state under the current schema version.
func (s *SQLiteStorage) SaveTender(ctx context.Context, tenantID, tenderID string, state gara.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode tender %s: %w", tenderID, err)
	}
	ts := formatTime(time.Now())
	updated := state.LastUpdated()
	if updated == "" {
		updated = ts
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenders (tenant_id, tender_id, state, schema_version, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, tender_id) DO UPDATE SET
			state = excluded.state,
			schema_version = excluded.schema_version,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, tenantID, tenderID, string(data), gara.SchemaVersion, state.OverviewStatus(), ts, updated)
	if err != nil {
		return fmt.Errorf("failed to save tender %s: %w", tenderID, err)
	}
	return nil
}

// ListTenders returns every tender of a tenant, most recently updated first.
func (s *SQLiteStorage) ListTenders(ctx context.Context, tenantID string) ([]gara.TenderSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tender_id, state FROM tenders
		WHERE tenant_id = ?
		ORDER BY updated_at DESC, tender_id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []gara.TenderSummary{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan tender: %w", err)
		}
		var state gara.State
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("failed to decode tender %s: %w", id, err)
		}
		summaries = append(summaries, gara.SummaryOf(id, state))
	}
	return summaries, rows.Err()
}
