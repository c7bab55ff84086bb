package tender

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gareflow/gareflow/internal/gara"
)

// Classification statuses recorded in documents.classification_status.
const (
	ClassificationPending   = "to_confirm"
	ClassificationConfirmed = "confirmed"
)

// Upload is one file received for a tender.
type Upload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data []byte `json:"content_base64"`
}

// UploadResult reports an upload batch.
type UploadResult struct {
	Result
	Documents              []gara.Document `json:"files"`
	ClassificationRequired bool            `json:"classification_required"`
}

// storedName builds a unique stored file name. tag, when set, sits between
// the timestamp and the random part.
func (s *Service) storedName(tag, name string) string {
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	ms := s.now().UnixMilli()
	if tag != "" {
		return fmt.Sprintf("%d_%s_%s_%s", ms, tag, short, name)
	}
	return fmt.Sprintf("%d_%s_%s", ms, short, name)
}

// UploadDocuments stores the payloads, classifies the new documents and
// appends them to the registry unconfirmed. Uploads with no data are skipped.
func (s *Service) UploadDocuments(ctx context.Context, tenantID, rawID string, uploads []Upload) (UploadResult, error) {
	id := gara.SanitizeTenderID(rawID)

	var fresh []gara.Document
	for _, up := range uploads {
		if len(up.Data) == 0 {
			continue
		}
		name := gara.SanitizeFileName(up.Name)
		stored := s.storedName("", name)
		if err := s.files.Put(ctx, tenantID, id, stored, up.Data); err != nil {
			return UploadResult{}, err
		}
		fresh = append(fresh, gara.Document{
			Name:     name,
			StoredAs: stored,
			Size:     int64(len(up.Data)),
			Type:     up.Type,
			Preview:  Preview(name, up.Type, up.Data, s.previewChars),
			Category: gara.CategoryOther,
		})
	}
	if len(fresh) == 0 {
		return UploadResult{}, fmt.Errorf("no file with content received: %w", gara.ErrMissingField)
	}

	classified, outcome := s.assistant.ClassifyDocuments(ctx, id, fresh)

	existing, err := s.store.GetDocuments(ctx, tenantID, id)
	if err != nil {
		return UploadResult{}, err
	}
	docs := append(existing, classified...)
	if err := s.store.SaveDocuments(ctx, tenantID, id, docs); err != nil {
		return UploadResult{}, err
	}

	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return UploadResult{}, err
	}
	state = gara.MergeDocuments(id, state, docs, ClassificationPending)
	if err := s.save(ctx, tenantID, id, state, "upload"); err != nil {
		return UploadResult{}, err
	}

	note := "Documents classified automatically. Confirm or correct the categories before full extraction."
	if err := s.store.AppendMessages(ctx, tenantID, id, s.message(gara.RoleAssistant, note)); err != nil {
		return UploadResult{}, err
	}
	s.logger.Info("documents uploaded", "tenant", tenantID, "tender", id, "count", len(classified))

	res := UploadResult{
		Result: Result{
			TenderID: id,
			Reply:    "Document classification completed. Manual confirmation required.",
			State:    state,
		},
		Documents:              classified,
		ClassificationRequired: true,
	}
	res.degrade(outcome)
	return res, nil
}

// Documents returns a tender's document registry.
func (s *Service) Documents(ctx context.Context, tenantID, rawID string) ([]gara.Document, error) {
	return s.store.GetDocuments(ctx, tenantID, gara.SanitizeTenderID(rawID))
}

// ConfirmDocuments applies category overrides keyed by stored name, marks
// every document confirmed and runs the initial extraction.
func (s *Service) ConfirmDocuments(ctx context.Context, tenantID, rawID string, overrides map[string]gara.DocumentCategory) (Result, error) {
	id := gara.SanitizeTenderID(rawID)

	current, err := s.store.GetDocuments(ctx, tenantID, id)
	if err != nil {
		return Result{}, err
	}
	docs := gara.ConfirmDocuments(current, overrides)
	if err := s.store.SaveDocuments(ctx, tenantID, id, docs); err != nil {
		return Result{}, err
	}

	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return Result{}, err
	}
	pre := gara.MergeDocuments(id, state, docs, ClassificationConfirmed)
	reply, extracted, outcome := s.assistant.InitialExtraction(ctx, id, pre, docs)
	final := gara.MergeDocuments(id, extracted, docs, ClassificationConfirmed)

	if err := s.save(ctx, tenantID, id, final, "extraction"); err != nil {
		return Result{}, err
	}
	if err := s.store.AppendMessages(ctx, tenantID, id, s.message(gara.RoleAssistant, reply)); err != nil {
		return Result{}, err
	}

	res := Result{TenderID: id, Reply: reply, State: final}
	res.degrade(outcome)
	return res, nil
}
