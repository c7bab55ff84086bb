package tender

import (
	"context"
	"fmt"
	"strings"

	"github.com/gareflow/gareflow/internal/gara"
)

// mutate loads a tender, applies fn and saves the result. A failed mutation
// leaves the stored state untouched.
func (s *Service) mutate(ctx context.Context, tenantID, id, operation string, fn func(gara.State) (gara.State, error)) (gara.State, error) {
	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(state)
	s.metrics.Mutation(operation, err)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, tenantID, id, next, operation); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", operation, err)
	}
	return next, nil
}

// AddItem appends a checklist item.
func (s *Service) AddItem(ctx context.Context, tenantID, rawID string, patch gara.ItemPatch) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.mutate(ctx, tenantID, id, "add", func(st gara.State) (gara.State, error) {
		return gara.AddItem(id, st, patch)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Requirement added.", State: state}, nil
}

// UpdateItem merges patch into the item at index.
func (s *Service) UpdateItem(ctx context.Context, tenantID, rawID string, index int, patch gara.ItemPatch) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.mutate(ctx, tenantID, id, "update", func(st gara.State) (gara.State, error) {
		return gara.UpdateItem(id, st, index, patch)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Requirement updated.", State: state}, nil
}

// DeleteItem removes the item at index.
func (s *Service) DeleteItem(ctx context.Context, tenantID, rawID string, index int) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.mutate(ctx, tenantID, id, "delete", func(st gara.State) (gara.State, error) {
		return gara.DeleteItem(id, st, index)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Requirement deleted.", State: state}, nil
}

// SetProgress sets the progress of the item at index.
func (s *Service) SetProgress(ctx context.Context, tenantID, rawID string, index int, progress string) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.mutate(ctx, tenantID, id, "progress", func(st gara.State) (gara.State, error) {
		return gara.SetProgress(id, st, index, progress)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Requirement progress updated.", State: state}, nil
}

// AttachResult reports stored attachment names.
type AttachResult struct {
	Result
	Files []string `json:"uploaded_files"`
}

// Attach stores files as evidence for the item at index. The item must
// exist before anything is written.
func (s *Service) Attach(ctx context.Context, tenantID, rawID string, index int, uploads []Upload) (AttachResult, error) {
	id := gara.SanitizeTenderID(rawID)

	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return AttachResult{}, err
	}
	if index < 0 || index >= len(gara.ChecklistItems(state)) {
		s.metrics.Mutation("attach", gara.ErrNotFound)
		return AttachResult{}, fmt.Errorf("attach files to item %d: %w", index, gara.ErrNotFound)
	}

	var names []string
	for _, up := range uploads {
		if len(up.Data) == 0 {
			continue
		}
		stored := s.storedName(fmt.Sprintf("r%d", index), gara.SanitizeFileName(up.Name))
		if err := s.files.Put(ctx, tenantID, id, stored, up.Data); err != nil {
			return AttachResult{}, err
		}
		names = append(names, stored)
	}

	next, err := gara.AttachFiles(id, state, index, names)
	s.metrics.Mutation("attach", err)
	if err != nil {
		return AttachResult{}, err
	}
	if err := s.save(ctx, tenantID, id, next, "attach"); err != nil {
		return AttachResult{}, err
	}
	note := "[Attachments] Uploaded: " + strings.Join(names, ", ")
	if err := s.store.AppendMessages(ctx, tenantID, id, s.message(gara.RoleAssistant, note)); err != nil {
		return AttachResult{}, err
	}

	return AttachResult{
		Result: Result{TenderID: id, Reply: "Requirement attachments uploaded.", State: next},
		Files:  names,
	}, nil
}

// AssignCV links a CV to a team role.
func (s *Service) AssignCV(ctx context.Context, tenantID, rawID, role, cvName string) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.mutate(ctx, tenantID, id, "assign_cv", func(st gara.State) (gara.State, error) {
		return gara.AssignCV(id, st, role, cvName)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Role to CV assignment updated.", State: state}, nil
}
