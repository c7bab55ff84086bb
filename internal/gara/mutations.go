package gara

import (
	"fmt"
	"strings"
)

// ItemPatch carries the fields of a checklist edit. Nil fields are left
// untouched.
type ItemPatch struct {
	Requirement *string  `json:"requisito,omitempty"`
	Source      *string  `json:"fonte,omitempty"`
	Kind        *string  `json:"tipo,omitempty"`
	Owner       *string  `json:"owner_proposta,omitempty"`
	Status      *string  `json:"stato,omitempty"`
	Evidence    *string  `json:"evidenza_proposta,omitempty"`
	Attachments []string `json:"allegati,omitempty"`
	Progress    *string  `json:"progress,omitempty"`
	Coverage    *string  `json:"esito_copertura,omitempty"`
	Gaps        []string `json:"gap_informativi,omitempty"`
}

// apply shallow-merges the patch onto item. A progress value outside the enum
// is rejected.
func (p ItemPatch) apply(item ChecklistItem) (ChecklistItem, error) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&item.Requirement, p.Requirement)
	set(&item.Source, p.Source)
	set(&item.Kind, p.Kind)
	set(&item.Owner, p.Owner)
	set(&item.Status, p.Status)
	set(&item.Evidence, p.Evidence)
	set(&item.Coverage, p.Coverage)
	if p.Attachments != nil {
		item.Attachments = append([]string{}, p.Attachments...)
	}
	if p.Gaps != nil {
		item.Gaps = append([]string{}, p.Gaps...)
	}
	if p.Progress != nil {
		progress, err := ParseProgress(*p.Progress)
		if err != nil {
			return item, err
		}
		item.Progress = progress
	}
	return item.Normalize(), nil
}

// AddItem appends a manually created item. Unset or blank fields default to
// a new mandatory, uncovered requirement owned by the tender office.
func AddItem(tenderID string, state State, patch ItemPatch) (State, error) {
	base := Normalize(tenderID, state)
	defaults := ChecklistItem{
		Requirement: "New requirement",
		Source:      "Added manually",
		Kind:        RequirementMandatory,
		Owner:       DefaultOwner,
		Status:      StatusNotCovered,
		Progress:    ProgressTodo,
	}
	item, err := patch.apply(defaults)
	if err != nil {
		return state, fmt.Errorf("add item: %w", err)
	}
	orDefault(&item.Requirement, defaults.Requirement)
	orDefault(&item.Source, defaults.Source)
	orDefault(&item.Kind, defaults.Kind)
	orDefault(&item.Owner, defaults.Owner)
	orDefault(&item.Status, defaults.Status)

	items := append(ChecklistItems(base), item)
	return ApplyChecklist(tenderID, base, items), nil
}

// UpdateItem merges patch onto the item at index.
func UpdateItem(tenderID string, state State, index int, patch ItemPatch) (State, error) {
	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	if index < 0 || index >= len(items) {
		return state, fmt.Errorf("update item %d of %d: %w", index, len(items), ErrInvalidIndex)
	}

	updated, err := patch.apply(items[index])
	if err != nil {
		return state, fmt.Errorf("update item %d: %w", index, err)
	}
	items[index] = updated
	return ApplyChecklist(tenderID, base, items), nil
}

// DeleteItem removes the item at index. Later items shift down by one.
func DeleteItem(tenderID string, state State, index int) (State, error) {
	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	if index < 0 || index >= len(items) {
		return state, fmt.Errorf("delete item %d of %d: %w", index, len(items), ErrInvalidIndex)
	}

	items = append(items[:index], items[index+1:]...)
	return ApplyChecklist(tenderID, base, items), nil
}

// SetProgress moves the item at index to progress.
func SetProgress(tenderID string, state State, index int, progress string) (State, error) {
	p, err := ParseProgress(progress)
	if err != nil {
		return state, fmt.Errorf("set progress: %w", err)
	}

	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	if index < 0 || index >= len(items) {
		return state, fmt.Errorf("set progress on item %d: %w", index, ErrNotFound)
	}

	items[index].Progress = p
	return ApplyChecklist(tenderID, base, items), nil
}

// AttachFiles adds filenames to the item's attachments and appends the
// attachment line to its proposed evidence. Re-attaching the same set leaves
// the evidence unchanged.
func AttachFiles(tenderID string, state State, index int, filenames []string) (State, error) {
	var files []string
	for _, f := range filenames {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return state, fmt.Errorf("attach files: no file names: %w", ErrMissingField)
	}

	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	if index < 0 || index >= len(items) {
		return state, fmt.Errorf("attach files to item %d: %w", index, ErrNotFound)
	}

	item := items[index]
	item.Attachments = unionFiles(item.Attachments, files)
	item.Evidence = EvidenceWithAttachments(item.Evidence, item.Attachments)
	items[index] = item
	return ApplyChecklist(tenderID, base, items), nil
}

func orDefault(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}
