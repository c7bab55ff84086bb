package gara

import (
	"fmt"
	"strings"
)

// Progress is the workflow state of a checklist item.
type Progress string

const (
	ProgressTodo Progress = "todo"
	ProgressWIP  Progress = "wip"
	ProgressDone Progress = "done"
)

// IsValid checks if the progress value is valid
func (p Progress) IsValid() bool {
	switch p {
	case ProgressTodo, ProgressWIP, ProgressDone:
		return true
	}
	return false
}

// ParseProgress validates a caller-supplied progress value. Unlike item
// normalization it never coerces: unknown values are ErrInvalidProgress.
func ParseProgress(s string) (Progress, error) {
	p := Progress(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q (want todo, wip or done)", ErrInvalidProgress, s)
	}
	return p, nil
}

func coerceProgress(s string) Progress {
	p := Progress(strings.ToLower(strings.TrimSpace(s)))
	if p.IsValid() {
		return p
	}
	return ProgressTodo
}

// Defaults used when checklist rows are synthesized or backfilled.
const (
	DefaultSource      = "Fonte da confermare"
	DefaultOwner       = "ufficio_gare"
	StatusNotCovered   = "not_covered"
	StatusToApprove    = "to_approve"
	StatusApproved     = "approved"
	StatusPartial      = "partial"
	CoverageNoData     = "insufficient_company_data"
	CoverageMatch      = "ok_company_match"
	CoveragePartial    = "partial_match"
	CoverageNotCovered = "not_covered"
)

// ChecklistItem is one row of the operative checklist.
type ChecklistItem struct {
	Requirement string   `json:"requisito"`
	Source      string   `json:"fonte"`
	Kind        string   `json:"tipo"`
	Owner       string   `json:"owner_proposta"`
	Status      string   `json:"stato"`
	Evidence    string   `json:"evidenza_proposta"`
	Attachments []string `json:"allegati"`
	Progress    Progress `json:"progress"`
	Coverage    string   `json:"esito_copertura"`
	Gaps        []string `json:"gap_informativi"`
}

// NormalizeChecklistItem builds a well-typed item from any decoded value.
// Strings default to "", lists to [] and progress to todo. English aliases
// (requirement, source, ...) and "progresso" are accepted; canonical keys win.
func NormalizeChecklistItem(v any) ChecklistItem {
	if item, ok := v.(ChecklistItem); ok {
		return item.Normalize()
	}
	m := asObject(Canonicalize(v))
	if m == nil {
		m = map[string]any{}
	}

	str := func(keys ...string) string {
		s, _ := firstString(m, keys...)
		return s
	}
	list := func(keys ...string) []string {
		for _, k := range keys {
			if arr, ok := m[k].([]any); ok {
				return stringList(arr)
			}
		}
		return []string{}
	}

	progress := str("progress")
	if progress == "" {
		progress = str("progresso")
	}

	return ChecklistItem{
		Requirement: str("requisito", "requirement"),
		Source:      str("fonte", "source"),
		Kind:        str("tipo", "kind"),
		Owner:       str("owner_proposta", "owner"),
		Status:      str("stato", "status"),
		Evidence:    str("evidenza_proposta", "evidence"),
		Attachments: list("allegati", "attachments"),
		Progress:    coerceProgress(progress),
		Coverage:    str("esito_copertura", "coverage_outcome"),
		Gaps:        list("gap_informativi", "gaps"),
	}
}

// Normalize returns a copy with nil lists replaced by empty ones and progress
// coerced into the enum.
func (it ChecklistItem) Normalize() ChecklistItem {
	out := it
	out.Attachments = append([]string{}, it.Attachments...)
	out.Gaps = append([]string{}, it.Gaps...)
	out.Progress = coerceProgress(string(it.Progress))
	return out
}

// toValue renders the item as a canonical JSON object.
func (it ChecklistItem) toValue() map[string]any {
	it = it.Normalize()
	return map[string]any{
		"requisito":         it.Requirement,
		"fonte":             it.Source,
		"tipo":              it.Kind,
		"owner_proposta":    it.Owner,
		"stato":             it.Status,
		"evidenza_proposta": it.Evidence,
		"allegati":          toAnySlice(it.Attachments),
		"progress":          string(it.Progress),
		"esito_copertura":   it.Coverage,
		"gap_informativi":   toAnySlice(it.Gaps),
	}
}

// ChecklistItems reads checklist.items from a state, normalizing every row.
func ChecklistItems(state State) []ChecklistItem {
	rows := asArray(state.Section(SectionChecklist)["items"])
	items := make([]ChecklistItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, NormalizeChecklistItem(row))
	}
	return items
}

// ApplyChecklist writes items into checklist.items, stamps the checklist and
// recomputes the compliance counters from item progress, replacing whatever
// counters the state carried. Other compliance fields are kept. The result
// is normalized.
func ApplyChecklist(tenderID string, state State, items []ChecklistItem) State {
	base := Normalize(tenderID, state)

	rows := make([]any, 0, len(items))
	completed := 0
	for _, item := range items {
		item = item.Normalize()
		if item.Progress == ProgressDone {
			completed++
		}
		rows = append(rows, item.toValue())
	}

	checklist := base.copySection(SectionChecklist)
	checklist["format"] = ChecklistFormat
	checklist["items"] = rows
	checklist["last_updated"] = timestamp()

	compliance := base.copySection(SectionCompliance)
	compliance["total_items"] = float64(len(rows))
	compliance["completed"] = float64(completed)
	compliance["missing"] = float64(len(rows) - completed)

	next := base.with(SectionChecklist, checklist).with(SectionCompliance, compliance)
	return Normalize(tenderID, next)
}
