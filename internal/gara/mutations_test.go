package gara

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func threeItemState(t *testing.T) State {
	t.Helper()
	return ApplyChecklist("t", Normalize("t", nil), []ChecklistItem{
		{Requirement: "ISO 9001", Status: StatusNotCovered},
		{Requirement: "Turnover 2M", Status: StatusToApprove, Progress: ProgressWIP},
		{Requirement: "Work plan", Evidence: "See annex B"},
	})
}

func TestNormalizeChecklistItem(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ChecklistItem
	}{
		{
			name: "bogus progress",
			in:   map[string]any{"progress": "bogus"},
			want: ChecklistItem{Attachments: []string{}, Gaps: []string{}, Progress: ProgressTodo},
		},
		{
			name: "nil",
			in:   nil,
			want: ChecklistItem{Attachments: []string{}, Gaps: []string{}, Progress: ProgressTodo},
		},
		{
			name: "wrong types",
			in: map[string]any{
				"requisito": 12.0,
				"allegati":  "a.pdf",
				"progress":  "DONE",
				"gap_informativi": []any{
					"missing CV", nil, 3.0,
				},
			},
			want: ChecklistItem{Attachments: []string{}, Gaps: []string{"missing CV", "", "3"}, Progress: ProgressDone},
		},
		{
			name: "aliases",
			in: map[string]any{
				"requirement": "ISO 9001",
				"source":      "bando p.3",
				"kind":        "evaluative",
				"owner":       "quality",
				"status":      "approved",
				"attachments": []any{"iso.pdf"},
				"progresso":   "wip",
			},
			want: ChecklistItem{
				Requirement: "ISO 9001",
				Source:      "bando p.3",
				Kind:        "evaluative",
				Owner:       "quality",
				Status:      "approved",
				Attachments: []string{"iso.pdf"},
				Gaps:        []string{},
				Progress:    ProgressWIP,
			},
		},
		{
			name: "canonical key wins",
			in:   map[string]any{"requisito": "A", "requirement": "B", "progress": "done", "progresso": "wip"},
			want: ChecklistItem{Requirement: "A", Attachments: []string{}, Gaps: []string{}, Progress: ProgressDone},
		},
		{
			name: "typed item",
			in:   ChecklistItem{Requirement: "X", Progress: "nope"},
			want: ChecklistItem{Requirement: "X", Attachments: []string{}, Gaps: []string{}, Progress: ProgressTodo},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeChecklistItem(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeChecklistItem(got), "idempotent")
			assert.Equal(t, got, NormalizeChecklistItem(got.toValue()), "idempotent through json value")
		})
	}
}

func TestParseProgress(t *testing.T) {
	for _, in := range []string{"todo", "WIP", " done "} {
		_, err := ParseProgress(in)
		assert.NoError(t, err, in)
	}
	for _, in := range []string{"", "bogus", "finished"} {
		_, err := ParseProgress(in)
		assert.ErrorIs(t, err, ErrInvalidProgress, in)
	}
}

func TestApplyChecklistRefreshesCounters(t *testing.T) {
	fixed := fixedClock(t)
	state := ApplyChecklist("t", Normalize("t", nil), []ChecklistItem{
		{Requirement: "a", Progress: ProgressDone},
		{Requirement: "b", Progress: ProgressWIP},
		{Requirement: "c"},
	})

	compliance := state.Section(SectionCompliance)
	assert.Equal(t, 3.0, compliance["total_items"])
	assert.Equal(t, 1.0, compliance["completed"])
	assert.Equal(t, 2.0, compliance["missing"])
	assert.Equal(t, fixed.Format("2006-01-02T15:04:05Z07:00"), state.Section(SectionChecklist)["last_updated"])
	assert.Len(t, ChecklistItems(state), 3)
}

func TestApplyChecklistOverwritesSuppliedCounters(t *testing.T) {
	state := Normalize("t", map[string]any{
		"compliance_checklist": map[string]any{
			"total_items": 40.0,
			"completed":   38.0,
			"missing":     2.0,
			"details":     []any{"from generator"},
		},
	})

	state = ApplyChecklist("t", state, []ChecklistItem{{Requirement: "a", Progress: ProgressDone}})

	compliance := state.Section(SectionCompliance)
	assert.Equal(t, 1.0, compliance["total_items"])
	assert.Equal(t, 1.0, compliance["completed"])
	assert.Equal(t, 0.0, compliance["missing"])
	assert.Equal(t, []any{"from generator"}, compliance["details"])
}

func TestAddItem(t *testing.T) {
	state, err := AddItem("t", Normalize("t", nil), ItemPatch{})
	require.NoError(t, err)

	items := ChecklistItems(state)
	require.Len(t, items, 1)
	assert.Equal(t, ChecklistItem{
		Requirement: "New requirement",
		Source:      "Added manually",
		Kind:        RequirementMandatory,
		Owner:       DefaultOwner,
		Status:      StatusNotCovered,
		Attachments: []string{},
		Progress:    ProgressTodo,
		Gaps:        []string{},
	}, items[0])

	state, err = AddItem("t", state, ItemPatch{Requirement: strPtr("DURC"), Progress: strPtr("wip")})
	require.NoError(t, err)
	items = ChecklistItems(state)
	require.Len(t, items, 2)
	assert.Equal(t, "DURC", items[1].Requirement)
	assert.Equal(t, ProgressWIP, items[1].Progress)

	state, err = AddItem("t", state, ItemPatch{
		Requirement: strPtr(""),
		Source:      strPtr("  "),
		Kind:        strPtr(""),
		Owner:       strPtr(""),
		Status:      strPtr(""),
		Evidence:    strPtr("notes"),
	})
	require.NoError(t, err)
	items = ChecklistItems(state)
	require.Len(t, items, 3)
	assert.Equal(t, "New requirement", items[2].Requirement)
	assert.Equal(t, "Added manually", items[2].Source)
	assert.Equal(t, RequirementMandatory, items[2].Kind)
	assert.Equal(t, DefaultOwner, items[2].Owner)
	assert.Equal(t, StatusNotCovered, items[2].Status)
	assert.Equal(t, "notes", items[2].Evidence)

	_, err = AddItem("t", state, ItemPatch{Progress: strPtr("later")})
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestUpdateItem(t *testing.T) {
	state := threeItemState(t)

	next, err := UpdateItem("t", state, 2, ItemPatch{Owner: strPtr("tech"), Gaps: []string{"CV"}})
	require.NoError(t, err)
	item := ChecklistItems(next)[2]
	assert.Equal(t, "tech", item.Owner)
	assert.Equal(t, []string{"CV"}, item.Gaps)
	assert.Equal(t, "See annex B", item.Evidence)

	for _, idx := range []int{-1, 3, 99} {
		got, err := UpdateItem("t", state, idx, ItemPatch{Owner: strPtr("x")})
		assert.ErrorIs(t, err, ErrInvalidIndex)
		assert.Equal(t, state, got)
	}

	_, err = UpdateItem("t", state, 0, ItemPatch{Progress: strPtr("bogus")})
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestDeleteItem(t *testing.T) {
	state := threeItemState(t)

	next, err := DeleteItem("t", state, 0)
	require.NoError(t, err)
	items := ChecklistItems(next)
	require.Len(t, items, 2)
	assert.Equal(t, "Turnover 2M", items[0].Requirement)

	got, err := DeleteItem("t", state, 3)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.Equal(t, state, got)
}

func TestSetProgress(t *testing.T) {
	state := threeItemState(t)

	next, err := SetProgress("t", state, 1, "done")
	require.NoError(t, err)
	assert.Equal(t, ProgressDone, ChecklistItems(next)[1].Progress)
	assert.Equal(t, 1.0, next.Section(SectionCompliance)["completed"])

	got, err := SetProgress("t", state, 99, "done")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, state, got)

	got, err = SetProgress("t", state, 0, "bogus")
	assert.ErrorIs(t, err, ErrInvalidProgress)
	assert.Equal(t, state, got)
}

func TestAttachFiles(t *testing.T) {
	state := threeItemState(t)

	once, err := AttachFiles("t", state, 2, []string{"plan.pdf", " gantt.xlsx ", "plan.pdf"})
	require.NoError(t, err)
	item := ChecklistItems(once)[2]
	assert.Equal(t, []string{"plan.pdf", "gantt.xlsx"}, item.Attachments)
	assert.Equal(t, "See annex B\nAttachments: plan.pdf, gantt.xlsx", item.Evidence)

	twice, err := AttachFiles("t", once, 2, []string{"plan.pdf", "gantt.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, item.Evidence, ChecklistItems(twice)[2].Evidence)
	assert.Equal(t, item.Attachments, ChecklistItems(twice)[2].Attachments)

	_, err = AttachFiles("t", state, 5, []string{"x.pdf"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = AttachFiles("t", state, 0, []string{" ", ""})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestEvidenceWithAttachments(t *testing.T) {
	assert.Equal(t, "text", EvidenceWithAttachments(" text ", nil))
	assert.Equal(t, "Attachments: a.pdf", EvidenceWithAttachments("", []string{"a.pdf", " "}))
	assert.Equal(t, "text\nAttachments: a, b", EvidenceWithAttachments("text", []string{"a", "b"}))
	assert.Equal(t, "text\nAttachments: a, b", EvidenceWithAttachments("text\nAttachments: a, b", []string{"a", "b"}))
}
