package gara

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUncoveredItems(t *testing.T) {
	state := ApplyChecklist("t", Normalize("t", nil), []ChecklistItem{
		{Requirement: "a", Status: StatusNotCovered},
		{Requirement: "b", Status: StatusToApprove},
		{Requirement: "c"},
		{Requirement: "d", Status: "Not Covered"},
		{Requirement: "e", Status: StatusPartial},
	})

	got := UncoveredItems(state, 0)
	indices := make([]int, len(got))
	for i, u := range got {
		indices[i] = u.Index
	}
	assert.Equal(t, []int{0, 2, 3}, indices)
	assert.Len(t, UncoveredItems(state, 2), 2)
}

func TestFallbackGuidedQuestions(t *testing.T) {
	var items []ChecklistItem
	for i := 0; i < 9; i++ {
		items = append(items, ChecklistItem{Requirement: fmt.Sprintf("req %d", i)})
	}
	items[1].Status = StatusApproved
	items[2].Owner = "tech"
	items[3].Requirement = ""
	state := ApplyChecklist("t", Normalize("t", nil), items)

	questions := FallbackGuidedQuestions(state, 0)

	require.Len(t, questions, MaxGuidedQuestions)
	assert.Equal(t, GuidedQuestion{
		ID:          "qa_1",
		ItemIndex:   0,
		Requirement: "req 0",
		Question:    "Provide the details needed to cover this requirement: req 0",
		Suggestion:  fallbackSuggestion,
		Owner:       DefaultOwner,
	}, questions[0])
	assert.Equal(t, 2, questions[1].ItemIndex)
	assert.Equal(t, "tech", questions[1].Owner)
	assert.Equal(t, "Requirement 3", questions[2].Requirement)
	assert.Equal(t, "qa_6", questions[5].ID)
	assert.Equal(t, 6, questions[5].ItemIndex)

	assert.Len(t, FallbackGuidedQuestions(state, 2), 2)
	assert.Len(t, FallbackGuidedQuestions(state, 20), 8)
}

func TestDedupeGuidedQuestions(t *testing.T) {
	raw := []any{
		map[string]any{"id": "q1", "item_index": 0.0, "question": "first for 0"},
		map[string]any{"item_index": 0.0, "question": "second for 0"},
		map[string]any{"item_index": 1.5, "question": "fractional"},
		map[string]any{"item_index": "2", "question": "string index"},
		map[string]any{"item_index": 2.0, "question": "  "},
		map[string]any{"item_index": 2.0, "question": "real for 2", "owner": "legal"},
		"not an object",
		map[string]any{"item_index": 3.0, "question": "q3"},
		map[string]any{"item_index": 4.0, "question": "q4"},
		map[string]any{"item_index": 5.0, "question": "q5"},
		map[string]any{"item_index": 6.0, "question": "q6"},
		map[string]any{"item_index": 7.0, "question": "q7"},
	}

	got := DedupeGuidedQuestions(raw, MaxGuidedQuestions)

	require.Len(t, got, MaxGuidedQuestions)
	assert.Equal(t, "q1", got[0].ID)
	assert.Equal(t, "first for 0", got[0].Question)
	assert.Equal(t, DefaultOwner, got[0].Owner)
	assert.Equal(t, 2, got[1].ItemIndex)
	assert.Equal(t, "qa_2", got[1].ID)
	assert.Equal(t, "legal", got[1].Owner)

	seen := map[int]bool{}
	for _, q := range got {
		assert.False(t, seen[q.ItemIndex], "duplicate index %d", q.ItemIndex)
		seen[q.ItemIndex] = true
	}
	assert.Equal(t, 6, got[5].ItemIndex)
}

func TestAutofillQuestion(t *testing.T) {
	state := threeItemState(t)

	q, err := AutofillQuestion(state, 1)
	require.NoError(t, err)
	assert.Equal(t, "qa_auto_1", q.ID)
	assert.Equal(t, "Turnover 2M", q.Requirement)
	assert.Equal(t, 1, q.ItemIndex)

	_, err = AutofillQuestion(state, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyGuidedAnswerSufficient(t *testing.T) {
	base := threeItemState(t)
	base.Section(SectionQA)["open_questions"] = []any{"ISO 9001", "Other question"}

	q := GuidedQuestion{ItemIndex: 0, Requirement: "ISO 9001", Question: "Do you hold ISO 9001?"}
	meta := AnswerMeta{Source: "manual", DataSufficient: true, Gaps: []string{"ignored"}, Attachments: []string{"iso.pdf"}}

	state := ApplyGuidedAnswer("t", base, q, "Yes, certificate n. 123", meta)

	item := ChecklistItems(state)[0]
	assert.Equal(t, StatusToApprove, item.Status)
	assert.Equal(t, "ok_manual", item.Coverage)
	assert.Equal(t, []string{}, item.Gaps)
	assert.Equal(t, []string{"iso.pdf"}, item.Attachments)
	assert.Equal(t, "Yes, certificate n. 123\nAttachments: iso.pdf", item.Evidence)

	qa := state.Section(SectionQA)
	assert.Equal(t, []any{"Other question"}, qa["open_questions"])
	assert.Equal(t, []any{"Do you hold ISO 9001?: Yes, certificate n. 123"}, qa["official_answers"])

	again := ApplyGuidedAnswer("t", state, q, "Yes, certificate n. 123", meta)
	assert.Equal(t, item, ChecklistItems(again)[0], "checklist fields are idempotent")
	assert.Len(t, again.Section(SectionQA)["official_answers"], 2, "log is not")
}

func TestApplyGuidedAnswerInsufficient(t *testing.T) {
	q := GuidedQuestion{ItemIndex: 2, Requirement: "Work plan"}
	meta := AnswerMeta{Source: "auto", DataSufficient: false, Gaps: []string{GapNoCompanyProfile}}

	state := ApplyGuidedAnswer("t", threeItemState(t), q, "Generic draft", meta)

	item := ChecklistItems(state)[2]
	assert.Equal(t, StatusNotCovered, item.Status)
	assert.Equal(t, CoverageNoData, item.Coverage)
	assert.Equal(t, []string{GapNoCompanyProfile}, item.Gaps)
	assert.Equal(t, []any{"Work plan: Generic draft"}, state.Section(SectionQA)["official_answers"])
}

func TestApplyGuidedAnswerEdgeCases(t *testing.T) {
	base := threeItemState(t)
	before := ChecklistItems(base)

	t.Run("index out of range still logs", func(t *testing.T) {
		state := ApplyGuidedAnswer("t", base, GuidedQuestion{ItemIndex: 10, Requirement: "x"}, "answer", AnswerMeta{DataSufficient: true})
		assert.Equal(t, before, ChecklistItems(state))
		assert.Equal(t, []any{"x: answer"}, state.Section(SectionQA)["official_answers"])
	})

	t.Run("empty answer changes nothing but open questions", func(t *testing.T) {
		withOpen := base.Clone()
		withOpen.Section(SectionQA)["open_questions"] = []any{"ISO 9001"}
		state := ApplyGuidedAnswer("t", withOpen, GuidedQuestion{ItemIndex: 0, Requirement: "ISO 9001"}, "   ", AnswerMeta{DataSufficient: true})
		assert.Equal(t, before, ChecklistItems(state))
		assert.Equal(t, []any{}, state.Section(SectionQA)["official_answers"])
		assert.Equal(t, []any{}, state.Section(SectionQA)["open_questions"])
	})

	t.Run("default source", func(t *testing.T) {
		state := ApplyGuidedAnswer("t", base, GuidedQuestion{ItemIndex: 1}, "ok", AnswerMeta{DataSufficient: true})
		assert.Equal(t, "ok_manual", ChecklistItems(state)[1].Coverage)
	})
}

func TestHasUsefulCompanyData(t *testing.T) {
	tests := []struct {
		name    string
		profile any
		want    bool
	}{
		{"nil", nil, false},
		{"default profile", DefaultCompanyProfile(), false},
		{"blank strings", map[string]any{"company": map[string]any{"name": "  "}}, false},
		{"name", map[string]any{"company": map[string]any{"name": "Acme"}}, true},
		{"zero number", map[string]any{"employees": 0.0}, true},
		{"false bool", map[string]any{"sme": false}, true},
		{"nested list", map[string]any{"cv": []any{[]any{"", "x"}}}, true},
		{"typed struct", struct {
			Name string `json:"name"`
		}{Name: "Acme"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasUsefulCompanyData(tt.profile))
		})
	}
}

func TestFallbackAutoAnswer(t *testing.T) {
	q := GuidedQuestion{Requirement: "ISO 9001"}

	insufficient := FallbackAutoAnswer(q, nil)
	assert.False(t, insufficient.DataSufficient)
	assert.Equal(t, []string{GapNoCompanyProfile}, insufficient.Gaps)
	assert.Contains(t, insufficient.Answer, `"ISO 9001"`)

	sufficient := FallbackAutoAnswer(q, map[string]any{"company": map[string]any{"name": "Acme"}})
	assert.True(t, sufficient.DataSufficient)
	assert.Empty(t, sufficient.Gaps)
}

func TestCompanyEvidence(t *testing.T) {
	_, ok := CompanyEvidence(DefaultCompanyProfile())
	assert.False(t, ok)

	evidence, ok := CompanyEvidence(map[string]any{
		"company_documents": []any{
			map[string]any{"name": "iso.pdf", "category": "certification", "key_facts": []any{"ISO 9001:2015"}},
		},
	})
	require.True(t, ok)
	assert.Equal(t, []any{"ISO 9001:2015"}, evidence["all_key_facts"])
}
