package gara

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins timestamps for the duration of a test.
func fixedClock(t *testing.T) time.Time {
	t.Helper()
	fixed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	prev := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = prev })
	return fixed
}

var requirementArrays = map[string][]string{
	SectionAdmissionRequirements:  {"economic_financial", "technical_professional", "certifications", "minimum_thresholds"},
	SectionEvaluativeRequirements: {"criteria", "sub_criteria", "disqualification_thresholds"},
}

func TestNormalizeFreshTender(t *testing.T) {
	fixed := fixedClock(t)

	state := Normalize("tender-1", map[string]any{})

	assert.Equal(t, "tender-1", state.ID())
	assert.Equal(t, StatusInitial, state.OverviewStatus())
	assert.Equal(t, fixed.Format(time.RFC3339), state.LastUpdated())
	assert.Equal(t, []any{}, state.Section(SectionChecklist)["items"])
	assert.Equal(t, ChecklistFormat, state.Section(SectionChecklist)["format"])

	for section, fields := range requirementArrays {
		for _, field := range fields {
			assert.Equal(t, []any{}, state.Section(section)[field], "%s.%s", section, field)
		}
	}
}

// TestNormalizeCompleteness checks that every template container survives
// any candidate with the right type.
func TestNormalizeCompleteness(t *testing.T) {
	candidates := map[string]any{
		"nil":    nil,
		"array":  []any{1.0, "two"},
		"string": "not a state",
		"number": 42.0,
		"bool":   true,
		"wrong shapes": map[string]any{
			"checklist":              "oops",
			"documents":              map[string]any{"list": "nope", "missing": 3.0},
			"admission_requirements": []any{"ISO 9001"},
			"qa":                     map[string]any{"open_questions": map[string]any{"a": 1.0}},
			"overview":               "flat",
		},
		"typed go values": map[string]any{
			"risks": map[string][]string{"list": {"late delivery"}},
		},
	}

	template := DefaultState("t")
	for name, candidate := range candidates {
		t.Run(name, func(t *testing.T) {
			state := Normalize("t", candidate)
			for _, section := range RequiredSections {
				require.NotNil(t, state.Section(section), "section %s", section)
				for field, def := range template.Section(section) {
					got := state.Section(section)[field]
					switch def.(type) {
					case []any:
						assert.IsType(t, []any{}, got, "%s.%s", section, field)
					case map[string]any:
						assert.IsType(t, map[string]any{}, got, "%s.%s", section, field)
					default:
						assert.NotNil(t, got, "%s.%s", section, field)
					}
				}
			}
		})
	}
}

func TestNormalizePreservesExtensions(t *testing.T) {
	custom := map[string]any{
		"notes":  []any{"a", 1.0, nil},
		"nested": map[string]any{"deep": true},
	}
	candidate := map[string]any{
		"ai_insights": custom,
		"timeline": map[string]any{
			"offer_deadline": "2025-06-30",
			"extra_field":    "kept",
		},
	}

	state := Normalize("t", candidate)

	assert.Equal(t, custom, state["ai_insights"])
	assert.Equal(t, "kept", state.Section(SectionTimeline)["extra_field"])
	assert.Equal(t, "2025-06-30", state.Section(SectionTimeline)["offer_deadline"])
}

func TestNormalizeIdempotent(t *testing.T) {
	fixedClock(t)

	candidate := map[string]any{
		"overview": map[string]any{"id": "other", "status": "", "summary": "one line"},
		"admission_requirements": map[string]any{
			"certifications": []any{"ISO 9001", map[string]any{"soa": "OG1 class III"}},
		},
		"checklist": map[string]any{"items": []any{map[string]any{"requisito": "ISO 9001"}}},
		"free":      []any{1.0, "x"},
	}

	once := Normalize("t", candidate)
	twice := Normalize("t", once)
	assert.Equal(t, once, twice)
}

func TestNormalizeIdempotentIgnoringTimestamp(t *testing.T) {
	once := Normalize("t", map[string]any{"qa": map[string]any{"impacts": []any{"x"}}})
	twice := Normalize("t", once)

	delete(once.Section(SectionOverview), "last_updated")
	delete(twice.Section(SectionOverview), "last_updated")
	assert.Equal(t, once, twice)
}

func TestNormalizeOverviewFixups(t *testing.T) {
	tests := []struct {
		name        string
		overview    any
		wantStatus  string
		wantSummary []any
	}{
		{"absent", nil, StatusInitial, []any{}},
		{"scalar summary", map[string]any{"summary": "short"}, StatusInitial, []any{"short"}},
		{"empty summary", map[string]any{"summary": ""}, StatusInitial, []any{}},
		{"numeric summary", map[string]any{"summary": 3.0}, StatusInitial, []any{"3"}},
		{"mixed summary", map[string]any{"summary": []any{"a", 2.0, true}}, StatusInitial, []any{"a", "2", "true"}},
		{"status kept", map[string]any{"status": "documents_uploaded"}, "documents_uploaded", []any{}},
		{"empty status", map[string]any{"status": ""}, StatusInitial, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := map[string]any{}
			if tt.overview != nil {
				candidate["overview"] = tt.overview
			}
			state := Normalize("tender-9", candidate)
			assert.Equal(t, "tender-9", state.ID())
			assert.Equal(t, tt.wantStatus, state.OverviewStatus())
			assert.Equal(t, tt.wantSummary, state.Section(SectionOverview)["summary"])
		})
	}
}

func TestNormalizeForcesOverviewID(t *testing.T) {
	state := Normalize("right", map[string]any{"overview": map[string]any{"id": "wrong"}})
	assert.Equal(t, "right", state.ID())
}

func TestNormalizeDoesNotAliasCandidate(t *testing.T) {
	certs := []any{"ISO 9001"}
	candidate := map[string]any{
		"admission_requirements": map[string]any{"certifications": certs},
		"extension":              map[string]any{"k": "v"},
	}

	state := Normalize("t", candidate)
	state.Section(SectionAdmissionRequirements)["certifications"].([]any)[0] = "changed"
	state.Section("extension")["k"] = "changed"

	assert.Equal(t, "ISO 9001", certs[0])
	assert.Equal(t, "v", candidate["extension"].(map[string]any)["k"])
}

func TestNormalizeJSON(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		state := NormalizeJSON("t", []byte(`{"overview": `))
		assert.Equal(t, "t", state.ID())
		assert.Equal(t, []any{}, state.Section(SectionChecklist)["items"])
	})

	t.Run("round trip", func(t *testing.T) {
		fixedClock(t)
		state := Normalize("t", map[string]any{"risks": map[string]any{"list": []any{"penalties"}}})
		data, err := json.Marshal(state)
		require.NoError(t, err)
		assert.Equal(t, state, NormalizeJSON("t", data))
	})
}

func TestDefaultStateIsFresh(t *testing.T) {
	a := DefaultState("t")
	a.Section(SectionQA)["open_questions"] = []any{"mutated"}

	b := DefaultState("t")
	assert.Equal(t, []any{}, b.Section(SectionQA)["open_questions"])
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		value any
		want  ValueKind
	}{
		{nil, KindNull},
		{true, KindBool},
		{1.5, KindNumber},
		{"s", KindString},
		{[]any{}, KindArray},
		{map[string]any{}, KindObject},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.value), "%v", tt.value)
	}
}

func TestCanonicalize(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}

	assert.Equal(t, []any{"a", "b"}, Canonicalize([]string{"a", "b"}))
	assert.Equal(t, 3.0, Canonicalize(3))
	assert.Equal(t, map[string]any{"name": "bando.pdf", "size": 10.0}, Canonicalize(doc{Name: "bando.pdf", Size: 10}))
	assert.Nil(t, Canonicalize(make(chan int)))
}
