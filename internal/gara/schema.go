// Package gara holds the tender state model: schema normalization, requirement
// extraction, the operative checklist and the mutations applied to it.
//
// Every exported operation takes a state snapshot and returns a new one. Nothing
// in this package performs I/O or keeps state between calls.
package gara

import "time"

// State is a tender's structured state: a JSON object tree keyed by section.
// Values are always in the encoding/json value space (see Canonicalize).
type State map[string]any

// Top-level sections every normalized state carries.
const (
	SectionOverview               = "overview"
	SectionRegistry               = "registry"
	SectionTimeline               = "timeline"
	SectionDocuments              = "documents"
	SectionAdmissionRequirements  = "admission_requirements"
	SectionEvaluativeRequirements = "evaluative_requirements"
	SectionCompliance             = "compliance_checklist"
	SectionTeamCV                 = "team_cv"
	SectionRTI                    = "rti_subcontracting"
	SectionEconomicTerms          = "economic_terms"
	SectionRisks                  = "risks"
	SectionQA                     = "qa"
	SectionOperativeActions       = "operative_actions"
	SectionFinalOutput            = "final_output"
	SectionChecklist              = "checklist"
)

// RequiredSections lists the template's top-level sections in display order.
var RequiredSections = []string{
	SectionOverview,
	SectionRegistry,
	SectionTimeline,
	SectionDocuments,
	SectionAdmissionRequirements,
	SectionEvaluativeRequirements,
	SectionCompliance,
	SectionTeamCV,
	SectionRTI,
	SectionEconomicTerms,
	SectionRisks,
	SectionQA,
	SectionOperativeActions,
	SectionFinalOutput,
	SectionChecklist,
}

const (
	// SchemaVersion is the semantic version of the state layout produced by
	// Normalize. Stored states tagged with an older version are re-normalized
	// on load.
	SchemaVersion = "v1.1.0"

	// ChecklistFormat tags the column layout of checklist.items.
	ChecklistFormat = "requisito_fonte_tipo_owner_stato_evidenza"

	// StatusInitial is the overview status of a tender nobody has worked on.
	StatusInitial = "initial"

	// StatusDocumentsUploaded marks a tender whose documents arrived before
	// any extraction ran.
	StatusDocumentsUploaded = "documents_uploaded"
)

// now is swapped by tests that need stable timestamps.
var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}

// DefaultState builds the canonical template for a tender. A fresh tree is
// built on every call so callers may mutate the result freely.
func DefaultState(tenderID string) State {
	ts := timestamp()
	return State{
		SectionOverview: map[string]any{
			"id":           tenderID,
			"status":       StatusInitial,
			"last_updated": ts,
			"summary":      []any{},
		},
		SectionRegistry: map[string]any{
			"id":                    tenderID,
			"cig":                   "",
			"cup":                   "",
			"contracting_authority": "",
			"procedure":             "",
			"award_criterion":       "",
			"base_amount":           "",
			"safety_costs":          "",
			"status":                StatusInitial,
			"last_updated":          ts,
		},
		SectionTimeline: map[string]any{
			"publication_date":   "",
			"questions_deadline": "",
			"site_visit":         "",
			"offer_deadline":     "",
			"first_session":      "",
			"clarifications":     []any{},
		},
		SectionDocuments: map[string]any{
			"list":      []any{},
			"revisions": []any{},
			"missing":   []any{},
		},
		SectionAdmissionRequirements: map[string]any{
			"economic_financial":     []any{},
			"technical_professional": []any{},
			"certifications":         []any{},
			"minimum_thresholds":     []any{},
		},
		SectionEvaluativeRequirements: map[string]any{
			"criteria":                    []any{},
			"sub_criteria":                []any{},
			"disqualification_thresholds": []any{},
		},
		SectionCompliance: map[string]any{
			"total_items": float64(0),
			"completed":   float64(0),
			"missing":     float64(0),
			"details":     []any{},
		},
		SectionTeamCV: map[string]any{
			"mandatory_roles": []any{},
			"assigned_cvs":    []any{},
			"gaps":            []any{},
		},
		SectionRTI: map[string]any{
			"planned":      "",
			"shares":       []any{},
			"limits":       []any{},
			"declarations": []any{},
			"notes":        []any{},
		},
		SectionEconomicTerms: map[string]any{
			"price_score_formula":    "",
			"max_discount":           "",
			"non_discountable_costs": "",
			"constraints":            []any{},
		},
		SectionRisks: map[string]any{
			"list":        []any{},
			"severity":    []any{},
			"mitigations": []any{},
		},
		SectionQA: map[string]any{
			"open_questions":   []any{},
			"official_answers": []any{},
			"impacts":          []any{},
		},
		SectionOperativeActions: map[string]any{
			"tasks": []any{},
		},
		SectionFinalOutput: map[string]any{
			"offer_sections":    []any{},
			"ready_attachments": []any{},
			"residual_gaps":     []any{},
			"readiness_status":  "",
		},
		SectionChecklist: map[string]any{
			"format":       ChecklistFormat,
			"items":        []any{},
			"last_updated": "",
		},
	}
}

// Section returns a top-level object section, or nil when it is absent or
// not an object.
func (s State) Section(name string) map[string]any {
	return asObject(s[name])
}

// ID returns overview.id.
func (s State) ID() string {
	return stringOr(s.Section(SectionOverview)["id"], "")
}

// LastUpdated returns overview.last_updated.
func (s State) LastUpdated() string {
	return stringOr(s.Section(SectionOverview)["last_updated"], "")
}

// OverviewStatus returns overview.status.
func (s State) OverviewStatus() string {
	return stringOr(s.Section(SectionOverview)["status"], "")
}

// Clone deep-copies the state.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	return State(clone(map[string]any(s)).(map[string]any))
}

// with returns a shallow copy of s with section replaced.
func (s State) with(section string, value any) State {
	out := make(State, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[section] = value
	return out
}

// copySection returns a shallow copy of a top-level object section.
func (s State) copySection(name string) map[string]any {
	src := s.Section(name)
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
