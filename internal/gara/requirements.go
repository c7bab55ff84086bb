package gara

import (
	"encoding/json"
	"strings"
)

// Requirement kinds assigned by extraction. Checklist items keep kind as free
// text; these are the values the engine itself produces.
const (
	RequirementMandatory  = "mandatory"
	RequirementEvaluative = "evaluative"
)

// KnownRequirement is one requirement row derived from the structured
// admission and evaluative sections.
type KnownRequirement struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Kind   string `json:"kind"`
}

// RequirementEntry is one element of a requirement array: either free text or
// a key/value pair taken from an object element.
type RequirementEntry interface {
	text() string
}

// TextEntry is a plain string requirement.
type TextEntry string

func (e TextEntry) text() string { return strings.TrimSpace(string(e)) }

// KeyValueEntry is a single key of an object requirement. Value holds the
// string value, or the compact JSON encoding of any other value.
type KeyValueEntry struct {
	Key   string
	Value string
}

func (e KeyValueEntry) text() string {
	return strings.TrimSpace(e.Key + ": " + e.Value)
}

type requirementSource struct {
	section string
	field   string
	kind    string
}

var requirementSources = []requirementSource{
	{SectionAdmissionRequirements, "economic_financial", RequirementMandatory},
	{SectionAdmissionRequirements, "technical_professional", RequirementMandatory},
	{SectionAdmissionRequirements, "certifications", RequirementMandatory},
	{SectionAdmissionRequirements, "minimum_thresholds", RequirementMandatory},
	{SectionEvaluativeRequirements, "criteria", RequirementEvaluative},
	{SectionEvaluativeRequirements, "sub_criteria", RequirementEvaluative},
	{SectionEvaluativeRequirements, "disqualification_thresholds", RequirementEvaluative},
}

// DecodeRequirementEntries turns one array element into entries. Objects yield
// one entry per key in sorted key order; other element kinds yield nothing.
func DecodeRequirementEntries(v any) []RequirementEntry {
	switch t := v.(type) {
	case string:
		return []RequirementEntry{TextEntry(t)}
	case map[string]any:
		entries := make([]RequirementEntry, 0, len(t))
		for _, key := range sortedKeys(t) {
			entries = append(entries, KeyValueEntry{Key: key, Value: entryValue(t[key])})
		}
		return entries
	default:
		return nil
	}
}

func entryValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ExtractKnownRequirements walks the seven structured requirement arrays and
// returns their rows in section order. Blank rows are dropped.
func ExtractKnownRequirements(state State) []KnownRequirement {
	var rows []KnownRequirement
	for _, src := range requirementSources {
		values := asArray(state.Section(src.section)[src.field])
		source := src.section + "." + src.field
		for _, value := range values {
			for _, entry := range DecodeRequirementEntries(value) {
				text := entry.text()
				if text == "" {
					continue
				}
				rows = append(rows, KnownRequirement{Text: text, Source: source, Kind: src.kind})
			}
		}
	}
	return rows
}
