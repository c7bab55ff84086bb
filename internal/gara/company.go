package gara

import "strings"

// Gap note recorded when a draft answer had no company data to draw on.
const GapNoCompanyProfile = "Company profile missing or incomplete"

// DefaultCompanyProfile is the empty company profile shape.
func DefaultCompanyProfile() map[string]any {
	return map[string]any{
		"company": map[string]any{
			"name":        "",
			"description": "",
			"revenue":     "",
			"sector":      "",
		},
		"certifications": []any{},
		"references":     []any{},
		"cv":             []any{},
		"procedures":     []any{},
		"evidence":       []any{},
	}
}

// HasUsefulCompanyData reports whether profile holds any non-empty leaf:
// a non-blank string, any number or any boolean.
func HasUsefulCompanyData(profile any) bool {
	return hasUsefulLeaf(Canonicalize(profile))
}

func hasUsefulLeaf(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case float64, bool:
		return true
	case []any:
		for _, e := range t {
			if hasUsefulLeaf(e) {
				return true
			}
		}
	case map[string]any:
		for _, e := range t {
			if hasUsefulLeaf(e) {
				return true
			}
		}
	}
	return false
}

// AutoAnswer is a drafted answer to a guided question.
type AutoAnswer struct {
	Answer         string   `json:"answer"`
	DataSufficient bool     `json:"data_sufficient"`
	Gaps           []string `json:"gaps"`
}

// FallbackAutoAnswer drafts a generic answer without a text generator.
// Sufficiency comes from HasUsefulCompanyData alone.
func FallbackAutoAnswer(q GuidedQuestion, profile any) AutoAnswer {
	req := firstNonEmpty(strings.TrimSpace(q.Requirement), "Requirement")
	answer := AutoAnswer{
		Answer:         `Preliminary draft: coverage of requirement "` + req + `" to be validated internally with documentary evidence.`,
		DataSufficient: HasUsefulCompanyData(profile),
		Gaps:           []string{},
	}
	if !answer.DataSufficient {
		answer.Gaps = []string{GapNoCompanyProfile}
	}
	return answer
}

// CompanyEvidence summarizes a company profile for requirement matching.
// It reports false when the profile has neither a company name nor any
// company document.
func CompanyEvidence(profile any) (map[string]any, bool) {
	p := asObject(Canonicalize(profile))
	if p == nil {
		return nil, false
	}
	company := asObject(p["company"])
	docs := asArray(p["company_documents"])

	var facts []any
	summaries := make([]any, 0, len(docs))
	for _, d := range docs {
		doc := asObject(d)
		if doc == nil {
			continue
		}
		keyFacts := nonNil(asArray(doc["key_facts"]))
		facts = append(facts, keyFacts...)
		summaries = append(summaries, map[string]any{
			"name":      doc["name"],
			"category":  doc["category"],
			"key_facts": keyFacts,
		})
	}

	evidence := map[string]any{
		"profile":        nonNilObject(company),
		"certifications": nonNil(asArray(p["certifications"])),
		"references":     nonNil(asArray(p["references"])),
		"cv":             nonNil(asArray(p["cv"])),
		"documents":      summaries,
		"all_key_facts":  nonNil(facts),
	}
	name, _ := company["name"].(string)
	return evidence, len(summaries) > 0 || strings.TrimSpace(name) != ""
}

func nonNilObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
