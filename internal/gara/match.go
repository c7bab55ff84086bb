package gara

import "strings"

// MatchStatus is how well company evidence covers a requirement.
type MatchStatus string

const (
	MatchCovered    MatchStatus = "covered"
	MatchPartial    MatchStatus = "partial"
	MatchNotCovered MatchStatus = "not_covered"
)

// IsValid checks if the match status is valid
func (m MatchStatus) IsValid() bool {
	switch m {
	case MatchCovered, MatchPartial, MatchNotCovered:
		return true
	}
	return false
}

// MatchResult is the match outcome for one checklist item.
type MatchResult struct {
	Requirement    string      `json:"requirement"`
	ItemIndex      int         `json:"item_index"`
	Status         MatchStatus `json:"match_status"`
	Confidence     float64     `json:"confidence"`
	EvidenceSource string      `json:"evidence_source"`
	EvidenceText   string      `json:"evidence_text"`
	GapNote        string      `json:"gap_note"`
}

// MatchSummary counts match outcomes.
type MatchSummary struct {
	Total     int `json:"total"`
	Covered   int `json:"covered"`
	Partial   int `json:"partial"`
	Uncovered int `json:"uncovered"`
}

// Summarize counts results by status.
func Summarize(results []MatchResult) MatchSummary {
	s := MatchSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case MatchCovered:
			s.Covered++
		case MatchPartial:
			s.Partial++
		default:
			s.Uncovered++
		}
	}
	return s
}

// UnmatchedResults reports every item as not covered with the same note.
// It is the answer when matching cannot run at all.
func UnmatchedResults(items []ChecklistItem, note string) []MatchResult {
	out := make([]MatchResult, len(items))
	for i, item := range items {
		out[i] = MatchResult{
			Requirement: item.Requirement,
			ItemIndex:   i,
			Status:      MatchNotCovered,
			GapNote:     note,
		}
	}
	return out
}

// MatchResults builds one result per item from generator rows keyed by
// item_index. Missing or malformed rows report not_covered with zero
// confidence. The second return value holds only the rows that were present.
func MatchResults(items []ChecklistItem, raw []any) ([]MatchResult, map[int]MatchResult) {
	present := make(map[int]MatchResult)
	for _, row := range raw {
		m := asObject(row)
		if m == nil {
			continue
		}
		idx, ok := integral(m["item_index"])
		if !ok || idx >= len(items) {
			continue
		}
		status := MatchStatus(strings.ToLower(stringOr(m["match_status"], "")))
		if !status.IsValid() {
			status = MatchNotCovered
		}
		confidence, _ := m["confidence"].(float64)
		present[idx] = MatchResult{
			Requirement:    items[idx].Requirement,
			ItemIndex:      idx,
			Status:         status,
			Confidence:     clamp01(confidence),
			EvidenceSource: stringOr(m["evidence_source"], ""),
			EvidenceText:   stringOr(m["evidence_text"], ""),
			GapNote:        stringOr(m["gap_note"], ""),
		}
	}

	results := make([]MatchResult, len(items))
	for i, item := range items {
		if r, ok := present[i]; ok {
			results[i] = r
			continue
		}
		results[i] = MatchResult{Requirement: item.Requirement, ItemIndex: i, Status: MatchNotCovered}
	}
	return results, present
}

// ApplyMatches folds match rows into the checklist. Items without a row keep
// their fields unchanged.
func ApplyMatches(tenderID string, state State, matches map[int]MatchResult) State {
	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	for i, item := range items {
		m, ok := matches[i]
		if !ok {
			continue
		}
		switch m.Status {
		case MatchCovered:
			item.Status = StatusToApprove
			item.Coverage = CoverageMatch
		case MatchPartial:
			item.Status = StatusPartial
			item.Coverage = CoveragePartial
		default:
			item.Status = StatusNotCovered
			item.Coverage = CoverageNotCovered
		}
		if m.EvidenceText != "" {
			item.Evidence = m.EvidenceText
		}
		item.Gaps = []string{}
		if m.GapNote != "" {
			item.Gaps = []string{m.GapNote}
		}
		items[i] = item
	}
	return ApplyChecklist(tenderID, base, items)
}
