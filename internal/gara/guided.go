package gara

import (
	"fmt"
	"math"
	"strings"
)

// Default question caps for guided Q&A.
const (
	MaxGuidedQuestions   = 6
	MaxGuidedCandidates  = 12
	defaultAnswerSource  = "manual"
	fallbackQuestionText = "Provide the details needed to cover this requirement: "
	fallbackSuggestion   = "Write a short answer covering data, method, resources and timing."
)

// GuidedQuestion asks for the information needed to cover one checklist item.
// Questions are generated on demand and never persisted.
type GuidedQuestion struct {
	ID          string `json:"id"`
	ItemIndex   int    `json:"item_index"`
	Requirement string `json:"requirement"`
	Question    string `json:"question"`
	Suggestion  string `json:"suggestion"`
	Owner       string `json:"owner"`
}

// IndexedItem is a checklist item with its position in checklist.items.
type IndexedItem struct {
	Index int           `json:"item_index"`
	Item  ChecklistItem `json:"item"`
}

var uncoveredStatuses = map[string]bool{
	"":            true,
	"not_covered": true,
	"not covered": true,
	"non_coperto": true,
	"non coperto": true,
}

// IsUncovered reports whether an item status means nobody has covered it yet.
func IsUncovered(status string) bool {
	return uncoveredStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// UncoveredItems returns up to limit uncovered items in checklist order.
// A limit <= 0 means no cap.
func UncoveredItems(state State, limit int) []IndexedItem {
	var out []IndexedItem
	for i, item := range ChecklistItems(state) {
		if !IsUncovered(item.Status) {
			continue
		}
		out = append(out, IndexedItem{Index: i, Item: item})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// FallbackGuidedQuestions asks one generic question for each of the first
// limit uncovered items. A limit of zero or less uses MaxGuidedQuestions.
func FallbackGuidedQuestions(state State, limit int) []GuidedQuestion {
	if limit <= 0 {
		limit = MaxGuidedQuestions
	}
	uncovered := UncoveredItems(state, limit)
	questions := make([]GuidedQuestion, 0, len(uncovered))
	for n, u := range uncovered {
		req := firstNonEmpty(u.Item.Requirement, fmt.Sprintf("Requirement %d", n+1))
		questions = append(questions, GuidedQuestion{
			ID:          fmt.Sprintf("qa_%d", n+1),
			ItemIndex:   u.Index,
			Requirement: req,
			Question:    fallbackQuestionText + req,
			Suggestion:  fallbackSuggestion,
			Owner:       firstNonEmpty(u.Item.Owner, DefaultOwner),
		})
	}
	return questions
}

// DedupeGuidedQuestions turns generator output into questions: rows without
// an integral item_index or without question text are dropped, the first row
// per item_index wins and at most limit questions are kept.
func DedupeGuidedQuestions(raw []any, limit int) []GuidedQuestion {
	seen := make(map[int]bool)
	var out []GuidedQuestion
	for _, row := range raw {
		m := asObject(row)
		if m == nil {
			continue
		}
		idx, ok := integral(m["item_index"])
		if !ok || seen[idx] {
			continue
		}
		question := strings.TrimSpace(stringOr(m["question"], ""))
		if question == "" {
			continue
		}
		seen[idx] = true

		n := len(out) + 1
		out = append(out, GuidedQuestion{
			ID:          firstNonEmpty(strings.TrimSpace(stringOr(m["id"], "")), fmt.Sprintf("qa_%d", n)),
			ItemIndex:   idx,
			Requirement: stringOr(m["requirement"], ""),
			Question:    question,
			Suggestion:  stringOr(m["suggestion"], ""),
			Owner:       firstNonEmpty(stringOr(m["owner"], ""), DefaultOwner),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func integral(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, false
	}
	return int(f), true
}

// AutofillQuestion builds the question used to draft an answer for the item
// at index.
func AutofillQuestion(state State, index int) (GuidedQuestion, error) {
	items := ChecklistItems(state)
	if index < 0 || index >= len(items) {
		return GuidedQuestion{}, fmt.Errorf("autofill item %d: %w", index, ErrNotFound)
	}
	item := items[index]
	req := firstNonEmpty(item.Requirement, fmt.Sprintf("Requirement %d", index+1))
	return GuidedQuestion{
		ID:          fmt.Sprintf("qa_auto_%d", index),
		ItemIndex:   index,
		Requirement: req,
		Question:    "Propose a draft covering: " + req,
		Owner:       firstNonEmpty(item.Owner, DefaultOwner),
	}, nil
}

// AnswerMeta describes where an answer came from and whether the company
// data behind it was sufficient.
type AnswerMeta struct {
	Source         string   `json:"source"`
	DataSufficient bool     `json:"data_sufficient"`
	Gaps           []string `json:"gaps"`
	Attachments    []string `json:"attachments,omitempty"`
}

// ApplyGuidedAnswer folds an answer into the checklist and the Q&A log.
//
// When the question's index is valid and the answer is non-empty, the item's
// attachments, evidence, status, coverage outcome and gaps are updated. The
// answer is always logged in qa.official_answers and the open question equal
// to the requirement text is removed. Checklist fields are idempotent; the log
// is not.
func ApplyGuidedAnswer(tenderID string, state State, q GuidedQuestion, answer string, meta AnswerMeta) State {
	base := Normalize(tenderID, state)
	items := ChecklistItems(base)
	answer = strings.TrimSpace(answer)
	source := firstNonEmpty(strings.TrimSpace(meta.Source), defaultAnswerSource)

	if q.ItemIndex >= 0 && q.ItemIndex < len(items) && answer != "" {
		item := items[q.ItemIndex]
		item.Attachments = unionFiles(item.Attachments, meta.Attachments)
		item.Evidence = EvidenceWithAttachments(answer, item.Attachments)
		if meta.DataSufficient {
			item.Status = StatusToApprove
			item.Coverage = "ok_" + source
			item.Gaps = []string{}
		} else {
			item.Status = StatusNotCovered
			item.Coverage = CoverageNoData
			item.Gaps = append([]string{}, meta.Gaps...)
		}
		items[q.ItemIndex] = item
	}

	requirement := strings.TrimSpace(q.Requirement)
	question := strings.TrimSpace(q.Question)
	qa := base.copySection(SectionQA)

	var open []any
	for _, entry := range asArray(qa["open_questions"]) {
		if strings.TrimSpace(scalarText(entry)) != requirement {
			open = append(open, entry)
		}
	}
	qa["open_questions"] = nonNil(open)

	answers := append([]any{}, asArray(qa["official_answers"])...)
	if answer != "" {
		answers = append(answers, firstNonEmpty(question, requirement)+": "+answer)
	}
	qa["official_answers"] = answers

	withChecklist := ApplyChecklist(tenderID, base, items)
	return Normalize(tenderID, withChecklist.with(SectionQA, qa))
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
