package gara

import (
	"math"
	"strings"
)

// DocumentCategory classifies an uploaded tender document.
type DocumentCategory string

const (
	CategoryNotice          DocumentCategory = "bando"
	CategoryRules           DocumentCategory = "disciplinare"
	CategorySpecification   DocumentCategory = "capitolato"
	CategoryOfficialForms   DocumentCategory = "moduli_ufficiali"
	CategoryTechnicalAnnex  DocumentCategory = "allegati_tecnici"
	CategoryClarifications  DocumentCategory = "faq_chiarimenti"
	CategoryAddendum        DocumentCategory = "addendum"
	CategoryTechnicalOffer  DocumentCategory = "offerta_tecnica_schema"
	CategoryEconomicOffer   DocumentCategory = "offerta_economica_schema"
	CategoryOther           DocumentCategory = "altro"
)

const (
	// HeuristicConfidence is reported for name-based classifications.
	HeuristicConfidence = 0.55

	ClassificationPending   = "to_confirm"
	ClassificationConfirmed = "confirmed"
)

// DocumentCategories lists every category in display order.
var DocumentCategories = []DocumentCategory{
	CategoryNotice,
	CategoryRules,
	CategorySpecification,
	CategoryOfficialForms,
	CategoryTechnicalAnnex,
	CategoryClarifications,
	CategoryAddendum,
	CategoryTechnicalOffer,
	CategoryEconomicOffer,
	CategoryOther,
}

// IsValid checks if the category is one of DocumentCategories
func (c DocumentCategory) IsValid() bool {
	for _, known := range DocumentCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Document is an uploaded tender document. Only its metadata reaches the
// engine; the payload lives with the document store.
type Document struct {
	Name       string           `json:"name"`
	StoredAs   string           `json:"stored_as"`
	Size       int64            `json:"size"`
	Type       string           `json:"type"`
	Preview    string           `json:"preview,omitempty"`
	Category   DocumentCategory `json:"category"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale"`
	Confirmed  bool             `json:"confirmed"`
}

// GuessCategory classifies a document by keywords in its file name.
func GuessCategory(name string) DocumentCategory {
	n := strings.ToLower(name)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(n, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("bando"):
		return CategoryNotice
	case has("disciplinare"):
		return CategoryRules
	case has("capitolato"):
		return CategorySpecification
	case has("modulo", "allegato a", "dichiarazione"):
		return CategoryOfficialForms
	case has("faq", "chiarimenti"):
		return CategoryClarifications
	case has("addendum", "rettifica"):
		return CategoryAddendum
	case has("offerta") && has("tecnica"):
		return CategoryTechnicalOffer
	case has("offerta") && has("economica"):
		return CategoryEconomicOffer
	case has("tavola", "computo", "allegato tecnico"):
		return CategoryTechnicalAnnex
	default:
		return CategoryOther
	}
}

// ClassifyByName applies GuessCategory to every document. Results are
// unconfirmed.
func ClassifyByName(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		doc.Category = GuessCategory(doc.Name)
		doc.Confidence = HeuristicConfidence
		doc.Rationale = "Heuristic classification by file name."
		doc.Confirmed = false
		out[i] = doc
	}
	return out
}

// Classification is a category proposed for one stored document.
type Classification struct {
	StoredAs   string  `json:"stored_as"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ApplyClassifications folds proposed categories into docs, keyed by
// stored_as. Unknown categories fall back to GuessCategory, confidence is
// clamped to [0,1] and documents without a proposal get the heuristic.
func ApplyClassifications(docs []Document, rows []Classification) []Document {
	byStoredAs := make(map[string]Classification, len(rows))
	for _, row := range rows {
		if _, dup := byStoredAs[row.StoredAs]; !dup {
			byStoredAs[row.StoredAs] = row
		}
	}

	out := make([]Document, len(docs))
	for i, doc := range docs {
		row, ok := byStoredAs[doc.StoredAs]
		category := DocumentCategory(row.Category)
		if !ok || !category.IsValid() {
			category = GuessCategory(doc.Name)
		}
		doc.Category = category
		doc.Confidence = 0.6
		doc.Rationale = "Automatic classification."
		if ok {
			doc.Confidence = clamp01(row.Confidence)
			if row.Rationale != "" {
				doc.Rationale = row.Rationale
			}
		}
		doc.Confirmed = false
		out[i] = doc
	}
	return out
}

// ConfirmDocuments applies category overrides keyed by stored_as and marks
// every document confirmed.
func ConfirmDocuments(docs []Document, overrides map[string]DocumentCategory) []Document {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		if category, ok := overrides[doc.StoredAs]; ok && category.IsValid() {
			doc.Category = category
		}
		if !doc.Category.IsValid() {
			doc.Category = GuessCategory(doc.Name)
		}
		doc.Confirmed = true
		out[i] = doc
	}
	return out
}

// MergeDocuments writes docs into documents.list and records the
// classification status.
func MergeDocuments(tenderID string, state State, docs []Document, classificationStatus string) State {
	base := Normalize(tenderID, state)

	rows := make([]any, 0, len(docs))
	for _, doc := range docs {
		category := doc.Category
		if category == "" {
			category = CategoryOther
		}
		rows = append(rows, map[string]any{
			"name":       doc.Name,
			"stored_as":  doc.StoredAs,
			"file_type":  doc.Type,
			"size":       float64(doc.Size),
			"category":   string(category),
			"confidence": doc.Confidence,
			"rationale":  doc.Rationale,
			"confirmed":  doc.Confirmed,
		})
	}

	documents := base.copySection(SectionDocuments)
	documents["list"] = rows
	documents["classification_status"] = classificationStatus
	return Normalize(tenderID, base.with(SectionDocuments, documents))
}

// documentNames returns display names from documents.list, falling back to
// docs when the state lists none.
func documentNames(state State, docs []Document) []string {
	var names []string
	for _, row := range asArray(state.Section(SectionDocuments)["list"]) {
		switch t := row.(type) {
		case string:
			names = append(names, firstNonEmpty(strings.TrimSpace(t), "document"))
		case map[string]any:
			name, _ := firstString(t, "name", "nome", "filename")
			names = append(names, firstNonEmpty(strings.TrimSpace(name), "document"))
		}
	}
	if len(names) > 0 {
		return names
	}
	for _, doc := range docs {
		names = append(names, firstNonEmpty(strings.TrimSpace(doc.Name), "document"))
	}
	return names
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}
