package gara

// MaxFallbackDocuments is the default cap on the per-document rows of
// FallbackChecklist.
const MaxFallbackDocuments = 12

// FallbackChecklist builds a checklist without any text generator. Known
// requirements win; otherwise one row per document (documents.list first,
// then docs, at most Sanitizer.FallbackDocuments); otherwise a single
// placeholder.
// The result is never empty.
func FallbackChecklist(state State, docs []Document) []ChecklistItem {
	return Sanitizer{}.FallbackChecklist(state, docs)
}

// FallbackChecklist filters the fallback rows through s instead of the
// default denylist.
func (s Sanitizer) FallbackChecklist(state State, docs []Document) []ChecklistItem {
	known := ExtractKnownRequirements(state)
	if len(known) > 0 {
		seed := make([]ChecklistItem, 0, len(known))
		for _, k := range known {
			seed = append(seed, ChecklistItem{
				Requirement: k.Text,
				Source:      k.Source,
				Kind:        k.Kind,
				Owner:       DefaultOwner,
				Status:      StatusNotCovered,
			})
		}
		return s.Sanitize(seed, state)
	}

	limit := s.FallbackDocuments
	if limit <= 0 {
		limit = MaxFallbackDocuments
	}
	names := documentNames(state, docs)
	if len(names) > limit {
		names = names[:limit]
	}
	rows := make([]ChecklistItem, 0, len(names))
	for _, name := range names {
		rows = append(rows, ChecklistItem{
			Requirement: "Verify contents of document: " + name,
			Source:      name + " (page to be confirmed)",
			Kind:        RequirementMandatory,
			Owner:       DefaultOwner,
			Status:      StatusNotCovered,
		}.Normalize())
	}
	if len(rows) > 0 {
		return rows
	}

	return []ChecklistItem{ChecklistItem{
		Requirement: "Verify main tender requirements",
		Source:      "Tender documentation",
		Kind:        RequirementMandatory,
		Owner:       DefaultOwner,
		Status:      StatusNotCovered,
	}.Normalize()}
}
