package gara

// TenderSummary is the list view of a tender.
type TenderSummary struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	LastUpdated string `json:"last_updated"`
	TotalItems  int    `json:"total_items"`
	Completed   int    `json:"completed"`
}

// SummaryOf reads the list view out of a stored state. The state is not
// re-normalized, so last_updated is the stored value.
func SummaryOf(tenderID string, state State) TenderSummary {
	items := ChecklistItems(state)
	done := 0
	for _, item := range items {
		if item.Progress == ProgressDone {
			done++
		}
	}
	return TenderSummary{
		ID:          tenderID,
		Status:      state.OverviewStatus(),
		LastUpdated: state.LastUpdated(),
		TotalItems:  len(items),
		Completed:   done,
	}
}
