package gara

// RenderItem is one labelled value of a render section.
type RenderItem struct {
	Label      string   `json:"label"`
	Value      any      `json:"value"`
	SourcePath []string `json:"source_path"`
}

// RenderSection groups the items shown under one heading.
type RenderSection struct {
	Title string       `json:"title"`
	Items []RenderItem `json:"items"`
	Notes []string     `json:"notes"`
}

// RenderModel describes how to display a tender state.
type RenderModel struct {
	Sections []RenderSection `json:"sections"`
}

// FallbackRenderModel renders one section per top-level key in sorted order.
// Object sections list their children; anything else becomes a single item.
func FallbackRenderModel(state State) RenderModel {
	root := map[string]any(state)
	model := RenderModel{Sections: make([]RenderSection, 0, len(root))}
	for _, key := range sortedKeys(root) {
		value := root[key]
		var items []RenderItem
		if obj, ok := value.(map[string]any); ok {
			for _, child := range sortedKeys(obj) {
				items = append(items, RenderItem{Label: child, Value: obj[child], SourcePath: []string{key, child}})
			}
		} else {
			items = append(items, RenderItem{Label: key, Value: value, SourcePath: []string{key}})
		}
		if items == nil {
			items = []RenderItem{}
		}
		model.Sections = append(model.Sections, RenderSection{Title: key, Items: items, Notes: []string{}})
	}
	return model
}
