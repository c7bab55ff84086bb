package gara

import "encoding/json"

// Normalize merges candidate onto the template for tenderID.
//
// Arrays in the template take the candidate's array wholesale, or [] when the
// candidate has anything else there. Objects recurse key by key and copy
// template-absent candidate keys through untouched. Leaves take the
// candidate's value when it is non-null. A candidate that is not an object
// (nil, array, scalar) is treated as {}.
//
// overview.id is forced to tenderID, overview.last_updated is refreshed and
// overview.summary is coerced to a list of strings.
func Normalize(tenderID string, candidate any) State {
	template := DefaultState(tenderID)
	src := asObject(Canonicalize(candidate))
	if src == nil {
		src = map[string]any{}
	}

	merged := asObject(mergeValue(map[string]any(template), src))
	state := State(merged)
	fixOverview(tenderID, state)
	return state
}

// NormalizeJSON decodes data and normalizes it. Malformed input yields the
// template.
func NormalizeJSON(tenderID string, data []byte) State {
	var candidate any
	if err := json.Unmarshal(data, &candidate); err != nil {
		candidate = nil
	}
	return Normalize(tenderID, candidate)
}

// mergeValue dispatches on the template's kind. Both arguments must be
// canonical JSON values; candidate is never aliased in the result.
func mergeValue(template, candidate any) any {
	switch KindOf(template) {
	case KindArray:
		if arr, ok := candidate.([]any); ok {
			return clone(arr)
		}
		return []any{}

	case KindObject:
		tmpl := template.(map[string]any)
		src, _ := candidate.(map[string]any)
		out := make(map[string]any, len(tmpl)+len(src))
		for key, child := range tmpl {
			out[key] = mergeValue(child, src[key])
		}
		for key, value := range src {
			if _, known := tmpl[key]; !known {
				out[key] = clone(value)
			}
		}
		return out

	default:
		if candidate == nil {
			return template
		}
		return clone(candidate)
	}
}

func fixOverview(tenderID string, state State) {
	overview := asObject(state[SectionOverview])
	if overview == nil {
		overview = map[string]any{}
		state[SectionOverview] = overview
	}

	overview["id"] = tenderID
	overview["last_updated"] = timestamp()
	if s, ok := overview["status"].(string); ok && s == "" {
		overview["status"] = StatusInitial
	} else if overview["status"] == nil {
		overview["status"] = StatusInitial
	}
	overview["summary"] = coerceSummary(overview["summary"])
}

func coerceSummary(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		return toAnySlice(stringList(t))
	case string:
		if t == "" {
			return []any{}
		}
		return []any{t}
	case bool:
		if !t {
			return []any{}
		}
		return []any{"true"}
	default:
		return []any{scalarText(t)}
	}
}
