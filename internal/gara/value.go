package gara

import (
	"encoding/json"
	"math"
	"sort"
)

// ValueKind tags the shape of a decoded JSON value.
//
// State trees are plain encoding/json values (map[string]any, []any, string,
// float64, bool, nil). ValueKind gives the merge code an explicit tag to
// dispatch on instead of scattering type switches.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of a canonical JSON value.
// Non-canonical Go values report KindNull; run them through Canonicalize first.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindNull
	}
}

// Canonicalize converts an arbitrary Go value into the encoding/json value
// space. Canonical values are deep-copied; anything else (typed slices, typed
// maps, structs, ints) is round-tripped through encoding/json. Values that
// cannot be marshaled, and non-finite floats, become nil.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Canonicalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Canonicalize(e)
		}
		return out
	case State:
		return Canonicalize(map[string]any(t))
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return nil
		}
		return decoded
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	return decoded
}

// clone deep-copies a canonical value so results never alias caller input.
func clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	default:
		return t
	}
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return nil
}

// stringOr returns v when it is a string, else fallback.
func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// stringList coerces an array of arbitrary values to strings.
// nil elements become "", scalars are formatted, containers are JSON-encoded.
func stringList(v any) []string {
	arr := asArray(v)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, scalarText(e))
	}
	return out
}

// scalarText renders any JSON value as display text.
func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// firstString returns the first string value found under any of keys.
func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

