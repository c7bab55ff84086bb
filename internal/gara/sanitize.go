package gara

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun   = regexp.MustCompile(`[\s\p{Z}]+`)
	nonWordChars    = regexp.MustCompile(`[^\p{L}\p{N} ]`)
	defaultDenylist = MustDenylist(DefaultDenylistPatterns())
)

// CanonicalKey is the dedup key of a requirement text: lower-cased,
// whitespace runs collapsed to one space (Unicode spaces such as U+00A0
// included), everything but letters, digits and spaces stripped, then
// trimmed.
func CanonicalKey(text string) string {
	key := strings.ToLower(text)
	key = whitespaceRun.ReplaceAllString(key, " ")
	key = nonWordChars.ReplaceAllString(key, "")
	return strings.TrimSpace(key)
}

// DefaultDenylistPatterns returns the generator artifacts filtered out of
// checklists unless configuration replaces them. Patterns are matched
// case-insensitively against the trimmed requirement text.
func DefaultDenylistPatterns() []string {
	return []string{
		`user message`,
		`\bdraft\b`,
		`\btodo\b`,
		`\btasks?\b`,
		`^verify (the )?(document contents|contents of document)`,
		`messaggio utente`,
		`\bbozza\b`,
		`^verifica contenuti documento`,
	}
}

// Denylist rejects requirement texts that look like generator noise.
type Denylist struct {
	patterns []*regexp.Regexp
}

// NewDenylist compiles patterns case-insensitively. An empty list yields a
// denylist that matches nothing.
func NewDenylist(patterns []string) (*Denylist, error) {
	d := &Denylist{}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid denylist pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// MustDenylist is like NewDenylist but panics on a bad pattern.
func MustDenylist(patterns []string) *Denylist {
	d, err := NewDenylist(patterns)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultDenylist returns the denylist built from DefaultDenylistPatterns.
func DefaultDenylist() *Denylist {
	return defaultDenylist
}

// Match reports whether text hits any pattern.
func (d *Denylist) Match(text string) bool {
	if d == nil {
		return false
	}
	for _, re := range d.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DropReason explains why Sanitize discarded a candidate row.
type DropReason string

const (
	DropEmpty         DropReason = "empty"
	DropDenylisted    DropReason = "denylisted"
	DropDuplicate     DropReason = "duplicate"
	DropOutOfUniverse DropReason = "out_of_universe"
)

// Sanitizer reconciles candidate checklist rows with the requirements known
// from the structured sections of a state.
type Sanitizer struct {
	// Denylist filters generator artifacts. Nil uses DefaultDenylist.
	Denylist *Denylist
	// OnDrop, when set, is called for every discarded row.
	OnDrop func(reason DropReason, requirement string)
	// FallbackDocuments caps the per-document rows of FallbackChecklist.
	// Zero uses MaxFallbackDocuments.
	FallbackDocuments int
}

// Sanitize uses the default denylist.
func Sanitize(items []ChecklistItem, state State) []ChecklistItem {
	return Sanitizer{}.Sanitize(items, state)
}

// Sanitize keeps the first row per canonical key, drops empty and
// denylisted rows and, when the state has known requirements, drops rows
// outside that universe. Survivors get missing source, kind, owner and status
// backfilled. Universe entries nobody covered are appended afterwards, so
// every known requirement has exactly one row.
func (s Sanitizer) Sanitize(items []ChecklistItem, state State) []ChecklistItem {
	deny := s.Denylist
	if deny == nil {
		deny = DefaultDenylist()
	}

	universe, order := requirementUniverse(state)
	seen := make(map[string]bool, len(items))
	out := make([]ChecklistItem, 0, len(items)+len(order))

	for _, candidate := range items {
		item := candidate.Normalize()
		req := strings.TrimSpace(item.Requirement)
		if req == "" {
			s.drop(DropEmpty, item.Requirement)
			continue
		}
		if deny.Match(req) {
			s.drop(DropDenylisted, req)
			continue
		}
		key := CanonicalKey(req)
		if key == "" {
			s.drop(DropEmpty, req)
			continue
		}
		if seen[key] {
			s.drop(DropDuplicate, req)
			continue
		}
		known, inUniverse := universe[key]
		if len(universe) > 0 && !inUniverse {
			s.drop(DropOutOfUniverse, req)
			continue
		}

		if item.Source == "" {
			item.Source = firstNonEmpty(known.Source, DefaultSource)
		}
		if item.Kind == "" {
			item.Kind = firstNonEmpty(known.Kind, RequirementMandatory)
		}
		if item.Owner == "" {
			item.Owner = DefaultOwner
		}
		if item.Status == "" {
			item.Status = StatusNotCovered
		}
		out = append(out, item)
		seen[key] = true
	}

	for _, key := range order {
		if seen[key] {
			continue
		}
		known := universe[key]
		out = append(out, ChecklistItem{
			Requirement: known.Text,
			Source:      firstNonEmpty(known.Source, DefaultSource),
			Kind:        firstNonEmpty(known.Kind, RequirementMandatory),
			Owner:       DefaultOwner,
			Status:      StatusNotCovered,
		}.Normalize())
		seen[key] = true
	}
	return out
}

func (s Sanitizer) drop(reason DropReason, requirement string) {
	if s.OnDrop != nil {
		s.OnDrop(reason, requirement)
	}
}

// requirementUniverse indexes known requirements by canonical key, keeping
// the first row per key and its first-seen order.
func requirementUniverse(state State) (map[string]KnownRequirement, []string) {
	universe := make(map[string]KnownRequirement)
	var order []string
	for _, row := range ExtractKnownRequirements(state) {
		key := CanonicalKey(row.Text)
		if key == "" {
			continue
		}
		if _, dup := universe[key]; dup {
			continue
		}
		universe[key] = row
		order = append(order, key)
	}
	return universe, order
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
