package gara

import "strings"

// EvidenceWithAttachments appends an "Attachments: a, b" line to text unless
// that exact line is already there. Blank file names are ignored.
func EvidenceWithAttachments(text string, files []string) string {
	text = strings.TrimSpace(text)
	names := make([]string, 0, len(files))
	for _, f := range files {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		return text
	}

	line := "Attachments: " + strings.Join(names, ", ")
	if strings.Contains(text, line) {
		return text
	}
	if text == "" {
		return line
	}
	return text + "\n" + line
}

// unionFiles merges add into prev keeping first-seen order. Blank names in
// add are skipped.
func unionFiles(prev, add []string) []string {
	out := make([]string, 0, len(prev)+len(add))
	seen := make(map[string]bool, len(prev)+len(add))
	for _, f := range prev {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	for _, f := range add {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
