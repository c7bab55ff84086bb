package gara

import (
	"regexp"
	"strings"
)

const (
	DefaultTenderID = "nuova-gara"
	DefaultFileName = "documento"
	maxFileNameLen  = 180
)

var (
	tenderIDInvalid = regexp.MustCompile(`[^a-z0-9\-_]`)
	dashRun         = regexp.MustCompile(`-+`)
	fileNameInvalid = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
)

// SanitizeTenderID maps arbitrary input onto [a-z0-9-_], collapsing dash runs
// and trimming edge dashes. Empty results become DefaultTenderID.
func SanitizeTenderID(value string) string {
	if value == "" {
		value = DefaultTenderID
	}
	cleaned := tenderIDInvalid.ReplaceAllString(strings.ToLower(value), "-")
	cleaned = strings.Trim(dashRun.ReplaceAllString(cleaned, "-"), "-")
	if cleaned == "" {
		return DefaultTenderID
	}
	return cleaned
}

// SanitizeFileName maps a file name onto [A-Za-z0-9._-], truncated to 180
// bytes.
func SanitizeFileName(name string) string {
	if name == "" {
		name = DefaultFileName
	}
	cleaned := fileNameInvalid.ReplaceAllString(name, "_")
	if len(cleaned) > maxFileNameLen {
		cleaned = cleaned[:maxFileNameLen]
	}
	if cleaned == "" {
		return DefaultFileName
	}
	return cleaned
}
