// Package inbox registers tender documents dropped into a local directory.
package inbox

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gareflow/gareflow/internal/tender"
)

// DefaultPattern matches the document formats tenders usually ship in.
const DefaultPattern = "**/*.{pdf,docx,doc,txt,md,html,htm}"

// Uploader receives document batches. *tender.Service satisfies it.
type Uploader interface {
	UploadDocuments(ctx context.Context, tenantID, tenderID string, uploads []tender.Upload) (tender.UploadResult, error)
}

// Collect returns the regular files under dir matching pattern, sorted.
// The pattern is a doublestar glob relative to dir.
func Collect(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox is not a directory: %s", dir)
	}

	root := filepath.Clean(dir)
	matches, err := doublestar.FilepathGlob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if hidden(root, match) {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)
	return files, nil
}

// hidden reports whether any element of path below root starts with a dot.
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// ReadUpload loads a file as an upload named after its base name.
func ReadUpload(path string) (tender.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tender.Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return tender.Upload{
		Name: name,
		Type: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Data: data,
	}, nil
}

// Import uploads every file under dir matching pattern in one batch.
func Import(ctx context.Context, up Uploader, tenantID, tenderID, dir, pattern string) (tender.UploadResult, error) {
	files, err := Collect(dir, pattern)
	if err != nil {
		return tender.UploadResult{}, err
	}
	if len(files) == 0 {
		return tender.UploadResult{}, fmt.Errorf("no documents in %s match %s", dir, pattern)
	}

	uploads := make([]tender.Upload, 0, len(files))
	for _, path := range files {
		u, err := ReadUpload(path)
		if err != nil {
			return tender.UploadResult{}, err
		}
		uploads = append(uploads, u)
	}
	return up.UploadDocuments(ctx, tenantID, tenderID, uploads)
}
