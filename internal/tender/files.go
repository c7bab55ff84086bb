package tender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

const defaultPreviewChars = 4000

// FileStore keeps uploaded payloads. Only their names reach tender state.
type FileStore interface {
	Put(ctx context.Context, tenantID, tenderID, name string, data []byte) error
}

// TempUploadDir places uploads under the system temp directory.
func TempUploadDir(tenantID, tenderID string) string {
	return filepath.Join(os.TempDir(), "gare", "uploads", tenantID, tenderID)
}

// DirStore writes payloads to a per-tender directory.
type DirStore struct {
	dir func(tenantID, tenderID string) string
}

// NewDirStore creates a store rooted wherever dir points for a tender.
func NewDirStore(dir func(tenantID, tenderID string) string) *DirStore {
	return &DirStore{dir: dir}
}

// Put writes data as name. Names are expected to be sanitized already.
func (d *DirStore) Put(ctx context.Context, tenantID, tenderID, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := d.dir(tenantID, tenderID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), data, 0644); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

var htmlConverter = func() *md.Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return c
}()

// Preview extracts a text preview of at most limit runes. Text-like files
// are used as is and HTML is converted to Markdown. Binary formats get no
// preview.
func Preview(name, contentType string, data []byte, limit int) string {
	t := strings.ToLower(contentType)
	n := strings.ToLower(name)

	var text string
	switch {
	case strings.Contains(t, "html") || strings.HasSuffix(n, ".html") || strings.HasSuffix(n, ".htm"):
		converted, err := htmlConverter.ConvertString(string(data))
		if err != nil {
			return ""
		}
		text = converted
	case strings.HasPrefix(t, "text/") || strings.Contains(t, "json"),
		strings.HasSuffix(n, ".txt"), strings.HasSuffix(n, ".csv"),
		strings.HasSuffix(n, ".md"), strings.HasSuffix(n, ".xml"):
		if !utf8.Valid(data) {
			return ""
		}
		text = string(data)
	default:
		return ""
	}

	text = strings.TrimSpace(text)
	if limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}
	return text
}
