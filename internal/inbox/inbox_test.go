package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gareflow/gareflow/internal/storage"
	"github.com/gareflow/gareflow/internal/tender"
)

type recordingUploader struct {
	mu      sync.Mutex
	batches [][]tender.Upload
	err     error
}

func (r *recordingUploader) UploadDocuments(_ context.Context, _, tenderID string, uploads []tender.Upload) (tender.UploadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, uploads)
	if r.err != nil {
		return tender.UploadResult{}, r.err
	}
	return tender.UploadResult{Result: tender.Result{TenderID: tenderID}}, nil
}

func (r *recordingUploader) names() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, batch := range r.batches {
		var names []string
		for _, u := range batch {
			names = append(names, u.Name)
		}
		out = append(out, names)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bando.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "allegati", "capitolato.docx"), "docx")
	writeFile(t, filepath.Join(dir, "allegati", "note.html"), "<p>note</p>")
	writeFile(t, filepath.Join(dir, "immagine.png"), "png")
	writeFile(t, filepath.Join(dir, ".cache", "old.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, ".bozza.txt"), "draft")

	files, err := Collect(dir, DefaultPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "allegati", "capitolato.docx"),
		filepath.Join(dir, "allegati", "note.html"),
		filepath.Join(dir, "bando.pdf"),
	}, files)

	files, err = Collect(dir, "*.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "bando.pdf")}, files)
}

func TestCollectErrors(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x")
	_, err = Collect(file, "")
	assert.ErrorContains(t, err, "not a directory")

	_, err = Collect(t.TempDir(), "[")
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestReadUploadSetsContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Pagina.HTML")
	writeFile(t, path, "<h1>Bando</h1>")

	up, err := ReadUpload(path)
	require.NoError(t, err)
	assert.Equal(t, "Pagina.HTML", up.Name)
	assert.Contains(t, up.Type, "text/html")
	assert.Equal(t, []byte("<h1>Bando</h1>"), up.Data)
}

func TestImportSendsOneBatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")

	up := &recordingUploader{}
	res, err := Import(context.Background(), up, "acme", "g1", dir, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, "g1", res.TenderID)
	assert.Equal(t, [][]string{{"a.txt", "b.txt"}}, up.names())
}

func TestImportNothingMatches(t *testing.T) {
	up := &recordingUploader{}
	_, err := Import(context.Background(), up, "acme", "g1", t.TempDir(), "*.pdf")
	assert.ErrorContains(t, err, "no documents")
	assert.Empty(t, up.names())
}

func TestImportIntoService(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewStorage(ctx, &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uploads := t.TempDir()
	svc := tender.NewService(store, nil, tender.WithFileStore(tender.NewDirStore(func(tenantID, tenderID string) string {
		return filepath.Join(uploads, tenantID, tenderID)
	})))

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "disciplinare.html"), "<h2>Requisiti</h2><p>Fatturato</p>")

	res, err := Import(ctx, svc, "acme", "g1", dir, DefaultPattern)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Contains(t, res.Documents[0].Preview, "## Requisiti")

	docs, err := svc.Documents(ctx, "acme", "g1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func startWatcher(t *testing.T, dir string, up Uploader) *Watcher {
	t.Helper()
	w, err := NewWatcher(WatchConfig{
		TenantID: "acme",
		TenderID: "g1",
		Dir:      dir,
		Pattern:  "**/*.txt",
		Debounce: 20 * time.Millisecond,
	}, up, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func TestWatcherUploadsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.txt"), "already here")

	up := &recordingUploader{}
	w := startWatcher(t, dir, up)

	writeFile(t, filepath.Join(dir, "nuovo.txt"), "new content")
	writeFile(t, filepath.Join(dir, "ignored.png"), "png")

	select {
	case batch := <-w.Batches():
		require.NoError(t, batch.Err)
		assert.Equal(t, []string{filepath.Join(dir, "nuovo.txt")}, batch.Files)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch uploaded")
	}
	assert.Equal(t, [][]string{{"nuovo.txt"}}, up.names())
}

func TestWatcherSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	writeFile(t, path, "same")

	up := &recordingUploader{}
	w := startWatcher(t, dir, up)

	// Rewriting identical bytes is not a change.
	writeFile(t, path, "same")
	writeFile(t, path, "changed")

	select {
	case batch := <-w.Batches():
		assert.Equal(t, []string{path}, batch.Files)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch uploaded")
	}
	require.Len(t, up.names(), 1)
}

func TestWatcherReportsUploadErrors(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{err: errors.New("store unavailable")}
	w := startWatcher(t, dir, up)

	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	select {
	case batch := <-w.Batches():
		assert.ErrorContains(t, batch.Err, "store unavailable")
	case <-time.After(5 * time.Second):
		t.Fatal("no batch reported")
	}
}

func TestWatcherWatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w := startWatcher(t, dir, up)

	sub := filepath.Join(dir, "lotto1")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher time to register the new directory.
	require.Eventually(t, func() bool {
		return len(w.watcher.WatchList()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(sub, "offerta.txt"), "offerta")

	select {
	case batch := <-w.Batches():
		assert.Equal(t, []string{filepath.Join(sub, "offerta.txt")}, batch.Files)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch uploaded")
	}
}
