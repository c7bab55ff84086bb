package inbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gareflow/gareflow/internal/tender"
)

const defaultDebounce = 500 * time.Millisecond

// Batch is the outcome of one debounced upload.
type Batch struct {
	Files  []string
	Result tender.UploadResult
	Err    error
}

// WatchConfig configures a Watcher.
type WatchConfig struct {
	TenantID string
	TenderID string
	Dir      string
	Pattern  string
	Debounce time.Duration
}

// Watcher uploads new or changed documents in a directory to a tender.
// Changes are collected for Debounce and sent as one batch. Files present
// when the watcher starts are not uploaded.
type Watcher struct {
	cfg     WatchConfig
	up      Uploader
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]struct{}

	// content hash per absolute path, to skip writes that change nothing
	hashes map[string]string

	batches chan Batch
	done    chan struct{}
}

// NewWatcher creates a watcher. Call Start to begin watching.
func NewWatcher(cfg WatchConfig, up Uploader, logger *slog.Logger) (*Watcher, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, errors.New("invalid pattern " + cfg.Pattern)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	cfg.Dir = filepath.Clean(cfg.Dir)
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:     cfg,
		up:      up,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]struct{}),
		hashes:  make(map[string]string),
		batches: make(chan Batch, 16),
		done:    make(chan struct{}),
	}, nil
}

// Batches reports each upload attempt. It is closed when the watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Start adds watches below the directory and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.cfg.Dir); err != nil {
		return err
	}

	existing, err := Collect(w.cfg.Dir, w.cfg.Pattern)
	if err != nil {
		return err
	}
	for _, path := range existing {
		if sum, err := hashFile(path); err == nil {
			w.hashes[path] = sum
		}
	}

	go w.processEvents(ctx)

	w.logger.Info("inbox watcher started",
		"dir", w.cfg.Dir,
		"tender", w.cfg.TenderID,
		"pattern", w.cfg.Pattern,
		"debounce", w.cfg.Debounce)
	return nil
}

// Stop closes the underlying watcher and waits for processing to end. It
// must only be called after Start.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	defer close(w.batches)

	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// matches reports whether path is a visible file the pattern selects.
func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil || hidden(w.cfg.Dir, path) {
		return false
	}
	ok, err := doublestar.Match(w.cfg.Pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(path), ".") {
				if err := w.addWatchesRecursive(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}
	// Removals never shrink the registry.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(path) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()
	w.logger.Debug("document change detected", "path", path, "op", event.Op.String())
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()
	sort.Strings(paths)

	var uploads []tender.Upload
	var files []string
	for _, path := range paths {
		u, err := ReadUpload(path)
		if err != nil {
			// Gone before the flush.
			continue
		}
		if len(u.Data) == 0 {
			// Still being written; a later write event brings it back.
			continue
		}
		sum := hashBytes(u.Data)
		if w.hashes[path] == sum {
			continue
		}
		w.hashes[path] = sum
		uploads = append(uploads, u)
		files = append(files, path)
	}
	if len(uploads) == 0 {
		return
	}

	res, err := w.up.UploadDocuments(ctx, w.cfg.TenantID, w.cfg.TenderID, uploads)
	if err != nil {
		w.logger.Error("inbox upload failed", "tender", w.cfg.TenderID, "files", len(files), "error", err)
		// Retry on the next change.
		for _, path := range files {
			delete(w.hashes, path)
		}
	} else {
		w.logger.Info("inbox documents uploaded", "tender", w.cfg.TenderID, "files", len(files))
	}

	select {
	case w.batches <- Batch{Files: files, Result: res, Err: err}:
	default:
		w.logger.Warn("batch channel full, dropping report", "files", len(files))
	}
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
