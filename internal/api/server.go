// Package api exposes tender operations over HTTP+JSON.
//
// Authentication is handled upstream. The tenant comes from the X-Tenant-ID
// header and falls back to the configured default.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/metrics"
	"github.com/gareflow/gareflow/internal/tender"
)

const (
	// maxBodySize caps request bodies, uploads included.
	maxBodySize = 32 << 20

	// TenantHeader selects the tenant of a request.
	TenantHeader = "X-Tenant-ID"

	// DefaultTenant is used when neither the header nor the handler sets one.
	DefaultTenant = "default"
)

// Handler serves the tender API.
type Handler struct {
	svc      *tender.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tenant   string
	maxBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics counts requests and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithDefaultTenant sets the tenant used when the header is absent.
func WithDefaultTenant(tenant string) Option {
	return func(h *Handler) {
		if strings.TrimSpace(tenant) != "" {
			h.tenant = strings.TrimSpace(tenant)
		}
	}
}

// WithMaxBodySize overrides the request body limit.
func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc *tender.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		logger:   slog.Default(),
		tenant:   DefaultTenant,
		maxBytes: maxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterHTTPHandlers registers every route on mux.
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tenders", h.handleList)
	mux.HandleFunc("POST /api/tenders", h.handleCreate)
	mux.HandleFunc("GET /api/tenders/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/tenders/{id}", h.handleSave)
	mux.HandleFunc("GET /api/tenders/{id}/conversation", h.handleConversation)
	mux.HandleFunc("POST /api/tenders/{id}/chat", h.handleChat)

	mux.HandleFunc("GET /api/tenders/{id}/documents", h.handleDocuments)
	mux.HandleFunc("POST /api/tenders/{id}/documents", h.handleUpload)
	mux.HandleFunc("POST /api/tenders/{id}/documents/confirm", h.handleConfirm)

	mux.HandleFunc("POST /api/tenders/{id}/checklist", h.handleAddItem)
	mux.HandleFunc("PATCH /api/tenders/{id}/checklist/{index}", h.handleUpdateItem)
	mux.HandleFunc("DELETE /api/tenders/{id}/checklist/{index}", h.handleDeleteItem)
	mux.HandleFunc("PUT /api/tenders/{id}/checklist/{index}/progress", h.handleProgress)
	mux.HandleFunc("POST /api/tenders/{id}/checklist/{index}/attachments", h.handleAttach)

	mux.HandleFunc("POST /api/tenders/{id}/qa/generate", h.handleGenerateQuestions)
	mux.HandleFunc("POST /api/tenders/{id}/qa/answer", h.handleAnswer)
	mux.HandleFunc("POST /api/tenders/{id}/qa/autofill", h.handleAutofill)

	mux.HandleFunc("POST /api/tenders/{id}/match", h.handleMatch)
	mux.HandleFunc("PUT /api/tenders/{id}/team", h.handleAssignCV)
	mux.HandleFunc("GET /api/tenders/{id}/render", h.handleRender)

	mux.HandleFunc("POST /api/analyze", h.handleAnalyze)
	mux.HandleFunc("GET /api/company", h.handleGetCompany)
	mux.HandleFunc("PUT /api/company", h.handleSaveCompany)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// Routes returns a mux with every route registered, wrapped with the body
// limit and request accounting.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterHTTPHandlers(mux)
	return h.instrument(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// The mux records the matched pattern on the request.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		h.metrics.HTTPRequest(route, strconv.Itoa(rec.status))
	})
}

func (h *Handler) tenantOf(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TenantHeader)); t != "" {
		return t
	}
	return h.tenant
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("index %q: %w", raw, gara.ErrInvalidIndex)
	}
	return index, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
}

var errBadRequest = errors.New("bad request")

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, gara.ErrInvalidIndex),
		errors.Is(err, gara.ErrInvalidProgress),
		errors.Is(err, gara.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, gara.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, status, "internal error")
		return
	}
	h.writeError(w, status, err.Error())
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
