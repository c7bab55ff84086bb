// Package tender runs tender operations as read-modify-write cycles over a
// storage.Storage. Concurrent writers to the same tender are last-write-wins.
package tender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gareflow/gareflow/internal/ai"
	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/metrics"
	"github.com/gareflow/gareflow/internal/storage"
)

// Result is what most operations return: the saved state plus the reply
// shown to the user.
type Result struct {
	TenderID string     `json:"tender_id"`
	Reply    string     `json:"assistant_reply,omitempty"`
	State    gara.State `json:"output_json"`
	Degraded bool       `json:"degraded,omitempty"`
	Note     string     `json:"note,omitempty"`
}

func (r *Result) degrade(o ai.Outcome) {
	if o.Degraded {
		r.Degraded = true
		r.Note = o.Note
	}
}

// Service implements tender operations.
type Service struct {
	store        storage.Storage
	assistant    *ai.Assistant
	files        FileStore
	metrics      *metrics.Metrics
	logger       *slog.Logger
	previewChars int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records normalizations and mutations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFileStore sets where uploaded payloads are written.
func WithFileStore(fs FileStore) Option {
	return func(s *Service) {
		if fs != nil {
			s.files = fs
		}
	}
}

// WithPreviewChars caps the text preview kept per document.
func WithPreviewChars(n int) Option {
	return func(s *Service) { s.previewChars = n }
}

// NewService creates a service. A nil assistant runs every operation on
// the deterministic fallbacks.
func NewService(store storage.Storage, assistant *ai.Assistant, opts ...Option) *Service {
	if assistant == nil {
		assistant = ai.NewAssistant(nil)
	}
	s := &Service{
		store:        store,
		assistant:    assistant,
		files:        NewDirStore(TempUploadDir),
		logger:       slog.Default(),
		previewChars: defaultPreviewChars,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assistant exposes the text-generation layer, mainly for the REPL.
func (s *Service) Assistant() *ai.Assistant {
	return s.assistant
}

// load returns the stored state normalized, or a fresh default state when
// the tender has never been saved.
func (s *Service) load(ctx context.Context, tenantID, tenderID string) (gara.State, error) {
	state, err := s.store.GetTender(ctx, tenantID, tenderID)
	if errors.Is(err, gara.ErrNotFound) {
		return gara.Normalize(tenderID, gara.DefaultState(tenderID)), nil
	}
	if err != nil {
		return nil, err
	}
	return gara.Normalize(tenderID, state), nil
}

func (s *Service) save(ctx context.Context, tenantID, tenderID string, state gara.State, origin string) error {
	if err := s.store.SaveTender(ctx, tenantID, tenderID, state); err != nil {
		return err
	}
	s.metrics.Normalized(origin)
	s.logger.Debug("tender saved", "tenant", tenantID, "tender", tenderID, "origin", origin)
	return nil
}

func (s *Service) conversation(ctx context.Context, tenantID, tenderID string) ([]gara.ChatMessage, error) {
	convo, err := s.store.GetConversation(ctx, tenantID, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return convo, nil
}

func (s *Service) message(role, text string) gara.ChatMessage {
	return gara.ChatMessage{Role: role, Text: text, CreatedAt: s.now().UTC()}
}

// Create stores a new tender with a fallback checklist. An empty id gets a
// time-based one.
func (s *Service) Create(ctx context.Context, tenantID, rawID string) (Result, error) {
	if strings.TrimSpace(rawID) == "" {
		rawID = fmt.Sprintf("gara-%d", s.now().UnixMilli())
	}
	id := gara.SanitizeTenderID(rawID)

	state := gara.Normalize(id, gara.DefaultState(id))
	items := s.assistant.Sanitizer().FallbackChecklist(state, nil)
	state = gara.ApplyChecklist(id, state, items)

	if err := s.save(ctx, tenantID, id, state, "create"); err != nil {
		return Result{}, fmt.Errorf("failed to create tender: %w", err)
	}
	if err := s.store.SaveDocuments(ctx, tenantID, id, nil); err != nil {
		return Result{}, fmt.Errorf("failed to create tender: %w", err)
	}
	s.logger.Info("tender created", "tenant", tenantID, "tender", id)
	return Result{TenderID: id, State: state}, nil
}

// Get returns a tender. A tender that was never saved is created on first
// read, like Create with the given id.
func (s *Service) Get(ctx context.Context, tenantID, rawID string) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.store.GetTender(ctx, tenantID, id)
	if errors.Is(err, gara.ErrNotFound) {
		return s.Create(ctx, tenantID, id)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, State: gara.Normalize(id, state)}, nil
}

// Save replaces a tender state with the normalized candidate.
func (s *Service) Save(ctx context.Context, tenantID, rawID string, candidate any) (Result, error) {
	id := gara.SanitizeTenderID(rawID)
	state := gara.Normalize(id, candidate)
	if err := s.save(ctx, tenantID, id, state, "save"); err != nil {
		return Result{}, fmt.Errorf("failed to save tender: %w", err)
	}
	return Result{TenderID: id, State: state}, nil
}

// List returns tender summaries, most recently updated first.
func (s *Service) List(ctx context.Context, tenantID string) ([]gara.TenderSummary, error) {
	return s.store.ListTenders(ctx, tenantID)
}

// Conversation returns a tender's conversation log.
func (s *Service) Conversation(ctx context.Context, tenantID, rawID string) ([]gara.ChatMessage, error) {
	return s.conversation(ctx, tenantID, gara.SanitizeTenderID(rawID))
}

// Chat applies a free-text instruction to the state through the assistant.
func (s *Service) Chat(ctx context.Context, tenantID, rawID, message string) (Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Result{}, fmt.Errorf("chat message: %w", gara.ErrMissingField)
	}
	id := gara.SanitizeTenderID(rawID)

	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return Result{}, err
	}
	convo, err := s.conversation(ctx, tenantID, id)
	if err != nil {
		return Result{}, err
	}
	userMsg := s.message(gara.RoleUser, message)

	reply, next, outcome := s.assistant.ChatUpdate(ctx, id, message, state, append(convo, userMsg))
	if err := s.save(ctx, tenantID, id, next, "chat"); err != nil {
		return Result{}, fmt.Errorf("failed to save chat update: %w", err)
	}
	if err := s.store.AppendMessages(ctx, tenantID, id, userMsg, s.message(gara.RoleAssistant, reply)); err != nil {
		return Result{}, fmt.Errorf("failed to record chat: %w", err)
	}

	res := Result{TenderID: id, Reply: reply, State: next}
	res.degrade(outcome)
	return res, nil
}

// Analyze answers a free-form question about one element of a state. It
// touches no stored data.
func (s *Service) Analyze(ctx context.Context, req ai.AnalyzeRequest) (string, ai.Outcome) {
	return s.assistant.Analyze(ctx, req)
}

// Render returns the display model of a tender.
func (s *Service) Render(ctx context.Context, tenantID, rawID string) (gara.RenderModel, gara.State, ai.Outcome, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return gara.RenderModel{}, nil, ai.Outcome{}, err
	}
	model, outcome := s.assistant.RenderModel(ctx, id, state)
	return model, state, outcome, nil
}
