package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/metrics"
)

// Fallback notes reported in Outcome.Note.
const (
	NoteNotConfigured = "text generation not configured"
	NoteUnparseable   = "generator output had no structured result"
)

// Outcome tells the caller whether a result came from the generator or from
// the deterministic fallback.
type Outcome struct {
	Degraded bool   `json:"degraded"`
	Note     string `json:"note,omitempty"`
}

// Assistant runs the generator-backed tender operations. Every method has a
// pure fallback, used when no generator is configured, when the call fails
// or when the reply cannot be parsed.
type Assistant struct {
	gen       TextGenerator
	logger    *slog.Logger
	sanitizer gara.Sanitizer
	metrics   *metrics.Metrics

	maxQuestions  int
	maxCandidates int
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSanitizer sets the sanitizer applied to generated checklists.
func WithSanitizer(s gara.Sanitizer) Option {
	return func(a *Assistant) { a.sanitizer = s }
}

// WithMetrics records generator calls, fallbacks and sanitize drops.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithQuestionLimits caps the guided questions returned and the uncovered
// items offered to the generator. Values below one keep the defaults.
func WithQuestionLimits(questions, candidates int) Option {
	return func(a *Assistant) {
		if questions > 0 {
			a.maxQuestions = questions
		}
		if candidates > 0 {
			a.maxCandidates = candidates
		}
	}
}

// NewAssistant creates an Assistant. A nil gen runs every operation on its
// fallback path.
func NewAssistant(gen TextGenerator, opts ...Option) *Assistant {
	a := &Assistant{
		gen:           gen,
		logger:        slog.Default(),
		maxQuestions:  gara.MaxGuidedQuestions,
		maxCandidates: gara.MaxGuidedCandidates,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics != nil {
		prev := a.sanitizer.OnDrop
		m := a.metrics
		a.sanitizer.OnDrop = func(reason gara.DropReason, requirement string) {
			m.SanitizeDrop(string(reason))
			if prev != nil {
				prev(reason, requirement)
			}
		}
	}
	return a
}

// Enabled reports whether a generator is configured.
func (a *Assistant) Enabled() bool {
	return a.gen != nil
}

// Sanitizer returns the sanitizer used for checklists.
func (a *Assistant) Sanitizer() gara.Sanitizer {
	return a.sanitizer
}

func (a *Assistant) generate(ctx context.Context, operation, system, user string, temperature float64) (string, error) {
	start := time.Now()
	text, err := a.gen.Generate(ctx, Request{
		Operation:    operation,
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  temperature,
	})
	a.metrics.AICall(operation, time.Since(start), err)
	return text, err
}

// generateObject calls the generator and extracts the first JSON object of
// the reply. A non-nil Outcome means the caller must fall back.
func (a *Assistant) generateObject(ctx context.Context, operation, system, user string, temperature float64) (map[string]any, *Outcome) {
	if a.gen == nil {
		out := a.degraded(operation, NoteNotConfigured)
		return nil, &out
	}
	text, err := a.generate(ctx, operation, system, user, temperature)
	if err != nil {
		out := a.degraded(operation, "text generation failed: "+err.Error())
		return nil, &out
	}
	obj, ok := ExtractObject(text)
	if !ok {
		a.logger.Warn("generator reply not parseable", "operation", operation, "response", truncate(text, 200))
		out := a.degraded(operation, NoteUnparseable)
		return nil, &out
	}
	return obj, nil
}

func (a *Assistant) degraded(operation, note string) Outcome {
	a.metrics.AIFallback(operation)
	a.logger.Info("using fallback", "operation", operation, "reason", note)
	return Outcome{Degraded: true, Note: note}
}

// BuildChecklist asks the generator for checklist rows and sanitizes them
// against the state's known requirements.
func (a *Assistant) BuildChecklist(ctx context.Context, tenderID string, state gara.State, docs []gara.Document, conversation []gara.ChatMessage) ([]gara.ChecklistItem, Outcome) {
	system, user := buildChecklistPrompts(tenderID, state, docs, conversation)
	obj, fallback := a.generateObject(ctx, "checklist", system, user, temperatureStructured)
	if fallback != nil {
		return a.sanitizer.FallbackChecklist(state, docs), *fallback
	}
	raw, ok := obj["items"].([]any)
	if !ok {
		return a.sanitizer.FallbackChecklist(state, docs), a.degraded("checklist", `reply has no "items" array`)
	}
	items := make([]gara.ChecklistItem, 0, len(raw))
	for _, row := range raw {
		items = append(items, gara.NormalizeChecklistItem(row))
	}
	return a.sanitizer.Sanitize(items, state), Outcome{}
}

// GenerateQuestions proposes guided questions for uncovered items. Only the
// first maxCandidates uncovered items are offered, and questions pointing at
// any other index are discarded.
func (a *Assistant) GenerateQuestions(ctx context.Context, tenderID string, state gara.State, conversation []gara.ChatMessage) ([]gara.GuidedQuestion, Outcome) {
	candidates := gara.UncoveredItems(state, a.maxCandidates)
	if len(candidates) == 0 {
		return []gara.GuidedQuestion{}, Outcome{}
	}

	system, user := buildQuestionsPrompts(tenderID, candidates, conversation)
	obj, fallback := a.generateObject(ctx, "questions", system, user, temperatureDraft)
	if fallback != nil {
		return gara.FallbackGuidedQuestions(state, a.maxQuestions), *fallback
	}
	raw, ok := obj["questions"].([]any)
	if !ok {
		return gara.FallbackGuidedQuestions(state, a.maxQuestions), a.degraded("questions", `reply has no "questions" array`)
	}

	byIndex := make(map[int]gara.ChecklistItem, len(candidates))
	for _, c := range candidates {
		byIndex[c.Index] = c.Item
	}
	var offered []any
	for _, row := range raw {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := m["item_index"].(float64)
		if !ok {
			continue
		}
		if _, known := byIndex[int(idx)]; known && idx == float64(int(idx)) {
			offered = append(offered, row)
		}
	}

	questions := gara.DedupeGuidedQuestions(offered, a.maxQuestions)
	for i := range questions {
		item := byIndex[questions[i].ItemIndex]
		if strings.TrimSpace(questions[i].Requirement) == "" {
			questions[i].Requirement = item.Requirement
		}
	}
	if questions == nil {
		questions = []gara.GuidedQuestion{}
	}
	return questions, Outcome{}
}

// AutoAnswer drafts an answer to q from the company profile.
func (a *Assistant) AutoAnswer(ctx context.Context, tenderID string, state gara.State, q gara.GuidedQuestion, profile any, conversation []gara.ChatMessage) (gara.AutoAnswer, Outcome) {
	if a.gen == nil {
		return gara.FallbackAutoAnswer(q, profile), a.degraded("autoanswer", NoteNotConfigured)
	}

	system, user := buildAutoAnswerPrompts(tenderID, state, q, profile, conversation)
	text, err := a.generate(ctx, "autoanswer", system, user, temperatureDraft)
	if err != nil {
		return gara.FallbackAutoAnswer(q, profile), a.degraded("autoanswer", "text generation failed: "+err.Error())
	}

	requirement := strings.TrimSpace(q.Requirement)
	if requirement == "" {
		requirement = "Requirement"
	}
	unavailable := fmt.Sprintf("Draft unavailable for %q.", requirement)

	obj, ok := ExtractObject(text)
	if !ok {
		// Free text is still a usable draft.
		answer := gara.FallbackAutoAnswer(q, profile)
		answer.Answer = strings.TrimSpace(text)
		if answer.Answer == "" {
			answer.Answer = unavailable
		}
		return answer, a.degraded("autoanswer", NoteUnparseable)
	}

	answer := gara.AutoAnswer{
		Answer:         strings.TrimSpace(stringField(obj, "answer")),
		DataSufficient: sufficiency(obj["data_sufficient"]),
		Gaps:           stringsField(obj, "gaps"),
	}
	if answer.Answer == "" {
		answer.Answer = unavailable
	}
	return answer, Outcome{}
}

// sufficiency reads data_sufficient. Anything but an explicit negative counts
// as sufficient.
func sufficiency(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "insufficient", "insufficienti", "false", "no":
			return false
		}
	}
	return true
}

// ChatUpdate applies a user message to the state. On success the returned
// state is the generator's state, normalized, with a rebuilt checklist.
func (a *Assistant) ChatUpdate(ctx context.Context, tenderID, message string, state gara.State, conversation []gara.ChatMessage) (string, gara.State, Outcome) {
	base := gara.Normalize(tenderID, state)
	if a.gen == nil {
		items := a.sanitizer.FallbackChecklist(base, nil)
		return "Text generation not configured.", gara.ApplyChecklist(tenderID, base, items), a.degraded("chat", NoteNotConfigured)
	}

	system, user := buildChatPrompts(tenderID, message, state, conversation)
	obj, fallback := a.generateObject(ctx, "chat", system, user, temperatureDraft)
	if fallback != nil {
		return "Partial update.", base, *fallback
	}

	reply := strings.TrimSpace(stringField(obj, "assistant_reply"))
	if reply == "" {
		reply = "Update completed."
	}
	next := base
	if candidate, ok := obj["output_json"].(map[string]any); ok {
		next = gara.Normalize(tenderID, candidate)
	}

	items, outcome := a.BuildChecklist(ctx, tenderID, next, nil, conversation)
	return reply, gara.ApplyChecklist(tenderID, next, items), outcome
}

// InitialExtraction builds the first structured state from uploaded
// documents. At most MaxExtractionDocuments previews are sent.
func (a *Assistant) InitialExtraction(ctx context.Context, tenderID string, state gara.State, docs []gara.Document) (string, gara.State, Outcome) {
	base := gara.Normalize(tenderID, state)
	if a.gen == nil {
		interim := gara.SetOverviewStatus(tenderID, base, gara.StatusDocumentsUploaded)
		items := a.sanitizer.FallbackChecklist(interim, docs)
		return "Documents received. Text generation not configured.",
			gara.ApplyChecklist(tenderID, interim, items),
			a.degraded("extraction", NoteNotConfigured)
	}

	system, user := buildExtractionPrompts(tenderID, base, docs)
	obj, fallback := a.generateObject(ctx, "extraction", system, user, temperatureDraft)
	if fallback != nil {
		items := a.sanitizer.FallbackChecklist(base, docs)
		return "Documents uploaded. Initial output is partial.", gara.ApplyChecklist(tenderID, base, items), *fallback
	}

	reply := strings.TrimSpace(stringField(obj, "assistant_reply"))
	if reply == "" {
		reply = "Documents uploaded and state generated."
	}
	extracted := base
	if candidate, ok := obj["output_json"].(map[string]any); ok {
		extracted = gara.Normalize(tenderID, candidate)
	}
	items, outcome := a.BuildChecklist(ctx, tenderID, extracted, docs, nil)
	return reply, gara.ApplyChecklist(tenderID, extracted, items), outcome
}

// ClassifyDocuments proposes a category for every document. Results are
// never confirmed.
func (a *Assistant) ClassifyDocuments(ctx context.Context, tenderID string, docs []gara.Document) ([]gara.Document, Outcome) {
	if len(docs) == 0 {
		return []gara.Document{}, Outcome{}
	}

	system, user := buildClassifyPrompts(tenderID, docs)
	obj, fallback := a.generateObject(ctx, "classify", system, user, temperatureStructured)
	if fallback != nil {
		return gara.ClassifyByName(docs), *fallback
	}

	raw, _ := obj["documents"].([]any)
	rows := make([]gara.Classification, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		confidence, ok := m["confidence"].(float64)
		if !ok {
			confidence = 0.6
		}
		rows = append(rows, gara.Classification{
			StoredAs:   stringField(m, "stored_as"),
			Category:   stringField(m, "category"),
			Confidence: confidence,
			Rationale:  stringField(m, "rationale"),
		})
	}
	return gara.ApplyClassifications(docs, rows), Outcome{}
}

// MatchReport is the result of matching a checklist against company data.
type MatchReport struct {
	Results []gara.MatchResult `json:"matches"`
	Summary gara.MatchSummary  `json:"summary"`
	Message string             `json:"message"`
	// State is set only when match rows were folded into the checklist.
	State gara.State `json:"output_json,omitempty"`
}

// MatchRequirements matches every checklist item against the company
// profile and folds the rows into the checklist.
func (a *Assistant) MatchRequirements(ctx context.Context, tenderID string, state gara.State, profile any) (MatchReport, Outcome) {
	base := gara.Normalize(tenderID, state)
	items := gara.ChecklistItems(base)
	if len(items) == 0 {
		return MatchReport{
			Results: []gara.MatchResult{},
			Message: "No requirements to match. Upload tender documents first.",
		}, Outcome{}
	}

	evidence, ok := gara.CompanyEvidence(profile)
	if !ok {
		results := gara.UnmatchedResults(items, "No company documents uploaded. Add documents to the company profile.")
		return MatchReport{
			Results: results,
			Summary: gara.Summarize(results),
			Message: "No company data. Add company documents to enable matching.",
		}, Outcome{}
	}

	system, user := buildMatchPrompts(items, evidence)
	obj, fallback := a.generateObject(ctx, "match", system, user, temperatureStructured)
	if fallback != nil {
		results := gara.UnmatchedResults(items, "Matching unavailable: "+fallback.Note+".")
		return MatchReport{
			Results: results,
			Summary: gara.Summarize(results),
			Message: "Matching unavailable without text generation.",
		}, *fallback
	}

	raw, _ := obj["matches"].([]any)
	results, present := gara.MatchResults(items, raw)
	summary := gara.Summarize(results)
	return MatchReport{
		Results: results,
		Summary: summary,
		Message: fmt.Sprintf("Matching completed: %d covered, %d partial, %d not covered.",
			summary.Covered, summary.Partial, summary.Uncovered),
		State: gara.ApplyMatches(tenderID, base, present),
	}, Outcome{}
}

// RenderModel asks the generator how to display the state.
func (a *Assistant) RenderModel(ctx context.Context, tenderID string, state gara.State) (gara.RenderModel, Outcome) {
	base := gara.Normalize(tenderID, state)
	system, user := buildRenderPrompts(tenderID, base)
	obj, fallback := a.generateObject(ctx, "render", system, user, temperatureStructured)
	if fallback != nil {
		return gara.FallbackRenderModel(base), *fallback
	}
	if _, ok := obj["sections"].([]any); !ok {
		return gara.FallbackRenderModel(base), a.degraded("render", `reply has no "sections" array`)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return gara.FallbackRenderModel(base), a.degraded("render", err.Error())
	}
	var model gara.RenderModel
	if err := json.Unmarshal(data, &model); err != nil {
		return gara.FallbackRenderModel(base), a.degraded("render", "sections have the wrong shape")
	}
	return model, Outcome{}
}

// AnalyzeRequest asks a free-form question about one element of the state.
type AnalyzeRequest struct {
	Prompt  string `json:"prompt"`
	Element string `json:"element_name"`
	Value   string `json:"element_value"`
	Section string `json:"section_title"`
}

func (r AnalyzeRequest) withDefaults() AnalyzeRequest {
	if strings.TrimSpace(r.Element) == "" {
		r.Element = "Unspecified element"
	}
	if strings.TrimSpace(r.Value) == "" {
		r.Value = "n/a"
	}
	if strings.TrimSpace(r.Section) == "" {
		r.Section = "Structured output"
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	return r
}

// Analyze answers a free-form question in plain text.
func (a *Assistant) Analyze(ctx context.Context, req AnalyzeRequest) (string, Outcome) {
	req = req.withDefaults()
	local := fmt.Sprintf("Local analysis\nElement: %s\nValue: %s", req.Element, req.Value)
	if a.gen == nil {
		return local, a.degraded("analyze", NoteNotConfigured)
	}

	system, user := buildAnalyzePrompts(req)
	text, err := a.generate(ctx, "analyze", system, user, temperatureDraft)
	if err != nil {
		return local, a.degraded("analyze", "text generation failed: "+err.Error())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "No result available.", Outcome{}
	}
	return text, Outcome{}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringsField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				out = append(out, t)
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out
}
