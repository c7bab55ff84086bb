package tender

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gareflow/gareflow/internal/ai"
	"github.com/gareflow/gareflow/internal/gara"
)

// QuestionsResult lists guided questions for uncovered items.
type QuestionsResult struct {
	TenderID  string                `json:"tender_id"`
	Reply     string                `json:"assistant_reply"`
	Questions []gara.GuidedQuestion `json:"questions"`
	Degraded  bool                  `json:"degraded,omitempty"`
	Note      string                `json:"note,omitempty"`
}

// GenerateQuestions proposes guided questions. Nothing is persisted.
func (s *Service) GenerateQuestions(ctx context.Context, tenantID, rawID string) (QuestionsResult, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return QuestionsResult{}, err
	}
	convo, err := s.conversation(ctx, tenantID, id)
	if err != nil {
		return QuestionsResult{}, err
	}

	questions, outcome := s.assistant.GenerateQuestions(ctx, id, state, convo)
	reply := "There are no uncovered requirements to complete."
	if len(questions) > 0 {
		reply = fmt.Sprintf("Generated %d guided questions for uncovered requirements.", len(questions))
	}
	return QuestionsResult{
		TenderID:  id,
		Reply:     reply,
		Questions: questions,
		Degraded:  outcome.Degraded,
		Note:      outcome.Note,
	}, nil
}

// Answer records a manual answer to a guided question. The question must
// point at an existing checklist item.
func (s *Service) Answer(ctx context.Context, tenantID, rawID string, q gara.GuidedQuestion, answer string) (Result, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Result{}, fmt.Errorf("answer: %w", gara.ErrMissingField)
	}
	id := gara.SanitizeTenderID(rawID)

	state, err := s.mutate(ctx, tenantID, id, "answer", func(st gara.State) (gara.State, error) {
		if n := len(gara.ChecklistItems(st)); q.ItemIndex < 0 || q.ItemIndex >= n {
			return st, fmt.Errorf("answer item %d of %d: %w", q.ItemIndex, n, gara.ErrNotFound)
		}
		return gara.ApplyGuidedAnswer(id, st, q, answer, gara.AnswerMeta{
			Source:         "manual",
			DataSufficient: true,
			Gaps:           []string{},
		}), nil
	})
	if err != nil {
		return Result{}, err
	}

	label := firstNonEmpty(q.Question, q.Requirement, "Guided question")
	err = s.store.AppendMessages(ctx, tenantID, id,
		s.message(gara.RoleUser, fmt.Sprintf("[Guided Q&A] %s\nAnswer: %s", label, answer)),
		s.message(gara.RoleAssistant, "Answer received. Checklist and Q&A section updated."))
	if err != nil {
		return Result{}, err
	}
	return Result{TenderID: id, Reply: "Answer recorded and checklist updated.", State: state}, nil
}

// AutofillResult carries the drafted answer along with the new state.
type AutofillResult struct {
	Result
	Question gara.GuidedQuestion `json:"question"`
	Answer   gara.AutoAnswer     `json:"answer"`
}

// Autofill drafts an answer for the item at index from the company
// profile and applies it.
func (s *Service) Autofill(ctx context.Context, tenantID, rawID string, index int) (AutofillResult, error) {
	id := gara.SanitizeTenderID(rawID)

	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return AutofillResult{}, err
	}
	q, err := gara.AutofillQuestion(state, index)
	if err != nil {
		s.metrics.Mutation("autofill", err)
		return AutofillResult{}, err
	}
	convo, err := s.conversation(ctx, tenantID, id)
	if err != nil {
		return AutofillResult{}, err
	}
	profile, err := s.CompanyProfile(ctx, tenantID)
	if err != nil {
		return AutofillResult{}, err
	}

	draft, outcome := s.assistant.AutoAnswer(ctx, id, state, q, profile, convo)
	next := gara.ApplyGuidedAnswer(id, state, q, draft.Answer, gara.AnswerMeta{
		Source:         "auto",
		DataSufficient: draft.DataSufficient,
		Gaps:           draft.Gaps,
	})
	s.metrics.Mutation("autofill", nil)
	if err := s.save(ctx, tenantID, id, next, "autofill"); err != nil {
		return AutofillResult{}, err
	}
	note := fmt.Sprintf("[Q&A auto] %s\nProposed draft: %s", q.Requirement, draft.Answer)
	if err := s.store.AppendMessages(ctx, tenantID, id, s.message(gara.RoleAssistant, note)); err != nil {
		return AutofillResult{}, err
	}

	reply := "Automatic draft generated."
	if !draft.DataSufficient {
		reply = "Draft generated, but company data is insufficient."
	}
	res := AutofillResult{
		Result:   Result{TenderID: id, Reply: reply, State: next},
		Question: q,
		Answer:   draft,
	}
	res.degrade(outcome)
	return res, nil
}

// SaveCompanyProfile replaces the tenant's company profile. A nil profile
// stores the empty default.
func (s *Service) SaveCompanyProfile(ctx context.Context, tenantID string, profile map[string]any) (map[string]any, error) {
	if profile == nil {
		profile = gara.DefaultCompanyProfile()
	}
	if err := s.store.SaveCompanyProfile(ctx, tenantID, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// CompanyProfile returns the tenant's profile, or the empty default.
func (s *Service) CompanyProfile(ctx context.Context, tenantID string) (map[string]any, error) {
	profile, err := s.store.GetCompanyProfile(ctx, tenantID)
	if errors.Is(err, gara.ErrNotFound) {
		return gara.DefaultCompanyProfile(), nil
	}
	return profile, err
}

// MatchResult is a match report plus the tender it was run on.
type MatchResult struct {
	TenderID string `json:"tender_id"`
	ai.MatchReport
	Degraded bool   `json:"degraded,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Match matches the checklist against the company profile. The state is
// saved only when match rows were folded in.
func (s *Service) Match(ctx context.Context, tenantID, rawID string) (MatchResult, error) {
	id := gara.SanitizeTenderID(rawID)
	state, err := s.load(ctx, tenantID, id)
	if err != nil {
		return MatchResult{}, err
	}
	profile, err := s.CompanyProfile(ctx, tenantID)
	if err != nil {
		return MatchResult{}, err
	}

	report, outcome := s.assistant.MatchRequirements(ctx, id, state, profile)
	if report.State != nil {
		if err := s.save(ctx, tenantID, id, report.State, "match"); err != nil {
			return MatchResult{}, err
		}
	}
	return MatchResult{
		TenderID:    id,
		MatchReport: report,
		Degraded:    outcome.Degraded,
		Note:        outcome.Note,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
