package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gareflow/gareflow/internal/ai"
	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/tender"
)

type createRequest struct {
	ID string `json:"id"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type uploadRequest struct {
	Files []tender.Upload `json:"files"`
}

type confirmRequest struct {
	Categories map[string]gara.DocumentCategory `json:"categories"`
}

type progressRequest struct {
	Progress string `json:"progress"`
}

type answerRequest struct {
	Question gara.GuidedQuestion `json:"question"`
	Answer   string              `json:"answer"`
}

type autofillRequest struct {
	Index *int `json:"item_index"`
}

type assignRequest struct {
	Role string `json:"role"`
	CV   string `json:"cv"`
}

type renderResponse struct {
	TenderID string           `json:"tender_id"`
	Render   gara.RenderModel `json:"render"`
	State    gara.State       `json:"output_json"`
	Degraded bool             `json:"degraded,omitempty"`
	Note     string           `json:"note,omitempty"`
}

type analyzeResponse struct {
	Answer   string `json:"answer"`
	Degraded bool   `json:"degraded,omitempty"`
	Note     string `json:"note,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenders, err := h.svc.List(r.Context(), h.tenantOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tenders == nil {
		tenders = []gara.TenderSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tenders": tenders})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Create(r.Context(), h.tenantOf(r), req.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Get(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// handleSave accepts either a bare state or {"output_json": state}.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body == nil {
		h.fail(w, r, fmt.Errorf("tender state: %w", gara.ErrMissingField))
		return
	}
	var candidate any = body
	if wrapped, ok := body["output_json"].(map[string]any); ok {
		candidate = wrapped
	}
	res, err := h.svc.Save(r.Context(), h.tenantOf(r), r.PathValue("id"), candidate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.Conversation(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if messages == nil {
		messages = []gara.ChatMessage{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Chat(r.Context(), h.tenantOf(r), r.PathValue("id"), req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []gara.Document{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"files": docs})
}

// readUploads accepts multipart forms (field "files") or a JSON body with
// base64 payloads.
func (h *Handler) readUploads(r *http.Request) ([]tender.Upload, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		var uploads []tender.Upload
		for _, fh := range r.MultipartForm.File["files"] {
			up, err := readPart(fh)
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, up)
		}
		return uploads, nil
	}

	var req uploadRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	return req.Files, nil
}

func readPart(fh *multipart.FileHeader) (tender.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return tender.Upload{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return tender.Upload{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return tender.Upload{
		Name: fh.Filename,
		Type: fh.Header.Get("Content-Type"),
		Data: data,
	}, nil
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.readUploads(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.UploadDocuments(r.Context(), h.tenantOf(r), r.PathValue("id"), uploads)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.ConfirmDocuments(r.Context(), h.tenantOf(r), r.PathValue("id"), req.Categories)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var patch gara.ItemPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.AddItem(r.Context(), h.tenantOf(r), r.PathValue("id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var patch gara.ItemPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.UpdateItem(r.Context(), h.tenantOf(r), r.PathValue("id"), index, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.DeleteItem(r.Context(), h.tenantOf(r), r.PathValue("id"), index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req progressRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.SetProgress(r.Context(), h.tenantOf(r), r.PathValue("id"), index, req.Progress)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	uploads, err := h.readUploads(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Attach(r.Context(), h.tenantOf(r), r.PathValue("id"), index, uploads)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GenerateQuestions(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Questions == nil {
		res.Questions = []gara.GuidedQuestion{}
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Answer(r.Context(), h.tenantOf(r), r.PathValue("id"), req.Question, req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAutofill(w http.ResponseWriter, r *http.Request) {
	var req autofillRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Index == nil {
		h.fail(w, r, fmt.Errorf("item_index: %w", gara.ErrMissingField))
		return
	}
	res, err := h.svc.Autofill(r.Context(), h.tenantOf(r), r.PathValue("id"), *req.Index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Match(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAssignCV(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.AssignCV(r.Context(), h.tenantOf(r), r.PathValue("id"), req.Role, req.CV)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	model, state, outcome, err := h.svc.Render(r.Context(), h.tenantOf(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderResponse{
		TenderID: gara.SanitizeTenderID(r.PathValue("id")),
		Render:   model,
		State:    state,
		Degraded: outcome.Degraded,
		Note:     outcome.Note,
	})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ai.AnalyzeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.fail(w, r, fmt.Errorf("prompt: %w", gara.ErrMissingField))
		return
	}
	answer, outcome := h.svc.Analyze(r.Context(), req)
	h.writeJSON(w, http.StatusOK, analyzeResponse{
		Answer:   answer,
		Degraded: outcome.Degraded,
		Note:     outcome.Note,
	})
}

func (h *Handler) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.CompanyProfile(r.Context(), h.tenantOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

// handleSaveCompany accepts either a bare profile or {"profile": {...}}.
func (h *Handler) handleSaveCompany(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	profile := body
	if wrapped, ok := body["profile"].(map[string]any); ok {
		profile = wrapped
	}
	saved, err := h.svc.SaveCompanyProfile(r.Context(), h.tenantOf(r), profile)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"profile": saved})
}
