package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/metrics"
	"github.com/gareflow/gareflow/internal/storage"
	"github.com/gareflow/gareflow/internal/tender"
)

type tenderResponse struct {
	TenderID string     `json:"tender_id"`
	Reply    string     `json:"assistant_reply"`
	State    gara.State `json:"output_json"`
	Degraded bool       `json:"degraded"`
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	svc := tender.NewService(store, nil, tender.WithFileStore(tender.NewDirStore(func(tenantID, tenderID string) string {
		return filepath.Join(dir, tenantID, tenderID)
	})))
	return NewHandler(svc, opts...).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]string](t, rec)
	return body["error"]
}

func TestCreateGetList(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, "POST", "/api/tenders", map[string]string{"id": "Gara Uno"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[tenderResponse](t, rec)
	assert.Equal(t, "gara-uno", created.TenderID)
	assert.Len(t, gara.ChecklistItems(created.State), 1)

	rec = do(t, h, "GET", "/api/tenders/gara-uno", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[tenderResponse](t, rec)
	assert.Equal(t, "gara-uno", got.TenderID)

	rec = do(t, h, "GET", "/api/tenders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Tenders []gara.TenderSummary `json:"tenders"`
	}](t, rec)
	require.Len(t, list.Tenders, 1)
	assert.Equal(t, "gara-uno", list.Tenders[0].ID)
}

func TestTenantHeaderScopesTenders(t *testing.T) {
	h := newTestServer(t, WithDefaultTenant("alpha"))

	rec := do(t, h, "POST", "/api/tenders", map[string]string{"id": "g1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest("GET", "/api/tenders", nil)
	req.Header.Set(TenantHeader, "beta")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Tenders []gara.TenderSummary `json:"tenders"`
	}](t, rec)
	assert.Empty(t, list.Tenders)
}

func TestSaveAcceptsWrappedState(t *testing.T) {
	h := newTestServer(t)

	body := map[string]any{"output_json": map[string]any{
		"overview": map[string]any{"title": "Servizi di pulizia"},
	}}
	rec := do(t, h, "PUT", "/api/tenders/g1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[tenderResponse](t, rec)
	overview, ok := res.State[gara.SectionOverview].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Servizi di pulizia", overview["title"])
	for _, section := range gara.RequiredSections {
		assert.Contains(t, res.State, section)
	}
}

func TestChecklistErrorsMapToStatus(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/api/tenders", map[string]string{"id": "g1"}).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"invalid progress", "PUT", "/api/tenders/g1/checklist/0/progress", map[string]string{"progress": "finished"}, http.StatusBadRequest},
		{"unknown index on progress", "PUT", "/api/tenders/g1/checklist/9/progress", map[string]string{"progress": "done"}, http.StatusNotFound},
		{"non-numeric index", "DELETE", "/api/tenders/g1/checklist/abc", nil, http.StatusBadRequest},
		{"update out of range", "PATCH", "/api/tenders/g1/checklist/5", map[string]string{"stato": "approved"}, http.StatusBadRequest},
		{"empty chat", "POST", "/api/tenders/g1/chat", map[string]string{"message": "  "}, http.StatusBadRequest},
		{"autofill without index", "POST", "/api/tenders/g1/qa/autofill", map[string]string{}, http.StatusBadRequest},
		{"autofill unknown index", "POST", "/api/tenders/g1/qa/autofill", map[string]int{"item_index": 7}, http.StatusNotFound},
		{"answer unknown index", "POST", "/api/tenders/g1/qa/answer", map[string]any{
			"question": gara.GuidedQuestion{ItemIndex: 99, Requirement: "ISO 9001"},
			"answer":   "We hold it",
		}, http.StatusNotFound},
		{"analyze without prompt", "POST", "/api/analyze", map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, errorOf(t, rec))
		})
	}
}

func TestMalformedJSONIsBadRequest(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest("POST", "/api/tenders/g1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "invalid JSON body")
}

func TestBodyLimit(t *testing.T) {
	h := newTestServer(t, WithMaxBodySize(16))
	rec := do(t, h, "POST", "/api/tenders/g1/chat", map[string]string{"message": strings.Repeat("x", 64)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChecklistLifecycle(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, "POST", "/api/tenders/g1/checklist", map[string]string{"requisito": "Fatturato minimo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decodeBody[tenderResponse](t, rec)
	assert.Equal(t, "Requirement added.", res.Reply)
	items := gara.ChecklistItems(res.State)
	require.Len(t, items, 2)
	assert.Equal(t, "Fatturato minimo", items[1].Requirement)

	rec = do(t, h, "PUT", "/api/tenders/g1/checklist/1/progress", map[string]string{"progress": "done"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[tenderResponse](t, rec)
	assert.Equal(t, gara.ProgressDone, gara.ChecklistItems(res.State)[1].Progress)

	rec = do(t, h, "PATCH", "/api/tenders/g1/checklist/1", map[string]string{"owner_proposta": "legale"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[tenderResponse](t, rec)
	assert.Equal(t, "legale", gara.ChecklistItems(res.State)[1].Owner)

	rec = do(t, h, "DELETE", "/api/tenders/g1/checklist/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[tenderResponse](t, rec)
	items = gara.ChecklistItems(res.State)
	require.Len(t, items, 1)
	assert.Equal(t, "Fatturato minimo", items[0].Requirement)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadMultipartAndConfirm(t *testing.T) {
	h := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"Disciplinare di gara.txt": "Requisiti di partecipazione"})
	req := httptest.NewRequest("POST", "/api/tenders/g1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploaded := decodeBody[struct {
		Files                  []gara.Document `json:"files"`
		ClassificationRequired bool            `json:"classification_required"`
	}](t, rec)
	require.Len(t, uploaded.Files, 1)
	assert.True(t, uploaded.ClassificationRequired)
	assert.Equal(t, "Disciplinare_di_gara.txt", uploaded.Files[0].Name)
	assert.Equal(t, "Requisiti di partecipazione", uploaded.Files[0].Preview)

	stored := uploaded.Files[0].StoredAs
	rec = do(t, h, "POST", "/api/tenders/g1/documents/confirm", map[string]any{
		"categories": map[string]string{stored: string(gara.CategorySpecification)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, "GET", "/api/tenders/g1/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[struct {
		Files []gara.Document `json:"files"`
	}](t, rec)
	require.Len(t, listed.Files, 1)
	assert.Equal(t, gara.CategorySpecification, listed.Files[0].Category)
	assert.True(t, listed.Files[0].Confirmed)
}

func TestUploadJSONWithoutContent(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, "POST", "/api/tenders/g1/documents", map[string]any{
		"files": []map[string]string{{"name": "empty.txt"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttachMultipart(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/api/tenders", map[string]string{"id": "g1"}).Code)

	body, contentType := multipartBody(t, map[string]string{"visura.pdf": "%PDF-1.4"})
	req := httptest.NewRequest("POST", "/api/tenders/g1/checklist/0/attachments", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[struct {
		tenderResponse
		Files []string `json:"uploaded_files"`
	}](t, rec)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[0], "_r0_")
	assert.Equal(t, res.Files, gara.ChecklistItems(res.State)[0].Attachments)
}

func TestQuestionsAnswerAndConversation(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/api/tenders", map[string]string{"id": "g1"}).Code)

	rec := do(t, h, "POST", "/api/tenders/g1/qa/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	generated := decodeBody[struct {
		Questions []gara.GuidedQuestion `json:"questions"`
	}](t, rec)
	require.NotEmpty(t, generated.Questions)

	rec = do(t, h, "POST", "/api/tenders/g1/qa/answer", map[string]any{
		"question": generated.Questions[0],
		"answer":   "Abbiamo la certificazione ISO 9001",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[tenderResponse](t, rec)
	assert.Equal(t, "Answer recorded and checklist updated.", res.Reply)

	rec = do(t, h, "GET", "/api/tenders/g1/conversation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convo := decodeBody[struct {
		Messages []gara.ChatMessage `json:"messages"`
	}](t, rec)
	require.Len(t, convo.Messages, 2)
	assert.Equal(t, gara.RoleUser, convo.Messages[0].Role)
	assert.Contains(t, convo.Messages[0].Text, "Abbiamo la certificazione ISO 9001")
}

func TestCompanyProfileRoundTrip(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, "GET", "/api/company", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "PUT", "/api/company", map[string]any{"profile": map[string]any{"ragione_sociale": "Acme Srl"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/api/company", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[struct {
		Profile map[string]any `json:"profile"`
	}](t, rec)
	assert.Equal(t, "Acme Srl", got.Profile["ragione_sociale"])
}

func TestRenderAndAnalyzeDegradeWithoutGenerator(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, "GET", "/api/tenders/g1/render", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	render := decodeBody[renderResponse](t, rec)
	assert.True(t, render.Degraded)
	assert.NotEmpty(t, render.Render.Sections)

	rec = do(t, h, "POST", "/api/analyze", map[string]string{"prompt": "Is this enough?", "element_value": "42"})
	require.Equal(t, http.StatusOK, rec.Code)
	analyzed := decodeBody[analyzeResponse](t, rec)
	assert.True(t, analyzed.Degraded)
	assert.Contains(t, analyzed.Answer, "Value: 42")
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	m := metrics.New()
	h := newTestServer(t, WithMetrics(m))

	do(t, h, "PUT", "/api/tenders/g1/checklist/3/progress", map[string]string{"progress": "done"})
	do(t, h, "GET", "/nowhere", nil)

	rec := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gare_http_requests_total{code="404",route="PUT /api/tenders/{id}/checklist/{index}/progress"} 1`)
	assert.Contains(t, body, `gare_http_requests_total{code="404",route="unmatched"} 1`)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
