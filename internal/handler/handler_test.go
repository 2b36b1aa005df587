package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/examforge/examforge/internal/i18n"
	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/session"
	"github.com/examforge/examforge/internal/store"
)

// fakeLLM stands in for the LLM client on both handler and session sides.
type fakeLLM struct {
	generateErr error
	generated   []json.RawMessage
}

func (f *fakeLLM) GenerateQuestions(_ context.Context, topic string, count int) ([]json.RawMessage, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	if f.generated != nil {
		return f.generated, nil
	}
	raw := make([]json.RawMessage, count)
	for i := range raw {
		raw[i] = questionPayload(fmt.Sprintf("%s question %d", topic, i+1))
	}
	return raw, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) VerifyAnswer(_ context.Context, _ json.RawMessage, chosen string) (model.Verdict, error) {
	return model.Verdict{
		Correct:       strings.HasPrefix(chosen, "A)"),
		CorrectOption: "A) alpha",
		Explanation:   "explained",
	}, nil
}

func (f *fakeLLM) SubstituteQuestion(_ context.Context, _ map[string]json.RawMessage, _, _ string) (json.RawMessage, error) {
	return questionPayload("substituted"), nil
}

func (f *fakeLLM) FinalFeedback(_ context.Context, _ model.Summary) (string, error) {
	return "good effort", nil
}

func questionPayload(prompt string) json.RawMessage {
	payload, err := json.Marshal(map[string]any{
		"question": prompt,
		"options": []map[string]any{
			{"option": "A) alpha", "is_correct": true},
			{"option": "B) beta", "is_correct": false},
		},
		"resolution": "alpha is right",
	})
	if err != nil {
		panic(err)
	}
	return payload
}

func newTestRouter(t *testing.T, fake *fakeLLM) chi.Router {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	manager := session.NewManager(session.Collaborators{
		Evaluator:   fake,
		Substituter: fake,
		Summarizer:  fake,
	})
	t.Cleanup(manager.CloseAll)

	h := New(manager, fake, st, Config{
		DefaultCount:   3,
		DefaultTime:    600,
		MaxUploadBytes: 1 << 20,
	})
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func sessionID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Session struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode session %q: %v", rec.Body.String(), err)
	}
	return body.Session.ID
}

func TestStatusEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "fake-model") {
		t.Errorf("status body = %s", rec.Body.String())
	}
}

func TestCreateSession(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Session struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Total  int    `json:"total_questions"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session.ID == "" || body.Session.Status != "active" {
		t.Errorf("session = %+v", body.Session)
	}
	if body.Session.Total != 3 {
		t.Errorf("total = %d, want the default 3", body.Session.Total)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	if rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing topic: status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
}

func TestCreateSessionGeneratorDown(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{generateErr: errors.New("unreachable")})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSessionEmptySet(t *testing.T) {
	fake := &fakeLLM{generated: []json.RawMessage{json.RawMessage(`{"noise": true}`)}}
	r := newTestRouter(t, fake)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if _, ok := body["error"]; !ok {
		t.Errorf("empty-set response carries no error message: %s", rec.Body.String())
	}
}

func assertNoAnswerKey(t *testing.T, rec *httptest.ResponseRecorder, label string) {
	t.Helper()
	body := rec.Body.String()
	for _, marker := range []string{`"correct_option"`, `"correct":true`, `"explanation"`} {
		if strings.Contains(body, marker) {
			t.Errorf("%s response leaks %s: %s", label, marker, body)
		}
	}
}

func TestLiveViewHidesAnswerKey(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns", "question_count": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	assertNoAnswerKey(t, rec, "create")
	id := sessionID(t, rec)
	base := "/api/sessions/" + id

	rec = doJSON(t, r, http.MethodGet, base, nil)
	assertNoAnswerKey(t, rec, "view")

	rec = doJSON(t, r, http.MethodPost, base+"/select", map[string]any{"option": "B) beta"})
	assertNoAnswerKey(t, rec, "select")

	// After completion the review payload does carry the answer key.
	doJSON(t, r, http.MethodPost, base+"/confirm", nil)
	doJSON(t, r, http.MethodPost, base+"/advance", nil)
	rec = doJSON(t, r, http.MethodGet, base+"/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"correct":true`) {
		t.Errorf("review payload lost the answer key: %s", rec.Body.String())
	}
}

func TestSessionWalkthrough(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns", "question_count": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	id := sessionID(t, rec)
	base := "/api/sessions/" + id

	// Confirming before selecting is rejected and explained.
	rec = doJSON(t, r, http.MethodPost, base+"/confirm", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm without selection: %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, base+"/select", map[string]any{"option": "A) alpha"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, base+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	var confirmBody struct {
		Verdict model.Verdict `json:"verdict"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &confirmBody); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if !confirmBody.Verdict.Correct || confirmBody.Verdict.ChosenOption != "A) alpha" {
		t.Errorf("verdict = %+v", confirmBody.Verdict)
	}

	// Results are gated until completion.
	if rec = doJSON(t, r, http.MethodGet, base+"/results", nil); rec.Code != http.StatusConflict {
		t.Fatalf("early results: %d", rec.Code)
	}

	// Advancing past the only question finalizes the session.
	if rec = doJSON(t, r, http.MethodPost, base+"/advance", nil); rec.Code != http.StatusOK {
		t.Fatalf("advance: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, base+"/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results: %d %s", rec.Code, rec.Body.String())
	}
	var resultsBody struct {
		Summary model.Summary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resultsBody); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	s := resultsBody.Summary
	if s.Correct != 1 || s.Total != 1 || s.Score != 10.0 {
		t.Errorf("summary = correct %d total %d score %v", s.Correct, s.Total, s.Score)
	}
	if s.Feedback != "good effort" {
		t.Errorf("feedback = %q", s.Feedback)
	}
}

func TestRegenerateEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns", "question_count": 2})
	id := sessionID(t, rec)

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/regenerate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "substituted") {
		t.Errorf("view does not show the replacement: %s", rec.Body.String())
	}
}

func TestRetakeStartsFreshSession(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns", "question_count": 1})
	oldID := sessionID(t, rec)
	base := "/api/sessions/" + oldID

	doJSON(t, r, http.MethodPost, base+"/select", map[string]any{"option": "B) beta"})
	doJSON(t, r, http.MethodPost, base+"/confirm", nil)
	doJSON(t, r, http.MethodPost, base+"/advance", nil)

	rec = doJSON(t, r, http.MethodPost, base+"/retake", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("retake: %d %s", rec.Code, rec.Body.String())
	}
	newID := sessionID(t, rec)
	if newID == oldID {
		t.Error("retake reused the old session ID")
	}

	// The old session is gone.
	if rec = doJSON(t, r, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("old session view: %d", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", map[string]any{"topic": "dns"})
	id := sessionID(t, rec)

	if rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("view after delete: %d", rec.Code)
	}
	if rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: %d", rec.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/results"} {
		if rec := doJSON(t, r, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: %d", path, rec.Code)
		}
	}
	rec := doJSON(t, r, http.MethodPost, "/api/sessions/nope/confirm", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("confirm unknown: %d", rec.Code)
	}
}

func uploadFile(t *testing.T, r chi.Router, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/materials", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadMaterial(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	rec := uploadFile(t, r, "notes.pdf", "study content")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}

	// Same content again is acknowledged as a duplicate, not re-registered.
	rec = uploadFile(t, r, "renamed.pdf", "study content")
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate upload: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"duplicate":true`) {
		t.Errorf("duplicate response = %s", rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/api/materials", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var listBody struct {
		Materials []model.Material `json:"materials"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Materials) != 1 || listBody.Materials[0].Name != "notes.pdf" {
		t.Errorf("materials = %+v", listBody.Materials)
	}
}

func TestUploadMaterialMissingFile(t *testing.T) {
	r := newTestRouter(t, &fakeLLM{})

	req := httptest.NewRequest(http.MethodPost, "/api/materials", strings.NewReader("not a form"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
