package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"learnify/internal/llm"
	"learnify/internal/models"
	"learnify/internal/services"
	"learnify/internal/store"
)

const sampleText = "The cell is the basic structural and functional unit of all known organisms. Cells consist of cytoplasm enclosed within a membrane."

const sampleMaterialJSON = `{
	"flashcards": [{"term": "Cell", "definition": "basic unit of life"}],
	"quiz": [{"question": "Smallest unit of life?", "options": ["Cell", "Atom", "Organ", "Tissue"], "answer": "Cell"}]
}`

func newTestServer(t *testing.T, responses ...llm.MockResponse) (*Server, *llm.MockProvider) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock := llm.NewMockProvider(responses...)
	generator := services.NewMaterialGenerator(mock, 5*time.Second)
	server := NewServer(
		services.NewAnalyzer(generator, 0, 2),
		services.NewPlanner(mock, 5*time.Second),
		services.NewExplainer(mock, 5*time.Second),
		store.NewSessionStore(db),
		t.TempDir(),
	)
	return server, mock
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func doRequest(t *testing.T, server *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &payload)
	if payload.Error.Message == "" {
		t.Fatalf("error payload missing message: %s", rec.Body.String())
	}
	return payload.Error.Code
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doRequest(t, server, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUpload_CreatesSession(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: sampleMaterialJSON})

	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{"session_name": "Bio 101"})
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		SessionID   string `json:"session_id"`
		SessionName string `json:"session_name"`
	}
	decodeBody(t, rec, &created)
	if created.SessionID == "" || created.SessionName != "Bio 101" {
		t.Fatalf("unexpected response: %+v", created)
	}

	// Material is immutable after creation; the fetch must return exactly
	// what generation produced.
	rec = doRequest(t, server, http.MethodGet, "/session/"+created.SessionID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var session models.Session
	decodeBody(t, rec, &session)
	if session.Material.Kind != models.KindMaterial {
		t.Fatalf("expected material kind, got %q", session.Material.Kind)
	}
	if session.Material.FlashcardTotal() != 1 || session.Material.QuizTotal() != 1 {
		t.Fatalf("material did not round-trip: %+v", session.Material)
	}
	if session.Material.Material.Flashcards[0].Term != "Cell" {
		t.Fatalf("unexpected flashcard: %+v", session.Material.Material.Flashcards)
	}
}

func TestUpload_DefaultsNameToFilename(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: sampleMaterialJSON})

	body, contentType := multipartBody(t, "lecture-notes.txt", sampleText, nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		SessionName string `json:"session_name"`
	}
	decodeBody(t, rec, &created)
	if created.SessionName != "lecture-notes.txt" {
		t.Fatalf("expected filename as session name, got %q", created.SessionName)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, "", "", map[string]string{"session_name": "x"})
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_file" {
		t.Fatalf("expected missing_file, got %q", code)
	}
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, "image.png", "not really an image", nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unsupported_format" {
		t.Fatalf("expected unsupported_format, got %q", code)
	}
}

func TestUpload_InsufficientText(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, "short.txt", "too short", nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "insufficient_text" {
		t.Fatalf("expected insufficient_text, got %q", code)
	}
}

func TestUpload_NoMaterialGenerated(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: `{"flashcards":[],"quiz":[]}`})

	body, contentType := multipartBody(t, "notes.txt", sampleText, nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "no_material_generated" {
		t.Fatalf("expected no_material_generated, got %q", code)
	}
}

func TestGeneratePlan_CreatesPlanSession(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	planJSON := fmt.Sprintf(`{
		"timeline": [{"day": 1, "date": %q, "topics_to_cover": "Everything"}],
		"flashcards": [{"term": "Cell", "definition": "basic unit of life"}],
		"quiz": []
	}`, today)
	server, _ := newTestServer(t, llm.MockResponse{Text: planJSON})

	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{
		"topic": "Biology",
		"date":  today,
	})
	rec := doRequest(t, server, http.MethodPost, "/generate_plan", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		SessionID   string `json:"session_id"`
		SessionName string `json:"session_name"`
	}
	decodeBody(t, rec, &created)
	if !strings.Contains(created.SessionName, "Biology") {
		t.Fatalf("expected topic-derived name, got %q", created.SessionName)
	}

	rec = doRequest(t, server, http.MethodGet, "/session/"+created.SessionID, nil, "")
	var session models.Session
	decodeBody(t, rec, &session)
	if session.Material.Kind != models.KindPlan {
		t.Fatalf("expected plan kind, got %q", session.Material.Kind)
	}
	if len(session.Material.Plan.Timeline) != 1 {
		t.Fatalf("unexpected timeline: %+v", session.Material.Plan)
	}
}

func TestGeneratePlan_ExplicitNameKept(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	planJSON := fmt.Sprintf(`{
		"timeline": [{"day": 1, "date": %q, "topics_to_cover": "Everything"}],
		"flashcards": [],
		"quiz": []
	}`, today)
	server, _ := newTestServer(t, llm.MockResponse{Text: planJSON})

	// A supplied name is kept verbatim, even one that happens to match the
	// uploaded filename.
	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{
		"session_name": "notes.txt",
		"topic":        "Biology",
		"date":         today,
	})
	rec := doRequest(t, server, http.MethodPost, "/generate_plan", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		SessionName string `json:"session_name"`
	}
	decodeBody(t, rec, &created)
	if created.SessionName != "notes.txt" {
		t.Fatalf("explicit name replaced, got %q", created.SessionName)
	}
}

func TestGeneratePlan_MissingFields(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{"topic": "Biology"})
	rec := doRequest(t, server, http.MethodPost, "/generate_plan", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_fields" {
		t.Fatalf("expected missing_fields, got %q", code)
	}
}

func TestGeneratePlan_PastDate(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{
		"topic": "Biology",
		"date":  "2020-01-01",
	})
	rec := doRequest(t, server, http.MethodPost, "/generate_plan", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_date_range" {
		t.Fatalf("expected invalid_date_range, got %q", code)
	}
}

func TestGeneratePlan_MalformedModelOutput(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: "Sure! Here is a plan: study hard."})

	body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{
		"topic": "Biology",
		"date":  time.Now().Format("2006-01-02"),
	})
	rec := doRequest(t, server, http.MethodPost, "/generate_plan", body, contentType)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "malformed_plan_response" {
		t.Fatalf("expected malformed_plan_response, got %q", code)
	}
}

func TestSession_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	for _, tc := range []struct {
		method, path string
		body         string
	}{
		{http.MethodGet, "/session/missing", ""},
		{http.MethodDelete, "/session/missing", ""},
		{http.MethodPost, "/session/progress/missing", `{"time_spent_seconds": 10}`},
		{http.MethodPost, "/session/review/missing", `{"card_index": 0, "rating": "good"}`},
	} {
		rec := doRequest(t, server, tc.method, tc.path, bytes.NewBufferString(tc.body), "application/json")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.path, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "session_not_found" {
			t.Errorf("%s %s: expected session_not_found, got %q", tc.method, tc.path, code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: sampleMaterialJSON})

	body, contentType := multipartBody(t, "notes.txt", sampleText, nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	var created struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, rec, &created)

	rec = doRequest(t, server, http.MethodDelete, "/session/"+created.SessionID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, server, http.MethodGet, "/session/"+created.SessionID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	server, _ := newTestServer(t,
		llm.MockResponse{Text: sampleMaterialJSON},
		llm.MockResponse{Text: sampleMaterialJSON},
	)

	for _, name := range []string{"first", "second"} {
		body, contentType := multipartBody(t, "notes.txt", sampleText, map[string]string{"session_name": name})
		rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload %s: %d", name, rec.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := doRequest(t, server, http.MethodGet, "/sessions", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summaries []models.SessionSummary
	decodeBody(t, rec, &summaries)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Name != "second" || summaries[1].Name != "first" {
		t.Fatalf("expected newest first, got %q then %q", summaries[0].Name, summaries[1].Name)
	}
}

func TestUpdateProgress(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: sampleMaterialJSON})

	body, contentType := multipartBody(t, "notes.txt", sampleText, nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	var created struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, rec, &created)

	update := `{"time_spent_seconds": 120, "flashcard_learned_count": 1, "new_quiz_score": {"score": 1, "total": 1}}`
	rec = doRequest(t, server, http.MethodPost, "/session/progress/"+created.SessionID, bytes.NewBufferString(update), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Progress models.ProgressRecord `json:"progress"`
	}
	decodeBody(t, rec, &resp)
	if resp.Progress.TotalStudiedSeconds != 120 || resp.Progress.QuizAttempts != 1 {
		t.Fatalf("unexpected progress: %+v", resp.Progress)
	}
}

func TestReviewCard(t *testing.T) {
	server, _ := newTestServer(t, llm.MockResponse{Text: sampleMaterialJSON})

	body, contentType := multipartBody(t, "notes.txt", sampleText, nil)
	rec := doRequest(t, server, http.MethodPost, "/upload", body, contentType)
	var created struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, rec, &created)

	rec = doRequest(t, server, http.MethodPost, "/session/review/"+created.SessionID,
		bytes.NewBufferString(`{"card_index": 0, "rating": "easy"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Progress models.ProgressRecord `json:"progress"`
	}
	decodeBody(t, rec, &resp)
	if resp.Progress.FlashcardLearnedCount != 1 {
		t.Fatalf("expected learned count 1 after easy review, got %d", resp.Progress.FlashcardLearnedCount)
	}

	// The single flashcard has index 0; anything else is caller error.
	rec = doRequest(t, server, http.MethodPost, "/session/review/"+created.SessionID,
		bytes.NewBufferString(`{"card_index": 5, "rating": "good"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range index, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/session/review/"+created.SessionID,
		bytes.NewBufferString(`{"card_index": 0, "rating": "amazing"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown rating, got %d", rec.Code)
	}
}

func TestExplainError(t *testing.T) {
	server, mock := newTestServer(t, llm.MockResponse{
		Text: "Not quite: the cell, not the atom, is the smallest unit of life.",
	})

	payload := `{"question": "Smallest unit of life?", "user_answer": "Atom", "correct_answer": "Cell"}`
	rec := doRequest(t, server, http.MethodPost, "/explain_error", bytes.NewBufferString(payload), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Explanation string `json:"explanation"`
	}
	decodeBody(t, rec, &resp)
	if !strings.Contains(resp.Explanation, "cell") {
		t.Fatalf("unexpected explanation: %q", resp.Explanation)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected one model call, got %d", mock.CallCount())
	}
}

func TestExplainError_MissingFields(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/explain_error", bytes.NewBufferString(`{"question": "Q"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_fields" {
		t.Fatalf("expected missing_fields, got %q", code)
	}
}
