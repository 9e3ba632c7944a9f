package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"learnify/internal/extract"
	"learnify/internal/llm"
	"learnify/internal/models"
	"learnify/internal/services"
	"learnify/internal/store"
)

const maxMultipartMemory = 8 << 20 // 8 MB

const dateLayout = "2006-01-02"

type Server struct {
	router    *mux.Router
	analyzer  *services.Analyzer
	planner   *services.Planner
	explainer *services.Explainer
	scheduler *services.ReviewScheduler
	sessions  *store.SessionStore
	uploadDir string
}

func NewServer(
	analyzer *services.Analyzer,
	planner *services.Planner,
	explainer *services.Explainer,
	sessions *store.SessionStore,
	uploadDir string,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		analyzer:  analyzer,
		planner:   planner,
		explainer: explainer,
		scheduler: services.NewReviewScheduler(),
		sessions:  sessions,
		uploadDir: uploadDir,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/generate_plan", s.handleGeneratePlan).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/session/{id}", s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/session/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	s.router.HandleFunc("/session/progress/{id}", s.handleUpdateProgress).Methods(http.MethodPost)
	s.router.HandleFunc("/session/review/{id}", s.handleReviewCard).Methods(http.MethodPost)
	s.router.HandleFunc("/explain_error", s.handleExplainError).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	name := strings.TrimSpace(r.FormValue("session_name"))
	if name == "" {
		name = header.Filename
	}

	text, err := s.extractToText(file, header)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	material, err := s.analyzer.Analyze(r.Context(), text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	session, err := s.sessions.Create(r.Context(), name, models.SessionMaterial{
		Kind:     models.KindMaterial,
		Material: material,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.ID,
		"session_name": session.Name,
	})
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	topic := strings.TrimSpace(r.FormValue("topic"))
	dateStr := strings.TrimSpace(r.FormValue("date"))
	if topic == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "topic and date are required")
		return
	}
	targetDate, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	text, err := s.extractToText(file, header)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	plan, err := s.planner.Plan(r.Context(), text, topic, targetDate, time.Now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Plans fall back to a topic-derived name, not the filename.
	name := strings.TrimSpace(r.FormValue("session_name"))
	if name == "" {
		name = topic + " Study Plan"
	}
	session, err := s.sessions.Create(r.Context(), name, models.SessionMaterial{
		Kind: models.KindPlan,
		Plan: plan,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.ID,
		"session_name": session.Name,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var upd models.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	now := time.Now().UTC()
	session, err := s.sessions.UpdateProgress(r.Context(), mux.Vars(r)["id"], func(sess models.Session) (models.ProgressRecord, error) {
		return services.MergeProgress(sess.Progress, upd, now), nil
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"progress": session.Progress,
	})
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardIndex int    `json:"card_index"`
		Rating    string `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	rating, err := services.ParseRating(req.Rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	now := time.Now().UTC()
	var due time.Time
	session, err := s.sessions.UpdateProgress(r.Context(), mux.Vars(r)["id"], func(sess models.Session) (models.ProgressRecord, error) {
		rec, card, err := s.scheduler.Review(sess.Progress, req.CardIndex, sess.Material.FlashcardTotal(), rating, now)
		if err != nil {
			return sess.Progress, &badRequestError{err}
		}
		due = card.Due
		return rec, nil
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"due":      due,
		"progress": session.Progress,
	})
}

func (s *Server) handleExplainError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question      string `json:"question"`
		UserAnswer    string `json:"user_answer"`
		CorrectAnswer string `json:"correct_answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Question == "" || req.UserAnswer == "" || req.CorrectAnswer == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "question, user_answer and correct_answer are required")
		return
	}

	explanation, err := s.explainer.Explain(r.Context(), req.Question, req.UserAnswer, req.CorrectAnswer)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}

// uploadedFile parses the multipart form and returns the uploaded file.
// Writes the error response itself when the form is unusable.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "no file part in the request")
		return nil, nil, false
	}
	return file, header, true
}

// extractToText spools the upload to a temp file (the extractor dispatches
// on the file extension) and extracts its text. The temp file never outlives
// the request.
func (s *Server) extractToText(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp(s.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return extract.Text(tmp.Name())
}

// badRequestError marks a mutate-callback failure as caller-fixable.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// writeServiceError maps service-layer failures onto the wire error
// taxonomy. Unknown errors become an opaque 500; details go to the log, not
// the caller.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var (
		malformedPlan *services.MalformedPlanError
		explanation   *services.ExplanationError
		rateLimit     *llm.ErrRateLimit
		unavailable   *llm.ErrProviderUnavailable
		badReq        *badRequestError
	)
	switch {
	case errors.Is(err, services.ErrInsufficientText):
		writeError(w, http.StatusBadRequest, "insufficient_text", err.Error())
	case errors.Is(err, extract.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported_format", "unsupported file type; upload a PDF, TXT or MD file")
	case errors.Is(err, services.ErrInvalidDateRange):
		writeError(w, http.StatusBadRequest, "invalid_date_range", "the target date must not be in the past")
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, services.ErrNoMaterialGenerated):
		writeError(w, http.StatusInternalServerError, "no_material_generated", "could not generate study material from the document")
	case errors.As(err, &malformedPlan):
		writeError(w, http.StatusInternalServerError, "malformed_plan_response", "the model returned an unusable study plan")
	case errors.As(err, &explanation):
		writeError(w, http.StatusInternalServerError, "explanation_generation_failed", "could not generate an explanation")
	case errors.As(err, &rateLimit):
		writeError(w, http.StatusServiceUnavailable, "rate_limited", "the model is rate limited, try again shortly")
	case errors.As(err, &unavailable):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "the model provider is unavailable")
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, "invalid_request", badReq.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
