package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

// Handler exposes the exam REST API: open answer ingestion plus
// token-protected question issuance, bulk insert, and feedback capture.
type Handler struct {
	producer   *app.Producer
	questions  *app.QuestionService
	feedback   app.FeedbackStore
	ws         *WSHandler
	adminToken string
}

func NewHandler(producer *app.Producer, questions *app.QuestionService, feedback app.FeedbackStore, ws *WSHandler, adminToken string) *Handler {
	return &Handler{
		producer:   producer,
		questions:  questions,
		feedback:   feedback,
		ws:         ws,
		adminToken: adminToken,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/answer/submit", h.SubmitAnswer)
	if h.ws != nil {
		r.Get("/ws/scores", h.ws.ServeWS)
	}
	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(h.adminToken))
		r.Get("/question", h.IssueQuestion)
		r.Post("/question/add", h.AddQuestions)
		r.Post("/submit/feedback", h.SubmitFeedback)
	})
	return r
}

type submitRequest struct {
	Username   string `json:"username"`
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing required fields"})
		return
	}
	_, err := h.producer.Submit(req.Username, req.QuestionID, req.Option)
	switch {
	case errors.Is(err, domain.ErrInvalidSubmission):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing required fields"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "Failed to submit answer",
			"status": "failure",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Answer submitted successfully",
			"status":  "success",
		})
	}
}

type issuedQuestion struct {
	QuestionID string          `json:"question_id"`
	Text       string          `json:"text"`
	Options    []domain.Option `json:"options"`
}

func (h *Handler) IssueQuestion(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "username not provided"})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("question_limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "question_limit not provided"})
		return
	}

	question, err := h.questions.IssueQuestion(r.Context(), username, limit)
	switch {
	case errors.Is(err, domain.ErrQuestionLimit):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "Questions limit reached"})
	case errors.Is(err, domain.ErrNoQuestionsLeft):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "No unanswered questions available at the moment"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to fetch question"})
	default:
		// the answer key never leaves the server
		writeJSON(w, http.StatusOK, issuedQuestion{
			QuestionID: question.ID,
			Text:       question.Text,
			Options:    question.Options,
		})
	}
}

type questionPayload struct {
	QuestionID      string          `json:"question_id"`
	TestID          string          `json:"test_id"`
	Text            string          `json:"question_text"`
	Options         []domain.Option `json:"options"`
	CorrectOptionID string          `json:"correct_option_id"`
	Points          int             `json:"points"`
}

func (p questionPayload) toDomain() domain.Question {
	return domain.Question{
		ID:              p.QuestionID,
		TestID:          p.TestID,
		Text:            p.Text,
		Options:         p.Options,
		CorrectOptionID: p.CorrectOptionID,
		Points:          p.Points,
	}
}

func (h *Handler) AddQuestions(w http.ResponseWriter, r *http.Request) {
	var payloads []questionPayload
	if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	questions := make([]domain.Question, 0, len(payloads))
	for _, p := range payloads {
		questions = append(questions, p.toDomain())
	}

	results := h.questions.AddQuestions(r.Context(), questions)
	var successful, failed []map[string]any
	for _, res := range results {
		if res.Err == nil {
			successful = append(successful, map[string]any{"question_id": res.Question.ID})
			continue
		}
		failed = append(failed, map[string]any{
			"question_id": res.Question.ID,
			"error":       res.Err.Error(),
		})
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"message":            "Some questions were not added successfully",
			"successful_inserts": successful,
			"failed_inserts":     failed,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "All questions added successfully"})
}

func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "failed", "message": "Invalid"})
		return
	}
	if err := h.feedback.SaveFeedback(r.Context(), payload); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "failed",
			"message": "Invalid",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Feedback submitted successfully",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
