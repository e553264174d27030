package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/report"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
	"go.uber.org/zap"
)

const (
	feedbackInvalidInput = "Invalid input"
	feedbackFailed       = "Sorry, something went wrong while evaluating your response."

	errQuestionsFailed = "Failed to fetch questions"
	errInvalidData     = "Invalid data"
	errServer          = "Server error"
	errUnauthorized    = "Unauthorized"
	errNotFound        = "Not found"
	errBadFormat       = "Unsupported format"

	headerUserID = "X-User-ID"
)

type errorResponse struct {
	Error string `json:"error"`
}

type evaluateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type feedbackResponse struct {
	Feedback string `json:"feedback"`
}

type saveResponse struct {
	Success    bool                   `json:"success"`
	Transcript *transcript.Transcript `json:"transcript"`
}

type listResponse struct {
	Success     bool                     `json:"success"`
	Transcripts []*transcript.Transcript `json:"transcripts"`
	Count       int                      `json:"count"`
	Error       string                   `json:"error,omitempty"`
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := callContext(r.Context(), s.cfg.Timeouts.Questions)
	defer cancel()

	questions, err := s.deps.Questions.Questions(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch questions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errQuestionsFailed})
		return
	}
	if questions == nil {
		questions = []transcript.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil ||
		ai.ValidateInput(req.Question, req.Answer) != nil {
		writeJSON(w, http.StatusBadRequest, feedbackResponse{Feedback: feedbackInvalidInput})
		return
	}

	ctx, cancel := callContext(r.Context(), s.cfg.Timeouts.Evaluation)
	defer cancel()

	start := time.Now()
	evaluation, err := s.deps.Evaluator.Evaluate(ctx, req.Question, req.Answer)
	s.deps.Metrics.RecordEvaluation(r.Context(), callStatus(ctx, err), time.Since(start))

	if err != nil {
		if errors.Is(err, ai.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, feedbackResponse{Feedback: feedbackInvalidInput})
			return
		}
		s.logger.Warn("failed to evaluate answer", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, feedbackResponse{Feedback: feedbackFailed})
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Feedback: evaluation.Feedback})
}

func (s *Server) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidData})
		return
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidData})
		return
	}
	if err := s.schema.Validate(doc); err != nil {
		s.logger.Debug("rejected transcript", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidData})
		return
	}

	var sub transcript.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidData})
		return
	}
	if sub.UserID == "" {
		sub.UserID = strings.TrimSpace(r.Header.Get(headerUserID))
	}

	ctx, cancel := callContext(r.Context(), s.cfg.Timeouts.Persistence)
	defer cancel()

	saved, err := s.deps.Store.Save(ctx, sub)
	s.deps.Metrics.RecordPersistence(r.Context(), callStatus(ctx, err))
	if err != nil {
		if errors.Is(err, transcript.ErrInvalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidData})
			return
		}
		s.logger.Warn("failed to save transcript", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errServer})
		return
	}

	s.logger.Info("transcript saved", zap.String("transcript_id", saved.ID), zap.String("company", saved.Company))
	writeJSON(w, http.StatusOK, saveResponse{Success: true, Transcript: saved})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Store.List(r.Context())
	if err != nil {
		s.logger.Warn("failed to list transcripts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, listResponse{
			Error:       errServer,
			Transcripts: []*transcript.Transcript{},
		})
		return
	}
	if items == nil {
		items = []*transcript.Transcript{}
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Transcripts: items, Count: len(items)})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	tr, err := s.deps.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: errNotFound})
			return
		}
		s.logger.Warn("failed to get transcript", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errServer})
		return
	}

	switch r.URL.Query().Get("format") {
	case "", report.FormatJSON:
		writeJSON(w, http.StatusOK, tr)
	case report.FormatMarkdown:
		writeText(w, "text/markdown; charset=utf-8", report.Markdown(tr))
	case report.FormatHTML:
		html, err := report.HTML(tr)
		if err != nil {
			s.logger.Warn("failed to render transcript", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errServer})
			return
		}
		writeText(w, "text/html; charset=utf-8", html)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errBadFormat})
	}
}

// admin requires the configured bearer token.
func (s *Server) admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errUnauthorized})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"Server error"}`, http.StatusInternalServerError)
	}
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
