// Package handler hosts tutoring sessions over a JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edspace/lectern/internal/auditor"
	"github.com/edspace/lectern/internal/deck"
	"github.com/edspace/lectern/internal/model"
	"github.com/edspace/lectern/internal/oracle"
	"github.com/edspace/lectern/internal/speech"
	"github.com/edspace/lectern/internal/store"
	"github.com/edspace/lectern/internal/tutor"
)

// SessionDefaults carries the tunables applied to every session this
// handler creates.
type SessionDefaults struct {
	Temperature         float64
	ContextWindow       int
	SimilarityThreshold float64
	SimilarityWindow    int
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	registry *Registry
	provider oracle.Provider
	auditor  *auditor.Auditor
	store    *store.Store // nil disables persistence
	speech   speech.Synthesizer
	defaults SessionDefaults
}

// New creates a new Handler. st may be nil; synth defaults to Noop.
func New(provider oracle.Provider, st *store.Store, synth speech.Synthesizer, defaults SessionDefaults) *Handler {
	if synth == nil {
		synth = speech.Noop{}
	}
	return &Handler{
		registry: NewRegistry(),
		provider: provider,
		auditor:  auditor.New(provider),
		store:    st,
		speech:   synth,
		defaults: defaults,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/sessions", h.handleCreateSession)
	r.Post("/sessions/{sessionID}/explain", h.handleExplain)
	r.Post("/sessions/{sessionID}/message", h.handleMessage)
	r.Get("/sessions/{sessionID}/quiz/ready", h.handleQuizReady)
	r.Post("/sessions/{sessionID}/quiz", h.handleGenerateQuiz)
	r.Post("/sessions/{sessionID}/quiz/answers", h.handleGradeQuiz)
	r.Post("/sessions/{sessionID}/advance", h.handleAdvance)
	r.Get("/sessions/{sessionID}/report", h.handleReport)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	DeckText  string `json:"deck_text"`
	StartPage int    `json:"start_page"`
	Professor string `json:"professor"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	Professor   string `json:"professor"`
	CurrentPage int    `json:"current_page"`
	TotalSlides int    `json:"total_slides"`
	State       string `json:"state"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	slides, err := deck.Parse(req.DeckText)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sess, err := tutor.NewSession(tutor.Config{
		Professor:           req.Professor,
		Slides:              slides,
		StartPage:           req.StartPage,
		Provider:            h.provider,
		Temperature:         h.defaults.Temperature,
		ContextWindow:       h.defaults.ContextWindow,
		SimilarityThreshold: h.defaults.SimilarityThreshold,
		SimilarityWindow:    h.defaults.SimilarityWindow,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id := h.registry.Add(sess)
	slog.Info("session created", "session_id", id, "professor", req.Professor, "slides", len(slides))

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:   id,
		Professor:   sess.Professor(),
		CurrentPage: sess.CurrentPage(),
		TotalSlides: len(slides),
		State:       sess.State().String(),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*tutor.Session, string, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, id, false
	}
	return sess, id, true
}

type explainResponse struct {
	Explanation *model.Explanation `json:"explanation"`
	Page        int                `json:"page"`
	AudioRef    string             `json:"audio_ref,omitempty"`
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.session(w, r)
	if !ok {
		return
	}

	expl, err := sess.ExplainCurrentSlide(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	audioRef, err := h.speech.Synthesize(r.Context(), expl.ProfResponse.Explanation)
	if err != nil {
		// Speech is decorative; the explanation still goes out.
		slog.Error("speech synthesis failed", "session_id", id, "error", err)
		audioRef = ""
	}

	writeJSON(w, http.StatusOK, explainResponse{
		Explanation: expl,
		Page:        sess.CurrentPage(),
		AudioRef:    audioRef,
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Assessment *model.Assessment `json:"assessment"`
	QuizReady  bool              `json:"quiz_ready"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	assessment, err := sess.EvaluateResponse(r.Context(), req.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ready, err := sess.CheckQuizReadiness()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Assessment: assessment, QuizReady: ready})
}

func (h *Handler) handleQuizReady(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.session(w, r)
	if !ok {
		return
	}

	ready, err := sess.CheckQuizReadiness()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}

// clientQuestion is a question with the correct answer and explanation
// withheld.
type clientQuestion struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"question"`
	Options []model.Option `json:"options"`
}

type clientQuiz struct {
	Title     string           `json:"quiz_title"`
	Page      int              `json:"page"`
	Questions []clientQuestion `json:"questions"`
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.session(w, r)
	if !ok {
		return
	}

	quiz, err := sess.GenerateQuiz(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := clientQuiz{Title: quiz.Title, Page: quiz.Page}
	for _, q := range quiz.Questions {
		out.Questions = append(out.Questions, clientQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type gradeRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *Handler) handleGradeQuiz(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.session(w, r)
	if !ok {
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := sess.GradeQuiz(req.Answers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type advanceResponse struct {
	CurrentPage int  `json:"current_page"`
	Ended       bool `json:"ended"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.session(w, r)
	if !ok {
		return
	}

	page, ended, err := sess.Advance()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{CurrentPage: page, Ended: ended})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := h.session(w, r)
	if !ok {
		return
	}

	report, err := sess.BuildReport(r.Context(), h.auditor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.store != nil {
		if err := h.store.SaveSession(id, sess.Professor(), sess.StartedAt(), sess.Abnormal(), sess.History(), sess.QuizResults()); err != nil {
			slog.Error("persist session failed", "session_id", id, "error", err)
		} else if err := h.store.SaveReport(id, report); err != nil {
			slog.Error("persist report failed", "session_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain error classes to HTTP statuses: conflicting
// state 409, broken preconditions and parse failures 400, oracle trouble
// 502.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		stateErr *tutor.StateError
		precErr  *tutor.PreconditionError
		parseErr *deck.ParseError
		invErr   *oracle.InvocationError
		respErr  *oracle.ResponseError
	)
	switch {
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &precErr), errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invErr), errors.As(err, &respErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
