// Package handler exposes the assessment engine over a JSON HTTP API
// consumed by the separate frontend.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/session"
	"github.com/examforge/examforge/internal/store"
)

// Config holds runtime handler parameters.
type Config struct {
	DefaultCount   int
	DefaultTime    int
	MaxUploadBytes int64
}

// Generator is the slice of the LLM client the HTTP layer itself uses.
// Per-session collaborator calls go through the session manager instead.
type Generator interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]json.RawMessage, error)
	Model() string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	manager *session.Manager
	llm     Generator
	store   *store.Store
	config  Config
}

// New creates a new Handler.
func New(m *session.Manager, l Generator, s *store.Store, cfg Config) *Handler {
	return &Handler{manager: m, llm: l, store: s, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/status", h.handleStatus)

	r.Post("/api/materials", h.handleUploadMaterial)
	r.Get("/api/materials", h.handleListMaterials)

	r.Post("/api/sessions", h.handleCreateSession)
	r.Route("/api/sessions/{sessionID}", func(sub chi.Router) {
		sub.Get("/", h.handleSessionView)
		sub.Delete("/", h.handleDeleteSession)
		sub.Post("/select", h.handleSelect)
		sub.Post("/confirm", h.handleConfirm)
		sub.Post("/advance", h.handleAdvance)
		sub.Post("/back", h.handleBack)
		sub.Post("/regenerate", h.handleRegenerate)
		sub.Post("/submit", h.handleSubmit)
		sub.Post("/retake", h.handleRetake)
		sub.Get("/results", h.handleResults)
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.MaterialCount()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "err.bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"model":     h.llm.Model(),
		"sessions":  h.manager.Count(),
		"materials": materials,
	})
}

type createSessionRequest struct {
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
	TimeLimitSecs int    `json:"time_limit_seconds"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "err.bad_request", err)
		return
	}
	if req.Topic == "" {
		writeError(w, r, http.StatusBadRequest, "err.bad_request", nil)
		return
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = h.config.DefaultCount
	}
	if req.TimeLimitSecs <= 0 {
		req.TimeLimitSecs = h.config.DefaultTime
	}

	cfg := model.SessionConfig{
		Topic:         req.Topic,
		QuestionCount: req.QuestionCount,
		TimeLimitSecs: req.TimeLimitSecs,
	}
	h.startSession(w, r, cfg)
}

// startSession generates a question set and registers a new session.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, cfg model.SessionConfig) {
	raw, err := h.llm.GenerateQuestions(r.Context(), cfg.Topic, cfg.QuestionCount)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "err.generator", err)
		return
	}

	ctrl := h.manager.Create(cfg, raw)
	view := ctrl.View()
	if view.Status == model.StatusEmpty {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"session": view,
			"error":   localizedEmptySet(r),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": view})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	id := chi.URLParam(r, "sessionID")
	ctrl, ok := h.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "err.session_not_found", nil)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) handleSessionView(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, ok := h.manager.Get(id); !ok {
		writeError(w, r, http.StatusNotFound, "err.session_not_found", nil)
		return
	}
	h.manager.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	Option string `json:"option"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == "" {
		writeError(w, r, http.StatusBadRequest, "err.bad_request", err)
		return
	}
	if err := ctrl.Select(req.Option); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	verdict, err := ctrl.Confirm(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verdict": verdict,
		"session": ctrl.View(),
	})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.Advance(r.Context()); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.Back(); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.Regenerate(r.Context()); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.ForceSubmit(r.Context()); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": ctrl.View()})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	summary, err := ctrl.Results()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// handleRetake discards the session and starts a brand-new one with the
// same topic, question count, and time budget.
func (h *Handler) handleRetake(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	cfg := ctrl.Config()
	h.manager.Delete(ctrl.ID())
	slog.Info("retake requested", "old_session_id", ctrl.ID(), "topic", cfg.Topic)
	h.startSession(w, r, cfg)
}
