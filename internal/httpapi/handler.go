// Package httpapi provides the HTTP handlers for the IdeaScope API.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dstarenko/ideascope/internal/discovery"
	"github.com/dstarenko/ideascope/internal/domain"
	"github.com/dstarenko/ideascope/internal/identity"
	"github.com/dstarenko/ideascope/internal/store"
)

// Handler serves the discovery session endpoints.
type Handler struct {
	svc         *discovery.Service
	repo        store.Repository
	rateLimiter *RateLimiter
}

// NewHandler creates a new Handler.
func NewHandler(svc *discovery.Service, repo store.Repository, rl *RateLimiter) *Handler {
	return &Handler{svc: svc, repo: repo, rateLimiter: rl}
}

// Routes mounts the discovery endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/discovery/sessions", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Get("/", h.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/messages", h.SendMessage)
			r.Post("/skip", h.SkipSession)
			r.Post("/advance", h.AdvancePhase)
			r.Post("/reset", h.ResetSession)
			r.Post("/synthesize", h.ForceSynthesis)
			r.Get("/summary", h.GetSummary)
		})
	})
	r.Get("/api/health", h.Health)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type startSessionRequest struct {
	IdeaID   string `json:"idea_id"`
	SeedIdea string `json:"seed_idea"`
}

type sendMessageRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type advancePhaseRequest struct {
	Phase string `json:"phase"`
}

// StartSession creates a new discovery session for the caller.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req startSessionRequest
	if r.Body != nil {
		// An empty body starts a session without a seed idea.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.svc.Start(r.Context(), userID, req.IdeaID, req.SeedIdea)
	if err != nil {
		slog.Error("Failed to start discovery session", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	JSON(w, http.StatusCreated, session)
}

// ListSessions returns the caller's sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	sessions, err := h.svc.List(r.Context(), userID, 50)
	if err != nil {
		slog.Error("Failed to list discovery sessions", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.DiscoverySession{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession returns a single session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.svc.Get(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, session)
}

// SendMessage runs one conversation turn.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.SendMessage(r.Context(), userID, sessionID, req.Message, &discovery.TurnOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SkipSession terminates the session without a synthesis.
func (h *Handler) SkipSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.svc.Skip(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, session)
}

// AdvancePhase sets the session phase directly.
func (h *Handler) AdvancePhase(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req advancePhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		Error(w, http.StatusBadRequest, "unknown phase")
		return
	}

	session, err := h.svc.ForceAdvance(r.Context(), userID, sessionID, phase)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, session)
}

// ResetSession rewinds the session to the first phase.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.svc.ResetToVision(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, session)
}

// ForceSynthesis runs a one-shot synthesis over the transcript so far.
func (h *Handler) ForceSynthesis(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	out, err := h.svc.ForceSynthesis(r.Context(), userID, sessionID, nil)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	JSON(w, http.StatusOK, out)
}

// GetSummary returns the completed-session summary, 404 until completion.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.svc.Summary(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, userID, sessionID)
		return
	}
	if summary == nil {
		Error(w, http.StatusNotFound, "session not completed")
		return
	}
	JSON(w, http.StatusOK, summary)
}

// Health reports liveness and database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		slog.Error("Health check DB ping failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": "unreachable"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, userID, sessionID string) {
	switch {
	case errors.Is(err, discovery.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, discovery.ErrSessionNotActive):
		Error(w, http.StatusConflict, "session is not active")
	case errors.Is(err, discovery.ErrConflict):
		Error(w, http.StatusConflict, "session was updated concurrently, retry")
	case errors.Is(err, discovery.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, discovery.ErrInvalidPhase):
		Error(w, http.StatusBadRequest, "unknown phase")
	case errors.Is(err, discovery.ErrSynthesisFailed):
		Error(w, http.StatusBadGateway, "synthesis failed, try again")
	default:
		slog.Error("Discovery operation failed", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
