package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/dstarenko/ideascope/internal/discovery"
	"github.com/dstarenko/ideascope/internal/domain"
	"github.com/dstarenko/ideascope/internal/identity"
	"github.com/dstarenko/ideascope/internal/store"
)

// WebSocketHandler serves the live discovery chat over a WebSocket. Each
// connection is bound to one discovery session; the client sends user turns
// and receives the assistant reply plus phase updates per turn.
type WebSocketHandler struct {
	svc           *discovery.Service
	repo          store.Repository
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket chat handler.
func NewWebSocketHandler(svc *discovery.Service, repo store.Repository, rl *RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:           svc,
		repo:          repo,
		rateLimiter:   rl,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsInbound is a client-to-server message.
type wsInbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsOutbound is a server-to-client message.
type wsOutbound struct {
	Type       string                  `json:"type"`
	Content    string                  `json:"content,omitempty"`
	Phase      domain.Phase            `json:"phase,omitempty"`
	IsComplete bool                    `json:"is_complete,omitempty"`
	Synthesis  *domain.SynthesisOutput `json:"synthesis,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := r.URL.Query().Get("session_id")
	slog.Info("Discovery chat connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	// Validate session ownership before upgrading.
	if _, err := h.svc.Get(r.Context(), userID, sessionID); err != nil {
		if errors.Is(err, discovery.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.chatLoop(ctx, ws, userID, sessionID)
	slog.Info("Discovery chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) chatLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Tolerate bare text frames as chat turns.
			msg = wsInbound{Type: "message", Content: string(raw)}
		}

		switch msg.Type {
		case "message":
			h.handleTurn(ctx, ws, userID, sessionID, msg.Content)
		case "ping":
			if err := h.writeJSON(ctx, ws, wsOutbound{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			if err := h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "unknown message type"}); err != nil {
				slog.Debug("Failed to send error frame", "error", err)
			}
		}

		// Update last seen asynchronously with timeout.
		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, userID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

func (h *WebSocketHandler) handleTurn(ctx context.Context, ws *websocket.Conn, userID, sessionID, content string) {
	if !h.rateLimiter.Allow(userID) {
		if err := h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "rate limit exceeded"}); err != nil {
			slog.Debug("Failed to send rate limit error", "error", err)
		}
		return
	}

	res, err := h.svc.SendMessage(ctx, userID, sessionID, content, nil)
	if err != nil {
		if writeErr := h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: turnErrorMessage(err)}); writeErr != nil {
			slog.Debug("Failed to send turn error", "error", writeErr)
		}
		return
	}

	if err := h.writeJSON(ctx, ws, wsOutbound{
		Type:       "reply",
		Content:    res.ResponseText,
		Phase:      res.Phase,
		IsComplete: res.IsComplete,
		Synthesis:  res.Synthesis,
	}); err != nil {
		slog.Warn("Failed to send chat reply", "error", err, "user_id", userID)
	}
}

func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, discovery.ErrEmptyMessage):
		return "message is empty"
	case errors.Is(err, discovery.ErrSessionNotActive):
		return "session is not active"
	case errors.Is(err, discovery.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, discovery.ErrConflict):
		return "session was updated concurrently, retry"
	default:
		return "turn failed, try again"
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v wsOutbound) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
