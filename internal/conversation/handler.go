package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/internal/intent"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxChatBody         = 64 << 10
)

// Handler wires the chat HTTP endpoints to the Service.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts POST /, GET /history/{sessionID}, POST /escalate/{sessionID} and POST /close/{sessionID}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Chat)
	r.Get("/history/{sessionID}", h.History)
	r.Post("/escalate/{sessionID}", h.Escalate)
	r.Post("/close/{sessionID}", h.Close)
	return r
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message    string         `json:"message"`
	SessionID  string         `json:"session_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Response         string          `json:"response"`
	SessionID        string          `json:"session_id"`
	Status           Status          `json:"status"`
	Confidence       float64         `json:"confidence"`
	Sources          []string        `json:"sources"`
	SuggestedActions []intent.Action `json:"suggested_actions"`
	Escalate         bool            `json:"escalate"`
	Metadata         map[string]any  `json:"metadata"`
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.HandleTurn(r.Context(), TurnRequest{
		SessionID:  req.SessionID,
		Message:    req.Message,
		CustomerID: req.CustomerID,
		Channel:    Channel(req.Channel),
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, err, req.SessionID)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:         result.Response,
		SessionID:        result.SessionID,
		Status:           result.Status,
		Confidence:       result.Confidence,
		Sources:          result.Sources,
		SuggestedActions: result.SuggestedActions,
		Escalate:         result.Escalate,
		Metadata:         map[string]any{"tokens_used": result.TokensUsed},
	})
}

type historyResponse struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Channel   Channel   `json:"channel"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// History handles GET /chat/history/{sessionID}?limit=N.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxHistoryLimit {
			limit = n
		}
	}

	conv, err := h.service.Conversation(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}
	messages, err := h.service.History(r.Context(), sessionID, limit)
	if err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Status:    conv.Status,
		Channel:   conv.Channel,
		Messages:  messages,
		CreatedAt: conv.CreatedAt,
	})
}

type actionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Escalate handles POST /chat/escalate/{sessionID}?reason=...
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	reason := r.URL.Query().Get("reason")
	if reason == "" && r.ContentLength > 0 {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&body); err == nil {
			reason = body.Reason
		}
	}
	if err := h.service.Escalate(r.Context(), sessionID, reason); err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Success:   true,
		Message:   "Conversation has been escalated to a human agent",
		SessionID: sessionID,
	})
}

// Close handles POST /chat/close/{sessionID}.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.service.Close(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Conversation closed", SessionID: sessionID})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, sessionID string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, ErrConversationClosed):
		writeError(w, http.StatusConflict, "Conversation is closed")
	case errors.Is(err, ErrServiceBusy):
		writeError(w, http.StatusTooManyRequests, BusyMessage)
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, UnavailableMessage)
	default:
		h.logger.Error("chat request failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
