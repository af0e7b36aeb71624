// Package admin serves the support dashboard endpoints.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	detailMessageSize = 100
)

// ConversationReader is the subset of conversation.Service the dashboard reads.
type ConversationReader interface {
	ListConversations(ctx context.Context, filter conversation.ListFilter) ([]conversation.Conversation, error)
	Conversation(ctx context.Context, sessionID string) (*conversation.Conversation, error)
	History(ctx context.Context, sessionID string, limit int) ([]conversation.Message, error)
}

// ConversationAssigner hands a conversation to a human agent.
type ConversationAssigner interface {
	Assign(ctx context.Context, sessionID, agentID string) (*conversation.Conversation, error)
}

// ConversationsHandler lists conversations for support staff.
type ConversationsHandler struct {
	reader   ConversationReader
	assigner ConversationAssigner
	logger   *logging.Logger
}

type HandlerOption func(*ConversationsHandler)

// WithAssigner enables POST /conversations/{sessionID}/assign.
func WithAssigner(a ConversationAssigner) HandlerOption {
	return func(h *ConversationsHandler) { h.assigner = a }
}

func NewConversationsHandler(reader ConversationReader, logger *logging.Logger, opts ...HandlerOption) *ConversationsHandler {
	if reader == nil {
		panic("admin: conversation reader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &ConversationsHandler{reader: reader, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/{sessionID}", h.GetConversation)
	if h.assigner != nil {
		r.Post("/conversations/{sessionID}/assign", h.AssignConversation)
	}
	return r
}

// ConversationsListResponse is the body of GET /admin/conversations.
type ConversationsListResponse struct {
	Conversations []conversation.Conversation `json:"conversations"`
	Count         int                         `json:"count"`
	Limit         int                         `json:"limit"`
	Offset        int                         `json:"offset"`
}

// ConversationDetailResponse is the body of GET /admin/conversations/{sessionID}.
type ConversationDetailResponse struct {
	Conversation *conversation.Conversation `json:"conversation"`
	Messages     []conversation.Message     `json:"messages"`
	MessageCount int                        `json:"message_count"`
}

// ListConversations handles GET /admin/conversations?status=&limit=&offset=.
func (h *ConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := conversation.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, err := parseBounded(q.Get("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	offset, err := parseBounded(q.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be zero or positive")
		return
	}

	items, err := h.reader.ListConversations(r.Context(), conversation.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("failed to list conversations", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching conversations")
		return
	}
	if items == nil {
		items = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, ConversationsListResponse{Conversations: items, Count: len(items), Limit: limit, Offset: offset})
}

// GetConversation handles GET /admin/conversations/{sessionID}.
func (h *ConversationsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	conv, err := h.reader.Conversation(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.Error("failed to fetch conversation", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching conversation")
		return
	}
	messages, err := h.reader.History(r.Context(), sessionID, detailMessageSize)
	if err != nil {
		h.logger.Error("failed to fetch conversation messages", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching conversation")
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, ConversationDetailResponse{Conversation: conv, Messages: messages, MessageCount: len(messages)})
}

// AssignResponse is the body of POST /admin/conversations/{sessionID}/assign.
type AssignResponse struct {
	Success      bool                       `json:"success"`
	SessionID    string                     `json:"session_id"`
	AgentID      string                     `json:"agent_id"`
	Message      string                     `json:"message"`
	Conversation *conversation.Conversation `json:"conversation"`
}

// AssignConversation handles POST /admin/conversations/{sessionID}/assign.
// The agent comes from ?agent_id= or a JSON body {"agent_id": ...}.
func (h *ConversationsHandler) AssignConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" && r.ContentLength != 0 {
		var body struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		agentID = body.AgentID
	}

	agentID = strings.TrimSpace(agentID)
	conv, err := h.assigner.Assign(r.Context(), sessionID, agentID)
	var verr *conversation.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	case errors.Is(err, conversation.ErrConversationClosed):
		writeError(w, http.StatusConflict, "Conversation is closed")
		return
	default:
		h.logger.Error("failed to assign conversation", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error assigning conversation")
		return
	}
	writeJSON(w, http.StatusOK, AssignResponse{
		Success:      true,
		SessionID:    sessionID,
		AgentID:      agentID,
		Message:      "Conversation assigned to agent " + agentID,
		Conversation: conv,
	})
}

// parseBounded parses v, returning def when empty. max < 0 means unbounded.
func parseBounded(v string, def, min, max int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < min || (max >= 0 && n > max) {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
