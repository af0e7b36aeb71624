package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/support-ai-platform/internal/conversation"
)

type storeReader struct {
	store   *conversation.MemoryStore
	listErr error
}

func (r storeReader) ListConversations(ctx context.Context, filter conversation.ListFilter) ([]conversation.Conversation, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.store.ListConversations(ctx, filter)
}

func (r storeReader) Conversation(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	return r.store.GetConversation(ctx, sessionID)
}

func (r storeReader) History(ctx context.Context, sessionID string, limit int) ([]conversation.Message, error) {
	return r.store.History(ctx, sessionID, limit)
}

func seededStore(t *testing.T) *conversation.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := conversation.NewMemoryStore()
	for i, status := range []conversation.Status{conversation.StatusActive, conversation.StatusEscalated, conversation.StatusActive} {
		id := fmt.Sprintf("sess_%d", i)
		_, err := store.CreateConversation(ctx, conversation.Conversation{SessionID: id, Channel: conversation.ChannelWeb, Status: conversation.StatusActive})
		require.NoError(t, err)
		if status != conversation.StatusActive {
			require.NoError(t, store.UpdateStatus(ctx, id, status))
		}
	}
	for i := 0; i < 120; i++ {
		_, err := store.SaveMessage(ctx, conversation.Message{SessionID: "sess_0", Role: conversation.RoleUser, Content: fmt.Sprintf("message %d", i)})
		require.NoError(t, err)
	}
	return store
}

func TestListConversations(t *testing.T) {
	routes := NewConversationsHandler(storeReader{store: seededStore(t)}, nil).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations?status=escalated", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConversationsListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "sess_1", resp.Conversations[0].SessionID)
	assert.Equal(t, defaultPageSize, resp.Limit)

	for _, target := range []string{"/conversations?status=assigned", "/conversations?limit=0", "/conversations?limit=101", "/conversations?offset=-1"} {
		rec = httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListConversationsFailure(t *testing.T) {
	routes := NewConversationsHandler(storeReader{store: conversation.NewMemoryStore(), listErr: errors.New("db down")}, nil).Routes()
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetConversation(t *testing.T) {
	routes := NewConversationsHandler(storeReader{store: seededStore(t)}, nil).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/sess_0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConversationDetailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, detailMessageSize, resp.MessageCount)
	assert.Equal(t, "message 119", resp.Messages[len(resp.Messages)-1].Content)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/sess_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type noReply struct{}

func (noReply) Generate(context.Context, string, []conversation.Message, string) (*conversation.Generation, error) {
	return &conversation.Generation{Response: "ok"}, nil
}

func TestAssignConversation(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	_, err := store.CreateConversation(ctx, conversation.Conversation{SessionID: "sess_done"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, "sess_done", conversation.StatusClosed))
	svc := conversation.NewService(store, noReply{})
	routes := NewConversationsHandler(svc, nil, WithAssigner(svc)).Routes()

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/sess_0/assign?agent_id=agent_7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssignResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "agent_7", resp.AgentID)
	assert.Equal(t, conversation.StatusEscalated, resp.Conversation.Status)
	assert.Equal(t, "agent_7", resp.Conversation.Metadata["assigned_agent_id"])
	assert.NotEmpty(t, resp.Conversation.Metadata["assigned_at"])

	history, err := store.History(ctx, "sess_0", 1)
	require.NoError(t, err)
	assert.Equal(t, "Conversation assigned to agent agent_7", history[0].Content)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/sess_1/assign", bytes.NewReader([]byte(`{"agent_id":"agent_9"}`))))
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		target string
		status int
	}{
		{"/conversations/sess_2/assign", http.StatusBadRequest},
		{"/conversations/sess_missing/assign?agent_id=a", http.StatusNotFound},
		{"/conversations/sess_done/assign?agent_id=a", http.StatusConflict},
	}
	for _, tt := range tests {
		rec = httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))
		assert.Equal(t, tt.status, rec.Code, tt.target)
	}
}

func TestAssignRouteRequiresAssigner(t *testing.T) {
	routes := NewConversationsHandler(storeReader{store: seededStore(t)}, nil).Routes()
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/sess_0/assign?agent_id=a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
