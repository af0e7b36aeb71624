package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, received *map[string]any, status int, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/PHONE_1/messages", r.URL.Path)
		assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(received))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func testClient(base string) *Client {
	c := NewClient("test_token", "PHONE_1", "")
	c.SetGraphAPIBase(base)
	return c
}

func TestSendText(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, &got, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.OUT"}]}`)

	resp, err := testClient(server.URL).SendText(context.Background(), "15551234567", "Hello from support")
	require.NoError(t, err)
	assert.Equal(t, "wamid.OUT", resp.MessageID())
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "individual", got["recipient_type"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, map[string]any{"preview_url": false, "body": "Hello from support"}, got["text"])
}

func TestSendInteractiveButtonsCapsAtThree(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, &got, http.StatusOK, `{"messages":[{"id":"wamid.B"}]}`)

	buttons := []Button{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}, {ID: "d", Title: "D"}}
	_, err := testClient(server.URL).SendInteractiveButtons(context.Background(), "1555", "Pick one", buttons, WithHeader("Help"), WithFooter("Support AI"))
	require.NoError(t, err)

	interactive := got["interactive"].(map[string]any)
	assert.Equal(t, "button", interactive["type"])
	assert.Equal(t, map[string]any{"type": "text", "text": "Help"}, interactive["header"])
	assert.Equal(t, map[string]any{"text": "Support AI"}, interactive["footer"])
	sent := interactive["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, sent, 3)
	assert.Equal(t, map[string]any{"type": "reply", "reply": map[string]any{"id": "a", "title": "A"}}, sent[0])
}

func TestSendTemplateAndList(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, &got, http.StatusOK, `{"messages":[{"id":"wamid.T"}]}`)
	client := testClient(server.URL)

	_, err := client.SendTemplate(context.Background(), "1555", "order_update", "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "order_update", "language": map[string]any{"code": "en"}, "components": []any{}}, got["template"])

	_, err = client.SendList(context.Background(), "1555", "Choose a topic", "Topics", []ListSection{{Title: "Help", Rows: []ListRow{{ID: "returns", Title: "Returns"}}}})
	require.NoError(t, err)
	interactive := got["interactive"].(map[string]any)
	assert.Equal(t, "list", interactive["type"])
	assert.Equal(t, "Topics", interactive["action"].(map[string]any)["button"])
}

func TestMarkRead(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, &got, http.StatusOK, `{"success":true}`)

	require.NoError(t, testClient(server.URL).MarkRead(context.Background(), "wamid.IN"))
	assert.Equal(t, map[string]any{"messaging_product": "whatsapp", "status": "read", "message_id": "wamid.IN"}, got)
}

func TestSendErrors(t *testing.T) {
	var got map[string]any
	server := newTestServer(t, &got, http.StatusBadRequest, `{"error":{"message":"Invalid parameter","code":100}}`)

	_, err := testClient(server.URL).SendText(context.Background(), "1555", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 100")

	_, err = NewClient("", "", "").SendText(context.Background(), "1555", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, NewClient("tok", "", "").Enabled())
}
