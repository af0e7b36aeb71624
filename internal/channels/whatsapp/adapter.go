package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-ai-platform/internal/conversation"
	"github.com/wolfman30/support-ai-platform/internal/events"
	"github.com/wolfman30/support-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	sessionPrefix     = "wa_"
	maxWebhookBody    = 1 << 20
	inboundTimeout    = 10 * time.Second
	agentRequestLabel = "Customer requested an agent on WhatsApp"
)

// Messenger is the subset of Client used by the adapter.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (*SendResponse, error)
	SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button, opts ...InteractiveOption) (*SendResponse, error)
	SendList(ctx context.Context, to, body, buttonText string, sections []ListSection, opts ...InteractiveOption) (*SendResponse, error)
	SendTemplate(ctx context.Context, to, name, language string, components []TemplateComponent) (*SendResponse, error)
	MarkRead(ctx context.Context, messageID string) error
}

// TurnPublisher queues a turn for the worker pool.
type TurnPublisher interface {
	EnqueueTurn(ctx context.Context, job conversation.TurnJob) (conversation.TurnJob, error)
}

// Escalator escalates a session on an explicit customer request.
type Escalator interface {
	Escalate(ctx context.Context, sessionID, reason string) error
}

type processedStore interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// AdapterConfig holds the webhook credentials.
type AdapterConfig struct {
	VerifyToken string
	AppSecret   string
}

// Adapter is the WhatsApp channel: it accepts webhooks, queues turns and
// delivers their results.
type Adapter struct {
	cfg       AdapterConfig
	messenger Messenger
	publisher TurnPublisher
	escalator Escalator
	processed processedStore
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
}

type AdapterOption func(*Adapter)

func WithEscalator(e Escalator) AdapterOption {
	return func(a *Adapter) { a.escalator = e }
}

func WithProcessedStore(store processedStore) AdapterOption {
	return func(a *Adapter) { a.processed = store }
}

func WithMetrics(m *metrics.ChatMetrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

func NewAdapter(cfg AdapterConfig, messenger Messenger, publisher TurnPublisher, logger *logging.Logger, opts ...AdapterOption) *Adapter {
	if messenger == nil {
		panic("whatsapp: messenger required")
	}
	if publisher == nil {
		panic("whatsapp: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{cfg: cfg, messenger: messenger, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes mounts GET /webhook, POST /webhook and POST /send.
func (a *Adapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/webhook", a.HandleVerification)
	r.Post("/webhook", a.HandleWebhook)
	r.Post("/send", a.HandleAgentSend)
	return r
}

// SessionID derives the conversation id for a phone number.
func SessionID(phone string) string {
	return sessionPrefix + phone
}

// HandleVerification handles the GET subscription challenge from Meta.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := VerifySubscription(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), a.cfg.VerifyToken)
	if !ok {
		a.logger.Warn("whatsapp webhook verification failed")
		writeError(w, http.StatusForbidden, "Verification failed")
		return
	}
	a.logger.Info("whatsapp webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// HandleWebhook acknowledges inbound events and queues their messages.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if a.cfg.AppSecret != "" && !VerifySignature(a.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		a.metrics.ObserveWebhookEvent("bad_signature")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	messages := ParseWebhookEvent(event)
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no_message"})
		return
	}

	// Meta retries anything slower than a few seconds, so acknowledge first.
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), inboundTimeout)
	defer cancel()
	for _, msg := range messages {
		a.handleInbound(ctx, msg)
	}
}

func (a *Adapter) handleInbound(ctx context.Context, msg InboundMessage) {
	a.metrics.ObserveWebhookEvent(msg.Type)
	logger := a.logger.With("wa_message_id", msg.MessageID, "type", msg.Type)

	if a.processed != nil && msg.MessageID != "" {
		first, err := a.processed.MarkProcessed(ctx, events.ProviderWhatsApp, msg.MessageID)
		if err != nil {
			logger.Warn("whatsapp dedup check failed", "error", err)
		} else if !first {
			logger.Info("skipping duplicate whatsapp message")
			return
		}
	}

	sessionID := SessionID(msg.From)
	if msg.ButtonReply != nil {
		a.handleButton(ctx, sessionID, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" && msg.ListReply != nil {
		if a.handleTopic(ctx, sessionID, msg) {
			return
		}
		text = msg.ListReply.Title
	}
	if text == "" {
		a.sendText(ctx, msg.From, TemplateTextOnly)
		return
	}

	if err := a.messenger.MarkRead(ctx, msg.MessageID); err != nil {
		logger.Debug("failed to mark whatsapp message read", "error", err)
	}
	if menuKeywords[strings.ToLower(text)] {
		a.sendMenu(ctx, msg.From)
		return
	}

	job, err := a.publisher.EnqueueTurn(ctx, conversation.TurnJob{
		SessionID:         sessionID,
		Message:           text,
		Channel:           conversation.ChannelWhatsApp,
		Recipient:         msg.From,
		ProviderMessageID: msg.MessageID,
		Metadata: map[string]any{
			"phone":               msg.From,
			"name":                msg.FromName,
			"whatsapp_message_id": msg.MessageID,
		},
	})
	if err != nil {
		logger.Error("failed to enqueue whatsapp turn", "session_id", sessionID, "error", err)
		a.sendText(ctx, msg.From, TemplateError)
		return
	}
	logger.Info("whatsapp turn queued", "job_id", job.ID, "session_id", sessionID)
}

func (a *Adapter) handleButton(ctx context.Context, sessionID string, msg InboundMessage) {
	switch msg.ButtonReply.ID {
	case ButtonYesAgent:
		a.requestAgent(ctx, sessionID, msg.From)
	case ButtonNoAgent:
		a.sendText(ctx, msg.From, TemplateClosing)
	default:
		a.logger.Info("unknown whatsapp button reply", "button_id", msg.ButtonReply.ID)
	}
}

// handleTopic answers help menu picks that need no model turn. It reports
// false when the row title should be queued as a normal question.
func (a *Adapter) handleTopic(ctx context.Context, sessionID string, msg InboundMessage) bool {
	switch msg.ListReply.ID {
	case TopicOrder:
		a.sendText(ctx, msg.From, TemplateOrderAsk)
	case TopicAgent:
		a.requestAgent(ctx, sessionID, msg.From)
	default:
		return false
	}
	return true
}

func (a *Adapter) requestAgent(ctx context.Context, sessionID, to string) {
	if a.escalator != nil {
		if err := a.escalator.Escalate(ctx, sessionID, agentRequestLabel); err != nil {
			a.logger.Error("failed to escalate whatsapp session", "session_id", sessionID, "error", err)
			a.sendText(ctx, to, TemplateError)
			return
		}
	}
	a.sendText(ctx, to, TemplateEscalation)
}

func (a *Adapter) sendMenu(ctx context.Context, to string) {
	if _, err := a.messenger.SendList(ctx, to, menuPrompt, menuButton, menuSections); err != nil {
		a.metrics.ObserveOutbound("failed")
		a.logger.Warn("whatsapp menu send failed", "error", err)
		return
	}
	a.metrics.ObserveOutbound("sent")
}

// DeliverTurn sends the welcome (for new conversations), the reply and the
// escalation prompt when the turn escalated.
func (a *Adapter) DeliverTurn(ctx context.Context, job conversation.TurnJob, result *conversation.TurnResult) error {
	to := job.Recipient
	if result.NewConversation {
		a.sendText(ctx, to, TemplateWelcome)
	}
	if _, err := a.messenger.SendText(ctx, to, result.Response); err != nil {
		a.metrics.ObserveOutbound("failed")
		return fmt.Errorf("whatsapp: deliver reply: %w", err)
	}
	a.metrics.ObserveOutbound("sent")
	if result.Escalate {
		if _, err := a.messenger.SendInteractiveButtons(ctx, to, escalationPrompt, escalationButtons); err != nil {
			a.metrics.ObserveOutbound("failed")
			return fmt.Errorf("whatsapp: deliver escalation prompt: %w", err)
		}
		a.metrics.ObserveOutbound("sent")
	}
	return nil
}

// DeliverFailure tells the customer the turn could not be answered.
func (a *Adapter) DeliverFailure(ctx context.Context, job conversation.TurnJob, _ error) error {
	if _, err := a.messenger.SendText(ctx, job.Recipient, TemplateError); err != nil {
		a.metrics.ObserveOutbound("failed")
		return fmt.Errorf("whatsapp: deliver error notice: %w", err)
	}
	a.metrics.ObserveOutbound("sent")
	return nil
}

// AgentSendRequest is the body of POST /whatsapp/send. Template, when set,
// sends that pre-approved template instead of Message.
type AgentSendRequest struct {
	To         string              `json:"to"`
	Message    string              `json:"message,omitempty"`
	Template   string              `json:"template,omitempty"`
	Language   string              `json:"language,omitempty"`
	Components []TemplateComponent `json:"components,omitempty"`
}

// HandleAgentSend lets a human agent message a customer directly.
func (a *Adapter) HandleAgentSend(w http.ResponseWriter, r *http.Request) {
	var req AgentSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.To) == "" || (strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Template) == "") {
		writeError(w, http.StatusBadRequest, "to and message or template are required")
		return
	}
	var (
		resp *SendResponse
		err  error
	)
	if req.Template != "" {
		resp, err = a.messenger.SendTemplate(r.Context(), req.To, req.Template, req.Language, req.Components)
	} else {
		resp, err = a.messenger.SendText(r.Context(), req.To, req.Message)
	}
	if err != nil {
		a.metrics.ObserveOutbound("failed")
		a.logger.Error("agent whatsapp send failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	a.metrics.ObserveOutbound("sent")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message_id": resp.MessageID()})
}

func (a *Adapter) sendText(ctx context.Context, to, body string) {
	if _, err := a.messenger.SendText(ctx, to, body); err != nil {
		a.metrics.ObserveOutbound("failed")
		a.logger.Warn("whatsapp send failed", "error", err)
		return
	}
	a.metrics.ObserveOutbound("sent")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
