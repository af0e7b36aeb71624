package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/support-ai-platform/internal/intent"
	"github.com/wolfman30/support-ai-platform/internal/knowledge"
	"github.com/wolfman30/support-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/support-ai-platform/internal/orders"
	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	defaultHistoryWindow = 10
	defaultConfidence    = 0.9
	orderSource          = "orders"
	escalationFallback   = "Customer request"
)

// ResponseGenerator produces the assistant reply for a turn.
type ResponseGenerator interface {
	Generate(ctx context.Context, userMessage string, history []Message, contextText string) (*Generation, error)
}

// OrderContextProvider renders the order block for an extracted order id.
type OrderContextProvider interface {
	OrderContext(ctx context.Context, orderID string) (string, error)
}

// ContextRetriever looks up knowledge-base context for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (knowledge.Retrieval, error)
}

// EscalationEvent describes a hand-off to a human agent.
type EscalationEvent struct {
	SessionID   string
	Channel     Channel
	CustomerID  string
	Reason      string
	Trigger     string
	LastMessage string
	At          time.Time
}

// EscalationNotifier alerts the support team. Failures never fail the turn.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, evt EscalationEvent) error
}

// TurnRequest is one inbound customer message.
type TurnRequest struct {
	SessionID  string
	Message    string
	CustomerID string
	Channel    Channel
	Metadata   map[string]any
}

// TurnResult is the outcome of HandleTurn.
type TurnResult struct {
	SessionID         string
	Response          string
	Status            Status
	Escalate          bool
	EscalationTrigger string
	TokensUsed        int
	Sources           []string
	SuggestedActions  []intent.Action
	Confidence        float64
	NewConversation   bool
}

// Service runs chat turns against the store, retrieval and the generator.
type Service struct {
	store     Store
	generator ResponseGenerator
	orders    OrderContextProvider
	retriever ContextRetriever
	locker    SessionLocker
	notifier  EscalationNotifier
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
	tracer    trace.Tracer

	historyWindow int
	topK          int
	closedPolicy  ClosedPolicy
}

type ServiceOption func(*Service)

func WithOrderContext(p OrderContextProvider) ServiceOption {
	return func(s *Service) { s.orders = p }
}

func WithRetriever(r ContextRetriever) ServiceOption {
	return func(s *Service) { s.retriever = r }
}

func WithSessionLocker(l SessionLocker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithEscalationNotifier(n EscalationNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.ChatMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistoryWindow sets how many prior messages feed the generator.
func WithHistoryWindow(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

func WithTopK(k int) ServiceOption {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithClosedPolicy(p ClosedPolicy) ServiceOption {
	return func(s *Service) {
		if p != "" {
			s.closedPolicy = p
		}
	}
}

func NewService(store Store, generator ResponseGenerator, opts ...ServiceOption) *Service {
	if store == nil {
		panic("conversation: store required")
	}
	if generator == nil {
		panic("conversation: generator required")
	}
	s := &Service{
		store:         store,
		generator:     generator,
		locker:        NoopLocker{},
		logger:        logging.Default(),
		tracer:        otel.Tracer("support.internal.conversation.service"),
		historyWindow: defaultHistoryWindow,
		closedPolicy:  ClosedAppend,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleTurn processes one customer message end to end. Failures after the
// user message is stored leave it committed.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, &ValidationError{Field: "message", Reason: fmt.Sprintf("must be at most %d characters", MaxMessageLength)}
	}
	if req.Channel == "" {
		req.Channel = ChannelWeb
	}
	if !req.Channel.Valid() {
		return nil, &ValidationError{Field: "channel", Reason: fmt.Sprintf("unknown channel %q", req.Channel)}
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	ctx, span := s.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("conversation.channel", string(req.Channel)),
	))
	defer span.End()

	result, err := s.handleTurn(ctx, sessionID, message, req)
	outcome := "ok"
	if err != nil {
		span.RecordError(err)
		outcome = "error"
	} else if result.Escalate {
		outcome = "escalated"
	}
	s.metrics.ObserveTurn(string(req.Channel), outcome, time.Since(start))
	return result, err
}

func (s *Service) handleTurn(ctx context.Context, sessionID, message string, req TurnRequest) (*TurnResult, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	conv, created, err := s.resolveConversation(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("session_id", sessionID, "channel", string(conv.Channel))

	history, err := s.store.History(ctx, sessionID, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}

	if conv.Status == StatusClosed {
		switch s.closedPolicy {
		case ClosedReject:
			return nil, ErrConversationClosed
		case ClosedReopen:
			if err := s.store.UpdateStatus(ctx, sessionID, StatusActive); err != nil {
				return nil, fmt.Errorf("conversation: reopen: %w", err)
			}
			conv.Status = StatusActive
			logger.Info("closed conversation reopened")
		}
	}

	if _, err := s.store.SaveMessage(ctx, Message{SessionID: sessionID, Role: RoleUser, Content: message, Metadata: req.Metadata}); err != nil {
		return nil, fmt.Errorf("conversation: save user message: %w", err)
	}

	var (
		parts   []string
		sources []string
	)
	if orderCtx := s.orderContext(ctx, logger, message); orderCtx != "" {
		parts = append(parts, orderCtx)
		sources = append(sources, orderSource)
	}
	if retrieval := s.retrieve(ctx, logger, message); retrieval.Context != "" {
		parts = append(parts, retrieval.Context)
		sources = append(sources, retrieval.Sources...)
	}

	gen, err := s.generator.Generate(ctx, message, history, strings.Join(parts, "\n\n"))
	if err != nil {
		logger.Error("response generation failed", "error", err)
		return nil, err
	}

	if _, err := s.store.SaveMessage(ctx, Message{
		SessionID: sessionID,
		Role:      RoleAssistant,
		Content:   gen.Response,
		Metadata: map[string]any{
			"tokens_used":   gen.TokensUsed,
			"model":         gen.Model,
			"finish_reason": gen.FinishReason,
		},
	}); err != nil {
		return nil, fmt.Errorf("conversation: save assistant message: %w", err)
	}

	if gen.Escalate && conv.Status == StatusActive {
		if err := s.store.UpdateStatus(ctx, sessionID, StatusEscalated); err != nil {
			return nil, fmt.Errorf("conversation: escalate: %w", err)
		}
		conv.Status = StatusEscalated
		logger.Info("conversation escalated", "trigger", gen.EscalationTrigger)
		s.metrics.ObserveEscalation(gen.EscalationTrigger)
		s.notify(ctx, EscalationEvent{
			SessionID:   sessionID,
			Channel:     conv.Channel,
			CustomerID:  conv.CustomerID,
			Reason:      "automatic",
			Trigger:     gen.EscalationTrigger,
			LastMessage: message,
			At:          time.Now().UTC(),
		})
	}

	if sources == nil {
		sources = []string{}
	}
	return &TurnResult{
		SessionID:         sessionID,
		Response:          gen.Response,
		Status:            conv.Status,
		Escalate:          gen.Escalate,
		EscalationTrigger: gen.EscalationTrigger,
		TokensUsed:        gen.TokensUsed,
		Sources:           sources,
		SuggestedActions:  intent.SuggestActions(message),
		Confidence:        defaultConfidence,
		NewConversation:   created,
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, sessionID string, req TurnRequest) (*Conversation, bool, error) {
	conv, err := s.store.GetConversation(ctx, sessionID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("conversation: load conversation: %w", err)
	}
	conv, err = s.store.CreateConversation(ctx, Conversation{
		SessionID:  sessionID,
		Channel:    req.Channel,
		CustomerID: req.CustomerID,
		Status:     StatusActive,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, false, fmt.Errorf("conversation: create conversation: %w", err)
	}
	return conv, true, nil
}

func (s *Service) orderContext(ctx context.Context, logger *logging.Logger, message string) string {
	if s.orders == nil {
		return ""
	}
	orderID, ok := intent.ExtractOrderID(message)
	if !ok {
		return ""
	}
	text, err := s.orders.OrderContext(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			logger.Info("order referenced in message not found", "order_id", orderID)
		} else {
			logger.Warn("order lookup failed", "order_id", orderID, "error", err)
		}
		return ""
	}
	return text
}

func (s *Service) retrieve(ctx context.Context, logger *logging.Logger, message string) knowledge.Retrieval {
	if s.retriever == nil {
		return knowledge.Retrieval{}
	}
	retrieval, err := s.retriever.Retrieve(ctx, message, s.topK)
	if err != nil {
		logger.Warn("knowledge retrieval failed", "error", err)
		return knowledge.Retrieval{}
	}
	s.metrics.ObserveRetrieval(retrieval.Context != "")
	return retrieval
}

func (s *Service) notify(ctx context.Context, evt EscalationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyEscalation(ctx, evt); err != nil {
		s.logger.Warn("escalation notification failed", "session_id", evt.SessionID, "error", err)
	}
}

// Escalate hands a conversation to a human agent and records why. A closed
// conversation is only escalated under the reopen policy.
func (s *Service) Escalate(ctx context.Context, sessionID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.escalate")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	conv, err := s.store.GetConversation(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv.Status == StatusClosed && s.closedPolicy != ClosedReopen {
		return ErrConversationClosed
	}
	if err := s.store.UpdateStatus(ctx, sessionID, StatusEscalated); err != nil {
		return fmt.Errorf("conversation: escalate: %w", err)
	}
	if conv.Status == StatusClosed {
		s.logger.Info("closed conversation reopened for escalation", "session_id", sessionID)
	}
	shown := strings.TrimSpace(reason)
	if shown == "" {
		shown = escalationFallback
	}
	meta := map[string]any{"escalation_reason": nil}
	if reason != "" {
		meta["escalation_reason"] = reason
	}
	if _, err := s.store.SaveMessage(ctx, Message{
		SessionID: sessionID,
		Role:      RoleSystem,
		Content:   "Conversation escalated to human agent. Reason: " + shown,
		Metadata:  meta,
	}); err != nil {
		return fmt.Errorf("conversation: save escalation note: %w", err)
	}
	s.metrics.ObserveEscalation("manual")
	s.notify(ctx, EscalationEvent{
		SessionID:  sessionID,
		Channel:    conv.Channel,
		CustomerID: conv.CustomerID,
		Reason:     shown,
		Trigger:    "manual",
		At:         time.Now().UTC(),
	})
	return nil
}

// Assign records the agent handling a conversation. Active conversations are
// escalated first; the status stays escalated.
func (s *Service) Assign(ctx context.Context, sessionID, agentID string) (*Conversation, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, &ValidationError{Field: "agent_id", Reason: "must not be empty"}
	}
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	conv, err := s.store.GetConversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.Status == StatusClosed {
		return nil, ErrConversationClosed
	}
	if conv.Status == StatusActive {
		if err := s.store.UpdateStatus(ctx, sessionID, StatusEscalated); err != nil {
			return nil, fmt.Errorf("conversation: escalate: %w", err)
		}
		s.metrics.ObserveEscalation("assigned")
	}
	now := time.Now().UTC()
	if err := s.store.MergeMetadata(ctx, sessionID, map[string]any{
		"assigned_agent_id": agentID,
		"assigned_at":       now.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("conversation: assign: %w", err)
	}
	if _, err := s.store.SaveMessage(ctx, Message{
		SessionID: sessionID,
		Role:      RoleSystem,
		Content:   "Conversation assigned to agent " + agentID,
		Metadata:  map[string]any{"agent_id": agentID},
	}); err != nil {
		return nil, fmt.Errorf("conversation: save assignment note: %w", err)
	}
	s.logger.Info("conversation assigned", "session_id", sessionID, "agent_id", agentID)
	return s.store.GetConversation(ctx, sessionID)
}

// Close marks a conversation closed.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	if err := s.store.UpdateStatus(ctx, sessionID, StatusClosed); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("conversation: close: %w", err)
	}
	return nil
}

// History returns the newest limit messages of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return s.store.History(ctx, sessionID, limit)
}

// Conversation returns the stored conversation or ErrNotFound.
func (s *Service) Conversation(ctx context.Context, sessionID string) (*Conversation, error) {
	return s.store.GetConversation(ctx, sessionID)
}

// ListConversations returns conversations for the admin views.
func (s *Service) ListConversations(ctx context.Context, filter ListFilter) ([]Conversation, error) {
	return s.store.ListConversations(ctx, filter)
}
