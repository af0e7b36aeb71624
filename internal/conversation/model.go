package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
	StatusClosed    Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusEscalated, StatusClosed:
		return true
	}
	return false
}

// Channel is the transport a conversation arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelAPI      Channel = "api"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelWhatsApp, ChannelAPI:
		return true
	}
	return false
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// User-facing texts for the generation failures.
const (
	BusyMessage        = "Service is busy. Please try again in a moment."
	UnavailableMessage = "AI service temporarily unavailable."
)

// MaxMessageLength bounds a single inbound user message, in characters.
const MaxMessageLength = 4000

// Conversation is one support session.
type Conversation struct {
	SessionID     string         `json:"session_id"`
	Channel       Channel        `json:"channel"`
	CustomerID    string         `json:"customer_id,omitempty"`
	Status        Status         `json:"status"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	MessageCount  int            `json:"message_count"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
}

// Message is one entry of a conversation transcript.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrConversationClosed rejects turns on closed conversations under the reject policy.
	ErrConversationClosed = errors.New("conversation is closed")
	// ErrServiceBusy reports upstream rate limiting.
	ErrServiceBusy = errors.New("service is busy")
	// ErrServiceUnavailable reports any other completion failure.
	ErrServiceUnavailable = errors.New("ai service unavailable")
	// ErrNotConfigured reports a provider without credentials or model.
	ErrNotConfigured = errors.New("AI service is not configured")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewSessionID returns a fresh "sess_" id with 12 hex characters.
func NewSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ClosedPolicy selects what a turn does on a closed conversation.
type ClosedPolicy string

const (
	ClosedAppend ClosedPolicy = "append"
	ClosedReopen ClosedPolicy = "reopen"
	ClosedReject ClosedPolicy = "reject"
)

// ParseClosedPolicy maps a config value to a policy, defaulting to append.
func ParseClosedPolicy(v string) ClosedPolicy {
	switch ClosedPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case ClosedReopen:
		return ClosedReopen
	case ClosedReject:
		return ClosedReject
	default:
		return ClosedAppend
	}
}
