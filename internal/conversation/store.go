package conversation

import "context"

// ListFilter narrows ListConversations.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Store persists conversations and their messages.
type Store interface {
	CreateConversation(ctx context.Context, conv Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, sessionID string) (*Conversation, error)
	UpdateStatus(ctx context.Context, sessionID string, status Status) error
	// MergeMetadata sets the given keys on the conversation metadata, keeping the rest.
	MergeMetadata(ctx context.Context, sessionID string, patch map[string]any) error
	SaveMessage(ctx context.Context, msg Message) (*Message, error)
	// History returns up to limit of the newest messages, oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	ListConversations(ctx context.Context, filter ListFilter) ([]Conversation, error)
}
