package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps conversations in process. Used by tests and local runs without DATABASE_URL.
type MemoryStore struct {
	mu       sync.RWMutex
	convs    map[string]*Conversation
	messages map[string][]Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:    make(map[string]*Conversation),
		messages: make(map[string][]Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv Conversation) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.convs[conv.SessionID]; ok {
		out := *existing
		return &out, nil
	}
	now := s.now()
	if conv.Status == "" {
		conv.Status = StatusActive
	}
	if conv.Channel == "" {
		conv.Channel = ChannelWeb
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
	stored := conv
	s.convs[conv.SessionID] = &stored
	return &conv, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.withCounts(*conv)
	return &out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, sessionID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[sessionID]
	if !ok {
		return ErrNotFound
	}
	conv.Status = status
	conv.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) MergeMetadata(_ context.Context, sessionID string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[sessionID]
	if !ok {
		return ErrNotFound
	}
	merged := make(map[string]any, len(conv.Metadata)+len(patch))
	for k, v := range conv.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	conv.Metadata = merged
	conv.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[msg.SessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = s.now()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	conv.UpdatedAt = msg.CreatedAt
	return &msg, nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, filter ListFilter) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Conversation
	for _, conv := range s.convs {
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		out = append(out, s.withCounts(*conv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) withCounts(conv Conversation) Conversation {
	msgs := s.messages[conv.SessionID]
	conv.MessageCount = len(msgs)
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1].CreatedAt
		conv.LastMessageAt = &last
	}
	return conv
}
