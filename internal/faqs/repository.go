package faqs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ListFilter narrows List to one category; the zero value lists everything.
type ListFilter struct {
	Category Category
}

// Repository stores FAQ entries. List and Get only see active entries and
// Delete is a soft delete.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]FAQ, error)
	Get(ctx context.Context, id string) (*FAQ, error)
	Create(ctx context.Context, in CreateInput) (*FAQ, error)
	Update(ctx context.Context, id string, in UpdateInput) (*FAQ, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps FAQs in process.
type MemoryRepository struct {
	mu   sync.RWMutex
	faqs map[string]FAQ
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		faqs: make(map[string]FAQ),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]FAQ, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FAQ, 0, len(r.faqs))
	for _, f := range r.faqs {
		if !f.IsActive {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*FAQ, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.faqs[id]
	if !ok || !f.IsActive {
		return nil, ErrFAQNotFound
	}
	return &f, nil
}

func (r *MemoryRepository) Create(_ context.Context, in CreateInput) (*FAQ, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keywords := in.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	f := FAQ{
		ID:        newFAQID(),
		Question:  in.Question,
		Answer:    in.Answer,
		Category:  in.Category,
		Keywords:  keywords,
		Priority:  in.Priority,
		IsActive:  true,
		CreatedAt: r.now(),
	}
	r.faqs[f.ID] = f
	return &f, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, in UpdateInput) (*FAQ, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.faqs[id]
	if !ok {
		return nil, ErrFAQNotFound
	}
	in.apply(&f)
	now := r.now()
	f.UpdatedAt = &now
	r.faqs[id] = f
	return &f, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.faqs[id]
	if !ok || !f.IsActive {
		return ErrFAQNotFound
	}
	f.IsActive = false
	now := r.now()
	f.UpdatedAt = &now
	r.faqs[id] = f
	return nil
}
