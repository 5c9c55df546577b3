package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// MemoryTriageRepository in-memory очередь на просмотр
type MemoryTriageRepository struct {
	mu    sync.RWMutex
	items map[string]entity.QueueItem
	now   func() time.Time
}

// NewMemoryTriageRepository создаёт пустую очередь
func NewMemoryTriageRepository() *MemoryTriageRepository {
	return &MemoryTriageRepository{
		items: make(map[string]entity.QueueItem),
		now:   time.Now,
	}
}

func (r *MemoryTriageRepository) Save(ctx context.Context, item *entity.QueueItem) error {
	r.mu.Lock()
	r.items[item.ID] = *item
	r.mu.Unlock()
	return nil
}

func (r *MemoryTriageRepository) Get(ctx context.Context, id string) (*entity.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &item, nil
}

func (r *MemoryTriageRepository) List(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	r.mu.RLock()
	out := make([]*entity.QueueItem, 0, len(r.items))
	for _, item := range r.items {
		item := item
		out = append(out, &item)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return lessUrgent(out[i], out[j])
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryTriageRepository) UpdateStatus(ctx context.Context, id string, status entity.QueueStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return port.ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = r.now().UTC()
	r.items[id] = item
	return nil
}

// lessUrgent: по убыванию срочности, элементы без оценки в конце, затем старые раньше.
func lessUrgent(a, b *entity.QueueItem) bool {
	switch {
	case a.UrgencyScore != nil && b.UrgencyScore == nil:
		return true
	case a.UrgencyScore == nil && b.UrgencyScore != nil:
		return false
	case a.UrgencyScore != nil && *a.UrgencyScore != *b.UrgencyScore:
		return *a.UrgencyScore > *b.UrgencyScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

var _ port.TriageRepository = (*MemoryTriageRepository)(nil)
