package memory

import (
	"context"
	"sort"
	"sync"

	"contestlet-backend/internal/features/notification/models"
	"contestlet-backend/internal/features/notification/repository"
)

type memoryRepository struct {
	mu     sync.Mutex
	rows   map[int64]*models.Notification
	nextID int64
}

func NewMemoryRepository() repository.NotificationRepository {
	return &memoryRepository{rows: make(map[int64]*models.Notification)}
}

func (r *memoryRepository) Insert(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memoryRepository) Update(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[n.ID]; !ok {
		return repository.ErrNotificationNotFound
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memoryRepository) ListByContest(ctx context.Context, contestID int64, page, size int) ([]*models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.Notification
	for _, n := range r.rows {
		if n.ContestID == contestID {
			cp := *n
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
