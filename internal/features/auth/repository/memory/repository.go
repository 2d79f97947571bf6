package memory

import (
	"context"
	"sync"
	"time"

	"contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/auth/repository"
)

type memoryRepository struct {
	mu       sync.Mutex
	attempts map[int64]*models.OtpAttempt
	nextID   int64
}

func NewMemoryRepository() repository.OtpRepository {
	return &memoryRepository{attempts: make(map[int64]*models.OtpAttempt)}
}

func (r *memoryRepository) InsertAttempt(ctx context.Context, attempt *models.OtpAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.Phone == attempt.Phone && !a.Consumed {
			a.Consumed = true
		}
	}
	r.nextID++
	attempt.ID = r.nextID
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *memoryRepository) MostRecentUnconsumed(ctx context.Context, phone string) (*models.OtpAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.OtpAttempt
	for _, a := range r.attempts {
		if a.Phone != phone || a.Consumed {
			continue
		}
		if latest == nil || a.IssuedAt.After(latest.IssuedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, repository.ErrAttemptNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memoryRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return 0, repository.ErrAttemptNotFound
	}
	a.Attempts++
	return a.Attempts, nil
}

func (r *memoryRepository) ConsumeAttempt(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return repository.ErrAttemptNotFound
	}
	a.Consumed = true
	return nil
}

func (r *memoryRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, a := range r.attempts {
		if a.ExpiresAt.Before(cutoff) {
			delete(r.attempts, id)
			n++
		}
	}
	return n, nil
}
