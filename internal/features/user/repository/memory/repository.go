package memory

import (
	"context"
	"sync"

	"contestlet-backend/internal/features/user/models"
	"contestlet-backend/internal/features/user/repository"
)

type memoryRepository struct {
	mu sync.Mutex

	users      map[int64]*models.User
	byPhone    map[string]int64
	sponsors   map[int64]*models.SponsorProfile
	roleAudits []models.RoleAudit

	nextUserID    int64
	nextSponsorID int64
	nextAuditID   int64
}

func NewMemoryRepository() repository.UserRepository {
	return &memoryRepository{
		users:    make(map[int64]*models.User),
		byPhone:  make(map[string]int64),
		sponsors: make(map[int64]*models.SponsorProfile),
	}
}

func (r *memoryRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPhone[user.Phone]; ok {
		return repository.ErrDuplicatePhone
	}
	r.nextUserID++
	user.ID = r.nextUserID
	cp := *user
	r.users[user.ID] = &cp
	r.byPhone[user.Phone] = user.ID
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *memoryRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return models.ErrUserNotFound
	}
	existing.FullName = user.FullName
	existing.Email = user.Email
	existing.Bio = user.Bio
	existing.DateOfBirth = user.DateOfBirth
	existing.Timezone = user.Timezone
	existing.TimezoneAuto = user.TimezoneAuto
	return nil
}

func (r *memoryRepository) MarkVerified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *memoryRepository) AssignRole(ctx context.Context, userID int64, role models.Role, audit *models.RoleAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Role = role
	at := audit.CreatedAt
	u.RoleAssignedAt = &at
	by := audit.ChangedBy
	u.RoleAssignedBy = &by

	r.nextAuditID++
	audit.ID = r.nextAuditID
	r.roleAudits = append(r.roleAudits, *audit)
	return nil
}

func (r *memoryRepository) ListRoleAudits(ctx context.Context, userID int64) ([]models.RoleAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RoleAudit
	for _, a := range r.roleAudits {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepository) CreateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.sponsors {
		if p.UserID == profile.UserID {
			return repository.ErrDuplicateSponsorProfile
		}
	}
	r.nextSponsorID++
	profile.ID = r.nextSponsorID
	cp := *profile
	r.sponsors[profile.ID] = &cp
	return nil
}

func (r *memoryRepository) GetSponsorProfile(ctx context.Context, id int64) (*models.SponsorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.sponsors[id]
	if !ok {
		return nil, repository.ErrSponsorProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepository) GetSponsorProfileByUser(ctx context.Context, userID int64) (*models.SponsorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.sponsors {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrSponsorProfileNotFound
}

func (r *memoryRepository) UpdateSponsorProfile(ctx context.Context, profile *models.SponsorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sponsors[profile.ID]; !ok {
		return repository.ErrSponsorProfileNotFound
	}
	cp := *profile
	r.sponsors[profile.ID] = &cp
	return nil
}
