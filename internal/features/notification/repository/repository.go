package repository

import (
	"context"
	"errors"

	"contestlet-backend/internal/features/notification/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores the outbound SMS audit trail.
type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	Update(ctx context.Context, n *models.Notification) error
	ListByContest(ctx context.Context, contestID int64, page, size int) ([]*models.Notification, int64, error)
}
