package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"contestlet-backend/internal/features/notification/models"
	"contestlet-backend/internal/features/notification/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.NotificationRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (contest_id, user_id, phone, type, body, status,
			provider_id, attempts, error, test, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		n.ContestID, n.UserID, n.Phone, n.Type, n.Body, n.Status,
		n.ProviderID, n.Attempts, n.Error, n.Test, n.CreatedAt, n.SentAt).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, n *models.Notification) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET status = $2, provider_id = $3, attempts = $4,
			error = $5, sent_at = $6
		WHERE id = $1`,
		n.ID, n.Status, n.ProviderID, n.Attempts, n.Error, n.SentAt)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrNotificationNotFound
	}
	return nil
}

func (r *postgresRepository) ListByContest(ctx context.Context, contestID int64, page, size int) ([]*models.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE contest_id = $1", contestID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contest_id, user_id, phone, type, body, status, provider_id,
			attempts, error, test, created_at, sent_at
		FROM notifications WHERE contest_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		contestID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var providerID, errMsg sql.NullString
		if err := rows.Scan(&n.ID, &n.ContestID, &n.UserID, &n.Phone, &n.Type,
			&n.Body, &n.Status, &providerID, &n.Attempts, &errMsg, &n.Test,
			&n.CreatedAt, &n.SentAt); err != nil {
			return nil, 0, err
		}
		n.ProviderID = providerID.String
		n.Error = errMsg.String
		out = append(out, &n)
	}
	return out, total, rows.Err()
}
