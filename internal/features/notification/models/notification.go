package models

import "time"

type NotificationType string

const (
	TypeEntryConfirmation  NotificationType = "entry_confirmation"
	TypeWinnerNotification NotificationType = "winner"
	TypeNonWinner          NotificationType = "non_winner"
	TypeAdminTest          NotificationType = "admin_test"
)

type NotificationStatus string

const (
	StatusPending    NotificationStatus = "pending"
	StatusSent       NotificationStatus = "sent"
	StatusFailed     NotificationStatus = "failed"
	StatusSuppressed NotificationStatus = "suppressed"
)

// Notification is the audit row for one outbound SMS. Every send attempt,
// including test sends, leaves a row.
type Notification struct {
	ID         int64              `json:"id"`
	ContestID  int64              `json:"contest_id"`
	UserID     int64              `json:"user_id"`
	Phone      string             `json:"phone"`
	Type       NotificationType   `json:"type"`
	Body       string             `json:"body"`
	Status     NotificationStatus `json:"status"`
	ProviderID string             `json:"provider_id,omitempty"`
	Attempts   int                `json:"attempts"`
	Error      string             `json:"error,omitempty"`
	Test       bool               `json:"test"`
	CreatedAt  time.Time          `json:"created_at"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
}
