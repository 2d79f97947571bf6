package models

import "time"

type EntryStatus string

const (
	EntryStatusActive       EntryStatus = "active"
	EntryStatusWinner       EntryStatus = "winner"
	EntryStatusDisqualified EntryStatus = "disqualified"
)

type EntrySource string

const (
	EntrySourceSelf        EntrySource = "self"
	EntrySourceManualAdmin EntrySource = "manual_admin"
	EntrySourcePhoneCall   EntrySource = "phone_call"
	EntrySourceEvent       EntrySource = "event"
)

// ManualEntrySources are the sources an admin may record a manual entry
// under. "self" is reserved for the self-service path.
var ManualEntrySources = map[EntrySource]bool{
	EntrySourceManualAdmin: true,
	EntrySourcePhoneCall:   true,
	EntrySourceEvent:       true,
}

// Entry is one admission into a contest.
type Entry struct {
	ID               int64       `json:"id"`
	ContestID        int64       `json:"contest_id"`
	UserID           int64       `json:"user_id"`
	Status           EntryStatus `json:"status"`
	Source           EntrySource `json:"source"`
	CreatedByAdminID *int64      `json:"created_by_admin_id,omitempty"`
	AdminNotes       string      `json:"admin_notes,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Winner is one drawn winner. (contest_id, winner_position) and
// (contest_id, entry_id) are unique.
type Winner struct {
	ID               int64      `json:"id"`
	ContestID        int64      `json:"contest_id"`
	EntryID          int64      `json:"entry_id"`
	UserID           int64      `json:"user_id"`
	WinnerPosition   int        `json:"winner_position"`
	PrizeDescription string     `json:"prize_description,omitempty"`
	SelectedAt       time.Time  `json:"selected_at"`
	NotifiedAt       *time.Time `json:"notified_at,omitempty"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
}

// StatusAudit records one status transition. Append-only.
type StatusAudit struct {
	ID        int64     `json:"id"`
	ContestID int64     `json:"contest_id"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	ChangedBy int64     `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ApprovalAudit records one approval decision. Append-only.
type ApprovalAudit struct {
	ID        int64     `json:"id"`
	ContestID int64     `json:"contest_id"`
	Action    string    `json:"action"` // approved, rejected
	By        int64     `json:"by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
