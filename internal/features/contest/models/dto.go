package models

import "time"

// ContestDraftInput is the create/update draft request body. The workflow
// fields of OfficialRules mirror the contest schedule on write.
type ContestDraftInput struct {
	Name              string   `json:"name" binding:"required,min=3,max=200"`
	Description       string   `json:"description" binding:"required,min=10,max=5000"`
	PrizeDescription  string   `json:"prize_description" binding:"required,max=1000"`
	ImageURL          string   `json:"image_url" binding:"omitempty,url"`
	SponsorURL        string   `json:"sponsor_url" binding:"omitempty,url"`
	Location          string   `json:"location"`
	Tags              []string `json:"tags"`
	PromotionChannels []string `json:"promotion_channels"`
	ConsolationOffer  string   `json:"consolation_offer"`

	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`

	ContestType         ContestType           `json:"contest_type"`
	EntryMethod         EntryMethod           `json:"entry_method"`
	WinnerSelection     WinnerSelectionMethod `json:"winner_selection_method"`
	MinimumAge          int                   `json:"minimum_age"`
	MaxEntriesPerPerson *int                  `json:"max_entries_per_person"`
	TotalEntryLimit     *int                  `json:"total_entry_limit"`
	WinnerCount         int                   `json:"winner_count"`
	PrizeTiers          []PrizeTier           `json:"prize_tiers"`

	LocationType    LocationType `json:"location_type"`
	SelectedStates  []string     `json:"selected_states"`
	RadiusAddress   string       `json:"radius_address"`
	RadiusLatitude  *float64     `json:"radius_latitude"`
	RadiusLongitude *float64     `json:"radius_longitude"`
	RadiusMiles     *float64     `json:"radius_miles"`

	// Admins may create drafts on behalf of a sponsor.
	SponsorProfileID *int64 `json:"sponsor_profile_id"`

	OfficialRules *OfficialRulesInput `json:"official_rules" binding:"required"`
}

type OfficialRulesInput struct {
	EligibilityText string    `json:"eligibility_text" binding:"required"`
	SponsorName     string    `json:"sponsor_name" binding:"required"`
	PrizeValueUSD   float64   `json:"prize_value_usd" binding:"min=0"`
	StartDate       time.Time `json:"start_date" binding:"required"`
	EndDate         time.Time `json:"end_date" binding:"required"`
	TermsURL        string    `json:"terms_url" binding:"omitempty,url"`
	AdditionalTerms string    `json:"additional_terms"`
}

// SubmitInput carries an optional message to the reviewing admin.
type SubmitInput struct {
	Message string `json:"message"`
}

type ApproveInput struct {
	Message string `json:"message"`
}

type RejectInput struct {
	Reason string `json:"reason" binding:"required,min=3"`
}

type BulkApprovalInput struct {
	ContestIDs []int64 `json:"contest_ids" binding:"required,min=1"`
	Approved   bool    `json:"approved"`
	Reason     string  `json:"reason"`
}

// BulkApprovalResult reports the per-contest outcome of a bulk decision.
// A single failure never aborts the batch.
type BulkApprovalResult struct {
	ContestID int64  `json:"contest_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// EnterInput is the POST /contests/:id/enter body. Empty body means self
// entry; an admin_override body means manual entry.
type EnterInput struct {
	PhoneNumber   string      `json:"phone_number"`
	AdminOverride bool        `json:"admin_override"`
	Source        EntrySource `json:"source"`
	Notes         string      `json:"notes"`

	// Optional entrant location for radius-targeted contests.
	State     string   `json:"state"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type SelectWinnersInput struct {
	WinnerCount     int                   `json:"winner_count" binding:"required,min=1,max=50"`
	SelectionMethod WinnerSelectionMethod `json:"selection_method"`
	PrizeTiers      []PrizeTier           `json:"prize_tiers"`
}

type NotifyWinnersInput struct {
	Test bool `json:"test"`
}

// ApprovalQueueItem is one row of the admin approval queue projection.
type ApprovalQueueItem struct {
	ContestID   int64     `json:"id"`
	Name        string    `json:"name"`
	SponsorName string    `json:"sponsor_name"`
	SubmittedAt time.Time `json:"submitted_at"`
	WaitingDays int       `json:"waiting_days"`
}

// ApprovalStatistics summarizes reviewing throughput.
type ApprovalStatistics struct {
	PendingCount              int64   `json:"pending_count"`
	ApprovalRate7d            float64 `json:"7day_approval_rate"`
	RejectionRate7d           float64 `json:"7day_rejection_rate"`
	AvgApprovalTimeSeconds    float64 `json:"avg_approval_time_seconds"`
	OldestPendingAgeSeconds   float64 `json:"oldest_pending_age_seconds"`
}

// WinnerStats summarizes winner progress for a contest.
type WinnerStats struct {
	TotalWinners  int `json:"total_winners"`
	NotifiedCount int `json:"notified_count"`
	ClaimedCount  int `json:"claimed_count"`
}
