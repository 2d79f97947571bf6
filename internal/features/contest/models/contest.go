package models

import (
	"fmt"
	"time"
)

type ContestType string

const (
	ContestTypeGeneral     ContestType = "general"
	ContestTypeSweepstakes ContestType = "sweepstakes"
	ContestTypeInstantWin  ContestType = "instant_win"
)

type EntryMethod string

const (
	EntryMethodSMS     EntryMethod = "sms"
	EntryMethodEmail   EntryMethod = "email"
	EntryMethodWebForm EntryMethod = "web_form"
)

type WinnerSelectionMethod string

const (
	SelectionRandom    WinnerSelectionMethod = "random"
	SelectionScheduled WinnerSelectionMethod = "scheduled"
	SelectionInstant   WinnerSelectionMethod = "instant"
)

type LocationType string

const (
	LocationUnitedStates   LocationType = "united_states"
	LocationSpecificStates LocationType = "specific_states"
	LocationRadius         LocationType = "radius"
	LocationCustom         LocationType = "custom"
)

const (
	MinimumAgeFloor = 13
	MaxWinnerCount  = 50
)

// PrizeTier pairs a winner position with its prize. Positions are
// 1..winner_count with no gaps.
type PrizeTier struct {
	Position int    `json:"position" binding:"required,min=1"`
	Prize    string `json:"prize" binding:"required"`
}

// Contest is the central entity of the service.
type Contest struct {
	ID               int64 `json:"id"`
	CreatedByUserID  int64 `json:"created_by_user_id"`
	SponsorProfileID int64 `json:"sponsor_profile_id"`

	Name              string   `json:"name"`
	Description       string   `json:"description"`
	PrizeDescription  string   `json:"prize_description"`
	ImageURL          string   `json:"image_url,omitempty"`
	SponsorURL        string   `json:"sponsor_url,omitempty"`
	Location          string   `json:"location,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	PromotionChannels []string `json:"promotion_channels,omitempty"`
	ConsolationOffer  string   `json:"consolation_offer,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	ContestType         ContestType           `json:"contest_type"`
	EntryMethod         EntryMethod           `json:"entry_method"`
	WinnerSelection     WinnerSelectionMethod `json:"winner_selection_method"`
	MinimumAge          int                   `json:"minimum_age"`
	MaxEntriesPerPerson *int                  `json:"max_entries_per_person,omitempty"`
	TotalEntryLimit     *int                  `json:"total_entry_limit,omitempty"`
	WinnerCount         int                   `json:"winner_count"`
	PrizeTiers          []PrizeTier           `json:"prize_tiers,omitempty"`

	LocationType    LocationType `json:"location_type"`
	SelectedStates  []string     `json:"selected_states,omitempty"`
	RadiusAddress   string       `json:"radius_address,omitempty"`
	RadiusLatitude  *float64     `json:"radius_latitude,omitempty"`
	RadiusLongitude *float64     `json:"radius_longitude,omitempty"`
	RadiusMiles     *float64     `json:"radius_miles,omitempty"`

	Status           Status     `json:"status"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ApprovedByUserID *int64     `json:"approved_by_user_id,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	ApprovalMessage  string     `json:"approval_message,omitempty"`

	// Legacy single-winner pointer, kept consistent with the position-1 row.
	WinnerEntryID    *int64     `json:"winner_entry_id,omitempty"`
	WinnerSelectedAt *time.Time `json:"winner_selected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Loaded relations; nil unless requested.
	OfficialRules *OfficialRules `json:"official_rules,omitempty"`
	Templates     []SmsTemplate  `json:"sms_templates,omitempty"`
	Winners       []Winner       `json:"winners,omitempty"`
	EntryCount    int64          `json:"entry_count"`
}

// MaxEntriesPerUser returns the per-person cap, defaulting to 1.
func (c *Contest) MaxEntriesPerUser() int {
	if c.MaxEntriesPerPerson == nil || *c.MaxEntriesPerPerson < 1 {
		return 1
	}
	return *c.MaxEntriesPerPerson
}

// Validate checks the schema invariants that must hold on every write.
// Returns a per-field error map, empty when valid.
func (c *Contest) Validate() map[string]string {
	fields := make(map[string]string)

	if c.Name == "" {
		fields["name"] = "name is required"
	}
	if !c.EndTime.After(c.StartTime) {
		fields["end_time"] = "end_time must be after start_time"
	}
	if c.MinimumAge < MinimumAgeFloor {
		fields["minimum_age"] = fmt.Sprintf("minimum_age must be at least %d", MinimumAgeFloor)
	}
	if c.WinnerCount < 1 || c.WinnerCount > MaxWinnerCount {
		fields["winner_count"] = fmt.Sprintf("winner_count must be between 1 and %d", MaxWinnerCount)
	}
	if c.TotalEntryLimit != nil && *c.TotalEntryLimit < 1 {
		fields["total_entry_limit"] = "total_entry_limit must be positive"
	}
	if c.MaxEntriesPerPerson != nil && *c.MaxEntriesPerPerson < 1 {
		fields["max_entries_per_person"] = "max_entries_per_person must be positive"
	}

	switch c.ContestType {
	case ContestTypeGeneral, ContestTypeSweepstakes, ContestTypeInstantWin:
	default:
		fields["contest_type"] = "invalid contest_type"
	}
	switch c.EntryMethod {
	case EntryMethodSMS, EntryMethodEmail, EntryMethodWebForm:
	default:
		fields["entry_method"] = "invalid entry_method"
	}
	switch c.WinnerSelection {
	case SelectionRandom, SelectionScheduled, SelectionInstant:
	default:
		fields["winner_selection_method"] = "invalid winner_selection_method"
	}

	switch c.LocationType {
	case LocationUnitedStates, LocationCustom:
	case LocationSpecificStates:
		if len(c.SelectedStates) == 0 {
			fields["selected_states"] = "selected_states is required for specific_states targeting"
		}
	case LocationRadius:
		if c.RadiusLatitude == nil || c.RadiusLongitude == nil || c.RadiusMiles == nil {
			fields["radius_miles"] = "radius targeting requires radius_latitude, radius_longitude and radius_miles"
		} else if *c.RadiusMiles <= 0 {
			fields["radius_miles"] = "radius_miles must be positive"
		}
	default:
		fields["location_type"] = "invalid location_type"
	}

	if len(c.PrizeTiers) > 0 {
		if len(c.PrizeTiers) != c.WinnerCount {
			fields["prize_tiers"] = "prize_tiers must have exactly winner_count entries"
		} else {
			seen := make(map[int]bool, len(c.PrizeTiers))
			for _, tier := range c.PrizeTiers {
				if tier.Position < 1 || tier.Position > c.WinnerCount || seen[tier.Position] {
					fields["prize_tiers"] = "prize_tier positions must be exactly 1..winner_count"
					break
				}
				seen[tier.Position] = true
			}
		}
	}

	return fields
}

// OfficialRules must exist before a contest may leave draft. Its dates track
// the contest's start/end times.
type OfficialRules struct {
	ID              int64     `json:"id"`
	ContestID       int64     `json:"contest_id"`
	EligibilityText string    `json:"eligibility_text"`
	SponsorName     string    `json:"sponsor_name"`
	PrizeValueUSD   float64   `json:"prize_value_usd"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	TermsURL        string    `json:"terms_url,omitempty"`
	AdditionalTerms string    `json:"additional_terms,omitempty"`
}

func (r *OfficialRules) Validate(c *Contest) map[string]string {
	fields := make(map[string]string)
	if r.EligibilityText == "" {
		fields["official_rules.eligibility_text"] = "eligibility_text is required"
	}
	if r.SponsorName == "" {
		fields["official_rules.sponsor_name"] = "sponsor_name is required"
	}
	if r.PrizeValueUSD < 0 {
		fields["official_rules.prize_value_usd"] = "prize_value_usd must be >= 0"
	}
	if !r.StartDate.Equal(c.StartTime) || !r.EndDate.Equal(c.EndTime) {
		fields["official_rules.start_date"] = "official rules dates must match the contest schedule"
	}
	return fields
}

type TemplateType string

const (
	TemplateEntryConfirmation  TemplateType = "entry_confirmation"
	TemplateWinnerNotification TemplateType = "winner_notification"
	TemplateNonWinner          TemplateType = "non_winner"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateEntryConfirmation, TemplateWinnerNotification, TemplateNonWinner:
		return true
	}
	return false
}

// SmsTemplate is a per-contest message template. (contest_id, template_type)
// is unique.
type SmsTemplate struct {
	ID             int64        `json:"id"`
	ContestID      int64        `json:"contest_id"`
	TemplateType   TemplateType `json:"template_type"`
	MessageContent string       `json:"message_content"`
}
