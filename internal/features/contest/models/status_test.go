package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usermodels "contestlet-backend/internal/features/user/models"
)

var (
	admin          = TransitionActor{Role: usermodels.RoleAdmin}
	sponsorCreator = TransitionActor{Role: usermodels.RoleSponsor, IsCreator: true}
	sponsorOther   = TransitionActor{Role: usermodels.RoleSponsor}
	scheduler      = TransitionActor{IsScheduler: true}
	plainUser      = TransitionActor{Role: usermodels.RoleUser}
)

func TestValidateTransition_AllowedPairs(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		to    Status
		actor TransitionActor
	}{
		{"sponsor submits draft", StatusDraft, StatusAwaitingApproval, sponsorCreator},
		{"admin submits draft", StatusDraft, StatusAwaitingApproval, admin},
		{"sponsor cancels draft", StatusDraft, StatusCancelled, sponsorCreator},
		{"sponsor withdraws", StatusAwaitingApproval, StatusDraft, sponsorCreator},
		{"admin approves", StatusAwaitingApproval, StatusUpcoming, admin},
		{"admin rejects", StatusAwaitingApproval, StatusRejected, admin},
		{"sponsor reopens rejected", StatusRejected, StatusDraft, sponsorCreator},
		{"scheduler activates", StatusUpcoming, StatusActive, scheduler},
		{"scheduler ends", StatusActive, StatusEnded, scheduler},
		{"admin completes", StatusEnded, StatusComplete, admin},
		{"scheduler completes", StatusEnded, StatusComplete, scheduler},
		{"admin cancels upcoming", StatusUpcoming, StatusCancelled, admin},
		{"admin cancels active", StatusActive, StatusCancelled, admin},
		{"admin cancels ended", StatusEnded, StatusCancelled, admin},
		{"admin cancels pending", StatusAwaitingApproval, StatusCancelled, admin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, ValidateTransition(tc.from, tc.to, tc.actor))
		})
	}
}

func TestValidateTransition_RejectedPairs(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		to    Status
		actor TransitionActor
	}{
		{"approve from draft", StatusDraft, StatusUpcoming, admin},
		{"sponsor approves", StatusAwaitingApproval, StatusUpcoming, sponsorCreator},
		{"non-creator withdraws", StatusAwaitingApproval, StatusDraft, sponsorOther},
		{"admin withdraws", StatusAwaitingApproval, StatusDraft, admin},
		{"admin activates by hand", StatusUpcoming, StatusActive, admin},
		{"sponsor ends", StatusActive, StatusEnded, sponsorCreator},
		{"plain user submits", StatusDraft, StatusAwaitingApproval, plainUser},
		{"complete is terminal", StatusComplete, StatusCancelled, admin},
		{"cancelled is terminal", StatusCancelled, StatusDraft, admin},
		{"skip to complete", StatusActive, StatusComplete, admin},
		{"sponsor cancels active", StatusActive, StatusCancelled, sponsorCreator},
		{"unknown status", Status("published"), StatusActive, admin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to, tc.actor)
			assert.ErrorIs(t, err, ErrIllegalTransition)
		})
	}
}

func TestEffectiveStatus_LifecycleDerivation(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	c := &Contest{Status: StatusUpcoming, StartTime: start, EndTime: end}

	assert.Equal(t, StatusUpcoming, EffectiveStatus(c, start.Add(-time.Minute)))
	assert.Equal(t, StatusActive, EffectiveStatus(c, start))
	assert.Equal(t, StatusActive, EffectiveStatus(c, end.Add(-time.Second)))
	assert.Equal(t, StatusEnded, EffectiveStatus(c, end))
	assert.Equal(t, StatusEnded, EffectiveStatus(c, end.Add(48*time.Hour)))

	selected := end.Add(time.Hour)
	c.WinnerSelectedAt = &selected
	assert.Equal(t, StatusComplete, EffectiveStatus(c, end.Add(2*time.Hour)))
}

func TestEffectiveStatus_WorkflowStatusesAreAuthoritative(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)

	for _, s := range []Status{StatusDraft, StatusAwaitingApproval, StatusRejected, StatusComplete, StatusCancelled} {
		c := &Contest{Status: s, StartTime: start, EndTime: start.Add(24 * time.Hour)}
		assert.Equal(t, s, EffectiveStatus(c, now), "status %s must not be re-derived", s)
	}
}

func TestEffectiveStatus_Deterministic(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := &Contest{Status: StatusActive, StartTime: start, EndTime: start.Add(time.Hour)}
	now := start.Add(30 * time.Minute)

	first := EffectiveStatus(c, now)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, EffectiveStatus(c, now))
	}
}

func TestContestValidate(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	valid := func() *Contest {
		return &Contest{
			Name:            "Free Tacos",
			StartTime:       start,
			EndTime:         start.Add(24 * time.Hour),
			ContestType:     ContestTypeGeneral,
			EntryMethod:     EntryMethodSMS,
			WinnerSelection: SelectionRandom,
			LocationType:    LocationUnitedStates,
			MinimumAge:      18,
			WinnerCount:     1,
		}
	}

	assert.Empty(t, valid().Validate())

	c := valid()
	c.EndTime = c.StartTime
	assert.Contains(t, c.Validate(), "end_time")

	c = valid()
	c.MinimumAge = 12
	assert.Contains(t, c.Validate(), "minimum_age")

	c = valid()
	c.WinnerCount = 51
	assert.Contains(t, c.Validate(), "winner_count")

	c = valid()
	c.LocationType = LocationSpecificStates
	assert.Contains(t, c.Validate(), "selected_states")

	c = valid()
	c.LocationType = LocationRadius
	assert.Contains(t, c.Validate(), "radius_miles")

	c = valid()
	c.WinnerCount = 2
	c.PrizeTiers = []PrizeTier{{Position: 1, Prize: "a"}, {Position: 1, Prize: "b"}}
	assert.Contains(t, c.Validate(), "prize_tiers")
}
