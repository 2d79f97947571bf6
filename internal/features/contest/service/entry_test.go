package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/contest/models"
	notifmodels "contestlet-backend/internal/features/notification/models"
	usermodels "contestlet-backend/internal/features/user/models"
)

func TestEnter_Self(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(nil)
	entrant := f.newUser("+15550000100", usermodels.RoleUser, nil)

	entry, err := f.enter(entrant, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntrySourceSelf, entry.Source)
	assert.Equal(t, models.EntryStatusActive, entry.Status)
	assert.Equal(t, entrant.ID, entry.UserID)
	assert.Nil(t, entry.CreatedByAdminID)

	f.drain()
	msg, ok := f.gateway.Last()
	require.True(t, ok, "entry confirmation should be sent")
	assert.Equal(t, entrant.Phone, msg.Phone)
	assert.Contains(t, msg.Body, "Free Tacos Friday")
}

func TestEnter_CustomTemplate(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(nil)
	require.NoError(t, f.repo.UpsertTemplate(context.Background(), nil, &models.SmsTemplate{
		ContestID:      contest.ID,
		TemplateType:   models.TemplateEntryConfirmation,
		MessageContent: "{contest_name}: entry locked in, drawing at {end_time}.",
	}))

	entrant := f.newUser("+15550000101", usermodels.RoleUser, nil)
	_, err := f.enter(entrant, contest.ID)
	require.NoError(t, err)

	f.drain()
	msg, ok := f.gateway.Last()
	require.True(t, ok)
	assert.Contains(t, msg.Body, "Free Tacos Friday: entry locked in")
	assert.NotContains(t, msg.Body, "{end_time}")
}

func TestEnter_DuplicateSelfEntry(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(nil)
	entrant := f.newUser("+15550000102", usermodels.RoleUser, nil)

	_, err := f.enter(entrant, contest.ID)
	require.NoError(t, err)

	_, err = f.enter(entrant, contest.ID)
	requireCode(t, err, apperrors.ErrCodeDuplicateEntry)

	count, err := f.repo.CountEntries(context.Background(), nil, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "rejected duplicate must not leave a row")
}

func TestEnter_OutsideActiveWindow(t *testing.T) {
	f := newFixture(t)

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)
	f.mustApprove(contest.ID)
	entrant := f.newUser("+15550000103", usermodels.RoleUser, nil)

	// Before start.
	_, err := f.enter(entrant, contest.ID)
	requireCode(t, err, apperrors.ErrCodeContestNotActive)

	// After end.
	f.clk.Set(contest.EndTime.Add(time.Minute))
	_, err = f.enter(entrant, contest.ID)
	requireCode(t, err, apperrors.ErrCodeContestNotActive)
}

func TestEnter_AgeGate(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(func(in *models.ContestDraftInput) {
		in.MinimumAge = 21
	})

	nineteen := f.clk.Now().AddDate(-19, 0, 0)
	minor := f.newUser("+15550000104", usermodels.RoleUser, &nineteen)
	_, err := f.enter(minor, contest.ID)
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	// No DOB on file cannot satisfy a raised age floor.
	unknown := f.newUser("+15550000105", usermodels.RoleUser, nil)
	_, err = f.enter(unknown, contest.ID)
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	twentyfive := f.clk.Now().AddDate(-25, 0, 0)
	adult := f.newUser("+15550000106", usermodels.RoleUser, &twentyfive)
	_, err = f.enter(adult, contest.ID)
	require.NoError(t, err)
}

func TestEnter_SpecificStates(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(func(in *models.ContestDraftInput) {
		in.LocationType = models.LocationSpecificStates
		in.SelectedStates = []string{"CA", "NV"}
	})
	ctx := context.Background()

	entrant := f.newUser("+15550000107", usermodels.RoleUser, nil)

	_, err := f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{})
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	_, err = f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{State: "NY"})
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	_, err = f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{State: "ca"})
	require.NoError(t, err, "state match is case-insensitive")
}

func TestEnter_RadiusTargeting(t *testing.T) {
	f := newFixture(t)

	centerLat, centerLon, radius := 39.95, -75.16, 50.0 // Philadelphia
	contest := f.approvedContest(func(in *models.ContestDraftInput) {
		in.LocationType = models.LocationRadius
		in.RadiusAddress = "Philadelphia, PA"
		in.RadiusLatitude = &centerLat
		in.RadiusLongitude = &centerLon
		in.RadiusMiles = &radius
	})
	ctx := context.Background()

	entrant := f.newUser("+15550000108", usermodels.RoleUser, nil)

	_, err := f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{})
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	// New York is roughly 80 miles out.
	nycLat, nycLon := 40.71, -74.0
	_, err = f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{Latitude: &nycLat, Longitude: &nycLon})
	requireCode(t, err, apperrors.ErrCodeNotEligible)

	// Just across the river is well inside.
	nearLat, nearLon := 39.93, -75.12
	_, err = f.svc.Enter(ctx, claimsFor(entrant), contest.ID, models.EnterInput{Latitude: &nearLat, Longitude: &nearLon})
	require.NoError(t, err)
}

func TestEnter_TotalEntryLimit(t *testing.T) {
	f := newFixture(t)

	limit := 1
	contest := f.approvedContest(func(in *models.ContestDraftInput) {
		in.TotalEntryLimit = &limit
	})

	first := f.newUser("+15550000109", usermodels.RoleUser, nil)
	_, err := f.enter(first, contest.ID)
	require.NoError(t, err)

	second := f.newUser("+15550000110", usermodels.RoleUser, nil)
	_, err = f.enter(second, contest.ID)
	requireCode(t, err, apperrors.ErrCodeEntryLimitReached)
}

func TestEnter_PerPersonCap(t *testing.T) {
	f := newFixture(t)

	perPerson := 2
	contest := f.approvedContest(func(in *models.ContestDraftInput) {
		in.MaxEntriesPerPerson = &perPerson
	})
	ctx := context.Background()

	entrant := f.newUser("+15550000111", usermodels.RoleUser, nil)
	_, err := f.enter(entrant, contest.ID)
	require.NoError(t, err)

	// A manual entry fills the second slot.
	manual := models.EnterInput{
		AdminOverride: true,
		PhoneNumber:   entrant.Phone,
		Source:        models.EntrySourcePhoneCall,
	}
	_, err = f.svc.Enter(ctx, f.adminClaims, contest.ID, manual)
	require.NoError(t, err)

	_, err = f.svc.Enter(ctx, f.adminClaims, contest.ID, manual)
	requireCode(t, err, apperrors.ErrCodeEntryLimitReached)
}

func TestManualEntry_ProvisionsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.approvedContest(nil)

	entry, err := f.svc.Enter(ctx, f.adminClaims, contest.ID, models.EnterInput{
		AdminOverride: true,
		PhoneNumber:   "(555) 867-5309",
		Source:        models.EntrySourcePhoneCall,
		Notes:         "called in during the radio show",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntrySourcePhoneCall, entry.Source)
	require.NotNil(t, entry.CreatedByAdminID)
	assert.Equal(t, f.admin.ID, *entry.CreatedByAdminID)
	assert.Equal(t, "called in during the radio show", entry.AdminNotes)

	user, err := f.users.GetByPhone(ctx, "+15558675309")
	require.NoError(t, err)
	assert.Equal(t, usermodels.RoleUser, user.Role)
	assert.False(t, user.IsVerified, "provisioned users have not verified their phone")

	// No SMS goes out; a suppressed audit row is written instead.
	f.drain()
	_, sent := f.gateway.Last()
	assert.False(t, sent)

	rows, _, err := f.notifications.ListByContest(ctx, contest.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, notifmodels.StatusSuppressed, rows[0].Status)
	assert.Equal(t, user.ID, rows[0].UserID)
}

func TestManualEntry_RejectionDoesNotProvisionUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.approvedContest(nil)
	f.clk.Set(contest.EndTime.Add(time.Minute))

	_, err := f.svc.Enter(ctx, f.adminClaims, contest.ID, models.EnterInput{
		AdminOverride: true,
		PhoneNumber:   "+15550000199",
		Source:        models.EntrySourcePhoneCall,
	})
	requireCode(t, err, apperrors.ErrCodeContestNotActive)

	// The rejected entry must not leave a user row behind.
	_, err = f.users.GetByPhone(ctx, "+15550000199")
	assert.ErrorIs(t, err, usermodels.ErrUserNotFound)
}

func TestManualEntry_RequiresAdminAndValidSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.approvedContest(nil)

	_, err := f.svc.Enter(ctx, f.sponsorClaims, contest.ID, models.EnterInput{
		AdminOverride: true,
		PhoneNumber:   "+15550000112",
		Source:        models.EntrySourceEvent,
	})
	requireCode(t, err, apperrors.ErrCodeForbidden)

	_, err = f.svc.Enter(ctx, f.adminClaims, contest.ID, models.EnterInput{
		AdminOverride: true,
		PhoneNumber:   "+15550000112",
		Source:        models.EntrySourceSelf,
	})
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestMyEntries(t *testing.T) {
	f := newFixture(t)

	first := f.approvedContest(nil)
	second := f.approvedContest(func(in *models.ContestDraftInput) { in.Name = "Second Chance" })

	entrant := f.newUser("+15550000113", usermodels.RoleUser, nil)
	_, err := f.enter(entrant, first.ID)
	require.NoError(t, err)
	_, err = f.enter(entrant, second.ID)
	require.NoError(t, err)

	entries, err := f.svc.MyEntries(context.Background(), claimsFor(entrant))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
