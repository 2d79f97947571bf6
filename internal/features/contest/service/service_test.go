package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	contestmemory "contestlet-backend/internal/features/contest/repository/memory"
	notifrepo "contestlet-backend/internal/features/notification/repository"
	notifmemory "contestlet-backend/internal/features/notification/repository/memory"
	notifsvc "contestlet-backend/internal/features/notification/service"
	usermodels "contestlet-backend/internal/features/user/models"
	userrepo "contestlet-backend/internal/features/user/repository"
	usermemory "contestlet-backend/internal/features/user/repository/memory"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/geo"
	"contestlet-backend/internal/platform/sms"
)

var testBase = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t *testing.T

	svc           *Service
	repo          repository.ContestRepository
	users         userrepo.UserRepository
	notifications notifrepo.NotificationRepository
	dispatcher    *notifsvc.Dispatcher
	gateway       *sms.MockGateway
	clk           *clock.Fixed
	random        *clock.SeededRandom

	seedSponsorName func(profileID int64, name string)

	admin         *usermodels.User
	adminClaims   *authmodels.Claims
	sponsor       *usermodels.User
	sponsorClaims *authmodels.Claims
	profile       *usermodels.SponsorProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFixed(testBase)
	random := clock.NewSeededRandom(42)
	contests := contestmemory.NewMemoryRepository()
	users := usermemory.NewMemoryRepository()
	notifications := notifmemory.NewMemoryRepository()
	gateway := sms.NewMockGateway()

	dispatcher := notifsvc.NewDispatcher(notifications, gateway, clk)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	cfg := &config.Config{}
	cfg.Pagination.DefaultPageSize = 10
	cfg.Pagination.MaxPageSize = 100

	f := &fixture{
		t:             t,
		repo:          contests,
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		gateway:       gateway,
		clk:           clk,
		random:        random,
		svc:           NewService(cfg, contests, users, dispatcher, geo.NewStaticService(), clk, random),
	}
	f.seedSponsorName = func(profileID int64, name string) {
		contests.SponsorNames[profileID] = name
	}

	f.admin = f.newUser("+15550000001", usermodels.RoleAdmin, nil)
	f.adminClaims = claimsFor(f.admin)

	f.sponsor = f.newUser("+15550000002", usermodels.RoleSponsor, nil)
	f.sponsorClaims = claimsFor(f.sponsor)
	f.profile = &usermodels.SponsorProfile{
		UserID:      f.sponsor.ID,
		CompanyName: "Acme Goods",
		CreatedAt:   clk.Now(),
	}
	require.NoError(t, users.CreateSponsorProfile(context.Background(), f.profile))
	f.seedSponsorName(f.profile.ID, f.profile.CompanyName)

	return f
}

func claimsFor(u *usermodels.User) *authmodels.Claims {
	return &authmodels.Claims{UserID: u.ID, Phone: u.Phone, Role: u.Role}
}

func (f *fixture) newUser(phone string, role usermodels.Role, dob *time.Time) *usermodels.User {
	f.t.Helper()
	user := &usermodels.User{
		Phone:       phone,
		Role:        role,
		IsVerified:  true,
		DateOfBirth: dob,
		CreatedAt:   f.clk.Now(),
	}
	require.NoError(f.t, f.users.Create(context.Background(), user))
	return user
}

// drain stops the dispatcher worker so queued notifications are flushed.
// The fixture cannot enqueue after calling it.
func (f *fixture) drain() {
	f.dispatcher.Stop()
}

func (f *fixture) draftInput() *models.ContestDraftInput {
	start := testBase.Add(time.Hour)
	end := start.Add(24 * time.Hour)
	return &models.ContestDraftInput{
		Name:             "Free Tacos Friday",
		Description:      "Win a year of free tacos from your neighborhood taqueria.",
		PrizeDescription: "52 taco vouchers",
		StartTime:        start,
		EndTime:          end,
		OfficialRules: &models.OfficialRulesInput{
			EligibilityText: "Open to US residents 18 and over.",
			SponsorName:     "Acme Goods",
			PrizeValueUSD:   520,
			StartDate:       start,
			EndDate:         end,
		},
	}
}

func (f *fixture) mustDraft(input *models.ContestDraftInput) *models.Contest {
	f.t.Helper()
	contest, err := f.svc.CreateDraft(context.Background(), f.sponsorClaims, input)
	require.NoError(f.t, err)
	return contest
}

func (f *fixture) mustSubmit(id int64) *models.Contest {
	f.t.Helper()
	contest, err := f.svc.Submit(context.Background(), f.sponsorClaims, id, models.SubmitInput{})
	require.NoError(f.t, err)
	return contest
}

func (f *fixture) mustApprove(id int64) *models.Contest {
	f.t.Helper()
	contest, err := f.svc.Approve(context.Background(), f.adminClaims, id, models.ApproveInput{Message: "looks good"})
	require.NoError(f.t, err)
	return contest
}

// approvedContest walks a draft through submission and approval. The clock is
// left just after start_time, so the contest reads active.
func (f *fixture) approvedContest(mutate func(*models.ContestDraftInput)) *models.Contest {
	f.t.Helper()
	input := f.draftInput()
	if mutate != nil {
		mutate(input)
	}
	contest := f.mustDraft(input)
	f.mustSubmit(contest.ID)
	f.mustApprove(contest.ID)
	f.clk.Set(contest.StartTime.Add(time.Minute))
	return contest
}

func (f *fixture) enter(user *usermodels.User, contestID int64) (*models.Entry, error) {
	return f.svc.Enter(context.Background(), claimsFor(user), contestID, models.EnterInput{})
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), "unexpected error: %v", err)
}

func TestWorkflow_SponsorRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())
	assert.Equal(t, models.StatusDraft, contest.Status)
	require.NotNil(t, contest.OfficialRules)
	assert.Equal(t, contest.StartTime, contest.OfficialRules.StartDate)

	contest = f.mustSubmit(contest.ID)
	assert.Equal(t, models.StatusAwaitingApproval, contest.Status)
	require.NotNil(t, contest.SubmittedAt)

	contest, err := f.svc.Reject(ctx, f.adminClaims, contest.ID, models.RejectInput{Reason: "prize description too vague"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, contest.Status)
	assert.Equal(t, "prize description too vague", contest.RejectionReason)
	require.NotNil(t, contest.RejectedAt)

	// Reopen, revise, resubmit.
	contest, err = f.svc.Withdraw(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, contest.Status)

	input := f.draftInput()
	input.PrizeDescription = "52 taco vouchers, redeemable any Friday"
	contest, err = f.svc.UpdateDraft(ctx, f.sponsorClaims, contest.ID, input)
	require.NoError(t, err)

	contest = f.mustSubmit(contest.ID)
	assert.Empty(t, contest.RejectionReason, "resubmission clears the rejection")
	assert.Nil(t, contest.RejectedAt)

	contest = f.mustApprove(contest.ID)
	assert.Equal(t, models.StatusUpcoming, contest.Status)
	require.NotNil(t, contest.ApprovedAt)

	// Entries while active.
	f.clk.Set(contest.StartTime.Add(time.Minute))
	entrant := f.newUser("+15550000100", usermodels.RoleUser, nil)
	_, err = f.enter(entrant, contest.ID)
	require.NoError(t, err)

	// Winner selection after the end, which completes the contest.
	f.clk.Set(contest.EndTime.Add(time.Minute))
	winners, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 1})
	require.NoError(t, err)
	require.Len(t, winners, 1)

	final, err := f.svc.Get(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, final.Status)

	audits, err := f.svc.StatusHistory(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)

	var steps [][2]models.Status
	for _, a := range audits {
		steps = append(steps, [2]models.Status{a.OldStatus, a.NewStatus})
	}
	assert.Equal(t, [][2]models.Status{
		{models.StatusDraft, models.StatusAwaitingApproval},
		{models.StatusAwaitingApproval, models.StatusRejected},
		{models.StatusRejected, models.StatusDraft},
		{models.StatusDraft, models.StatusAwaitingApproval},
		{models.StatusAwaitingApproval, models.StatusUpcoming},
		{models.StatusUpcoming, models.StatusActive},
		{models.StatusActive, models.StatusEnded},
		{models.StatusEnded, models.StatusComplete},
	}, steps)
}

func TestApprove_FromDraftIsIllegal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())
	_, err := f.svc.Approve(ctx, f.adminClaims, contest.ID, models.ApproveInput{})
	requireCode(t, err, apperrors.ErrCodeIllegalTransition)

	// A failed transition leaves no trace.
	audits, err := f.svc.StatusHistory(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)
	assert.Empty(t, audits)

	got, err := f.svc.Get(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
}

func TestSubmit_OnlyCreatorOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())

	other := f.newUser("+15550000003", usermodels.RoleSponsor, nil)
	_, err := f.svc.Submit(ctx, claimsFor(other), contest.ID, models.SubmitInput{})
	requireCode(t, err, apperrors.ErrCodeForbidden)

	_, err = f.svc.Submit(ctx, f.adminClaims, contest.ID, models.SubmitInput{})
	require.NoError(t, err)
}

func TestApprove_AfterStartReadsActive(t *testing.T) {
	f := newFixture(t)

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)

	f.clk.Set(contest.StartTime.Add(time.Hour))
	approved := f.mustApprove(contest.ID)
	assert.Equal(t, models.StatusActive, approved.Status)
}

func TestCreateDraft_RequiresSponsorProfile(t *testing.T) {
	f := newFixture(t)

	bare := f.newUser("+15550000004", usermodels.RoleSponsor, nil)
	_, err := f.svc.CreateDraft(context.Background(), claimsFor(bare), f.draftInput())
	requireCode(t, err, apperrors.ErrCodeForbidden)
}

func TestCreateDraft_AdminForSponsorProfile(t *testing.T) {
	f := newFixture(t)

	input := f.draftInput()
	input.SponsorProfileID = &f.profile.ID
	contest, err := f.svc.CreateDraft(context.Background(), f.adminClaims, input)
	require.NoError(t, err)
	assert.Equal(t, f.profile.ID, contest.SponsorProfileID)
	assert.Equal(t, f.admin.ID, contest.CreatedByUserID)
}

func TestCreateDraft_ValidationFieldErrors(t *testing.T) {
	f := newFixture(t)

	input := f.draftInput()
	input.EndTime = input.StartTime.Add(-time.Hour)
	input.WinnerCount = 51

	_, err := f.svc.CreateDraft(context.Background(), f.sponsorClaims, input)
	requireCode(t, err, apperrors.ErrCodeValidation)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "end_time")
	assert.Contains(t, fields, "winner_count")
}

func TestUpdateDraft_OnlyDraftOrRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)

	_, err := f.svc.UpdateDraft(ctx, f.sponsorClaims, contest.ID, f.draftInput())
	requireCode(t, err, apperrors.ErrCodeIllegalTransition)
}

func TestDelete_DraftByCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())
	require.NoError(t, f.svc.Delete(ctx, f.sponsorClaims, contest.ID))

	_, err := f.svc.Get(ctx, f.sponsorClaims, contest.ID)
	requireCode(t, err, apperrors.ErrCodeContestNotFound)
}

func TestDelete_ProtectedWithEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.approvedContest(nil)
	for i := 0; i < 5; i++ {
		entrant := f.newUser(phoneFor(200+i), usermodels.RoleUser, nil)
		_, err := f.enter(entrant, contest.ID)
		require.NoError(t, err)
	}

	// Active contests are never deletable.
	err := f.svc.Delete(ctx, f.adminClaims, contest.ID)
	requireCode(t, err, apperrors.ErrCodeContestProtected)

	// Ended contests with entries stay protected, with the count surfaced.
	f.clk.Set(contest.EndTime.Add(time.Minute))
	err = f.svc.Delete(ctx, f.adminClaims, contest.ID)
	requireCode(t, err, apperrors.ErrCodeContestProtected)
	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, "Contest has 5 entries", appErr.Message)
}

func TestDelete_PublishedRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)
	f.mustApprove(contest.ID)

	// Still upcoming; the creator may not delete a published contest.
	err := f.svc.Delete(context.Background(), f.sponsorClaims, contest.ID)
	requireCode(t, err, apperrors.ErrCodeForbidden)

	require.NoError(t, f.svc.Delete(context.Background(), f.adminClaims, contest.ID))
}

func TestGet_PrivateVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())

	_, err := f.svc.Get(ctx, nil, contest.ID)
	requireCode(t, err, apperrors.ErrCodeUnauthorized)

	stranger := f.newUser("+15550000005", usermodels.RoleUser, nil)
	_, err = f.svc.Get(ctx, claimsFor(stranger), contest.ID)
	requireCode(t, err, apperrors.ErrCodeForbidden)

	got, err := f.svc.Get(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.ID, got.ID)

	// Once approved the contest is public, even anonymously.
	f.mustSubmit(contest.ID)
	f.mustApprove(contest.ID)
	got, err = f.svc.Get(ctx, nil, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUpcoming, got.Status)
}

func TestListActive_FiltersByEffectiveStatus(t *testing.T) {
	f := newFixture(t)

	upcoming := f.mustDraft(f.draftInput())
	f.mustSubmit(upcoming.ID)
	f.mustApprove(upcoming.ID)

	// A second contest that has already ended but was never ticked to ended.
	f.approvedContest(func(in *models.ContestDraftInput) {
		in.Name = "Yesterday's News"
		in.StartTime = testBase.Add(-48 * time.Hour)
		in.EndTime = testBase.Add(-24 * time.Hour)
		in.OfficialRules.StartDate = in.StartTime
		in.OfficialRules.EndDate = in.EndTime
	})

	f.clk.Set(testBase)
	contests, total, err := f.svc.ListActive(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, contests, 1)
	assert.Equal(t, upcoming.ID, contests[0].ID)
	assert.Equal(t, models.StatusUpcoming, contests[0].Status)
}

func phoneFor(n int) string {
	return fmt.Sprintf("+1555000%04d", n)
}
