package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/contest/models"
	usermodels "contestlet-backend/internal/features/user/models"
)

// endedContest builds an active contest, enters n users and moves the clock
// past the end time. The persisted status is still upcoming; winner selection
// has to catch the lifecycle up itself.
func (f *fixture) endedContest(n int, mutate func(*models.ContestDraftInput)) (*models.Contest, []*usermodels.User) {
	f.t.Helper()
	contest := f.approvedContest(mutate)

	entrants := make([]*usermodels.User, 0, n)
	for i := 0; i < n; i++ {
		entrant := f.newUser(phoneFor(300+i), usermodels.RoleUser, nil)
		_, err := f.enter(entrant, contest.ID)
		require.NoError(f.t, err)
		entrants = append(entrants, entrant)
	}

	f.clk.Set(contest.EndTime.Add(time.Minute))
	return contest, entrants
}

func TestSelectWinners_DrawsDistinctPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(5, nil)

	winners, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 3})
	require.NoError(t, err)
	require.Len(t, winners, 3)

	seenEntries := make(map[int64]bool)
	for i, w := range winners {
		assert.Equal(t, i+1, w.WinnerPosition)
		assert.False(t, seenEntries[w.EntryID], "entry %d drawn twice", w.EntryID)
		seenEntries[w.EntryID] = true
		assert.Equal(t, "52 taco vouchers", w.PrizeDescription, "no tiers falls back to the contest prize")
	}

	got, err := f.svc.Get(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)
	require.NotNil(t, got.WinnerSelectedAt)
	require.NotNil(t, got.WinnerEntryID)
	assert.Equal(t, winners[0].EntryID, *got.WinnerEntryID)

	// The lazy lifecycle is caught up step by step in the audit trail.
	audits, err := f.svc.StatusHistory(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	var steps [][2]models.Status
	for _, a := range audits {
		steps = append(steps, [2]models.Status{a.OldStatus, a.NewStatus})
	}
	assert.Equal(t, [][2]models.Status{
		{models.StatusDraft, models.StatusAwaitingApproval},
		{models.StatusAwaitingApproval, models.StatusUpcoming},
		{models.StatusUpcoming, models.StatusActive},
		{models.StatusActive, models.StatusEnded},
		{models.StatusEnded, models.StatusComplete},
	}, steps)
}

func TestSelectWinners_MarksWinningEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(4, nil)
	winners, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 2})
	require.NoError(t, err)

	won := make(map[int64]bool, len(winners))
	for _, w := range winners {
		won[w.EntryID] = true
	}

	entries, _, err := f.repo.ListEntries(ctx, contest.ID, 1, 10)
	require.NoError(t, err)
	for _, e := range entries {
		if won[e.ID] {
			assert.Equal(t, models.EntryStatusWinner, e.Status)
		} else {
			assert.Equal(t, models.EntryStatusActive, e.Status)
		}
	}
}

func TestSelectWinners_PrizeTiers(t *testing.T) {
	f := newFixture(t)

	contest, _ := f.endedContest(3, nil)
	winners, err := f.svc.SelectWinners(context.Background(), f.adminClaims, contest.ID, models.SelectWinnersInput{
		WinnerCount: 2,
		PrizeTiers: []models.PrizeTier{
			{Position: 1, Prize: "Grand prize: taco truck visit"},
			{Position: 2, Prize: "Runner-up: 10 vouchers"},
		},
	})
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "Grand prize: taco truck visit", winners[0].PrizeDescription)
	assert.Equal(t, "Runner-up: 10 vouchers", winners[1].PrizeDescription)
}

func TestSelectWinners_InsufficientEntries(t *testing.T) {
	f := newFixture(t)

	contest, _ := f.endedContest(2, nil)
	_, err := f.svc.SelectWinners(context.Background(), f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 3})
	requireCode(t, err, apperrors.ErrCodeInsufficientEntries)

	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, 2, appErr.Details["active_entries"])
	assert.Equal(t, 3, appErr.Details["winner_count"])
}

func TestSelectWinners_OnlyWhenEnded(t *testing.T) {
	f := newFixture(t)

	contest := f.approvedContest(nil)
	entrant := f.newUser("+15550000300", usermodels.RoleUser, nil)
	_, err := f.enter(entrant, contest.ID)
	require.NoError(t, err)

	_, err = f.svc.SelectWinners(context.Background(), f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 1})
	requireCode(t, err, apperrors.ErrCodeIllegalTransition)
}

func TestSelectWinners_AdminOnly(t *testing.T) {
	f := newFixture(t)

	contest, _ := f.endedContest(1, nil)
	_, err := f.svc.SelectWinners(context.Background(), f.sponsorClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 1})
	requireCode(t, err, apperrors.ErrCodeForbidden)
}

func TestReselectWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(4, nil)
	winners, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 2})
	require.NoError(t, err)
	original := winners[0]

	replacement, err := f.svc.ReselectWinner(ctx, f.adminClaims, contest.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, replacement.WinnerPosition)
	assert.NotEqual(t, original.EntryID, replacement.EntryID)
	assert.Equal(t, original.PrizeDescription, replacement.PrizeDescription, "the replacement inherits the prize")

	// The replaced entry is disqualified and cannot win again.
	entries, _, err := f.repo.ListEntries(ctx, contest.ID, 1, 10)
	require.NoError(t, err)
	for _, e := range entries {
		if e.ID == original.EntryID {
			assert.Equal(t, models.EntryStatusDisqualified, e.Status)
		}
	}

	got, err := f.svc.Get(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinnerEntryID)
	assert.Equal(t, replacement.EntryID, *got.WinnerEntryID)
}

func TestReselectWinner_NoCandidatesLeft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(1, nil)
	_, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 1})
	require.NoError(t, err)

	_, err = f.svc.ReselectWinner(ctx, f.adminClaims, contest.ID, 1)
	requireCode(t, err, apperrors.ErrCodeInsufficientEntries)
}

func TestNotifyWinners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(3, nil)
	_, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 2})
	require.NoError(t, err)

	queued, err := f.svc.NotifyWinners(ctx, f.adminClaims, contest.ID, models.NotifyWinnersInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	f.drain()
	messages := f.gateway.Messages()
	// Three entry confirmations plus two winner notifications.
	require.Len(t, messages, 5)
	assert.Contains(t, messages[4].Body, "Reply CLAIM to collect your prize.")

	stats, err := f.svc.WinnerStats(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalWinners)
	assert.Equal(t, 2, stats.NotifiedCount)
	assert.Equal(t, 0, stats.ClaimedCount)
}

func TestNotifyWinners_SkipsAlreadyNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(2, nil)
	winners, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 2})
	require.NoError(t, err)

	notified := f.clk.Now()
	require.NoError(t, f.repo.MarkWinnerNotified(ctx, winners[0].ID, notified))

	queued, err := f.svc.NotifyWinners(ctx, f.adminClaims, contest.ID, models.NotifyWinnersInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestNotifyWinners_TestMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest, _ := f.endedContest(2, nil)
	_, err := f.svc.SelectWinners(ctx, f.adminClaims, contest.ID, models.SelectWinnersInput{WinnerCount: 2})
	require.NoError(t, err)

	queued, err := f.svc.NotifyWinners(ctx, f.adminClaims, contest.ID, models.NotifyWinnersInput{Test: true})
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	f.drain()
	msg, ok := f.gateway.Last()
	require.True(t, ok)
	assert.Equal(t, f.admin.Phone, msg.Phone)
	assert.Contains(t, msg.Body, "Test Winner")

	// Test sends never mark real winners notified.
	stats, err := f.svc.WinnerStats(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NotifiedCount)
}
