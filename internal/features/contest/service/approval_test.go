package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
)

func TestApprovalQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := f.mustDraft(f.draftInput())
	f.mustSubmit(older.ID)

	f.clk.Advance(72 * time.Hour)
	input := f.draftInput()
	input.Name = "Sticker Giveaway"
	input.StartTime = f.clk.Now().Add(time.Hour)
	input.EndTime = input.StartTime.Add(24 * time.Hour)
	newer := f.mustDraft(input)
	f.mustSubmit(newer.ID)

	items, total, err := f.svc.ApprovalQueue(ctx, f.adminClaims, repository.QueueFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	// Oldest submission first, with waiting time and sponsor attached.
	assert.Equal(t, older.ID, items[0].ContestID)
	assert.Equal(t, 3, items[0].WaitingDays)
	assert.Equal(t, "Acme Goods", items[0].SponsorName)
	assert.Equal(t, 0, items[1].WaitingDays)

	// Name search.
	items, _, err = f.svc.ApprovalQueue(ctx, f.adminClaims, repository.QueueFilter{Search: "sticker", Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, newer.ID, items[0].ContestID)

	// Waiting-days window.
	items, _, err = f.svc.ApprovalQueue(ctx, f.adminClaims, repository.QueueFilter{MinWaitingDays: 2, Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, older.ID, items[0].ContestID)

	_, _, err = f.svc.ApprovalQueue(ctx, f.sponsorClaims, repository.QueueFilter{Page: 1, Size: 10})
	requireCode(t, err, apperrors.ErrCodeForbidden)
}

func TestReject_RequiresReason(t *testing.T) {
	f := newFixture(t)

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)

	_, err := f.svc.Reject(context.Background(), f.adminClaims, contest.ID, models.RejectInput{})
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestBulkApproval_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.mustDraft(f.draftInput())
	f.mustSubmit(pending.ID)

	// Still a draft; approving it must fail without sinking the batch.
	draft := f.mustDraft(f.draftInput())

	results, err := f.svc.BulkApproval(ctx, f.adminClaims, models.BulkApprovalInput{
		ContestIDs: []int64{pending.ID, draft.ID, 9999},
		Approved:   true,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.False(t, results[2].Success)

	got, err := f.repo.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUpcoming, got.Status)
}

func TestApprovalStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.mustDraft(f.draftInput())
	f.mustSubmit(approved.ID)
	f.clk.Advance(2 * time.Hour)
	f.mustApprove(approved.ID)

	rejected := f.mustDraft(f.draftInput())
	f.mustSubmit(rejected.ID)
	_, err := f.svc.Reject(ctx, f.adminClaims, rejected.ID, models.RejectInput{Reason: "not a real prize"})
	require.NoError(t, err)

	pending := f.mustDraft(f.draftInput())
	f.mustSubmit(pending.ID)
	f.clk.Advance(time.Hour)

	stats, err := f.svc.ApprovalStatistics(ctx, f.adminClaims)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.InDelta(t, 0.5, stats.ApprovalRate7d, 0.001)
	assert.InDelta(t, 0.5, stats.RejectionRate7d, 0.001)
	assert.InDelta(t, (2 * time.Hour).Seconds(), stats.AvgApprovalTimeSeconds, 0.001)
	assert.InDelta(t, time.Hour.Seconds(), stats.OldestPendingAgeSeconds, 0.001)
}

func TestApprovalHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contest := f.mustDraft(f.draftInput())
	f.mustSubmit(contest.ID)
	_, err := f.svc.Reject(ctx, f.adminClaims, contest.ID, models.RejectInput{Reason: "fix the dates"})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, f.sponsorClaims, contest.ID)
	require.NoError(t, err)
	f.mustSubmit(contest.ID)
	f.mustApprove(contest.ID)

	audits, err := f.svc.ApprovalHistory(ctx, f.adminClaims, contest.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "rejected", audits[0].Action)
	assert.Equal(t, "fix the dates", audits[0].Reason)
	assert.Equal(t, "approved", audits[1].Action)
	assert.Equal(t, f.admin.ID, audits[1].By)
}
