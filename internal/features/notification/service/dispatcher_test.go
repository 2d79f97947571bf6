package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestlet-backend/internal/features/notification/models"
	notifmemory "contestlet-backend/internal/features/notification/repository/memory"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/sms"
)

var dispatchBase = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// scriptedGateway fails the first failures sends, then delegates to the mock.
type scriptedGateway struct {
	mock     *sms.MockGateway
	failures int
	err      error
	calls    int
}

func (g *scriptedGateway) Send(ctx context.Context, phone, body string) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", g.err
	}
	return g.mock.Send(ctx, phone, body)
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Hi {name}, you won {prize} in {contest_name}!", map[string]string{
		"name":  "Ada",
		"prize": "a toaster",
	})
	assert.Equal(t, "Hi Ada, you won a toaster in {contest_name}!", out,
		"unknown placeholders pass through untouched")
}

func TestDispatcher_DeliversAndRecords(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	gateway := sms.NewMockGateway()
	clk := clock.NewFixed(dispatchBase)

	d := NewDispatcher(repo, gateway, clk)
	d.sleep = func(time.Duration) {}
	d.Start()

	err := d.Enqueue(context.Background(), Job{
		ContestID: 1,
		UserID:    2,
		Phone:     "+15551234567",
		Type:      models.TypeEntryConfirmation,
		Template:  DefaultTemplates[models.TypeEntryConfirmation],
		Vars:      map[string]string{"contest_name": "Free Tacos"},
	})
	require.NoError(t, err)
	d.Stop()

	msg, sent := gateway.Last()
	require.True(t, sent)
	assert.Equal(t, "You're in! Your entry for Free Tacos is confirmed. Good luck!", msg.Body)

	rows, _, err := repo.ListByContest(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSent, rows[0].Status)
	assert.Equal(t, msg.ProviderID, rows[0].ProviderID)
	assert.Equal(t, 1, rows[0].Attempts)
	require.NotNil(t, rows[0].SentAt)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	gateway := &scriptedGateway{mock: sms.NewMockGateway(), failures: 2, err: errors.New("carrier timeout")}
	clk := clock.NewFixed(dispatchBase)

	var backoffs []time.Duration
	d := NewDispatcher(repo, gateway, clk)
	d.sleep = func(dur time.Duration) { backoffs = append(backoffs, dur) }
	d.Start()

	require.NoError(t, d.Enqueue(context.Background(), Job{ContestID: 1, UserID: 2, Phone: "+15551234567", Type: models.TypeWinnerNotification, Template: "you won"}))
	d.Stop()

	assert.Equal(t, 3, gateway.calls, "two failures then success")
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, backoffs)

	rows, _, err := repo.ListByContest(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSent, rows[0].Status)
	assert.Equal(t, 3, rows[0].Attempts)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	gateway := &scriptedGateway{mock: sms.NewMockGateway(), failures: 10, err: errors.New("carrier timeout")}

	d := NewDispatcher(repo, gateway, clock.NewFixed(dispatchBase))
	d.sleep = func(time.Duration) {}
	d.Start()

	require.NoError(t, d.Enqueue(context.Background(), Job{ContestID: 1, UserID: 2, Phone: "+15551234567", Type: models.TypeWinnerNotification, Template: "you won"}))
	d.Stop()

	assert.Equal(t, 3, gateway.calls)

	rows, _, err := repo.ListByContest(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusFailed, rows[0].Status)
	assert.Equal(t, 3, rows[0].Attempts)
	assert.Equal(t, "carrier timeout", rows[0].Error)
}

func TestDispatcher_PermanentFailureSkipsRetries(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	gateway := &scriptedGateway{mock: sms.NewMockGateway(), failures: 10, err: &sms.PermanentError{Reason: "landline"}}

	slept := false
	d := NewDispatcher(repo, gateway, clock.NewFixed(dispatchBase))
	d.sleep = func(time.Duration) { slept = true }
	d.Start()

	require.NoError(t, d.Enqueue(context.Background(), Job{ContestID: 1, UserID: 2, Phone: "+15551234567", Type: models.TypeEntryConfirmation, Template: "hi"}))
	d.Stop()

	assert.Equal(t, 1, gateway.calls, "permanent rejections are not retried")
	assert.False(t, slept)

	rows, _, err := repo.ListByContest(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusFailed, rows[0].Status)
}

func TestDispatcher_OnSentCallback(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	gateway := sms.NewMockGateway()
	clk := clock.NewFixed(dispatchBase)

	d := NewDispatcher(repo, gateway, clk)
	d.Start()

	var gotProviderID string
	var gotAt time.Time
	err := d.Enqueue(context.Background(), Job{
		ContestID: 1, UserID: 2, Phone: "+15551234567",
		Type: models.TypeWinnerNotification, Template: "you won",
		OnSent: func(providerID string, at time.Time) {
			gotProviderID = providerID
			gotAt = at
		},
	})
	require.NoError(t, err)
	d.Stop()

	msg, _ := gateway.Last()
	assert.Equal(t, msg.ProviderID, gotProviderID)
	assert.Equal(t, dispatchBase, gotAt)
}

func TestDispatcher_EnqueueBlocksWhenFull(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	d := NewDispatcher(repo, sms.NewMockGateway(), clock.NewFixed(dispatchBase))
	d.sleep = func(time.Duration) {}

	// No worker yet; fill the queue to capacity.
	ctx := context.Background()
	job := Job{ContestID: 1, UserID: 2, Phone: "+15551234567", Type: models.TypeEntryConfirmation, Template: "hi"}
	for i := 0; i < defaultQueueSize; i++ {
		require.NoError(t, d.Enqueue(ctx, job))
	}

	// A full queue blocks the producer until the context gives up. Nothing
	// is dropped.
	bounded, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Enqueue(bounded, job)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Once the worker drains, the producer gets through.
	d.Start()
	require.NoError(t, d.Enqueue(ctx, job))
	d.Stop()

	_, total, err := repo.ListByContest(ctx, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(defaultQueueSize+1), total, "every accepted job left an audit row")
}

func TestDispatcher_RecordSuppressed(t *testing.T) {
	repo := notifmemory.NewMemoryRepository()
	d := NewDispatcher(repo, sms.NewMockGateway(), clock.NewFixed(dispatchBase))

	d.RecordSuppressed(context.Background(), 7, 3, "+15551234567")

	rows, _, err := repo.ListByContest(context.Background(), 7, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusSuppressed, rows[0].Status)
	assert.Equal(t, models.TypeEntryConfirmation, rows[0].Type)
	assert.Zero(t, rows[0].Attempts)
}
