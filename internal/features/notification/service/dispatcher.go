package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"contestlet-backend/internal/common/logger"
	"contestlet-backend/internal/features/notification/models"
	"contestlet-backend/internal/features/notification/repository"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/sms"
)

const (
	defaultQueueSize = 256
	maxSendAttempts  = 3
	baseBackoff      = 500 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

// Job is one queued outbound SMS. Template is raw message content with
// placeholders; Vars fills them.
type Job struct {
	ContestID int64
	UserID    int64
	Phone     string
	Type      models.NotificationType
	Template  string
	Vars      map[string]string
	Test      bool

	// OnSent fires after a successful delivery, outside the send path.
	OnSent func(providerID string, at time.Time)
}

// Dispatcher delivers queued SMS jobs through the gateway. A single worker
// drains the queue, which preserves enqueue order for any (contest, phone)
// pair. Transient gateway failures are retried with capped backoff; permanent
// rejections are not. Every job leaves an audit row whatever the outcome.
type Dispatcher struct {
	repo    repository.NotificationRepository
	gateway sms.Gateway
	clock   clock.Clock

	queue chan Job
	done  chan struct{}
	once  sync.Once

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewDispatcher(repo repository.NotificationRepository, gateway sms.Gateway, clk clock.Clock) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		gateway: gateway,
		clock:   clk,
		queue:   make(chan Job, defaultQueueSize),
		done:    make(chan struct{}),
		sleep:   time.Sleep,
	}
}

// Start launches the worker. Call once.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop closes the queue and waits for the worker to drain it.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.queue) })
	<-d.done
}

// Enqueue adds a job, blocking while the queue is full so backpressure
// reaches the producer instead of losing the message. The context bounds the
// wait.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	select {
	case d.queue <- job:
		return nil
	case <-ctx.Done():
		logger.Warn().
			Int64("contest_id", job.ContestID).
			Str("type", string(job.Type)).
			Msg("notification enqueue abandoned, queue full")
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for job := range d.queue {
		d.deliver(job)
	}
}

// RenderTemplate substitutes {placeholder} variables into a message template.
// Unknown placeholders are left as-is.
func RenderTemplate(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

func (d *Dispatcher) deliver(job Job) {
	body := RenderTemplate(job.Template, job.Vars)
	record := &models.Notification{
		ContestID: job.ContestID,
		UserID:    job.UserID,
		Phone:     job.Phone,
		Type:      job.Type,
		Body:      body,
		Status:    models.StatusPending,
		Test:      job.Test,
		CreatedAt: d.clock.Now(),
	}

	ctx := context.Background()
	if err := d.repo.Insert(ctx, record); err != nil {
		logger.Error().Err(err).Msg("failed to record notification")
		return
	}

	backoff := baseBackoff
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		record.Attempts = attempt
		providerID, err := d.gateway.Send(ctx, job.Phone, body)
		if err == nil {
			now := d.clock.Now()
			record.Status = models.StatusSent
			record.ProviderID = providerID
			record.Error = ""
			record.SentAt = &now
			if err := d.repo.Update(ctx, record); err != nil {
				logger.Error().Err(err).Int64("notification_id", record.ID).Msg("failed to update notification")
			}
			if job.OnSent != nil {
				job.OnSent(providerID, now)
			}
			return
		}

		lastErr = err
		if sms.IsPermanent(err) {
			break
		}
		if attempt < maxSendAttempts {
			d.sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	record.Status = models.StatusFailed
	record.Error = lastErr.Error()
	if err := d.repo.Update(ctx, record); err != nil {
		logger.Error().Err(err).Int64("notification_id", record.ID).Msg("failed to update notification")
	}
	logger.Warn().
		Err(lastErr).
		Int64("contest_id", job.ContestID).
		Str("type", string(job.Type)).
		Int("attempts", record.Attempts).
		Msg("notification delivery failed")
}

// RecordSuppressed writes the audit row for a message that is deliberately
// not sent, such as a manual-entry confirmation.
func (d *Dispatcher) RecordSuppressed(ctx context.Context, contestID, userID int64, phone string) {
	record := &models.Notification{
		ContestID: contestID,
		UserID:    userID,
		Phone:     phone,
		Type:      models.TypeEntryConfirmation,
		Status:    models.StatusSuppressed,
		CreatedAt: d.clock.Now(),
	}
	if err := d.repo.Insert(ctx, record); err != nil {
		logger.Error().Err(err).Msg("failed to record suppressed notification")
	}
}

// DefaultTemplates are used when a contest has no custom template of the
// given type.
var DefaultTemplates = map[models.NotificationType]string{
	models.TypeEntryConfirmation:  "You're in! Your entry for {contest_name} is confirmed. Good luck!",
	models.TypeWinnerNotification: "Congratulations {winner_name}! You won {prize_description} in {contest_name}. {claim_instructions}",
	models.TypeNonWinner:          "Thanks for entering {contest_name}. You weren't drawn this time. {consolation_offer}",
}
