package service

import (
	"context"
	"time"

	"contestlet-backend/internal/common/logger"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	usermodels "contestlet-backend/internal/features/user/models"
	"contestlet-backend/internal/platform/clock"
)

// Scheduler drives the clock-based lifecycle transitions: upcoming contests
// go active at start_time, active contests end at end_time, and ended
// contests with scheduled winner selection get their draw. One instance per
// deployment does the work; the leader advisory lock in the store keeps the
// others idle.
type Scheduler struct {
	svc      *Service
	repo     repository.ContestRepository
	clock    clock.Clock
	interval time.Duration

	isLeader bool
	stop     chan struct{}
	done     chan struct{}
}

// systemActor is the claims the scheduler uses when it invokes admin-gated
// operations such as winner selection.
var systemActor = &authmodels.Claims{UserID: 0, Role: usermodels.RoleAdmin}

func NewScheduler(svc *Service, repo repository.ContestRepository, clk clock.Clock, interval time.Duration) *Scheduler {
	return &Scheduler{
		svc:      svc,
		repo:     repo,
		clock:    clk,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the loop and releases the leader lock if held.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done

	if s.isLeader {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.ReleaseLeaderLock(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to release scheduler leader lock")
		}
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.tickAsLeader(ctx)
			cancel()
		}
	}
}

func (s *Scheduler) tickAsLeader(ctx context.Context) {
	if !s.isLeader {
		acquired, err := s.repo.AcquireLeaderLock(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("scheduler leader lock check failed")
			return
		}
		if !acquired {
			return
		}
		s.isLeader = true
		logger.Info().Msg("scheduler acquired leadership")
	}

	if err := s.Tick(ctx); err != nil {
		logger.Error().Err(err).Msg("scheduler tick failed")
	}
}

// Tick runs one full pass. It is idempotent: a contest already carried past
// a boundary is skipped on re-read.
func (s *Scheduler) Tick(ctx context.Context) error {
	if err := s.advance(ctx, models.StatusUpcoming, models.StatusActive, func(c *models.Contest, now time.Time) bool {
		return !c.StartTime.After(now)
	}); err != nil {
		return err
	}

	if err := s.advance(ctx, models.StatusActive, models.StatusEnded, func(c *models.Contest, now time.Time) bool {
		return !c.EndTime.After(now)
	}); err != nil {
		return err
	}

	return s.drawScheduledWinners(ctx)
}

// advance moves every contest in fromStatus whose boundary has passed to
// toStatus, one transaction per contest.
func (s *Scheduler) advance(ctx context.Context, from, to models.Status, due func(*models.Contest, time.Time) bool) error {
	ids, err := s.repo.ListIDsByStatus(ctx, from)
	if err != nil {
		return err
	}

	actor := models.TransitionActor{IsScheduler: true}
	for _, id := range ids {
		err := s.svc.inTx(ctx, func(tx repository.Transaction) error {
			contest, err := s.repo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			// Re-check under the lock; another pass may have moved it.
			if contest.Status != from || !due(contest, s.clock.Now()) {
				return nil
			}
			return s.svc.transition(ctx, tx, contest, to, actor, 0, "scheduler")
		})
		if err != nil {
			logger.Error().Err(err).Int64("contest_id", id).
				Str("from", string(from)).Str("to", string(to)).
				Msg("scheduler transition failed")
		}
	}
	return nil
}

func (s *Scheduler) drawScheduledWinners(ctx context.Context) error {
	ids, err := s.repo.ListIDsByStatus(ctx, models.StatusEnded)
	if err != nil {
		return err
	}

	for _, id := range ids {
		contest, err := s.repo.GetByID(ctx, id)
		if err != nil {
			logger.Error().Err(err).Int64("contest_id", id).Msg("scheduler failed to load ended contest")
			continue
		}
		if contest.WinnerSelection != models.SelectionScheduled ||
			contest.WinnerCount < 1 || contest.WinnerSelectedAt != nil {
			continue
		}

		_, err = s.svc.SelectWinners(ctx, systemActor, id, models.SelectWinnersInput{
			WinnerCount: contest.WinnerCount,
			PrizeTiers:  contest.PrizeTiers,
		})
		if err != nil {
			logger.Warn().Err(err).Int64("contest_id", id).Msg("scheduled winner draw failed")
		}
	}
	return nil
}
