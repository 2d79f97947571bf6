package service

import (
	"context"
	"fmt"
	"time"

	"contestlet-backend/internal/common/authz"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/logger"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	notifmodels "contestlet-backend/internal/features/notification/models"
	notifsvc "contestlet-backend/internal/features/notification/service"
	usermodels "contestlet-backend/internal/features/user/models"
)

// drawIndices picks count distinct indices from n uniformly at random using
// a partial Fisher-Yates shuffle over the index slice.
func (s *Service) drawIndices(n, count int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + s.random.Intn(n-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	return indices[:count]
}

func prizeByPosition(tiers []models.PrizeTier, position int, fallback string) string {
	for _, t := range tiers {
		if t.Position == position {
			return t.Prize
		}
	}
	return fallback
}

// SelectWinners draws the requested number of distinct winners from active
// entries of an ended contest and completes it. The draw, winner rows, entry
// status flips, audit and completion all commit in one transaction.
func (s *Service) SelectWinners(ctx context.Context, actor *authmodels.Claims, contestID int64, input models.SelectWinnersInput) ([]models.Winner, error) {
	if err := authz.Allow(actor, authz.ActionContestSelectWinners, authz.Target{}); err != nil {
		return nil, err
	}
	if input.WinnerCount < 1 || input.WinnerCount > models.MaxWinnerCount {
		return nil, apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("winner_count must be between 1 and %d", models.MaxWinnerCount))
	}

	var winners []models.Winner
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		contest, err := s.repo.GetByIDForUpdate(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}

		now := s.clock.Now()
		if effective := models.EffectiveStatus(contest, now); effective != models.StatusEnded {
			return apperrors.New(apperrors.ErrCodeIllegalTransition,
				fmt.Sprintf("winners can only be selected for an ended contest, not %s", effective))
		}

		entries, err := s.repo.ListActiveEntries(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}
		if len(entries) < input.WinnerCount {
			return apperrors.New(apperrors.ErrCodeInsufficientEntries,
				fmt.Sprintf("contest has %d active entries, cannot draw %d winners", len(entries), input.WinnerCount)).
				WithDetail("active_entries", len(entries)).
				WithDetail("winner_count", input.WinnerCount)
		}

		tiers := input.PrizeTiers
		if len(tiers) == 0 {
			tiers = contest.PrizeTiers
		}

		drawn := s.drawIndices(len(entries), input.WinnerCount)
		winners = make([]models.Winner, 0, input.WinnerCount)
		for pos, idx := range drawn {
			entry := entries[idx]
			winner := models.Winner{
				ContestID:        contestID,
				EntryID:          entry.ID,
				UserID:           entry.UserID,
				WinnerPosition:   pos + 1,
				PrizeDescription: prizeByPosition(tiers, pos+1, contest.PrizeDescription),
				SelectedAt:       now,
			}
			if err := s.repo.InsertWinner(ctx, tx, &winner); err != nil {
				return mapRepoError(err)
			}
			if err := s.repo.UpdateEntryStatus(ctx, tx, entry.ID, models.EntryStatusWinner); err != nil {
				return mapRepoError(err)
			}
			winners = append(winners, winner)
		}

		contest.WinnerSelectedAt = &now
		contest.WinnerEntryID = &winners[0].EntryID

		// The persisted status may lag the clock; the scheduler writes
		// lifecycle statuses lazily. Catch up first so the audit trail shows
		// every step.
		scheduler := models.TransitionActor{IsScheduler: true}
		if contest.Status == models.StatusUpcoming {
			if err := s.transition(ctx, tx, contest, models.StatusActive, scheduler, actor.UserID, "clock catch-up"); err != nil {
				return err
			}
		}
		if contest.Status == models.StatusActive {
			if err := s.transition(ctx, tx, contest, models.StatusEnded, scheduler, actor.UserID, "clock catch-up"); err != nil {
				return err
			}
		}
		return s.transition(ctx, tx, contest, models.StatusComplete, s.actorOf(actor, contest), actor.UserID, "winner selection")
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int64("contest_id", contestID).
		Int("winner_count", len(winners)).
		Msg("winners selected")
	return winners, nil
}

// ReselectWinner replaces the winner at one position with a fresh draw from
// the remaining active entries.
func (s *Service) ReselectWinner(ctx context.Context, actor *authmodels.Claims, contestID int64, position int) (*models.Winner, error) {
	if err := authz.Allow(actor, authz.ActionContestSelectWinners, authz.Target{}); err != nil {
		return nil, err
	}

	var replacement *models.Winner
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		contest, err := s.repo.GetByIDForUpdate(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}

		removed, err := s.repo.DeleteWinnerByPosition(ctx, tx, contestID, position)
		if err != nil {
			return mapRepoError(err)
		}
		if err := s.repo.UpdateEntryStatus(ctx, tx, removed.EntryID, models.EntryStatusDisqualified); err != nil {
			return mapRepoError(err)
		}

		candidates, err := s.repo.ListActiveEntries(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}
		if len(candidates) == 0 {
			return apperrors.New(apperrors.ErrCodeInsufficientEntries, "no active entries left to draw a replacement from")
		}

		entry := candidates[s.random.Intn(len(candidates))]
		now := s.clock.Now()
		replacement = &models.Winner{
			ContestID:        contestID,
			EntryID:          entry.ID,
			UserID:           entry.UserID,
			WinnerPosition:   position,
			PrizeDescription: removed.PrizeDescription,
			SelectedAt:       now,
		}
		if err := s.repo.InsertWinner(ctx, tx, replacement); err != nil {
			return mapRepoError(err)
		}
		if err := s.repo.UpdateEntryStatus(ctx, tx, entry.ID, models.EntryStatusWinner); err != nil {
			return mapRepoError(err)
		}

		if position == 1 {
			contest.WinnerEntryID = &entry.ID
			contest.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, contest); err != nil {
				return mapRepoError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int64("contest_id", contestID).
		Int("position", position).
		Msg("winner reselected")
	return replacement, nil
}

// ListWinners returns a contest's winners ordered by position.
func (s *Service) ListWinners(ctx context.Context, actor *authmodels.Claims, contestID int64) ([]models.Winner, error) {
	if err := authz.Allow(actor, authz.ActionContestSelectWinners, authz.Target{}); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, contestID); err != nil {
		return nil, mapRepoError(err)
	}
	winners, err := s.repo.ListWinners(ctx, nil, contestID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return winners, nil
}

// WinnerStats summarizes notification and claim progress.
func (s *Service) WinnerStats(ctx context.Context, actor *authmodels.Claims, contestID int64) (*models.WinnerStats, error) {
	winners, err := s.ListWinners(ctx, actor, contestID)
	if err != nil {
		return nil, err
	}
	stats := &models.WinnerStats{TotalWinners: len(winners)}
	for _, w := range winners {
		if w.NotifiedAt != nil {
			stats.NotifiedCount++
		}
		if w.ClaimedAt != nil {
			stats.ClaimedCount++
		}
	}
	return stats, nil
}

// NotifyWinners queues a winner SMS for every unnotified winner. With test
// set, a single message goes to the acting admin's phone instead.
func (s *Service) NotifyWinners(ctx context.Context, actor *authmodels.Claims, contestID int64, input models.NotifyWinnersInput) (int, error) {
	if err := authz.Allow(actor, authz.ActionContestSelectWinners, authz.Target{}); err != nil {
		return 0, err
	}
	if s.dispatcher == nil {
		return 0, apperrors.New(apperrors.ErrCodeUnavailable, "notification dispatcher not running")
	}

	contest, err := s.repo.GetByID(ctx, contestID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	winners, err := s.repo.ListWinners(ctx, nil, contestID)
	if err != nil {
		return 0, mapRepoError(err)
	}

	template := s.templateFor(ctx, contestID, models.TemplateWinnerNotification, notifmodels.TypeWinnerNotification)
	baseVars := s.contestVars(ctx, contest)

	if input.Test {
		vars := cloneVars(baseVars)
		vars["winner_name"] = "Test Winner"
		vars["claim_instructions"] = "This is a test message."
		err := s.dispatcher.Enqueue(ctx, notifsvc.Job{
			ContestID: contestID,
			UserID:    actor.UserID,
			Phone:     actor.Phone,
			Type:      notifmodels.TypeAdminTest,
			Template:  template,
			Vars:      vars,
			Test:      true,
		})
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "notification queue is backed up")
		}
		return 1, nil
	}

	queued := 0
	for _, w := range winners {
		if w.NotifiedAt != nil {
			continue
		}
		user, err := s.users.GetByID(ctx, w.UserID)
		if err != nil {
			logger.Warn().Err(err).Int64("user_id", w.UserID).Msg("skipping winner with missing user")
			continue
		}

		vars := cloneVars(baseVars)
		vars["winner_name"] = winnerDisplayName(user)
		vars["prize_description"] = w.PrizeDescription
		vars["claim_instructions"] = "Reply CLAIM to collect your prize."

		winnerID := w.ID
		err = s.dispatcher.Enqueue(ctx, notifsvc.Job{
			ContestID: contestID,
			UserID:    w.UserID,
			Phone:     user.Phone,
			Type:      notifmodels.TypeWinnerNotification,
			Template:  template,
			Vars:      vars,
			OnSent: func(providerID string, at time.Time) {
				if err := s.repo.MarkWinnerNotified(context.Background(), winnerID, at); err != nil {
					logger.Error().Err(err).Int64("winner_id", winnerID).Msg("failed to mark winner notified")
				}
			},
		})
		if err != nil {
			return queued, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "notification queue is backed up")
		}
		queued++
	}
	return queued, nil
}

func cloneVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func winnerDisplayName(user *usermodels.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return "winner"
}
