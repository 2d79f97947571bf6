package service

import (
	"context"

	"contestlet-backend/internal/common/authz"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/logger"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
)

// Approve moves a pending contest into its lifecycle. If the start time has
// already passed, the effective status reads active immediately.
func (s *Service) Approve(ctx context.Context, actor *authmodels.Claims, id int64, input models.ApproveInput) (*models.Contest, error) {
	if err := authz.Allow(actor, authz.ActionContestApprove, authz.Target{}); err != nil {
		return nil, err
	}

	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}

		now := s.clock.Now()
		adminID := actor.UserID
		contest.ApprovedAt = &now
		contest.ApprovedByUserID = &adminID
		contest.ApprovalMessage = input.Message

		if err := s.transition(ctx, tx, contest, models.StatusUpcoming, s.actorOf(actor, contest), actor.UserID, "approved"); err != nil {
			return err
		}
		return mapRepoError(s.repo.InsertApprovalAudit(ctx, tx, &models.ApprovalAudit{
			ContestID: id,
			Action:    "approved",
			By:        actor.UserID,
			Reason:    input.Message,
			CreatedAt: now,
		}))
	})
	if err != nil {
		return nil, err
	}

	contest.Status = models.EffectiveStatus(contest, s.clock.Now())
	logger.Info().Int64("contest_id", id).Int64("admin_id", actor.UserID).Msg("contest approved")
	return contest, nil
}

// Reject sends a pending contest back with a mandatory reason.
func (s *Service) Reject(ctx context.Context, actor *authmodels.Claims, id int64, input models.RejectInput) (*models.Contest, error) {
	if err := authz.Allow(actor, authz.ActionContestReject, authz.Target{}); err != nil {
		return nil, err
	}
	if input.Reason == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "a rejection reason is required")
	}

	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}

		now := s.clock.Now()
		contest.RejectedAt = &now
		contest.RejectionReason = input.Reason

		if err := s.transition(ctx, tx, contest, models.StatusRejected, s.actorOf(actor, contest), actor.UserID, input.Reason); err != nil {
			return err
		}
		return mapRepoError(s.repo.InsertApprovalAudit(ctx, tx, &models.ApprovalAudit{
			ContestID: id,
			Action:    "rejected",
			By:        actor.UserID,
			Reason:    input.Reason,
			CreatedAt: now,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Int64("contest_id", id).Int64("admin_id", actor.UserID).Msg("contest rejected")
	return contest, nil
}

// BulkApproval applies one decision to many contests. A failing contest is
// reported in its result row and never aborts the rest of the batch.
func (s *Service) BulkApproval(ctx context.Context, actor *authmodels.Claims, input models.BulkApprovalInput) ([]models.BulkApprovalResult, error) {
	if err := authz.Allow(actor, authz.ActionContestApprove, authz.Target{}); err != nil {
		return nil, err
	}

	results := make([]models.BulkApprovalResult, 0, len(input.ContestIDs))
	for _, id := range input.ContestIDs {
		var err error
		if input.Approved {
			_, err = s.Approve(ctx, actor, id, models.ApproveInput{Message: input.Reason})
		} else {
			_, err = s.Reject(ctx, actor, id, models.RejectInput{Reason: input.Reason})
		}

		result := models.BulkApprovalResult{ContestID: id, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// ApprovalQueue lists contests awaiting review, oldest first.
func (s *Service) ApprovalQueue(ctx context.Context, actor *authmodels.Claims, filter repository.QueueFilter) ([]models.ApprovalQueueItem, int64, error) {
	if err := authz.Allow(actor, authz.ActionContestApprove, authz.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ApprovalQueue(ctx, filter, s.clock.Now())
	if err != nil {
		return nil, 0, mapRepoError(err)
	}
	return items, total, nil
}

// ApprovalStatistics summarizes review throughput for the admin dashboard.
func (s *Service) ApprovalStatistics(ctx context.Context, actor *authmodels.Claims) (*models.ApprovalStatistics, error) {
	if err := authz.Allow(actor, authz.ActionContestApprove, authz.Target{}); err != nil {
		return nil, err
	}
	stats, err := s.repo.ApprovalStatistics(ctx, s.clock.Now())
	if err != nil {
		return nil, mapRepoError(err)
	}
	return stats, nil
}

// ApprovalHistory returns the approval decisions recorded for a contest.
func (s *Service) ApprovalHistory(ctx context.Context, actor *authmodels.Claims, id int64) ([]models.ApprovalAudit, error) {
	if err := authz.Allow(actor, authz.ActionContestApprove, authz.Target{}); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, mapRepoError(err)
	}
	audits, err := s.repo.ListApprovalAudits(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return audits, nil
}
