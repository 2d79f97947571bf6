package service

import (
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
)

// mapRepoError translates repository sentinels into AppErrors; anything
// unknown becomes an internal error.
func mapRepoError(err error) error {
	switch err {
	case nil:
		return nil
	case repository.ErrContestNotFound:
		return apperrors.New(apperrors.ErrCodeContestNotFound, "contest not found")
	case repository.ErrEntryNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, "entry not found")
	case repository.ErrWinnerNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, "winner not found")
	case repository.ErrRulesNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, "official rules not found")
	case repository.ErrTemplateNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, "sms template not found")
	case repository.ErrDuplicateEntry:
		return apperrors.New(apperrors.ErrCodeDuplicateEntry, "you have already entered this contest")
	case repository.ErrDuplicateWinner:
		return apperrors.New(apperrors.ErrCodeConflict, "winner position or entry already taken")
	case models.ErrIllegalTransition:
		return apperrors.New(apperrors.ErrCodeIllegalTransition, "status transition not allowed")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "storage failure")
	}
}
