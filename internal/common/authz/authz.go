package authz

import (
	apperrors "contestlet-backend/internal/common/errors"
	authmodels "contestlet-backend/internal/features/auth/models"
	usermodels "contestlet-backend/internal/features/user/models"
)

// Action names a privileged operation checked against the policy table.
type Action string

const (
	ActionContestCreateDraft   Action = "contest.create_draft"
	ActionContestUpdateDraft   Action = "contest.update_draft"
	ActionContestSubmit        Action = "contest.submit"
	ActionContestWithdraw      Action = "contest.withdraw"
	ActionContestDeleteDraft   Action = "contest.delete_draft"
	ActionContestApprove       Action = "contest.approve"
	ActionContestReject        Action = "contest.reject"
	ActionContestForceStatus   Action = "contest.force_status"
	ActionContestRestrictedEdit Action = "contest.override_restricted_edit"
	ActionContestManualEntry   Action = "contest.manual_entry"
	ActionContestReadPrivate   Action = "contest.read_private"
	ActionContestSelectWinners Action = "contest.select_winners"
)

// Target carries the ownership facts needed by the policy. The zero value
// describes an action with no specific resource.
type Target struct {
	CreatorUserID int64
}

// Allow is the single authorization decision point. Returns nil when the
// actor may perform action on target; otherwise an Unauthorized or Forbidden
// error. A nil actor means no session.
func Allow(actor *authmodels.Claims, action Action, target Target) error {
	if actor == nil {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "Authentication required")
	}

	isAdmin := actor.Role == usermodels.RoleAdmin
	isCreator := actor.UserID == target.CreatorUserID

	switch action {
	case ActionContestCreateDraft, ActionContestUpdateDraft,
		ActionContestSubmit, ActionContestWithdraw, ActionContestDeleteDraft:
		if actor.Role != usermodels.RoleSponsor && !isAdmin {
			return apperrors.New(apperrors.ErrCodeForbidden, "Sponsor or admin role required")
		}
		if !isAdmin && !isCreator && action != ActionContestCreateDraft {
			return apperrors.New(apperrors.ErrCodeForbidden, "Only the contest creator may perform this action")
		}
		return nil

	case ActionContestApprove, ActionContestReject, ActionContestForceStatus,
		ActionContestRestrictedEdit, ActionContestManualEntry,
		ActionContestSelectWinners:
		if !isAdmin {
			return apperrors.New(apperrors.ErrCodeForbidden, "Admin access required")
		}
		return nil

	case ActionContestReadPrivate:
		// Contests still in the publication workflow are visible only to
		// admins and their creator.
		if !isAdmin && !isCreator {
			return apperrors.New(apperrors.ErrCodeForbidden, "Contest is not public")
		}
		return nil

	default:
		return apperrors.New(apperrors.ErrCodeForbidden, "Unknown action")
	}
}
