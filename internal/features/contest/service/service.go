package service

import (
	"context"
	"fmt"

	"contestlet-backend/internal/common/authz"
	"contestlet-backend/internal/common/config"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/logger"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	notifsvc "contestlet-backend/internal/features/notification/service"
	usermodels "contestlet-backend/internal/features/user/models"
	userrepo "contestlet-backend/internal/features/user/repository"
	"contestlet-backend/internal/platform/clock"
	"contestlet-backend/internal/platform/geo"
)

// Service owns the contest workflow: drafting, the approval pipeline, entry
// admission, winner selection and deletion. Every mutation runs in a store
// transaction and leaves audit rows in the same transaction.
type Service struct {
	cfg        *config.Config
	repo       repository.ContestRepository
	users      userrepo.UserRepository
	dispatcher *notifsvc.Dispatcher
	geo        geo.Service
	clock      clock.Clock
	random     clock.Random
}

func NewService(
	cfg *config.Config,
	repo repository.ContestRepository,
	users userrepo.UserRepository,
	dispatcher *notifsvc.Dispatcher,
	geoSvc geo.Service,
	clk clock.Clock,
	random clock.Random,
) *Service {
	return &Service{
		cfg:        cfg,
		repo:       repo,
		users:      users,
		dispatcher: dispatcher,
		geo:        geoSvc,
		clock:      clk,
		random:     random,
	}
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Service) inTx(ctx context.Context, fn func(tx repository.Transaction) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "store unavailable")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "store unavailable")
	}
	return nil
}

func (s *Service) actorOf(claims *authmodels.Claims, contest *models.Contest) models.TransitionActor {
	return models.TransitionActor{
		Role:      claims.Role,
		IsCreator: contest.CreatedByUserID == claims.UserID,
	}
}

// transition validates and applies a status change, writing the audit row.
// Caller holds the row lock.
func (s *Service) transition(ctx context.Context, tx repository.Transaction, contest *models.Contest, newStatus models.Status, actor models.TransitionActor, actorID int64, reason string) error {
	if err := models.ValidateTransition(contest.Status, newStatus, actor); err != nil {
		return apperrors.New(apperrors.ErrCodeIllegalTransition,
			fmt.Sprintf("cannot move contest from %s to %s", contest.Status, newStatus))
	}

	audit := &models.StatusAudit{
		ContestID: contest.ID,
		OldStatus: contest.Status,
		NewStatus: newStatus,
		ChangedBy: actorID,
		Reason:    reason,
		CreatedAt: s.clock.Now(),
	}
	contest.Status = newStatus
	contest.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, tx, contest); err != nil {
		return mapRepoError(err)
	}
	if err := s.repo.InsertStatusAudit(ctx, tx, audit); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func applyDraftInput(contest *models.Contest, input *models.ContestDraftInput) {
	contest.Name = input.Name
	contest.Description = input.Description
	contest.PrizeDescription = input.PrizeDescription
	contest.ImageURL = input.ImageURL
	contest.SponsorURL = input.SponsorURL
	contest.Location = input.Location
	contest.Tags = input.Tags
	contest.PromotionChannels = input.PromotionChannels
	contest.ConsolationOffer = input.ConsolationOffer
	contest.StartTime = input.StartTime
	contest.EndTime = input.EndTime
	contest.ContestType = input.ContestType
	contest.EntryMethod = input.EntryMethod
	contest.WinnerSelection = input.WinnerSelection
	contest.MinimumAge = input.MinimumAge
	contest.MaxEntriesPerPerson = input.MaxEntriesPerPerson
	contest.TotalEntryLimit = input.TotalEntryLimit
	contest.WinnerCount = input.WinnerCount
	contest.PrizeTiers = input.PrizeTiers
	contest.LocationType = input.LocationType
	contest.SelectedStates = input.SelectedStates
	contest.RadiusAddress = input.RadiusAddress
	contest.RadiusLatitude = input.RadiusLatitude
	contest.RadiusLongitude = input.RadiusLongitude
	contest.RadiusMiles = input.RadiusMiles
}

// rulesFromInput builds the official rules row. Dates always mirror the
// contest schedule.
func rulesFromInput(contest *models.Contest, input *models.OfficialRulesInput) *models.OfficialRules {
	return &models.OfficialRules{
		ContestID:       contest.ID,
		EligibilityText: input.EligibilityText,
		SponsorName:     input.SponsorName,
		PrizeValueUSD:   input.PrizeValueUSD,
		StartDate:       contest.StartTime,
		EndDate:         contest.EndTime,
		TermsURL:        input.TermsURL,
		AdditionalTerms: input.AdditionalTerms,
	}
}

func applyDefaults(contest *models.Contest) {
	if contest.ContestType == "" {
		contest.ContestType = models.ContestTypeGeneral
	}
	if contest.EntryMethod == "" {
		contest.EntryMethod = models.EntryMethodSMS
	}
	if contest.WinnerSelection == "" {
		contest.WinnerSelection = models.SelectionRandom
	}
	if contest.LocationType == "" {
		contest.LocationType = models.LocationUnitedStates
	}
	if contest.MinimumAge == 0 {
		contest.MinimumAge = 18
	}
	if contest.WinnerCount == 0 {
		contest.WinnerCount = 1
	}
}

// CreateDraft persists a new contest in draft status. Sponsors create for
// their own profile; admins may create on behalf of any sponsor profile.
func (s *Service) CreateDraft(ctx context.Context, actor *authmodels.Claims, input *models.ContestDraftInput) (*models.Contest, error) {
	if err := authz.Allow(actor, authz.ActionContestCreateDraft, authz.Target{}); err != nil {
		return nil, err
	}

	sponsorProfileID, err := s.resolveSponsorProfile(ctx, actor, input.SponsorProfileID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	contest := &models.Contest{
		CreatedByUserID:  actor.UserID,
		SponsorProfileID: sponsorProfileID,
		Status:           models.StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyDraftInput(contest, input)
	applyDefaults(contest)

	if fields := contest.Validate(); len(fields) > 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "contest failed validation").WithFieldErrors(fields)
	}

	rules := rulesFromInput(contest, input.OfficialRules)
	if fields := rules.Validate(contest); len(fields) > 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "official rules failed validation").WithFieldErrors(fields)
	}

	err = s.inTx(ctx, func(tx repository.Transaction) error {
		if err := s.repo.Insert(ctx, tx, contest); err != nil {
			return mapRepoError(err)
		}
		rules.ContestID = contest.ID
		if err := s.repo.UpsertRules(ctx, tx, rules); err != nil {
			return mapRepoError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	contest.OfficialRules = rules
	logger.Info().Int64("contest_id", contest.ID).Int64("user_id", actor.UserID).Msg("contest draft created")
	return contest, nil
}

func (s *Service) resolveSponsorProfile(ctx context.Context, actor *authmodels.Claims, requested *int64) (int64, error) {
	if actor.Role == usermodels.RoleAdmin && requested != nil {
		profile, err := s.users.GetSponsorProfile(ctx, *requested)
		if err != nil {
			if err == userrepo.ErrSponsorProfileNotFound {
				return 0, apperrors.New(apperrors.ErrCodeNotFound, "sponsor profile not found")
			}
			return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load sponsor profile")
		}
		return profile.ID, nil
	}

	profile, err := s.users.GetSponsorProfileByUser(ctx, actor.UserID)
	if err != nil {
		if err == userrepo.ErrSponsorProfileNotFound {
			return 0, apperrors.New(apperrors.ErrCodeForbidden, "a sponsor profile is required to create contests")
		}
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load sponsor profile")
	}
	return profile.ID, nil
}

// UpdateDraft replaces the editable fields of a draft or rejected contest.
func (s *Service) UpdateDraft(ctx context.Context, actor *authmodels.Claims, id int64, input *models.ContestDraftInput) (*models.Contest, error) {
	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}

		if err := authz.Allow(actor, authz.ActionContestUpdateDraft, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
			return err
		}
		if contest.Status != models.StatusDraft && contest.Status != models.StatusRejected {
			return apperrors.New(apperrors.ErrCodeIllegalTransition,
				fmt.Sprintf("only draft or rejected contests can be edited, not %s", contest.Status))
		}

		applyDraftInput(contest, input)
		applyDefaults(contest)
		contest.UpdatedAt = s.clock.Now()

		if fields := contest.Validate(); len(fields) > 0 {
			return apperrors.New(apperrors.ErrCodeValidation, "contest failed validation").WithFieldErrors(fields)
		}

		rules := rulesFromInput(contest, input.OfficialRules)
		if fields := rules.Validate(contest); len(fields) > 0 {
			return apperrors.New(apperrors.ErrCodeValidation, "official rules failed validation").WithFieldErrors(fields)
		}

		if err := s.repo.Update(ctx, tx, contest); err != nil {
			return mapRepoError(err)
		}
		if err := s.repo.UpsertRules(ctx, tx, rules); err != nil {
			return mapRepoError(err)
		}
		contest.OfficialRules = rules
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contest, nil
}

// Submit moves a draft into the approval queue.
func (s *Service) Submit(ctx context.Context, actor *authmodels.Claims, id int64, input models.SubmitInput) (*models.Contest, error) {
	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}
		if err := authz.Allow(actor, authz.ActionContestSubmit, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
			return err
		}

		now := s.clock.Now()
		contest.SubmittedAt = &now
		contest.RejectedAt = nil
		contest.RejectionReason = ""
		return s.transition(ctx, tx, contest, models.StatusAwaitingApproval, s.actorOf(actor, contest), actor.UserID, input.Message)
	})
	if err != nil {
		return nil, err
	}
	return contest, nil
}

// Withdraw pulls a pending contest back to draft.
func (s *Service) Withdraw(ctx context.Context, actor *authmodels.Claims, id int64) (*models.Contest, error) {
	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}
		if err := authz.Allow(actor, authz.ActionContestWithdraw, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
			return err
		}
		return s.transition(ctx, tx, contest, models.StatusDraft, s.actorOf(actor, contest), actor.UserID, "withdrawn by sponsor")
	})
	if err != nil {
		return nil, err
	}
	return contest, nil
}

// Cancel is the admin's any-non-terminal escape hatch; sponsors may cancel
// their own drafts.
func (s *Service) Cancel(ctx context.Context, actor *authmodels.Claims, id int64, reason string) (*models.Contest, error) {
	var contest *models.Contest
	err := s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}
		return s.transition(ctx, tx, contest, models.StatusCancelled, s.actorOf(actor, contest), actor.UserID, reason)
	})
	if err != nil {
		return nil, err
	}
	return contest, nil
}

// Delete removes a contest and everything it owns, subject to the protection
// rules: drafts, rejected and cancelled contests may always be deleted by
// their creator or an admin; upcoming, ended and complete contests only by an
// admin and only with zero entries; active contests never.
func (s *Service) Delete(ctx context.Context, actor *authmodels.Claims, id int64) error {
	return s.inTx(ctx, func(tx repository.Transaction) error {
		contest, err := s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}

		effective := models.EffectiveStatus(contest, s.clock.Now())
		entryCount, err := s.repo.CountEntries(ctx, tx, id)
		if err != nil {
			return mapRepoError(err)
		}

		switch effective {
		case models.StatusDraft, models.StatusRejected, models.StatusCancelled:
			if err := authz.Allow(actor, authz.ActionContestDeleteDraft, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
				return err
			}
		case models.StatusUpcoming, models.StatusEnded, models.StatusComplete:
			if actor == nil || actor.Role != usermodels.RoleAdmin {
				return apperrors.New(apperrors.ErrCodeForbidden, "only admins can delete published contests")
			}
			if entryCount > 0 {
				return apperrors.New(apperrors.ErrCodeContestProtected,
					fmt.Sprintf("Contest has %d entries", entryCount))
			}
		default:
			return apperrors.New(apperrors.ErrCodeContestProtected,
				fmt.Sprintf("Contest is %s and cannot be deleted", effective))
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return mapRepoError(err)
		}
		logger.Info().Int64("contest_id", id).Int64("user_id", actor.UserID).Msg("contest deleted")
		return nil
	})
}

// Get returns a contest with its effective status applied. Contests that are
// not publicly visible (draft, awaiting approval, rejected, cancelled) are
// only shown to their creator or an admin.
func (s *Service) Get(ctx context.Context, actor *authmodels.Claims, id int64) (*models.Contest, error) {
	contest, err := s.repo.GetByIDWithRelations(ctx, id, repository.Relations{Rules: true, Winners: true})
	if err != nil {
		return nil, mapRepoError(err)
	}

	effective := models.EffectiveStatus(contest, s.clock.Now())
	switch effective {
	case models.StatusUpcoming, models.StatusActive, models.StatusEnded, models.StatusComplete:
		// public
	default:
		if err := authz.Allow(actor, authz.ActionContestReadPrivate, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
			return nil, err
		}
	}

	contest.Status = effective
	return contest, nil
}

// ListActive returns publicly visible contests whose effective status is
// upcoming or active.
func (s *Service) ListActive(ctx context.Context, page, size int) ([]*models.Contest, int64, error) {
	contests, total, err := s.repo.ListByStatus(ctx,
		[]models.Status{models.StatusUpcoming, models.StatusActive}, page, size)
	if err != nil {
		return nil, 0, mapRepoError(err)
	}

	now := s.clock.Now()
	visible := make([]*models.Contest, 0, len(contests))
	for _, c := range contests {
		effective := models.EffectiveStatus(c, now)
		if effective != models.StatusUpcoming && effective != models.StatusActive {
			total--
			continue
		}
		c.Status = effective
		visible = append(visible, c)
	}
	return visible, total, nil
}

// ListMine returns the actor's own contests filtered by persisted status.
func (s *Service) ListMine(ctx context.Context, actor *authmodels.Claims, statuses []models.Status, page, size int) ([]*models.Contest, int64, error) {
	if actor == nil {
		return nil, 0, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required")
	}
	contests, total, err := s.repo.ListByCreator(ctx, actor.UserID, statuses, page, size)
	if err != nil {
		return nil, 0, mapRepoError(err)
	}
	return contests, total, nil
}

// StatusHistory returns the time-ordered status audit trail.
func (s *Service) StatusHistory(ctx context.Context, actor *authmodels.Claims, id int64) ([]models.StatusAudit, error) {
	contest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := authz.Allow(actor, authz.ActionContestReadPrivate, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
		return nil, err
	}
	audits, err := s.repo.ListStatusAudits(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return audits, nil
}
