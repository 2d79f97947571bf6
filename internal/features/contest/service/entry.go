package service

import (
	"context"
	"fmt"
	"strings"

	"contestlet-backend/internal/common/authz"
	apperrors "contestlet-backend/internal/common/errors"
	"contestlet-backend/internal/common/logger"
	authmodels "contestlet-backend/internal/features/auth/models"
	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
	notifmodels "contestlet-backend/internal/features/notification/models"
	notifsvc "contestlet-backend/internal/features/notification/service"
	usermodels "contestlet-backend/internal/features/user/models"
	userrepo "contestlet-backend/internal/features/user/repository"
	authservice "contestlet-backend/internal/features/auth/service"
	"contestlet-backend/internal/platform/geo"
)

// entrantLocation is what eligibility checks know about the entrant.
type entrantLocation struct {
	State     string
	Latitude  *float64
	Longitude *float64
}

// Enter routes between self entry and admin manual entry based on the
// admin_override flag.
func (s *Service) Enter(ctx context.Context, actor *authmodels.Claims, contestID int64, input models.EnterInput) (*models.Entry, error) {
	if input.AdminOverride {
		return s.manualEntry(ctx, actor, contestID, input)
	}
	return s.enterSelf(ctx, actor, contestID, input)
}

func (s *Service) enterSelf(ctx context.Context, actor *authmodels.Claims, contestID int64, input models.EnterInput) (*models.Entry, error) {
	if actor == nil {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required to enter")
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if err == usermodels.ErrUserNotFound {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
	}

	var entry *models.Entry
	var contest *models.Contest
	err = s.inTx(ctx, func(tx repository.Transaction) error {
		var err error
		contest, err = s.repo.GetByIDForUpdate(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}

		loc := entrantLocation{State: input.State, Latitude: input.Latitude, Longitude: input.Longitude}
		if err := s.checkEligibility(ctx, tx, contest, user, loc, false); err != nil {
			return err
		}

		entry = &models.Entry{
			ContestID: contestID,
			UserID:    user.ID,
			Status:    models.EntryStatusActive,
			Source:    models.EntrySourceSelf,
			CreatedAt: s.clock.Now(),
		}
		return mapRepoError(s.repo.InsertEntry(ctx, tx, entry))
	})
	if err != nil {
		return nil, err
	}

	s.enqueueEntryConfirmation(ctx, contest, user)
	logger.Info().Int64("contest_id", contestID).Int64("user_id", user.ID).Msg("entry accepted")
	return entry, nil
}

// manualEntry records an entry on behalf of a phone number, provisioning the
// user if needed. The confirmation SMS is suppressed; only an audit row is
// written.
func (s *Service) manualEntry(ctx context.Context, actor *authmodels.Claims, contestID int64, input models.EnterInput) (*models.Entry, error) {
	if err := authz.Allow(actor, authz.ActionContestManualEntry, authz.Target{}); err != nil {
		return nil, err
	}
	if !models.ManualEntrySources[input.Source] {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "invalid manual entry source").
			WithDetail("source", string(input.Source))
	}

	phone, err := authservice.NormalizePhone(input.PhoneNumber)
	if err != nil {
		return nil, err
	}

	var entry *models.Entry
	var user *usermodels.User
	err = s.inTx(ctx, func(tx repository.Transaction) error {
		contest, err := s.repo.GetByIDForUpdate(ctx, tx, contestID)
		if err != nil {
			return mapRepoError(err)
		}

		// User-independent gates run first so a rejected entry never
		// provisions anyone.
		loc := entrantLocation{State: input.State, Latitude: input.Latitude, Longitude: input.Longitude}
		if err := s.checkContestOpen(contest); err != nil {
			return err
		}
		if err := s.checkGeography(contest, loc); err != nil {
			return err
		}
		if err := s.checkTotalLimit(ctx, tx, contest); err != nil {
			return err
		}

		user, err = s.provisionUser(ctx, phone)
		if err != nil {
			return err
		}
		if err := s.checkAge(contest, user, true); err != nil {
			return err
		}
		if err := s.checkUserCap(ctx, tx, contest, user); err != nil {
			return err
		}

		adminID := actor.UserID
		entry = &models.Entry{
			ContestID:        contestID,
			UserID:           user.ID,
			Status:           models.EntryStatusActive,
			Source:           input.Source,
			CreatedByAdminID: &adminID,
			AdminNotes:       input.Notes,
			CreatedAt:        s.clock.Now(),
		}
		return mapRepoError(s.repo.InsertEntry(ctx, tx, entry))
	})
	if err != nil {
		return nil, err
	}

	// No SMS for manual entries; the audit row records the suppression.
	s.recordSuppressedNotification(ctx, contestID, user)
	logger.Info().
		Int64("contest_id", contestID).
		Int64("user_id", user.ID).
		Int64("admin_id", actor.UserID).
		Str("source", string(input.Source)).
		Msg("manual entry recorded")
	return entry, nil
}

// checkEligibility runs the admission gauntlet under the contest row lock:
// effective status, age, geography, per-user cap, global cap. Duplicate
// detection is left to the entry unique constraint. Manual entries skip the
// age check when no DOB is on file.
func (s *Service) checkEligibility(ctx context.Context, tx repository.Transaction, contest *models.Contest, user *usermodels.User, loc entrantLocation, manual bool) error {
	if err := s.checkContestOpen(contest); err != nil {
		return err
	}
	if err := s.checkAge(contest, user, manual); err != nil {
		return err
	}
	if err := s.checkGeography(contest, loc); err != nil {
		return err
	}
	if err := s.checkUserCap(ctx, tx, contest, user); err != nil {
		return err
	}
	return s.checkTotalLimit(ctx, tx, contest)
}

func (s *Service) checkContestOpen(contest *models.Contest) error {
	if effective := models.EffectiveStatus(contest, s.clock.Now()); effective != models.StatusActive {
		return apperrors.New(apperrors.ErrCodeContestNotActive,
			fmt.Sprintf("contest is %s, entries are only accepted while active", effective))
	}
	return nil
}

func (s *Service) checkAge(contest *models.Contest, user *usermodels.User, manual bool) error {
	age := user.Age(s.clock.Now())
	if age >= 0 && age < contest.MinimumAge {
		return apperrors.New(apperrors.ErrCodeNotEligible,
			fmt.Sprintf("entrants must be at least %d years old", contest.MinimumAge))
	}
	if age < 0 && !manual {
		// Self entrants without a DOB are only admitted to the floor age.
		if contest.MinimumAge > models.MinimumAgeFloor {
			return apperrors.New(apperrors.ErrCodeNotEligible, "date of birth required to verify contest age restriction")
		}
	}
	return nil
}

func (s *Service) checkUserCap(ctx context.Context, tx repository.Transaction, contest *models.Contest, user *usermodels.User) error {
	userEntries, err := s.repo.CountEntriesByUser(ctx, tx, contest.ID, user.ID)
	if err != nil {
		return mapRepoError(err)
	}
	if userEntries >= int64(contest.MaxEntriesPerUser()) {
		if contest.MaxEntriesPerUser() == 1 {
			return apperrors.New(apperrors.ErrCodeDuplicateEntry, "you have already entered this contest")
		}
		return apperrors.New(apperrors.ErrCodeEntryLimitReached,
			fmt.Sprintf("entry limit of %d per person reached", contest.MaxEntriesPerUser()))
	}
	return nil
}

func (s *Service) checkTotalLimit(ctx context.Context, tx repository.Transaction, contest *models.Contest) error {
	if contest.TotalEntryLimit == nil {
		return nil
	}
	total, err := s.repo.CountEntries(ctx, tx, contest.ID)
	if err != nil {
		return mapRepoError(err)
	}
	if total >= int64(*contest.TotalEntryLimit) {
		return apperrors.New(apperrors.ErrCodeEntryLimitReached, "contest entry limit reached")
	}
	return nil
}

// provisionUser loads or creates the user for a manual-entry phone. Losing a
// create race to a concurrent verify resolves to the existing row.
func (s *Service) provisionUser(ctx context.Context, phone string) (*usermodels.User, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if err != usermodels.ErrUserNotFound {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
	}

	user = &usermodels.User{
		Phone:        phone,
		Role:         usermodels.RoleUser,
		IsVerified:   false,
		TimezoneAuto: true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if err == userrepo.ErrDuplicatePhone {
			user, err = s.users.GetByPhone(ctx, phone)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load user")
			}
			return user, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to provision user")
	}
	return user, nil
}

func (s *Service) checkGeography(contest *models.Contest, loc entrantLocation) error {
	switch contest.LocationType {
	case models.LocationUnitedStates, models.LocationCustom:
		// united_states accepts any US entrant; custom is advisory text only.
		return nil

	case models.LocationSpecificStates:
		if loc.State == "" {
			return apperrors.New(apperrors.ErrCodeNotEligible, "this contest is limited to specific states; state is required")
		}
		for _, st := range contest.SelectedStates {
			if strings.EqualFold(st, loc.State) {
				return nil
			}
		}
		return apperrors.New(apperrors.ErrCodeNotEligible,
			fmt.Sprintf("this contest is not open in %s", loc.State))

	case models.LocationRadius:
		if loc.Latitude == nil || loc.Longitude == nil {
			return apperrors.New(apperrors.ErrCodeNotEligible, "this contest is limited to a local area; location is required")
		}
		if contest.RadiusLatitude == nil || contest.RadiusLongitude == nil || contest.RadiusMiles == nil {
			return apperrors.New(apperrors.ErrCodeInternal, "contest radius targeting is misconfigured")
		}
		distance := geo.DistanceMiles(*contest.RadiusLatitude, *contest.RadiusLongitude, *loc.Latitude, *loc.Longitude)
		if distance > *contest.RadiusMiles {
			return apperrors.New(apperrors.ErrCodeNotEligible,
				fmt.Sprintf("you are %.0f miles outside the contest area", distance-*contest.RadiusMiles))
		}
		return nil
	}
	return nil
}

func (s *Service) templateFor(ctx context.Context, contestID int64, templateType models.TemplateType, fallback notifmodels.NotificationType) string {
	tpl, err := s.repo.GetTemplate(ctx, contestID, templateType)
	if err == nil {
		return tpl.MessageContent
	}
	return notifsvc.DefaultTemplates[fallback]
}

func (s *Service) contestVars(ctx context.Context, contest *models.Contest) map[string]string {
	vars := map[string]string{
		"contest_name":      contest.Name,
		"prize_description": contest.PrizeDescription,
		"consolation_offer": contest.ConsolationOffer,
		"end_time":          contest.EndTime.UTC().Format("Jan 2 3:04 PM MST"),
	}
	if profile, err := s.users.GetSponsorProfile(ctx, contest.SponsorProfileID); err == nil {
		vars["sponsor_name"] = profile.CompanyName
	}
	return vars
}

func (s *Service) enqueueEntryConfirmation(ctx context.Context, contest *models.Contest, user *usermodels.User) {
	if s.dispatcher == nil {
		return
	}
	err := s.dispatcher.Enqueue(ctx, notifsvc.Job{
		ContestID: contest.ID,
		UserID:    user.ID,
		Phone:     user.Phone,
		Type:      notifmodels.TypeEntryConfirmation,
		Template:  s.templateFor(ctx, contest.ID, models.TemplateEntryConfirmation, notifmodels.TypeEntryConfirmation),
		Vars:      s.contestVars(ctx, contest),
	})
	if err != nil {
		// The entry is committed; the confirmation is best effort.
		logger.Warn().Err(err).Int64("contest_id", contest.ID).Int64("user_id", user.ID).
			Msg("entry confirmation not queued")
	}
}

func (s *Service) recordSuppressedNotification(ctx context.Context, contestID int64, user *usermodels.User) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.RecordSuppressed(ctx, contestID, user.ID, user.Phone)
}

// ListEntries pages through a contest's entries; creator or admin only.
func (s *Service) ListEntries(ctx context.Context, actor *authmodels.Claims, contestID int64, page, size int) ([]*models.Entry, int64, error) {
	contest, err := s.repo.GetByID(ctx, contestID)
	if err != nil {
		return nil, 0, mapRepoError(err)
	}
	if err := authz.Allow(actor, authz.ActionContestReadPrivate, authz.Target{CreatorUserID: contest.CreatedByUserID}); err != nil {
		return nil, 0, err
	}
	entries, total, err := s.repo.ListEntries(ctx, contestID, page, size)
	if err != nil {
		return nil, 0, mapRepoError(err)
	}
	return entries, total, nil
}

// MyEntries lists the actor's own entries across contests.
func (s *Service) MyEntries(ctx context.Context, actor *authmodels.Claims) ([]*models.Entry, error) {
	if actor == nil {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required")
	}
	entries, err := s.repo.ListEntriesByUser(ctx, actor.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}
