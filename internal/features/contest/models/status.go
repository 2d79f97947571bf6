package models

import (
	"errors"
	"time"

	usermodels "contestlet-backend/internal/features/user/models"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Status is the persisted workflow status of a contest. The lifecycle
// statuses (upcoming, active, ended) are written lazily by the scheduler;
// callers must reason about EffectiveStatus, which re-derives them from the
// clock on every read. "published" is a display alias and never persisted.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusRejected         Status = "rejected"
	StatusUpcoming         Status = "upcoming"
	StatusActive           Status = "active"
	StatusEnded            Status = "ended"
	StatusComplete         Status = "complete"
	StatusCancelled        Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusAwaitingApproval, StatusRejected, StatusUpcoming,
		StatusActive, StatusEnded, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// InLifecycle reports whether the contest has passed approval and its
// effective status is clock-driven.
func (s Status) InLifecycle() bool {
	return s == StatusUpcoming || s == StatusActive || s == StatusEnded
}

// EffectiveStatus derives the status a caller should reason about. Workflow
// and terminal statuses are authoritative as persisted; lifecycle statuses
// are recomputed from the clock and winner state so stale persisted values
// never leak.
func EffectiveStatus(c *Contest, now time.Time) Status {
	if !c.Status.InLifecycle() {
		return c.Status
	}

	switch {
	case c.WinnerSelectedAt != nil:
		return StatusComplete
	case !c.EndTime.After(now):
		return StatusEnded
	case c.StartTime.After(now):
		return StatusUpcoming
	default:
		return StatusActive
	}
}

// TransitionActor identifies who is attempting a transition.
type TransitionActor struct {
	Role        usermodels.Role
	IsCreator   bool
	IsScheduler bool
}

type transitionRule struct {
	sponsorCreator bool // sponsor who created the contest
	admin          bool
	scheduler      bool
}

// The allowed transition table. Any (old, new) pair absent here is illegal,
// with one addition handled in ValidateTransition: admin may cancel any
// non-terminal contest.
var transitions = map[Status]map[Status]transitionRule{
	StatusDraft: {
		StatusAwaitingApproval: {sponsorCreator: true, admin: true},
		StatusCancelled:        {sponsorCreator: true, admin: true},
	},
	StatusAwaitingApproval: {
		StatusDraft:    {sponsorCreator: true}, // withdraw
		StatusUpcoming: {admin: true},          // approve
		StatusRejected: {admin: true},          // reject
	},
	StatusRejected: {
		StatusDraft: {sponsorCreator: true, admin: true},
	},
	StatusUpcoming: {
		StatusActive:    {scheduler: true},
		StatusCancelled: {admin: true},
	},
	StatusActive: {
		StatusEnded:     {scheduler: true},
		StatusCancelled: {admin: true},
	},
	StatusEnded: {
		StatusComplete: {admin: true, scheduler: true}, // winner selection
	},
}

// ValidateTransition checks whether actor may move a contest from old to new.
func ValidateTransition(old, new Status, actor TransitionActor) error {
	if !old.Valid() || !new.Valid() {
		return ErrIllegalTransition
	}

	// Admin may cancel anything non-terminal.
	if new == StatusCancelled && !old.Terminal() && actor.Role == usermodels.RoleAdmin {
		return nil
	}

	rule, ok := transitions[old][new]
	if !ok {
		return ErrIllegalTransition
	}

	switch {
	case rule.scheduler && actor.IsScheduler:
		return nil
	case rule.admin && actor.Role == usermodels.RoleAdmin && !actor.IsScheduler:
		return nil
	case rule.sponsorCreator && actor.Role == usermodels.RoleSponsor && actor.IsCreator:
		return nil
	}

	return ErrIllegalTransition
}
