package repository

import (
	"context"
	"errors"
	"time"

	"contestlet-backend/internal/features/contest/models"
)

var (
	ErrContestNotFound  = errors.New("contest not found")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrWinnerNotFound   = errors.New("winner not found")
	ErrRulesNotFound    = errors.New("official rules not found")
	ErrTemplateNotFound = errors.New("sms template not found")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrDuplicateWinner  = errors.New("duplicate winner position or entry")
	ErrConflict         = errors.New("concurrent modification conflict")
)

// Transaction is a unit of work. Rollback after Commit is a no-op.
type Transaction interface {
	Commit() error
	Rollback() error
}

// Relations selects which contest relations to load eagerly.
type Relations struct {
	Rules     bool
	Templates bool
	Winners   bool
}

// QueueFilter narrows the approval queue listing.
type QueueFilter struct {
	Search         string
	MinWaitingDays int
	MaxWaitingDays int // 0 = unbounded
	Page           int
	Size           int
}

// ContestRepository is the persistence boundary for contests and everything
// they own. Methods taking a Transaction run inside it; a nil Transaction
// runs the statement standalone. GetByIDForUpdate is the row-lock primitive
// that serializes entry admission, winner selection and forced transitions
// for one contest.
type ContestRepository interface {
	BeginTx(ctx context.Context) (Transaction, error)

	Insert(ctx context.Context, tx Transaction, contest *models.Contest) error
	Update(ctx context.Context, tx Transaction, contest *models.Contest) error
	GetByID(ctx context.Context, id int64) (*models.Contest, error)
	GetByIDWithRelations(ctx context.Context, id int64, rel Relations) (*models.Contest, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*models.Contest, error)
	// Delete cascades to entries, winners, rules, templates, notifications
	// and audit rows owned by the contest.
	Delete(ctx context.Context, tx Transaction, id int64) error

	ListByStatus(ctx context.Context, statuses []models.Status, page, size int) ([]*models.Contest, int64, error)
	ListByCreator(ctx context.Context, userID int64, statuses []models.Status, page, size int) ([]*models.Contest, int64, error)
	// ListIDsByStatus is the scheduler's scan; no pagination, IDs only.
	ListIDsByStatus(ctx context.Context, status models.Status) ([]int64, error)

	CountEntries(ctx context.Context, tx Transaction, contestID int64) (int64, error)
	CountEntriesByUser(ctx context.Context, tx Transaction, contestID, userID int64) (int64, error)
	InsertEntry(ctx context.Context, tx Transaction, entry *models.Entry) error
	ListEntries(ctx context.Context, contestID int64, page, size int) ([]*models.Entry, int64, error)
	ListActiveEntries(ctx context.Context, tx Transaction, contestID int64) ([]*models.Entry, error)
	ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error)
	UpdateEntryStatus(ctx context.Context, tx Transaction, entryID int64, status models.EntryStatus) error

	InsertWinner(ctx context.Context, tx Transaction, winner *models.Winner) error
	DeleteWinnerByPosition(ctx context.Context, tx Transaction, contestID int64, position int) (*models.Winner, error)
	ListWinners(ctx context.Context, tx Transaction, contestID int64) ([]models.Winner, error)
	MarkWinnerNotified(ctx context.Context, winnerID int64, at time.Time) error

	UpsertRules(ctx context.Context, tx Transaction, rules *models.OfficialRules) error
	GetRules(ctx context.Context, contestID int64) (*models.OfficialRules, error)
	UpsertTemplate(ctx context.Context, tx Transaction, template *models.SmsTemplate) error
	GetTemplate(ctx context.Context, contestID int64, templateType models.TemplateType) (*models.SmsTemplate, error)
	DeleteTemplate(ctx context.Context, tx Transaction, contestID int64, templateType models.TemplateType) error

	InsertStatusAudit(ctx context.Context, tx Transaction, audit *models.StatusAudit) error
	InsertApprovalAudit(ctx context.Context, tx Transaction, audit *models.ApprovalAudit) error
	ListStatusAudits(ctx context.Context, contestID int64) ([]models.StatusAudit, error)
	ListApprovalAudits(ctx context.Context, contestID int64) ([]models.ApprovalAudit, error)

	ApprovalQueue(ctx context.Context, filter QueueFilter, now time.Time) ([]models.ApprovalQueueItem, int64, error)
	ApprovalStatistics(ctx context.Context, now time.Time) (*models.ApprovalStatistics, error)

	// AcquireLeaderLock grants the single scheduler-leader slot. Non-blocking;
	// false means another instance holds it.
	AcquireLeaderLock(ctx context.Context) (bool, error)
	ReleaseLeaderLock(ctx context.Context) error
}
