package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
)

// memoryRepository keeps everything in maps guarded by one mutex. BeginTx
// takes the mutex and holds it until Commit or Rollback, which serializes
// transactions the same way row locks do on postgres. Methods called with a
// nil Transaction lock around the single statement.
type memoryRepository struct {
	mu sync.Mutex

	contests  map[int64]*models.Contest
	entries   map[int64]*models.Entry
	winners   map[int64]*models.Winner
	rules     map[int64]*models.OfficialRules // keyed by contest ID
	templates map[int64]map[models.TemplateType]*models.SmsTemplate

	statusAudits   []models.StatusAudit
	approvalAudits []models.ApprovalAudit

	// SponsorNames feeds the approval queue projection; tests seed it.
	SponsorNames map[int64]string

	nextContestID int64
	nextEntryID   int64
	nextWinnerID  int64
	nextRulesID   int64
	nextTplID     int64
	nextAuditID   int64

	leaderHeld bool
}

type memoryTransaction struct {
	repo *memoryRepository
	done bool

	// snapshots for rollback
	contests  map[int64]*models.Contest
	entries   map[int64]*models.Entry
	winners   map[int64]*models.Winner
	rules     map[int64]*models.OfficialRules
	templates map[int64]map[models.TemplateType]*models.SmsTemplate

	statusAudits   []models.StatusAudit
	approvalAudits []models.ApprovalAudit
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		contests:     make(map[int64]*models.Contest),
		entries:      make(map[int64]*models.Entry),
		winners:      make(map[int64]*models.Winner),
		rules:        make(map[int64]*models.OfficialRules),
		templates:    make(map[int64]map[models.TemplateType]*models.SmsTemplate),
		SponsorNames: make(map[int64]string),
	}
}

func copyContest(c *models.Contest) *models.Contest {
	cp := *c
	return &cp
}

func (r *memoryRepository) snapshot() *memoryTransaction {
	tx := &memoryTransaction{
		repo:      r,
		contests:  make(map[int64]*models.Contest, len(r.contests)),
		entries:   make(map[int64]*models.Entry, len(r.entries)),
		winners:   make(map[int64]*models.Winner, len(r.winners)),
		rules:     make(map[int64]*models.OfficialRules, len(r.rules)),
		templates: make(map[int64]map[models.TemplateType]*models.SmsTemplate, len(r.templates)),
	}
	for id, c := range r.contests {
		tx.contests[id] = copyContest(c)
	}
	for id, e := range r.entries {
		cp := *e
		tx.entries[id] = &cp
	}
	for id, w := range r.winners {
		cp := *w
		tx.winners[id] = &cp
	}
	for id, rr := range r.rules {
		cp := *rr
		tx.rules[id] = &cp
	}
	for id, m := range r.templates {
		cpm := make(map[models.TemplateType]*models.SmsTemplate, len(m))
		for t, tpl := range m {
			cp := *tpl
			cpm[t] = &cp
		}
		tx.templates[id] = cpm
	}
	tx.statusAudits = append([]models.StatusAudit(nil), r.statusAudits...)
	tx.approvalAudits = append([]models.ApprovalAudit(nil), r.approvalAudits...)
	return tx
}

func (r *memoryRepository) BeginTx(ctx context.Context) (repository.Transaction, error) {
	r.mu.Lock()
	return r.snapshot(), nil
}

func (t *memoryTransaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *memoryTransaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.contests = t.contests
	t.repo.entries = t.entries
	t.repo.winners = t.winners
	t.repo.rules = t.rules
	t.repo.templates = t.templates
	t.repo.statusAudits = t.statusAudits
	t.repo.approvalAudits = t.approvalAudits
	t.repo.mu.Unlock()
	return nil
}

// lock acquires the mutex for a standalone statement; the returned func is a
// no-op when the caller already holds a transaction.
func (r *memoryRepository) lock(tx repository.Transaction) func() {
	if tx != nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memoryRepository) Insert(ctx context.Context, tx repository.Transaction, c *models.Contest) error {
	defer r.lock(tx)()
	r.nextContestID++
	c.ID = r.nextContestID
	r.contests[c.ID] = copyContest(c)
	return nil
}

func (r *memoryRepository) Update(ctx context.Context, tx repository.Transaction, c *models.Contest) error {
	defer r.lock(tx)()
	if _, ok := r.contests[c.ID]; !ok {
		return repository.ErrContestNotFound
	}
	r.contests[c.ID] = copyContest(c)
	return nil
}

func (r *memoryRepository) getContest(id int64) (*models.Contest, error) {
	c, ok := r.contests[id]
	if !ok {
		return nil, repository.ErrContestNotFound
	}
	cp := copyContest(c)
	for _, e := range r.entries {
		if e.ContestID == id {
			cp.EntryCount++
		}
	}
	return cp, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id int64) (*models.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getContest(id)
}

func (r *memoryRepository) GetByIDWithRelations(ctx context.Context, id int64, rel repository.Relations) (*models.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.getContest(id)
	if err != nil {
		return nil, err
	}
	if rel.Rules {
		if rr, ok := r.rules[id]; ok {
			cp := *rr
			c.OfficialRules = &cp
		}
	}
	if rel.Templates {
		for _, tpl := range r.templates[id] {
			c.Templates = append(c.Templates, *tpl)
		}
		sort.Slice(c.Templates, func(i, j int) bool {
			return c.Templates[i].TemplateType < c.Templates[j].TemplateType
		})
	}
	if rel.Winners {
		c.Winners = r.listWinnersLocked(id)
	}
	return c, nil
}

func (r *memoryRepository) GetByIDForUpdate(ctx context.Context, tx repository.Transaction, id int64) (*models.Contest, error) {
	defer r.lock(tx)()
	c, ok := r.contests[id]
	if !ok {
		return nil, repository.ErrContestNotFound
	}
	return copyContest(c), nil
}

func (r *memoryRepository) Delete(ctx context.Context, tx repository.Transaction, id int64) error {
	defer r.lock(tx)()
	delete(r.contests, id)
	for eid, e := range r.entries {
		if e.ContestID == id {
			delete(r.entries, eid)
		}
	}
	for wid, w := range r.winners {
		if w.ContestID == id {
			delete(r.winners, wid)
		}
	}
	delete(r.rules, id)
	delete(r.templates, id)

	kept := r.statusAudits[:0]
	for _, a := range r.statusAudits {
		if a.ContestID != id {
			kept = append(kept, a)
		}
	}
	r.statusAudits = kept

	keptA := r.approvalAudits[:0]
	for _, a := range r.approvalAudits {
		if a.ContestID != id {
			keptA = append(keptA, a)
		}
	}
	r.approvalAudits = keptA
	return nil
}

func paginate[T any](items []T, page, size int) ([]T, int64) {
	total := int64(len(items))
	start := (page - 1) * size
	if start >= len(items) {
		return nil, total
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

func (r *memoryRepository) listByFilter(match func(*models.Contest) bool, page, size int) ([]*models.Contest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.Contest
	for _, c := range r.contests {
		if match(c) {
			cp, _ := r.getContest(c.ID)
			matched = append(matched, cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].StartTime.Before(matched[j].StartTime)
	})
	items, total := paginate(matched, page, size)
	return items, total, nil
}

func statusSet(statuses []models.Status) map[models.Status]bool {
	set := make(map[models.Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

func (r *memoryRepository) ListByStatus(ctx context.Context, statuses []models.Status, page, size int) ([]*models.Contest, int64, error) {
	set := statusSet(statuses)
	return r.listByFilter(func(c *models.Contest) bool { return set[c.Status] }, page, size)
}

func (r *memoryRepository) ListByCreator(ctx context.Context, userID int64, statuses []models.Status, page, size int) ([]*models.Contest, int64, error) {
	set := statusSet(statuses)
	return r.listByFilter(func(c *models.Contest) bool {
		if c.CreatedByUserID != userID {
			return false
		}
		return len(set) == 0 || set[c.Status]
	}, page, size)
}

func (r *memoryRepository) ListIDsByStatus(ctx context.Context, status models.Status) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for id, c := range r.contests {
		if c.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryRepository) CountEntries(ctx context.Context, tx repository.Transaction, contestID int64) (int64, error) {
	defer r.lock(tx)()
	var n int64
	for _, e := range r.entries {
		if e.ContestID == contestID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CountEntriesByUser(ctx context.Context, tx repository.Transaction, contestID, userID int64) (int64, error) {
	defer r.lock(tx)()
	var n int64
	for _, e := range r.entries {
		if e.ContestID == contestID && e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) InsertEntry(ctx context.Context, tx repository.Transaction, entry *models.Entry) error {
	defer r.lock(tx)()
	for _, e := range r.entries {
		if e.ContestID == entry.ContestID && e.UserID == entry.UserID && e.Source == models.EntrySourceSelf && entry.Source == models.EntrySourceSelf {
			return repository.ErrDuplicateEntry
		}
	}
	r.nextEntryID++
	entry.ID = r.nextEntryID
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memoryRepository) sortedEntries(match func(*models.Entry) bool) []*models.Entry {
	var out []*models.Entry
	for _, e := range r.entries {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepository) ListEntries(ctx context.Context, contestID int64, page, size int) ([]*models.Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sortedEntries(func(e *models.Entry) bool { return e.ContestID == contestID })
	items, total := paginate(all, page, size)
	return items, total, nil
}

func (r *memoryRepository) ListActiveEntries(ctx context.Context, tx repository.Transaction, contestID int64) ([]*models.Entry, error) {
	defer r.lock(tx)()
	return r.sortedEntries(func(e *models.Entry) bool {
		return e.ContestID == contestID && e.Status == models.EntryStatusActive
	}), nil
}

func (r *memoryRepository) ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sortedEntries(func(e *models.Entry) bool { return e.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) UpdateEntryStatus(ctx context.Context, tx repository.Transaction, entryID int64, status models.EntryStatus) error {
	defer r.lock(tx)()
	e, ok := r.entries[entryID]
	if !ok {
		return repository.ErrEntryNotFound
	}
	e.Status = status
	return nil
}

func (r *memoryRepository) InsertWinner(ctx context.Context, tx repository.Transaction, winner *models.Winner) error {
	defer r.lock(tx)()
	for _, w := range r.winners {
		if w.ContestID == winner.ContestID &&
			(w.WinnerPosition == winner.WinnerPosition || w.EntryID == winner.EntryID) {
			return repository.ErrDuplicateWinner
		}
	}
	r.nextWinnerID++
	winner.ID = r.nextWinnerID
	cp := *winner
	r.winners[winner.ID] = &cp
	return nil
}

func (r *memoryRepository) DeleteWinnerByPosition(ctx context.Context, tx repository.Transaction, contestID int64, position int) (*models.Winner, error) {
	defer r.lock(tx)()
	for id, w := range r.winners {
		if w.ContestID == contestID && w.WinnerPosition == position {
			cp := *w
			delete(r.winners, id)
			return &cp, nil
		}
	}
	return nil, repository.ErrWinnerNotFound
}

func (r *memoryRepository) listWinnersLocked(contestID int64) []models.Winner {
	var out []models.Winner
	for _, w := range r.winners {
		if w.ContestID == contestID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WinnerPosition < out[j].WinnerPosition })
	return out
}

func (r *memoryRepository) ListWinners(ctx context.Context, tx repository.Transaction, contestID int64) ([]models.Winner, error) {
	defer r.lock(tx)()
	return r.listWinnersLocked(contestID), nil
}

func (r *memoryRepository) MarkWinnerNotified(ctx context.Context, winnerID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.winners[winnerID]
	if !ok {
		return repository.ErrWinnerNotFound
	}
	w.NotifiedAt = &at
	return nil
}

func (r *memoryRepository) UpsertRules(ctx context.Context, tx repository.Transaction, rules *models.OfficialRules) error {
	defer r.lock(tx)()
	if existing, ok := r.rules[rules.ContestID]; ok {
		rules.ID = existing.ID
	} else {
		r.nextRulesID++
		rules.ID = r.nextRulesID
	}
	cp := *rules
	r.rules[rules.ContestID] = &cp
	return nil
}

func (r *memoryRepository) GetRules(ctx context.Context, contestID int64) (*models.OfficialRules, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.rules[contestID]
	if !ok {
		return nil, repository.ErrRulesNotFound
	}
	cp := *rr
	return &cp, nil
}

func (r *memoryRepository) UpsertTemplate(ctx context.Context, tx repository.Transaction, template *models.SmsTemplate) error {
	defer r.lock(tx)()
	m, ok := r.templates[template.ContestID]
	if !ok {
		m = make(map[models.TemplateType]*models.SmsTemplate)
		r.templates[template.ContestID] = m
	}
	if existing, ok := m[template.TemplateType]; ok {
		template.ID = existing.ID
	} else {
		r.nextTplID++
		template.ID = r.nextTplID
	}
	cp := *template
	m[template.TemplateType] = &cp
	return nil
}

func (r *memoryRepository) GetTemplate(ctx context.Context, contestID int64, templateType models.TemplateType) (*models.SmsTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[contestID][templateType]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	cp := *tpl
	return &cp, nil
}

func (r *memoryRepository) DeleteTemplate(ctx context.Context, tx repository.Transaction, contestID int64, templateType models.TemplateType) error {
	defer r.lock(tx)()
	if _, ok := r.templates[contestID][templateType]; !ok {
		return repository.ErrTemplateNotFound
	}
	delete(r.templates[contestID], templateType)
	return nil
}

func (r *memoryRepository) InsertStatusAudit(ctx context.Context, tx repository.Transaction, audit *models.StatusAudit) error {
	defer r.lock(tx)()
	r.nextAuditID++
	audit.ID = r.nextAuditID
	r.statusAudits = append(r.statusAudits, *audit)
	return nil
}

func (r *memoryRepository) InsertApprovalAudit(ctx context.Context, tx repository.Transaction, audit *models.ApprovalAudit) error {
	defer r.lock(tx)()
	r.nextAuditID++
	audit.ID = r.nextAuditID
	r.approvalAudits = append(r.approvalAudits, *audit)
	return nil
}

func (r *memoryRepository) ListStatusAudits(ctx context.Context, contestID int64) ([]models.StatusAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StatusAudit
	for _, a := range r.statusAudits {
		if a.ContestID == contestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepository) ListApprovalAudits(ctx context.Context, contestID int64) ([]models.ApprovalAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ApprovalAudit
	for _, a := range r.approvalAudits {
		if a.ContestID == contestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepository) ApprovalQueue(ctx context.Context, filter repository.QueueFilter, now time.Time) ([]models.ApprovalQueueItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []models.ApprovalQueueItem
	for _, c := range r.contests {
		if c.Status != models.StatusAwaitingApproval || c.SubmittedAt == nil {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		waiting := int(now.Sub(*c.SubmittedAt).Hours() / 24)
		if filter.MinWaitingDays > 0 && waiting < filter.MinWaitingDays {
			continue
		}
		if filter.MaxWaitingDays > 0 && waiting > filter.MaxWaitingDays {
			continue
		}
		items = append(items, models.ApprovalQueueItem{
			ContestID:   c.ID,
			Name:        c.Name,
			SponsorName: r.SponsorNames[c.SponsorProfileID],
			SubmittedAt: *c.SubmittedAt,
			WaitingDays: waiting,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SubmittedAt.Before(items[j].SubmittedAt) })
	page, total := paginate(items, filter.Page, filter.Size)
	return page, total, nil
}

func (r *memoryRepository) ApprovalStatistics(ctx context.Context, now time.Time) (*models.ApprovalStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.ApprovalStatistics{}
	var oldest *time.Time
	var approvalSum float64
	var approvalN int

	for _, c := range r.contests {
		if c.Status == models.StatusAwaitingApproval {
			stats.PendingCount++
			if c.SubmittedAt != nil && (oldest == nil || c.SubmittedAt.Before(*oldest)) {
				oldest = c.SubmittedAt
			}
		}
		if c.ApprovedAt != nil && c.SubmittedAt != nil {
			approvalSum += c.ApprovedAt.Sub(*c.SubmittedAt).Seconds()
			approvalN++
		}
	}
	if oldest != nil {
		stats.OldestPendingAgeSeconds = now.Sub(*oldest).Seconds()
	}
	if approvalN > 0 {
		stats.AvgApprovalTimeSeconds = approvalSum / float64(approvalN)
	}

	weekAgo := now.AddDate(0, 0, -7)
	var approved, rejected int64
	for _, a := range r.approvalAudits {
		if a.CreatedAt.Before(weekAgo) {
			continue
		}
		switch a.Action {
		case "approved":
			approved++
		case "rejected":
			rejected++
		}
	}
	if total := approved + rejected; total > 0 {
		stats.ApprovalRate7d = float64(approved) / float64(total)
		stats.RejectionRate7d = float64(rejected) / float64(total)
	}
	return stats, nil
}

func (r *memoryRepository) AcquireLeaderLock(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaderHeld {
		return false, nil
	}
	r.leaderHeld = true
	return true, nil
}

func (r *memoryRepository) ReleaseLeaderLock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaderHeld = false
	return nil
}
