package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"contestlet-backend/internal/features/contest/models"
	"contestlet-backend/internal/features/contest/repository"
)

// schedulerLeaderLockID is the advisory lock key for the scheduler leader.
const schedulerLeaderLockID = 0x434f4e54 // "CONT"

type postgresRepository struct {
	db *sql.DB
}

type postgresTransaction struct {
	tx *sql.Tx
}

func (t *postgresTransaction) Commit() error   { return t.tx.Commit() }
func (t *postgresTransaction) Rollback() error { return t.tx.Rollback() }

func NewPostgresRepository(db *sql.DB) repository.ContestRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) BeginTx(ctx context.Context) (repository.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTransaction{tx: tx}, nil
}

// runner abstracts *sql.DB and *sql.Tx so every method can run either
// standalone or inside a caller-held transaction.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *postgresRepository) on(tx repository.Transaction) runner {
	if tx == nil {
		return r.db
	}
	return tx.(*postgresTransaction).tx
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

const contestColumns = `id, created_by_user_id, sponsor_profile_id, name, description,
	prize_description, image_url, sponsor_url, location, tags, promotion_channels,
	consolation_offer, start_time, end_time, contest_type, entry_method,
	winner_selection_method, minimum_age, max_entries_per_person, total_entry_limit,
	winner_count, prize_tiers, location_type, selected_states, radius_address,
	radius_latitude, radius_longitude, radius_miles, status, submitted_at,
	approved_at, approved_by_user_id, rejected_at, rejection_reason,
	approval_message, winner_entry_id, winner_selected_at, created_at, updated_at`

func scanContest(row interface{ Scan(...interface{}) error }) (*models.Contest, error) {
	var c models.Contest
	var tiersJSON []byte
	var rejectionReason, approvalMessage, imageURL, sponsorURL, location, consolation, radiusAddress sql.NullString

	err := row.Scan(
		&c.ID, &c.CreatedByUserID, &c.SponsorProfileID, &c.Name, &c.Description,
		&c.PrizeDescription, &imageURL, &sponsorURL, &location,
		pq.Array(&c.Tags), pq.Array(&c.PromotionChannels), &consolation,
		&c.StartTime, &c.EndTime, &c.ContestType, &c.EntryMethod,
		&c.WinnerSelection, &c.MinimumAge, &c.MaxEntriesPerPerson, &c.TotalEntryLimit,
		&c.WinnerCount, &tiersJSON, &c.LocationType, pq.Array(&c.SelectedStates),
		&radiusAddress, &c.RadiusLatitude, &c.RadiusLongitude, &c.RadiusMiles,
		&c.Status, &c.SubmittedAt, &c.ApprovedAt, &c.ApprovedByUserID,
		&c.RejectedAt, &rejectionReason, &approvalMessage,
		&c.WinnerEntryID, &c.WinnerSelectedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ImageURL = imageURL.String
	c.SponsorURL = sponsorURL.String
	c.Location = location.String
	c.ConsolationOffer = consolation.String
	c.RadiusAddress = radiusAddress.String
	c.RejectionReason = rejectionReason.String
	c.ApprovalMessage = approvalMessage.String

	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &c.PrizeTiers); err != nil {
			return nil, fmt.Errorf("failed to decode prize tiers: %w", err)
		}
	}

	return &c, nil
}

func (r *postgresRepository) Insert(ctx context.Context, tx repository.Transaction, c *models.Contest) error {
	tiersJSON, err := json.Marshal(c.PrizeTiers)
	if err != nil {
		return fmt.Errorf("failed to encode prize tiers: %w", err)
	}

	query := `
		INSERT INTO contests (created_by_user_id, sponsor_profile_id, name, description,
			prize_description, image_url, sponsor_url, location, tags, promotion_channels,
			consolation_offer, start_time, end_time, contest_type, entry_method,
			winner_selection_method, minimum_age, max_entries_per_person, total_entry_limit,
			winner_count, prize_tiers, location_type, selected_states, radius_address,
			radius_latitude, radius_longitude, radius_miles, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
		RETURNING id
	`
	err = r.on(tx).QueryRowContext(ctx, query,
		c.CreatedByUserID, c.SponsorProfileID, c.Name, c.Description,
		c.PrizeDescription, c.ImageURL, c.SponsorURL, c.Location,
		pq.Array(c.Tags), pq.Array(c.PromotionChannels), c.ConsolationOffer,
		c.StartTime, c.EndTime, c.ContestType, c.EntryMethod, c.WinnerSelection,
		c.MinimumAge, c.MaxEntriesPerPerson, c.TotalEntryLimit, c.WinnerCount,
		tiersJSON, c.LocationType, pq.Array(c.SelectedStates), c.RadiusAddress,
		c.RadiusLatitude, c.RadiusLongitude, c.RadiusMiles, c.Status,
		c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, tx repository.Transaction, c *models.Contest) error {
	tiersJSON, err := json.Marshal(c.PrizeTiers)
	if err != nil {
		return fmt.Errorf("failed to encode prize tiers: %w", err)
	}

	query := `
		UPDATE contests SET
			name = $2, description = $3, prize_description = $4, image_url = $5,
			sponsor_url = $6, location = $7, tags = $8, promotion_channels = $9,
			consolation_offer = $10, start_time = $11, end_time = $12,
			contest_type = $13, entry_method = $14, winner_selection_method = $15,
			minimum_age = $16, max_entries_per_person = $17, total_entry_limit = $18,
			winner_count = $19, prize_tiers = $20, location_type = $21,
			selected_states = $22, radius_address = $23, radius_latitude = $24,
			radius_longitude = $25, radius_miles = $26, status = $27,
			submitted_at = $28, approved_at = $29, approved_by_user_id = $30,
			rejected_at = $31, rejection_reason = $32, approval_message = $33,
			winner_entry_id = $34, winner_selected_at = $35, updated_at = $36
		WHERE id = $1
	`
	result, err := r.on(tx).ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.PrizeDescription, c.ImageURL,
		c.SponsorURL, c.Location, pq.Array(c.Tags), pq.Array(c.PromotionChannels),
		c.ConsolationOffer, c.StartTime, c.EndTime, c.ContestType, c.EntryMethod,
		c.WinnerSelection, c.MinimumAge, c.MaxEntriesPerPerson, c.TotalEntryLimit,
		c.WinnerCount, tiersJSON, c.LocationType, pq.Array(c.SelectedStates),
		c.RadiusAddress, c.RadiusLatitude, c.RadiusLongitude, c.RadiusMiles,
		c.Status, c.SubmittedAt, c.ApprovedAt, c.ApprovedByUserID, c.RejectedAt,
		c.RejectionReason, c.ApprovalMessage, c.WinnerEntryID, c.WinnerSelectedAt,
		c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update contest: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrContestNotFound
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*models.Contest, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM contests WHERE id = $1", contestColumns), id)

	contest, err := scanContest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE contest_id = $1", id).Scan(&contest.EntryCount); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	return contest, nil
}

func (r *postgresRepository) GetByIDWithRelations(ctx context.Context, id int64, rel repository.Relations) (*models.Contest, error) {
	contest, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rel.Rules {
		rules, err := r.GetRules(ctx, id)
		if err != nil && err != repository.ErrRulesNotFound {
			return nil, err
		}
		contest.OfficialRules = rules
	}

	if rel.Templates {
		templates, err := r.listTemplates(ctx, id)
		if err != nil {
			return nil, err
		}
		contest.Templates = templates
	}

	if rel.Winners {
		winners, err := r.ListWinners(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		contest.Winners = winners
	}

	return contest, nil
}

func (r *postgresRepository) GetByIDForUpdate(ctx context.Context, tx repository.Transaction, id int64) (*models.Contest, error) {
	row := r.on(tx).QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM contests WHERE id = $1 FOR UPDATE", contestColumns), id)

	contest, err := scanContest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to lock contest: %w", err)
	}
	return contest, nil
}

func (r *postgresRepository) Delete(ctx context.Context, tx repository.Transaction, id int64) error {
	run := r.on(tx)

	// Children first; notifications and audits are owned by the contest.
	statements := []string{
		"DELETE FROM notifications WHERE contest_id = $1",
		"DELETE FROM contest_winners WHERE contest_id = $1",
		"DELETE FROM entries WHERE contest_id = $1",
		"DELETE FROM sms_templates WHERE contest_id = $1",
		"DELETE FROM official_rules WHERE contest_id = $1",
		"DELETE FROM contest_status_audits WHERE contest_id = $1",
		"DELETE FROM contest_approval_audits WHERE contest_id = $1",
		"DELETE FROM contests WHERE id = $1",
	}
	for _, stmt := range statements {
		if _, err := run.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete contest: %w", err)
		}
	}
	return nil
}

func (r *postgresRepository) listContests(ctx context.Context, where string, args []interface{}, page, size int) ([]*models.Contest, int64, error) {
	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM contests %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contests: %w", err)
	}

	offset := (page - 1) * size
	listQuery := fmt.Sprintf("SELECT %s FROM contests %s ORDER BY start_time ASC, id ASC LIMIT %d OFFSET %d",
		contestColumns, where, size, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contests: %w", err)
	}
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		contest, err := scanContest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan contest: %w", err)
		}
		contests = append(contests, contest)
	}
	return contests, total, rows.Err()
}

func statusPlaceholders(statuses []models.Status, offset int) (string, []interface{}) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", offset+i)
		args[i] = string(s)
	}
	return strings.Join(placeholders, ", "), args
}

func (r *postgresRepository) ListByStatus(ctx context.Context, statuses []models.Status, page, size int) ([]*models.Contest, int64, error) {
	in, args := statusPlaceholders(statuses, 1)
	return r.listContests(ctx, fmt.Sprintf("WHERE status IN (%s)", in), args, page, size)
}

func (r *postgresRepository) ListByCreator(ctx context.Context, userID int64, statuses []models.Status, page, size int) ([]*models.Contest, int64, error) {
	if len(statuses) == 0 {
		return r.listContests(ctx, "WHERE created_by_user_id = $1", []interface{}{userID}, page, size)
	}
	in, args := statusPlaceholders(statuses, 2)
	args = append([]interface{}{userID}, args...)
	return r.listContests(ctx, fmt.Sprintf("WHERE created_by_user_id = $1 AND status IN (%s)", in), args, page, size)
}

func (r *postgresRepository) ListIDsByStatus(ctx context.Context, status models.Status) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM contests WHERE status = $1 ORDER BY id", string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list contest ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresRepository) CountEntries(ctx context.Context, tx repository.Transaction, contestID int64) (int64, error) {
	var count int64
	err := r.on(tx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE contest_id = $1", contestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) CountEntriesByUser(ctx context.Context, tx repository.Transaction, contestID, userID int64) (int64, error) {
	var count int64
	err := r.on(tx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE contest_id = $1 AND user_id = $2",
		contestID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user entries: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) InsertEntry(ctx context.Context, tx repository.Transaction, entry *models.Entry) error {
	query := `
		INSERT INTO entries (contest_id, user_id, status, source, created_by_admin_id, admin_notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.on(tx).QueryRowContext(ctx, query,
		entry.ContestID, entry.UserID, entry.Status, entry.Source,
		entry.CreatedByAdminID, entry.AdminNotes, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

const entryColumns = "id, contest_id, user_id, status, source, created_by_admin_id, admin_notes, created_at"

func scanEntry(row interface{ Scan(...interface{}) error }) (*models.Entry, error) {
	var e models.Entry
	var notes sql.NullString
	if err := row.Scan(&e.ID, &e.ContestID, &e.UserID, &e.Status, &e.Source,
		&e.CreatedByAdminID, &notes, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.AdminNotes = notes.String
	return &e, nil
}

func (r *postgresRepository) ListEntries(ctx context.Context, contestID int64, page, size int) ([]*models.Entry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE contest_id = $1", contestID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM entries WHERE contest_id = $1 ORDER BY id LIMIT $2 OFFSET $3", entryColumns),
		contestID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (r *postgresRepository) ListActiveEntries(ctx context.Context, tx repository.Transaction, contestID int64) ([]*models.Entry, error) {
	rows, err := r.on(tx).QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM entries WHERE contest_id = $1 AND status = $2 ORDER BY id", entryColumns),
		contestID, models.EntryStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) ListEntriesByUser(ctx context.Context, userID int64) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM entries WHERE user_id = $1 ORDER BY created_at DESC", entryColumns), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *postgresRepository) UpdateEntryStatus(ctx context.Context, tx repository.Transaction, entryID int64, status models.EntryStatus) error {
	result, err := r.on(tx).ExecContext(ctx,
		"UPDATE entries SET status = $2 WHERE id = $1", entryID, status)
	if err != nil {
		return fmt.Errorf("failed to update entry status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrEntryNotFound
	}
	return nil
}

func (r *postgresRepository) InsertWinner(ctx context.Context, tx repository.Transaction, winner *models.Winner) error {
	query := `
		INSERT INTO contest_winners (contest_id, entry_id, user_id, winner_position, prize_description, selected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.on(tx).QueryRowContext(ctx, query,
		winner.ContestID, winner.EntryID, winner.UserID, winner.WinnerPosition,
		winner.PrizeDescription, winner.SelectedAt).Scan(&winner.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateWinner
		}
		return fmt.Errorf("failed to insert winner: %w", err)
	}
	return nil
}

const winnerColumns = "id, contest_id, entry_id, user_id, winner_position, prize_description, selected_at, notified_at, claimed_at"

func (r *postgresRepository) DeleteWinnerByPosition(ctx context.Context, tx repository.Transaction, contestID int64, position int) (*models.Winner, error) {
	row := r.on(tx).QueryRowContext(ctx,
		fmt.Sprintf("DELETE FROM contest_winners WHERE contest_id = $1 AND winner_position = $2 RETURNING %s", winnerColumns),
		contestID, position)

	var w models.Winner
	var prize sql.NullString
	err := row.Scan(&w.ID, &w.ContestID, &w.EntryID, &w.UserID, &w.WinnerPosition,
		&prize, &w.SelectedAt, &w.NotifiedAt, &w.ClaimedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to delete winner: %w", err)
	}
	w.PrizeDescription = prize.String
	return &w, nil
}

func (r *postgresRepository) ListWinners(ctx context.Context, tx repository.Transaction, contestID int64) ([]models.Winner, error) {
	rows, err := r.on(tx).QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM contest_winners WHERE contest_id = $1 ORDER BY winner_position", winnerColumns),
		contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	defer rows.Close()

	var winners []models.Winner
	for rows.Next() {
		var w models.Winner
		var prize sql.NullString
		if err := rows.Scan(&w.ID, &w.ContestID, &w.EntryID, &w.UserID,
			&w.WinnerPosition, &prize, &w.SelectedAt, &w.NotifiedAt, &w.ClaimedAt); err != nil {
			return nil, err
		}
		w.PrizeDescription = prize.String
		winners = append(winners, w)
	}
	return winners, rows.Err()
}

func (r *postgresRepository) MarkWinnerNotified(ctx context.Context, winnerID int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE contest_winners SET notified_at = $2 WHERE id = $1", winnerID, at)
	if err != nil {
		return fmt.Errorf("failed to mark winner notified: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrWinnerNotFound
	}
	return nil
}

func (r *postgresRepository) UpsertRules(ctx context.Context, tx repository.Transaction, rules *models.OfficialRules) error {
	query := `
		INSERT INTO official_rules (contest_id, eligibility_text, sponsor_name, prize_value_usd,
			start_date, end_date, terms_url, additional_terms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (contest_id) DO UPDATE SET
			eligibility_text = EXCLUDED.eligibility_text,
			sponsor_name = EXCLUDED.sponsor_name,
			prize_value_usd = EXCLUDED.prize_value_usd,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			terms_url = EXCLUDED.terms_url,
			additional_terms = EXCLUDED.additional_terms
		RETURNING id
	`
	err := r.on(tx).QueryRowContext(ctx, query,
		rules.ContestID, rules.EligibilityText, rules.SponsorName, rules.PrizeValueUSD,
		rules.StartDate, rules.EndDate, rules.TermsURL, rules.AdditionalTerms).Scan(&rules.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert official rules: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetRules(ctx context.Context, contestID int64) (*models.OfficialRules, error) {
	var rules models.OfficialRules
	var termsURL, additional sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, contest_id, eligibility_text, sponsor_name, prize_value_usd,
			start_date, end_date, terms_url, additional_terms
		FROM official_rules WHERE contest_id = $1`, contestID).Scan(
		&rules.ID, &rules.ContestID, &rules.EligibilityText, &rules.SponsorName,
		&rules.PrizeValueUSD, &rules.StartDate, &rules.EndDate, &termsURL, &additional)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrRulesNotFound
		}
		return nil, fmt.Errorf("failed to get official rules: %w", err)
	}
	rules.TermsURL = termsURL.String
	rules.AdditionalTerms = additional.String
	return &rules, nil
}

func (r *postgresRepository) UpsertTemplate(ctx context.Context, tx repository.Transaction, template *models.SmsTemplate) error {
	query := `
		INSERT INTO sms_templates (contest_id, template_type, message_content)
		VALUES ($1, $2, $3)
		ON CONFLICT (contest_id, template_type) DO UPDATE SET
			message_content = EXCLUDED.message_content
		RETURNING id
	`
	err := r.on(tx).QueryRowContext(ctx, query,
		template.ContestID, template.TemplateType, template.MessageContent).Scan(&template.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert sms template: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetTemplate(ctx context.Context, contestID int64, templateType models.TemplateType) (*models.SmsTemplate, error) {
	var t models.SmsTemplate
	err := r.db.QueryRowContext(ctx, `
		SELECT id, contest_id, template_type, message_content
		FROM sms_templates WHERE contest_id = $1 AND template_type = $2`,
		contestID, templateType).Scan(&t.ID, &t.ContestID, &t.TemplateType, &t.MessageContent)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get sms template: %w", err)
	}
	return &t, nil
}

func (r *postgresRepository) listTemplates(ctx context.Context, contestID int64) ([]models.SmsTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contest_id, template_type, message_content
		FROM sms_templates WHERE contest_id = $1 ORDER BY template_type`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sms templates: %w", err)
	}
	defer rows.Close()

	var templates []models.SmsTemplate
	for rows.Next() {
		var t models.SmsTemplate
		if err := rows.Scan(&t.ID, &t.ContestID, &t.TemplateType, &t.MessageContent); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *postgresRepository) DeleteTemplate(ctx context.Context, tx repository.Transaction, contestID int64, templateType models.TemplateType) error {
	result, err := r.on(tx).ExecContext(ctx,
		"DELETE FROM sms_templates WHERE contest_id = $1 AND template_type = $2",
		contestID, templateType)
	if err != nil {
		return fmt.Errorf("failed to delete sms template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return repository.ErrTemplateNotFound
	}
	return nil
}

func (r *postgresRepository) InsertStatusAudit(ctx context.Context, tx repository.Transaction, audit *models.StatusAudit) error {
	err := r.on(tx).QueryRowContext(ctx, `
		INSERT INTO contest_status_audits (contest_id, old_status, new_status, changed_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		audit.ContestID, audit.OldStatus, audit.NewStatus, audit.ChangedBy,
		audit.Reason, audit.CreatedAt).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("failed to insert status audit: %w", err)
	}
	return nil
}

func (r *postgresRepository) InsertApprovalAudit(ctx context.Context, tx repository.Transaction, audit *models.ApprovalAudit) error {
	err := r.on(tx).QueryRowContext(ctx, `
		INSERT INTO contest_approval_audits (contest_id, action, by_user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		audit.ContestID, audit.Action, audit.By, audit.Reason, audit.CreatedAt).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("failed to insert approval audit: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListStatusAudits(ctx context.Context, contestID int64) ([]models.StatusAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contest_id, old_status, new_status, changed_by, reason, created_at
		FROM contest_status_audits WHERE contest_id = $1 ORDER BY created_at, id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status audits: %w", err)
	}
	defer rows.Close()

	var audits []models.StatusAudit
	for rows.Next() {
		var a models.StatusAudit
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.ContestID, &a.OldStatus, &a.NewStatus,
			&a.ChangedBy, &reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Reason = reason.String
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func (r *postgresRepository) ListApprovalAudits(ctx context.Context, contestID int64) ([]models.ApprovalAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contest_id, action, by_user_id, reason, created_at
		FROM contest_approval_audits WHERE contest_id = $1 ORDER BY created_at, id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval audits: %w", err)
	}
	defer rows.Close()

	var audits []models.ApprovalAudit
	for rows.Next() {
		var a models.ApprovalAudit
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.ContestID, &a.Action, &a.By, &reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Reason = reason.String
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func (r *postgresRepository) ApprovalQueue(ctx context.Context, filter repository.QueueFilter, now time.Time) ([]models.ApprovalQueueItem, int64, error) {
	where := "WHERE c.status = 'awaiting_approval'"
	args := []interface{}{}
	idx := 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND c.name ILIKE $%d", idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.MinWaitingDays > 0 {
		where += fmt.Sprintf(" AND c.submitted_at <= $%d", idx)
		args = append(args, now.AddDate(0, 0, -filter.MinWaitingDays))
		idx++
	}
	if filter.MaxWaitingDays > 0 {
		where += fmt.Sprintf(" AND c.submitted_at > $%d", idx)
		args = append(args, now.AddDate(0, 0, -filter.MaxWaitingDays-1))
		idx++
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM contests c %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count approval queue: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.name, sp.company_name, c.submitted_at
		FROM contests c
		JOIN sponsor_profiles sp ON sp.id = c.sponsor_profile_id
		%s
		ORDER BY c.submitted_at ASC
		LIMIT %d OFFSET %d`, where, filter.Size, (filter.Page-1)*filter.Size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list approval queue: %w", err)
	}
	defer rows.Close()

	var items []models.ApprovalQueueItem
	for rows.Next() {
		var item models.ApprovalQueueItem
		if err := rows.Scan(&item.ContestID, &item.Name, &item.SponsorName, &item.SubmittedAt); err != nil {
			return nil, 0, err
		}
		item.WaitingDays = int(now.Sub(item.SubmittedAt).Hours() / 24)
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *postgresRepository) ApprovalStatistics(ctx context.Context, now time.Time) (*models.ApprovalStatistics, error) {
	stats := &models.ApprovalStatistics{}
	weekAgo := now.AddDate(0, 0, -7)

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contests WHERE status = 'awaiting_approval'").Scan(&stats.PendingCount); err != nil {
		return nil, fmt.Errorf("failed to count pending: %w", err)
	}

	var approved, rejected int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE action = 'approved'),
			COUNT(*) FILTER (WHERE action = 'rejected')
		FROM contest_approval_audits WHERE created_at >= $1`, weekAgo).Scan(&approved, &rejected); err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	if total := approved + rejected; total > 0 {
		stats.ApprovalRate7d = float64(approved) / float64(total)
		stats.RejectionRate7d = float64(rejected) / float64(total)
	}

	var avgSeconds sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (approved_at - submitted_at)))
		FROM contests WHERE approved_at IS NOT NULL AND submitted_at IS NOT NULL`).Scan(&avgSeconds); err != nil {
		return nil, fmt.Errorf("failed to average approval time: %w", err)
	}
	stats.AvgApprovalTimeSeconds = avgSeconds.Float64

	var oldest sql.NullTime
	if err := r.db.QueryRowContext(ctx, `
		SELECT MIN(submitted_at) FROM contests WHERE status = 'awaiting_approval'`).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("failed to find oldest pending: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAgeSeconds = now.Sub(oldest.Time).Seconds()
	}

	return stats, nil
}

func (r *postgresRepository) AcquireLeaderLock(ctx context.Context) (bool, error) {
	var acquired bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1)", schedulerLeaderLockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	return acquired, nil
}

func (r *postgresRepository) ReleaseLeaderLock(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", schedulerLeaderLockID); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
