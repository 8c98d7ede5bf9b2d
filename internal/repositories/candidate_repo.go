package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the candidate repository uses. It keeps
// the repository mockable with pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type CandidateRepository interface {
	// Create inserts the candidate only while the tenant is below
	// maxCandidates. The count check and the insert run under a per-tenant
	// advisory lock so concurrent creates at the boundary cannot jointly
	// exceed the quota.
	Create(ctx context.Context, candidate *models.Candidate, maxCandidates int) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Candidate, error)
	List(ctx context.Context, tenantID uuid.UUID, filter *models.CandidateFilter) ([]*models.Candidate, int, error)
	UpdateFields(ctx context.Context, tenantID, id uuid.UUID, patch *models.CandidatePatch, entry models.HistoryEntry) (*models.Candidate, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	AppendComment(ctx context.Context, tenantID, id uuid.UUID, comment models.Comment) (*models.Candidate, error)
	Transition(ctx context.Context, tenantID, id uuid.UUID, newStage, actor string) (*models.Candidate, string, error)
	Archive(ctx context.Context, tenantID, id uuid.UUID, actor string) (*models.Candidate, string, error)
	Unarchive(ctx context.Context, tenantID, id uuid.UUID, actor, entryStage string) (*models.Candidate, error)
	SetTestResult(ctx context.Context, tenantID, id uuid.UUID, testID string, patch *models.TestResultPatch) (*models.Candidate, error)
	AttachEvidence(ctx context.Context, tenantID, id uuid.UUID, testID string, evidence models.Evidence) (*models.Candidate, error)
	SetAISummary(ctx context.Context, tenantID, id uuid.UUID, testID, summary string) (*models.Candidate, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type candidateRepo struct {
	db DB
}

func NewCandidateRepo(db DB) CandidateRepository {
	return &candidateRepo{db: db}
}

const candidateColumns = `id, tenant_id, name, email, phone, position, source, stage, rating, is_archived, archived_at, archived_by, history, comments, test_results, tags, custom_fields, created_at, updated_at`

func scanCandidate(row pgx.Row) (*models.Candidate, error) {
	c := &models.Candidate{}
	var history, comments, testResults, tags, customFields []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Position, &c.Source, &c.Stage, &c.Rating, &c.IsArchived, &c.ArchivedAt, &c.ArchivedBy, &history, &comments, &testResults, &tags, &customFields, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		data []byte
		dst  interface{}
	}{
		{history, &c.History},
		{comments, &c.Comments},
		{testResults, &c.TestResults},
		{tags, &c.Tags},
		{customFields, &c.CustomFields},
	} {
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate document: %w", err)
		}
	}
	return c, nil
}

func marshalEntry(entry models.HistoryEntry) ([]byte, error) {
	return json.Marshal([]models.HistoryEntry{entry})
}

func (r *candidateRepo) Create(ctx context.Context, candidate *models.Candidate, maxCandidates int) error {
	history, err := json.Marshal(candidate.History)
	if err != nil {
		return err
	}
	comments, err := json.Marshal(candidate.Comments)
	if err != nil {
		return err
	}
	testResults, err := json.Marshal(candidate.TestResults)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(candidate.Tags)
	if err != nil {
		return err
	}
	customFields, err := json.Marshal(candidate.CustomFields)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serializes creates per tenant; the count below and the insert act as
	// one atomic check-and-insert.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, candidate.TenantID); err != nil {
		return err
	}

	query := `
		INSERT INTO candidates (id, tenant_id, name, email, phone, position, source, stage, rating, is_archived, history, comments, test_results, tags, custom_fields, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $12, $13, $14, NOW(), NOW()
		WHERE (SELECT COUNT(*) FROM candidates WHERE tenant_id = $2) < $15
	`
	tag, err := tx.Exec(ctx, query,
		candidate.ID, candidate.TenantID, candidate.Name, candidate.Email, candidate.Phone,
		candidate.Position, candidate.Source, candidate.Stage, candidate.Rating,
		history, comments, testResults, tags, customFields, maxCandidates,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("candidate with email %q already exists", candidate.Email)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.QuotaExceeded("candidate limit of %d reached for this plan", maxCandidates)
	}
	return tx.Commit(ctx)
}

func (r *candidateRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE tenant_id = $1 AND id = $2`
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

func (r *candidateRepo) List(ctx context.Context, tenantID uuid.UUID, filter *models.CandidateFilter) ([]*models.Candidate, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}

	addCondition := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}

	if filter.Stage != nil {
		addCondition(` AND stage = $%d`, *filter.Stage)
	}
	if filter.Position != nil {
		addCondition(` AND position = $%d`, *filter.Position)
	}
	if filter.Source != nil {
		addCondition(` AND source = $%d`, *filter.Source)
	}
	if filter.Archived != nil {
		addCondition(` AND is_archived = $%d`, *filter.Archived)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)`, n, n, n)
	}

	// Total is computed against the same filter, unaffected by paging.
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	validSortFields := map[string]bool{
		"name": true, "email": true, "position": true, "source": true,
		"stage": true, "rating": true, "created_at": true, "updated_at": true,
	}
	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if filter.Order == "ASC" {
		order = "ASC"
	}

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM candidates%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		candidateColumns, where, sortBy, order, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var candidates []*models.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, total, rows.Err()
}

func (r *candidateRepo) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, patch *models.CandidatePatch, entry models.HistoryEntry) (*models.Candidate, error) {
	entryJSON, err := marshalEntry(entry)
	if err != nil {
		return nil, err
	}

	// The history entry is appended even when the patch is empty.
	set := `history = history || $3::jsonb, updated_at = NOW()`
	args := []any{tenantID, id, entryJSON}

	addSet := func(clause string, value any) {
		args = append(args, value)
		set += fmt.Sprintf(clause, len(args))
	}

	if patch.Name != nil {
		addSet(`, name = $%d`, *patch.Name)
	}
	if patch.Email != nil {
		addSet(`, email = $%d`, *patch.Email)
	}
	if patch.Phone != nil {
		addSet(`, phone = $%d`, *patch.Phone)
	}
	if patch.Position != nil {
		addSet(`, position = $%d`, *patch.Position)
	}
	if patch.Source != nil {
		addSet(`, source = $%d`, *patch.Source)
	}
	if patch.Rating != nil {
		addSet(`, rating = $%d`, *patch.Rating)
	}
	if patch.Tags != nil {
		tags, err := json.Marshal(*patch.Tags)
		if err != nil {
			return nil, err
		}
		addSet(`, tags = $%d`, tags)
	}
	if patch.CustomFields != nil {
		fields, err := json.Marshal(*patch.CustomFields)
		if err != nil {
			return nil, err
		}
		addSet(`, custom_fields = $%d`, fields)
	}

	query := fmt.Sprintf(`UPDATE candidates SET %s WHERE tenant_id = $1 AND id = $2 RETURNING %s`, set, candidateColumns)
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	if isUniqueViolation(err) {
		return nil, apperrors.Conflict("candidate with this email already exists")
	}
	return candidate, err
}

func (r *candidateRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM candidates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("candidate not found")
	}
	return nil
}

// AppendComment relies on jsonb concatenation, which is atomic at the row
// level; concurrent appends never lose entries.
func (r *candidateRepo) AppendComment(ctx context.Context, tenantID, id uuid.UUID, comment models.Comment) (*models.Candidate, error) {
	commentJSON, err := json.Marshal([]models.Comment{comment})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE candidates
		SET comments = comments || $3::jsonb, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id, commentJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

// Transition sets the stage and appends the audit entry under a row lock so
// the recorded old stage is the one actually replaced. Stage membership is
// not checked here; that is the caller's concern.
func (r *candidateRepo) Transition(ctx context.Context, tenantID, id uuid.UUID, newStage, actor string) (*models.Candidate, string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var oldStage string
	err = tx.QueryRow(ctx, `SELECT stage FROM candidates WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id).Scan(&oldStage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperrors.NotFound("candidate not found")
	}
	if err != nil {
		return nil, "", err
	}

	entryJSON, err := marshalEntry(models.HistoryEntry{
		Actor:     actor,
		Action:    models.ActionStageChanged,
		Detail:    fmt.Sprintf("stage changed from %s to %s", oldStage, newStage),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, "", err
	}

	query := `
		UPDATE candidates
		SET stage = $3, history = history || $4::jsonb, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(tx.QueryRow(ctx, query, tenantID, id, newStage, entryJSON))
	if err != nil {
		return nil, "", err
	}
	return candidate, oldStage, tx.Commit(ctx)
}

// Archive forces the candidate into the archived stage. Calling it twice is
// idempotent in effect but appends a history entry each time. The detail
// records the pre-archive stage so a later restore stays possible.
func (r *candidateRepo) Archive(ctx context.Context, tenantID, id uuid.UUID, actor string) (*models.Candidate, string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var oldStage string
	err = tx.QueryRow(ctx, `SELECT stage FROM candidates WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id).Scan(&oldStage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apperrors.NotFound("candidate not found")
	}
	if err != nil {
		return nil, "", err
	}

	entryJSON, err := marshalEntry(models.HistoryEntry{
		Actor:     actor,
		Action:    models.ActionArchived,
		Detail:    fmt.Sprintf("archived (was %s)", oldStage),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, "", err
	}

	query := `
		UPDATE candidates
		SET is_archived = TRUE, archived_at = NOW(), archived_by = $3, stage = $4,
		    history = history || $5::jsonb, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(tx.QueryRow(ctx, query, tenantID, id, actor, models.StageArchived, entryJSON))
	if err != nil {
		return nil, "", err
	}
	return candidate, oldStage, tx.Commit(ctx)
}

// Unarchive clears the archive fields and resets the stage to the tenant's
// entry stage. The pre-archive position is not restored.
func (r *candidateRepo) Unarchive(ctx context.Context, tenantID, id uuid.UUID, actor, entryStage string) (*models.Candidate, error) {
	entryJSON, err := marshalEntry(models.HistoryEntry{
		Actor:     actor,
		Action:    models.ActionUnarchived,
		Detail:    fmt.Sprintf("stage reset to %s", entryStage),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE candidates
		SET is_archived = FALSE, archived_at = NULL, archived_by = NULL, stage = $3,
		    history = history || $4::jsonb, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id, entryStage, entryJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

// SetTestResult merges the patch into the test entry, creating it with
// status not_sent when absent. No top-level history entry is appended.
func (r *candidateRepo) SetTestResult(ctx context.Context, tenantID, id uuid.UUID, testID string, patch *models.TestResultPatch) (*models.Candidate, error) {
	merge := map[string]interface{}{}
	if patch.Status != nil {
		merge["status"] = *patch.Status
	}
	if patch.Score != nil {
		merge["score"] = *patch.Score
	}
	if patch.Notes != nil {
		merge["notes"] = *patch.Notes
	}
	mergeJSON, err := json.Marshal(merge)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE candidates
		SET test_results = jsonb_set(test_results, ARRAY[$3],
			COALESCE(test_results->$3, '{"status":"not_sent"}'::jsonb) || $4::jsonb),
		    updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id, testID, mergeJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

// AttachEvidence sets the evidence descriptor and forces status review,
// whatever the previous status was. Uploaded evidence always needs a fresh
// look.
func (r *candidateRepo) AttachEvidence(ctx context.Context, tenantID, id uuid.UUID, testID string, evidence models.Evidence) (*models.Candidate, error) {
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE candidates
		SET test_results = jsonb_set(test_results, ARRAY[$3],
			COALESCE(test_results->$3, '{"status":"not_sent"}'::jsonb)
			|| jsonb_build_object('evidence', $4::jsonb, 'status', 'review')),
		    updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id, testID, evidenceJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

func (r *candidateRepo) SetAISummary(ctx context.Context, tenantID, id uuid.UUID, testID, summary string) (*models.Candidate, error) {
	query := `
		UPDATE candidates
		SET test_results = jsonb_set(test_results, ARRAY[$3],
			COALESCE(test_results->$3, '{"status":"not_sent"}'::jsonb)
			|| jsonb_build_object('ai_summary', $4::text)),
		    updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + candidateColumns
	candidate, err := scanCandidate(r.db.QueryRow(ctx, query, tenantID, id, testID, summary))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("candidate not found")
	}
	return candidate, err
}

// CountByTenant counts every candidate, archived included; the quota gate
// excludes nothing.
func (r *candidateRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM candidates WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}
