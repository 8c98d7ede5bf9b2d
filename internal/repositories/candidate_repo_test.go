package repositories

import (
	"context"
	"testing"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidateColumnList = []string{
	"id", "tenant_id", "name", "email", "phone", "position", "source", "stage", "rating",
	"is_archived", "archived_at", "archived_by", "history", "comments", "test_results",
	"tags", "custom_fields", "created_at", "updated_at",
}

func candidateRow(id, tenantID uuid.UUID, stage string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(candidateColumnList).AddRow(
		id, tenantID, "Jane", "jane@example.com", "", "Backend Engineer", "referral", stage, 4,
		false, nil, nil, []byte(`[]`), []byte(`[]`), []byte(`{}`),
		[]byte(`[]`), []byte(`{}`), now, now,
	)
}

func newCandidate(id, tenantID uuid.UUID) *models.Candidate {
	return &models.Candidate{
		ID:           id,
		TenantID:     tenantID,
		Name:         "Jane",
		Email:        "jane@example.com",
		Stage:        models.StageInbox,
		History:      []models.HistoryEntry{{Actor: "maria", Action: models.ActionCreated}},
		Comments:     []models.Comment{},
		TestResults:  map[string]models.TestResult{},
		Tags:         models.StringList{},
		CustomFields: models.JSONB{},
	}
}

func TestCandidateCreate_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID := uuid.New()
	candidate := newCandidate(uuid.New(), tenantID)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(tenantID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO candidates").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = repo.Create(context.Background(), candidate, 100)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateCreate_QuotaExceeded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID := uuid.New()
	candidate := newCandidate(uuid.New(), tenantID)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(tenantID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	// Conditional insert affects zero rows when the tenant is at quota.
	mock.ExpectExec("INSERT INTO candidates").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err = repo.Create(context.Background(), candidate, 100)
	assert.True(t, apperrors.IsKind(err, apperrors.KindQuotaExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateGetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM candidates WHERE tenant_id").
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows(candidateColumnList))

	candidate, err := repo.GetByID(context.Background(), tenantID, id)
	assert.Nil(t, candidate)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCandidateGetByID_UnmarshalsDocuments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows(candidateColumnList).AddRow(
		id, tenantID, "Jane", "jane@example.com", "", "Backend Engineer", "referral", models.StageScreening, 4,
		false, nil, nil,
		[]byte(`[{"actor":"maria","action":"created","timestamp":"2026-08-01T10:00:00Z"}]`),
		[]byte(`[{"actor":"li","text":"promising","timestamp":"2026-08-02T09:00:00Z"}]`),
		[]byte(`{"coding":{"status":"passed","score":91}}`),
		[]byte(`["go","backend"]`), []byte(`{"visa":"none"}`), now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM candidates WHERE tenant_id").
		WithArgs(tenantID, id).
		WillReturnRows(rows)

	candidate, err := repo.GetByID(context.Background(), tenantID, id)
	require.NoError(t, err)
	require.Len(t, candidate.History, 1)
	assert.Equal(t, models.ActionCreated, candidate.History[0].Action)
	require.Len(t, candidate.Comments, 1)
	assert.Equal(t, "promising", candidate.Comments[0].Text)
	require.Contains(t, candidate.TestResults, "coding")
	assert.Equal(t, models.TestStatusPassed, candidate.TestResults["coding"].Status)
	assert.Equal(t, models.StringList{"go", "backend"}, candidate.Tags)
}

func TestCandidateDelete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()

	mock.ExpectExec("DELETE FROM candidates").
		WithArgs(tenantID, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = repo.Delete(context.Background(), tenantID, id)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCandidateTransition_ReturnsOldStage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stage FROM candidates (.+) FOR UPDATE").
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"stage"}).AddRow(models.StageInbox))
	mock.ExpectQuery("UPDATE candidates").
		WithArgs(tenantID, id, models.StageScreening, pgxmock.AnyArg()).
		WillReturnRows(candidateRow(id, tenantID, models.StageScreening))
	mock.ExpectCommit()

	candidate, oldStage, err := repo.Transition(context.Background(), tenantID, id, models.StageScreening, "maria")
	require.NoError(t, err)
	assert.Equal(t, models.StageInbox, oldStage)
	assert.Equal(t, models.StageScreening, candidate.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateTransition_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stage FROM candidates (.+) FOR UPDATE").
		WithArgs(tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"stage"}))
	mock.ExpectRollback()

	candidate, oldStage, err := repo.Transition(context.Background(), tenantID, id, models.StageScreening, "maria")
	assert.Nil(t, candidate)
	assert.Empty(t, oldStage)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

// Attaching evidence overwrites the status with review no matter what the
// result held before; the override is part of the update statement itself.
func TestCandidateAttachEvidence_ForcesReviewStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows(candidateColumnList).AddRow(
		id, tenantID, "Jane", "jane@example.com", "", "Backend Engineer", "referral", models.StageAssessment, 4,
		false, nil, nil, []byte(`[]`), []byte(`[]`),
		[]byte(`{"coding":{"status":"review","score":91,"evidence":{"name":"sub.pdf","mime_type":"application/pdf","storage_ref":"evidence/a/b/coding/sub.pdf"}}}`),
		[]byte(`[]`), []byte(`{}`), now, now,
	)
	mock.ExpectQuery(`UPDATE candidates(.+)jsonb_build_object\('evidence', \$4::jsonb, 'status', 'review'\)`).
		WithArgs(tenantID, id, "coding", pgxmock.AnyArg()).
		WillReturnRows(rows)

	candidate, err := repo.AttachEvidence(context.Background(), tenantID, id, "coding", models.Evidence{
		Name:       "sub.pdf",
		MimeType:   "application/pdf",
		StorageRef: "evidence/a/b/coding/sub.pdf",
	})
	require.NoError(t, err)
	require.Contains(t, candidate.TestResults, "coding")
	assert.Equal(t, models.TestStatusReview, candidate.TestResults["coding"].Status)
	require.NotNil(t, candidate.TestResults["coding"].Evidence)
	assert.Equal(t, "evidence/a/b/coding/sub.pdf", candidate.TestResults["coding"].Evidence.StorageRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateAttachEvidence_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID, id := uuid.New(), uuid.New()

	mock.ExpectQuery("UPDATE candidates").
		WithArgs(tenantID, id, "coding", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(candidateColumnList))

	candidate, err := repo.AttachEvidence(context.Background(), tenantID, id, "coding", models.Evidence{Name: "sub.pdf"})
	assert.Nil(t, candidate)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCandidateCountByTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCandidateRepo(mock)
	tenantID := uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
