package repositories

import (
	"context"
	"errors"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StageRepository interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*models.StageDefinition, error)
	Create(ctx context.Context, stage *models.StageDefinition) error
	CreateMany(ctx context.Context, stages []*models.StageDefinition) error
	Update(ctx context.Context, tenantID uuid.UUID, id string, title, color *string) (*models.StageDefinition, error)
	Delete(ctx context.Context, tenantID uuid.UUID, id string) error
	Reorder(ctx context.Context, tenantID uuid.UUID, orderedIDs []string) error
}

type stageRepo struct {
	db *pgxpool.Pool
}

func NewStageRepo(db *pgxpool.Pool) StageRepository {
	return &stageRepo{db: db}
}

const stageColumns = `tenant_id, id, title, color, is_core, sort_order`

func scanStage(row pgx.Row) (*models.StageDefinition, error) {
	stage := &models.StageDefinition{}
	var order *int
	err := row.Scan(&stage.TenantID, &stage.ID, &stage.Title, &stage.Color, &stage.IsCore, &order)
	if err != nil {
		return nil, err
	}
	if order != nil {
		stage.Order = *order
	}
	return stage, nil
}

// ListByTenant returns the ordering view: stages dropped by a reorder call
// have a NULL sort_order and are excluded here, though their rows survive.
func (r *stageRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM stages
		WHERE tenant_id = $1 AND sort_order IS NOT NULL
		ORDER BY sort_order
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []*models.StageDefinition
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

func (r *stageRepo) GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*models.StageDefinition, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE tenant_id = $1 AND id = $2`
	stage, err := scanStage(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("stage not found")
	}
	return stage, err
}

func (r *stageRepo) Create(ctx context.Context, stage *models.StageDefinition) error {
	query := `
		INSERT INTO stages (tenant_id, id, title, color, is_core, sort_order)
		SELECT $1, $2, $3, $4, $5, COALESCE(MAX(sort_order), 0) + 1
		FROM stages WHERE tenant_id = $1
		RETURNING sort_order
	`
	err := r.db.QueryRow(ctx, query, stage.TenantID, stage.ID, stage.Title, stage.Color, stage.IsCore).Scan(&stage.Order)
	if isUniqueViolation(err) {
		return apperrors.Conflict("stage %q already exists", stage.ID)
	}
	return err
}

func (r *stageRepo) CreateMany(ctx context.Context, stages []*models.StageDefinition) error {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO stages (tenant_id, id, title, color, is_core, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, stage := range stages {
		batch.Queue(query, stage.TenantID, stage.ID, stage.Title, stage.Color, stage.IsCore, stage.Order)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

func (r *stageRepo) Update(ctx context.Context, tenantID uuid.UUID, id string, title, color *string) (*models.StageDefinition, error) {
	query := `
		UPDATE stages
		SET title = COALESCE($3, title), color = COALESCE($4, color)
		WHERE tenant_id = $1 AND id = $2 AND is_core = FALSE
		RETURNING ` + stageColumns
	stage, err := scanStage(r.db.QueryRow(ctx, query, tenantID, id, title, color))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish missing from core-protected.
		if _, getErr := r.GetByID(ctx, tenantID, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.Forbidden("core stage %q cannot be renamed", id)
	}
	return stage, err
}

// Delete removes a non-core stage. The in-use count runs in the same
// transaction as the delete so a concurrent transition cannot slip a
// candidate into a stage that is being removed.
func (r *stageRepo) Delete(ctx context.Context, tenantID uuid.UUID, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var isCore bool
	err = tx.QueryRow(ctx, `SELECT is_core FROM stages WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id).Scan(&isCore)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("stage not found")
	}
	if err != nil {
		return err
	}
	if isCore {
		return apperrors.Forbidden("core stage %q cannot be removed", id)
	}

	var inUse int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM candidates WHERE tenant_id = $1 AND stage = $2`, tenantID, id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return apperrors.Conflict("stage %q is in use by %d candidate(s)", id, inUse)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stages WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Reorder replaces the ordering view. Stages missing from orderedIDs keep
// their rows but get a NULL sort_order, which drops them from ListByTenant.
func (r *stageRepo) Reorder(ctx context.Context, tenantID uuid.UUID, orderedIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE stages SET sort_order = NULL WHERE tenant_id = $1`, tenantID); err != nil {
		return err
	}
	for i, id := range orderedIDs {
		tag, err := tx.Exec(ctx, `UPDATE stages SET sort_order = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, id, i+1)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.Validation("unknown stage %q in reorder", id)
		}
	}
	return tx.Commit(ctx)
}
