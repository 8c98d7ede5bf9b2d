package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	UpdateSettings(ctx context.Context, tenant *models.Tenant) error
	UpdatePlan(ctx context.Context, id uuid.UUID, plan string, maxUsers, maxCandidates int) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type tenantRepo struct {
	db *pgxpool.Pool
}

func NewTenantRepo(db *pgxpool.Pool) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, name, subdomain, plan, max_users, max_candidates, entry_stage, sources, positions, status, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var sources, positions []byte
	err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.Plan, &tenant.MaxUsers, &tenant.MaxCandidates, &tenant.EntryStage, &sources, &positions, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sources, &tenant.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	if err := json.Unmarshal(positions, &tenant.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	return tenant, nil
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	sources, err := json.Marshal(tenant.Sources)
	if err != nil {
		return err
	}
	positions, err := json.Marshal(tenant.Positions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, subdomain, plan, max_users, max_candidates, entry_stage, sources, positions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Subdomain, tenant.Plan, tenant.MaxUsers, tenant.MaxCandidates, tenant.EntryStage, sources, positions, tenant.Status)
	if isUniqueViolation(err) {
		return apperrors.Conflict("subdomain %q is already taken", tenant.Subdomain)
	}
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("tenant not found")
	}
	return tenant, err
}

func (r *tenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1`
	tenant, err := scanTenant(r.db.QueryRow(ctx, query, subdomain))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("tenant not found")
	}
	return tenant, err
}

func (r *tenantRepo) UpdateSettings(ctx context.Context, tenant *models.Tenant) error {
	sources, err := json.Marshal(tenant.Sources)
	if err != nil {
		return err
	}
	positions, err := json.Marshal(tenant.Positions)
	if err != nil {
		return err
	}

	query := `
		UPDATE tenants
		SET name = $1, entry_stage = $2, sources = $3, positions = $4, updated_at = NOW()
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query, tenant.Name, tenant.EntryStage, sources, positions, tenant.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("tenant not found")
	}
	return nil
}

func (r *tenantRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *tenantRepo) UpdatePlan(ctx context.Context, id uuid.UUID, plan string, maxUsers, maxCandidates int) error {
	query := `
		UPDATE tenants
		SET plan = $1, max_users = $2, max_candidates = $3, updated_at = NOW()
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, plan, maxUsers, maxCandidates, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("tenant not found")
	}
	return nil
}
