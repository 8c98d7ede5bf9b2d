package repositories

import (
	"context"
	"errors"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	// Create inserts the user only while the tenant's active-user count is
	// below maxUsers. The count and the insert run as one conditional
	// statement under a per-tenant advisory lock, so concurrent invites at
	// the boundary cannot jointly exceed the quota.
	Create(ctx context.Context, user *models.User, maxUsers int) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type userRepo struct {
	db DB
}

func NewUserRepo(db DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, tenant_id, email, name, role, status, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.TenantID, &user.Email, &user.Name, &user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User, maxUsers int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Keyed separately from candidate creation so the two quotas do not
	// serialize against each other.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || '/users'))`, user.TenantID); err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, tenant_id, email, name, role, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, NOW(), NOW()
		WHERE (SELECT COUNT(*) FROM users WHERE tenant_id = $2 AND status = 'active') < $7
	`
	tag, err := tx.Exec(ctx, query, user.ID, user.TenantID, user.Email, user.Name, user.Role, user.Status, maxUsers)
	if isUniqueViolation(err) {
		return apperrors.Conflict("user with email %q already exists", user.Email)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.QuotaExceeded("user limit of %d reached for this plan", maxUsers)
	}
	return tx.Commit(ctx)
}

func (r *userRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`
	user, err := scanUser(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user not found")
	}
	return user, err
}

func (r *userRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND status = 'active'`, tenantID).Scan(&count)
	return count, err
}
