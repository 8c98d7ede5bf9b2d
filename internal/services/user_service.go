package services

import (
	"context"
	"strings"

	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/models"
	"talentflow/internal/repositories"

	"github.com/google/uuid"
)

// UserService manages the tenant's member directory. Credentials live in
// the external identity provider; this directory only tracks who belongs
// to the tenant and counts against the user quota.
type UserService interface {
	Invite(ctx context.Context, tenantID uuid.UUID, req *InviteUserRequest) (*models.User, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]*models.User, error)
}

type InviteUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type userService struct {
	userRepo   repositories.UserRepository
	tenantRepo repositories.TenantRepository
}

func NewUserService(userRepo repositories.UserRepository, tenantRepo repositories.TenantRepository) UserService {
	return &userService{userRepo: userRepo, tenantRepo: tenantRepo}
}

// Invite adds a member. Quota enforcement lives in the repository's
// conditional insert; concurrent invites at the boundary cannot both land.
func (s *userService) Invite(ctx context.Context, tenantID uuid.UUID, req *InviteUserRequest) (*models.User, error) {
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return nil, apperrors.Validation("%s", err)
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return nil, apperrors.Validation("%s", err)
	}
	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, apperrors.Validation("role must be %q or %q", models.RoleAdmin, models.RoleMember)
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       uuid.New(),
		TenantID: tenantID,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     strings.TrimSpace(req.Name),
		Role:     role,
		Status:   "active",
	}
	if err := s.userRepo.Create(ctx, user, tenant.MaxUsers); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, tenantID, id)
}

func (s *userService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]*models.User, error) {
	page, limit = common.ValidatePagination(page, limit)
	return s.userRepo.List(ctx, tenantID, limit, (page-1)*limit)
}
