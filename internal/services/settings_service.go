package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/caching"
	"talentflow/internal/models"
	"talentflow/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stageCacheTTL = 5 * time.Minute

var stageIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// SettingsService owns the tenant registry: stage definitions, source and
// position lists, and the subscription quota gates.
type SettingsService interface {
	Bootstrap(ctx context.Context, req *BootstrapTenantRequest) (*models.Tenant, error)
	GetSettings(ctx context.Context, tenantID uuid.UUID) (*TenantSettings, error)
	UpdateSettings(ctx context.Context, tenantID uuid.UUID, req *UpdateSettingsRequest) (*models.Tenant, error)
	ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*models.Tenant, error)

	GetStages(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error)
	AddStage(ctx context.Context, tenantID uuid.UUID, req *AddStageRequest) (*models.StageDefinition, error)
	UpdateStage(ctx context.Context, tenantID uuid.UUID, id string, title, color *string) (*models.StageDefinition, error)
	RemoveStage(ctx context.Context, tenantID uuid.UUID, id string) error
	ReorderStages(ctx context.Context, tenantID uuid.UUID, orderedIDs []string) error

	CanAddCandidate(ctx context.Context, tenantID uuid.UUID) (bool, error)
	CanAddUser(ctx context.Context, tenantID uuid.UUID) (bool, error)
	GetUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error)
	RefreshUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error)
}

type BootstrapTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Plan      string `json:"plan"`
}

type UpdateSettingsRequest struct {
	Name       *string            `json:"name"`
	EntryStage *string            `json:"entry_stage"`
	Sources    *models.StringList `json:"sources"`
	Positions  *models.StringList `json:"positions"`
}

type AddStageRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// TenantSettings is the full settings document returned to clients.
type TenantSettings struct {
	Tenant *models.Tenant               `json:"tenant"`
	Stages []*models.StageDefinition    `json:"stages"`
	Plans  map[string]models.PlanConfig `json:"plans"`
}

type settingsService struct {
	tenantRepo    repositories.TenantRepository
	stageRepo     repositories.StageRepository
	candidateRepo repositories.CandidateRepository
	userRepo      repositories.UserRepository
	cache         caching.CacheService
	log           *zap.Logger
}

func NewSettingsService(
	tenantRepo repositories.TenantRepository,
	stageRepo repositories.StageRepository,
	candidateRepo repositories.CandidateRepository,
	userRepo repositories.UserRepository,
	cache caching.CacheService,
	log *zap.Logger,
) SettingsService {
	return &settingsService{
		tenantRepo:    tenantRepo,
		stageRepo:     stageRepo,
		candidateRepo: candidateRepo,
		userRepo:      userRepo,
		cache:         cache,
		log:           log,
	}
}

// Bootstrap creates a tenant with its default eight-stage pipeline.
func (s *settingsService) Bootstrap(ctx context.Context, req *BootstrapTenantRequest) (*models.Tenant, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Subdomain) == "" {
		return nil, apperrors.Validation("name and subdomain are required")
	}

	plan, ok := models.AvailablePlans[req.Plan]
	if !ok {
		plan = models.AvailablePlans["free"]
	}

	tenant := &models.Tenant{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Subdomain:     strings.ToLower(strings.TrimSpace(req.Subdomain)),
		Plan:          plan.ID,
		MaxUsers:      plan.MaxUsers,
		MaxCandidates: plan.MaxCandidates,
		EntryStage:    models.StageInbox,
		Sources:       models.StringList{},
		Positions:     models.StringList{},
		Status:        "active",
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	if err := s.stageRepo.CreateMany(ctx, models.DefaultStages(tenant.ID)); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *settingsService) GetSettings(ctx context.Context, tenantID uuid.UUID) (*TenantSettings, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stages, err := s.GetStages(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &TenantSettings{Tenant: tenant, Stages: stages, Plans: models.AvailablePlans}, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, tenantID uuid.UUID, req *UpdateSettingsRequest) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.EntryStage != nil {
		stages, err := s.GetStages(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if err := ValidateStageID(stages, *req.EntryStage); err != nil {
			return nil, err
		}
		tenant.EntryStage = *req.EntryStage
	}
	if req.Sources != nil {
		tenant.Sources = *req.Sources
	}
	if req.Positions != nil {
		tenant.Positions = *req.Positions
	}

	if err := s.tenantRepo.UpdateSettings(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// ChangePlan switches the tenant to another plan from the catalog. Quotas
// take effect immediately; a tenant already above the new limits keeps its
// existing records and simply cannot add more.
func (s *settingsService) ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*models.Tenant, error) {
	plan, ok := models.AvailablePlans[planID]
	if !ok {
		return nil, apperrors.Validation("unknown plan %q", planID)
	}
	if err := s.tenantRepo.UpdatePlan(ctx, tenantID, plan.ID, plan.MaxUsers, plan.MaxCandidates); err != nil {
		return nil, err
	}
	if _, err := s.RefreshUsage(ctx, tenantID); err != nil {
		s.log.Warn("usage refresh after plan change failed", zap.Error(err))
	}
	return s.tenantRepo.GetByID(ctx, tenantID)
}

func (s *settingsService) GetStages(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error) {
	if cached, err := s.cache.GetStages(ctx, tenantID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn("stage cache read failed", zap.Error(err))
	}

	stages, err := s.stageRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetStages(ctx, tenantID, stages, stageCacheTTL); err != nil {
		s.log.Warn("stage cache write failed", zap.Error(err))
	}
	return stages, nil
}

func (s *settingsService) AddStage(ctx context.Context, tenantID uuid.UUID, req *AddStageRequest) (*models.StageDefinition, error) {
	if !stageIDPattern.MatchString(req.ID) {
		return nil, apperrors.Validation("stage id must be a lowercase slug")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.Validation("stage title is required")
	}
	color := req.Color
	if color == "" {
		color = "#808080"
	}

	stage := &models.StageDefinition{
		TenantID: tenantID,
		ID:       req.ID,
		Title:    strings.TrimSpace(req.Title),
		Color:    color,
		IsCore:   false,
	}
	if err := s.stageRepo.Create(ctx, stage); err != nil {
		return nil, err
	}
	s.invalidateStages(ctx, tenantID)
	return stage, nil
}

func (s *settingsService) UpdateStage(ctx context.Context, tenantID uuid.UUID, id string, title, color *string) (*models.StageDefinition, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return nil, apperrors.Validation("stage title cannot be empty")
	}
	stage, err := s.stageRepo.Update(ctx, tenantID, id, title, color)
	if err != nil {
		return nil, err
	}
	s.invalidateStages(ctx, tenantID)
	return stage, nil
}

func (s *settingsService) RemoveStage(ctx context.Context, tenantID uuid.UUID, id string) error {
	if err := s.stageRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidateStages(ctx, tenantID)
	return nil
}

func (s *settingsService) ReorderStages(ctx context.Context, tenantID uuid.UUID, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return apperrors.Validation("ordered stage ids are required")
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return apperrors.Validation("duplicate stage %q in reorder", id)
		}
		seen[id] = true
	}
	if err := s.stageRepo.Reorder(ctx, tenantID, orderedIDs); err != nil {
		return err
	}
	s.invalidateStages(ctx, tenantID)
	return nil
}

// CanAddCandidate compares the live count against the quota. Archived
// candidates still count. The authoritative enforcement happens inside the
// create statement; this gate exists for the settings surface.
func (s *settingsService) CanAddCandidate(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	count, err := s.candidateRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return count < tenant.MaxCandidates, nil
}

func (s *settingsService) CanAddUser(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	count, err := s.userRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return count < tenant.MaxUsers, nil
}

// GetUsage serves the cached snapshot when fresh, falling back to a live
// recount.
func (s *settingsService) GetUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error) {
	if cached, err := s.cache.GetUsage(ctx, tenantID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn("usage cache read failed", zap.Error(err))
	}
	return s.RefreshUsage(ctx, tenantID)
}

// RefreshUsage recomputes the snapshot and caches it.
func (s *settingsService) RefreshUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	candidateCount, err := s.candidateRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	userCount, err := s.userRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	usage := &models.TenantUsage{
		TenantID:       tenantID,
		CandidateCount: candidateCount,
		UserCount:      userCount,
		MaxCandidates:  tenant.MaxCandidates,
		MaxUsers:       tenant.MaxUsers,
		Plan:           tenant.Plan,
		ComputedAt:     time.Now().UTC(),
	}
	if err := s.cache.SetUsage(ctx, tenantID, usage, 10*time.Minute); err != nil {
		s.log.Warn("usage cache write failed", zap.Error(err))
	}
	return usage, nil
}

func (s *settingsService) invalidateStages(ctx context.Context, tenantID uuid.UUID) {
	if err := s.cache.InvalidateStages(ctx, tenantID); err != nil {
		s.log.Warn("stage cache invalidation failed", zap.Error(err))
	}
}
