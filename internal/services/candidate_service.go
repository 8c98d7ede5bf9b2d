package services

import (
	"context"
	"strings"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/models"
	"talentflow/internal/realtime"
	"talentflow/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CandidateService owns the candidate record lifecycle outside of stage
// movement: create, read, patch, comment, delete. Every committed mutation
// publishes a typed event to the owning tenant's channel.
type CandidateService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req *CreateCandidateRequest) (*models.Candidate, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Candidate, error)
	List(ctx context.Context, tenantID uuid.UUID, filter *models.CandidateFilter) ([]*models.Candidate, int, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, patch *models.CandidatePatch) (*models.Candidate, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	AddComment(ctx context.Context, tenantID, id uuid.UUID, text string) (*models.Candidate, error)
}

type CreateCandidateRequest struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Position     string            `json:"position"`
	Source       string            `json:"source"`
	Rating       int               `json:"rating"`
	Tags         models.StringList `json:"tags"`
	CustomFields models.JSONB      `json:"custom_fields"`
}

type candidateService struct {
	candidateRepo repositories.CandidateRepository
	tenantRepo    repositories.TenantRepository
	storage       StorageService
	broadcaster   realtime.Broadcaster
	order         *EventOrder
	log           *zap.Logger
}

func NewCandidateService(
	candidateRepo repositories.CandidateRepository,
	tenantRepo repositories.TenantRepository,
	storage StorageService,
	broadcaster realtime.Broadcaster,
	order *EventOrder,
	log *zap.Logger,
) CandidateService {
	return &candidateService{
		candidateRepo: candidateRepo,
		tenantRepo:    tenantRepo,
		storage:       storage,
		broadcaster:   broadcaster,
		order:         order,
		log:           log,
	}
}

func (s *candidateService) Create(ctx context.Context, tenantID uuid.UUID, req *CreateCandidateRequest) (*models.Candidate, error) {
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return nil, apperrors.Validation("%s", err)
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return nil, apperrors.Validation("%s", err)
	}
	if req.Rating < 0 || req.Rating > 5 {
		return nil, apperrors.Validation("rating must be between 0 and 5")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	actor := common.GetActorFromContext(ctx)
	now := time.Now().UTC()
	candidate := &models.Candidate{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Position: req.Position,
		Source:   req.Source,
		Stage:    tenant.EntryStage,
		Rating:   req.Rating,
		History: []models.HistoryEntry{{
			Actor:     actor,
			Action:    models.ActionCreated,
			Timestamp: now,
		}},
		Comments:     []models.Comment{},
		TestResults:  map[string]models.TestResult{},
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	}
	if candidate.Tags == nil {
		candidate.Tags = models.StringList{}
	}
	if candidate.CustomFields == nil {
		candidate.CustomFields = models.JSONB{}
	}

	// Commit and publish stay under one candidate lock so subscribers see
	// this candidate's events in commit order.
	unlock := s.order.Lock(candidate.ID)
	defer unlock()

	if err := s.candidateRepo.Create(ctx, candidate, tenant.MaxCandidates); err != nil {
		return nil, err
	}

	created, err := s.candidateRepo.GetByID(ctx, tenantID, candidate.ID)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventCreated,
		TenantID: tenantID,
		At:       now,
		Payload:  realtime.CreatedPayload{Candidate: created, Actor: actor},
	})
	return created, nil
}

func (s *candidateService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Candidate, error) {
	return s.candidateRepo.GetByID(ctx, tenantID, id)
}

func (s *candidateService) List(ctx context.Context, tenantID uuid.UUID, filter *models.CandidateFilter) ([]*models.Candidate, int, error) {
	filter.Page, filter.Limit = common.ValidatePagination(filter.Page, filter.Limit)
	filter.Order = common.ValidateSortOrder(filter.Order)
	return s.candidateRepo.List(ctx, tenantID, filter)
}

// Update applies the whitelisted patch and appends an "edited" history
// entry whether or not anything visibly changed.
func (s *candidateService) Update(ctx context.Context, tenantID, id uuid.UUID, patch *models.CandidatePatch) (*models.Candidate, error) {
	if patch.Email != nil {
		trimmed := strings.ToLower(strings.TrimSpace(*patch.Email))
		if trimmed == "" {
			return nil, apperrors.Validation("email cannot be empty")
		}
		patch.Email = &trimmed
	}
	if patch.Rating != nil && (*patch.Rating < 0 || *patch.Rating > 5) {
		return nil, apperrors.Validation("rating must be between 0 and 5")
	}

	actor := common.GetActorFromContext(ctx)
	unlock := s.order.Lock(id)
	defer unlock()

	candidate, err := s.candidateRepo.UpdateFields(ctx, tenantID, id, patch, models.HistoryEntry{
		Actor:     actor,
		Action:    models.ActionEdited,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	// The payload deliberately omits the entity; receivers refetch.
	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventUpdated,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload:  realtime.UpdatedPayload{CandidateID: id, Actor: actor},
	})
	return candidate, nil
}

// Delete hard-removes the candidate and then cleans up any evidence
// objects it referenced. Object cleanup is best-effort; the delete stands
// either way.
func (s *candidateService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	candidate, err := s.candidateRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	unlock := s.order.Lock(id)
	if err := s.candidateRepo.Delete(ctx, tenantID, id); err != nil {
		unlock()
		return err
	}

	actor := common.GetActorFromContext(ctx)
	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventDeleted,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload:  realtime.DeletedPayload{CandidateID: id, Actor: actor},
	})
	unlock()

	for testID, result := range candidate.TestResults {
		if result.Evidence == nil {
			continue
		}
		if err := s.storage.Remove(ctx, result.Evidence.StorageRef); err != nil {
			s.log.Warn("failed to remove evidence object",
				zap.String("candidate_id", id.String()),
				zap.String("test_id", testID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *candidateService) AddComment(ctx context.Context, tenantID, id uuid.UUID, text string) (*models.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.Validation("comment text is required")
	}

	actor := common.GetActorFromContext(ctx)
	comment := models.Comment{
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	unlock := s.order.Lock(id)
	defer unlock()

	candidate, err := s.candidateRepo.AppendComment(ctx, tenantID, id, comment)
	if err != nil {
		return nil, err
	}

	// Carries only the new comment, not the whole entity.
	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventCommentAdded,
		TenantID: tenantID,
		At:       comment.Timestamp,
		Payload:  realtime.CommentAddedPayload{CandidateID: id, Comment: comment, Actor: actor},
	})
	return candidate, nil
}
