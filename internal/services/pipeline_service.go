package services

import (
	"context"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/models"
	"talentflow/internal/realtime"
	"talentflow/internal/repositories"

	"github.com/google/uuid"
)

// ValidateStageID reports whether id belongs to the given stage set. The
// store layer accepts any stage string; this check runs at the boundary
// before every transition.
func ValidateStageID(stages []*models.StageDefinition, id string) error {
	for _, stage := range stages {
		if stage.ID == id {
			return nil
		}
	}
	return apperrors.Validation("stage %q is not configured for this tenant", id)
}

// PipelineService governs stage movement and its audit side effects. Any
// configured stage may follow any other; the machine's job is the side
// effects, not restricting the graph.
type PipelineService interface {
	Transition(ctx context.Context, tenantID, candidateID uuid.UUID, newStageID string) (*models.Candidate, error)
	Archive(ctx context.Context, tenantID, candidateID uuid.UUID) (*models.Candidate, error)
	Unarchive(ctx context.Context, tenantID, candidateID uuid.UUID) (*models.Candidate, error)
}

type pipelineService struct {
	candidateRepo repositories.CandidateRepository
	tenantRepo    repositories.TenantRepository
	settings      SettingsService
	broadcaster   realtime.Broadcaster
	order         *EventOrder
}

func NewPipelineService(
	candidateRepo repositories.CandidateRepository,
	tenantRepo repositories.TenantRepository,
	settings SettingsService,
	broadcaster realtime.Broadcaster,
	order *EventOrder,
) PipelineService {
	return &pipelineService{
		candidateRepo: candidateRepo,
		tenantRepo:    tenantRepo,
		settings:      settings,
		broadcaster:   broadcaster,
		order:         order,
	}
}

func (s *pipelineService) Transition(ctx context.Context, tenantID, candidateID uuid.UUID, newStageID string) (*models.Candidate, error) {
	stages, err := s.settings.GetStages(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := ValidateStageID(stages, newStageID); err != nil {
		return nil, err
	}

	actor := common.GetActorFromContext(ctx)

	// The candidate lock spans commit and publish; two transitions racing
	// on the same candidate broadcast in the order they committed.
	unlock := s.order.Lock(candidateID)
	defer unlock()

	candidate, oldStage, err := s.candidateRepo.Transition(ctx, tenantID, candidateID, newStageID, actor)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventStageChanged,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload: realtime.StageChangedPayload{
			CandidateID: candidateID,
			OldStage:    oldStage,
			NewStage:    newStageID,
			Actor:       actor,
		},
	})
	return candidate, nil
}

func (s *pipelineService) Archive(ctx context.Context, tenantID, candidateID uuid.UUID) (*models.Candidate, error) {
	actor := common.GetActorFromContext(ctx)
	unlock := s.order.Lock(candidateID)
	defer unlock()

	candidate, oldStage, err := s.candidateRepo.Archive(ctx, tenantID, candidateID, actor)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventStageChanged,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload: realtime.StageChangedPayload{
			CandidateID: candidateID,
			OldStage:    oldStage,
			NewStage:    models.StageArchived,
			Actor:       actor,
		},
	})
	return candidate, nil
}

// Unarchive resets the candidate to the tenant's entry stage; the
// pre-archive position is not restored.
func (s *pipelineService) Unarchive(ctx context.Context, tenantID, candidateID uuid.UUID) (*models.Candidate, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	actor := common.GetActorFromContext(ctx)
	unlock := s.order.Lock(candidateID)
	defer unlock()

	candidate, err := s.candidateRepo.Unarchive(ctx, tenantID, candidateID, actor, tenant.EntryStage)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventStageChanged,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload: realtime.StageChangedPayload{
			CandidateID: candidateID,
			OldStage:    models.StageArchived,
			NewStage:    tenant.EntryStage,
			Actor:       actor,
		},
	})
	return candidate, nil
}
