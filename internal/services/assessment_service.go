package services

import (
	"context"
	"fmt"
	"io"
	"path"
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

const (
	maxEvidenceSize            = 25 << 20 // 25 MiB
	evidenceURLTTL             = 15 * time.Minute
	backgroundSummarizeTimeout = 45 * time.Second
)

// AssessmentService runs the test-evaluation sub-workflow: manual result
// entry, evidence upload, and the AI summary pass.
type AssessmentService interface {
	SetResult(ctx context.Context, tenantID, candidateID uuid.UUID, testID string, patch *models.TestResultPatch) (*models.Candidate, error)
	AttachEvidence(ctx context.Context, tenantID, candidateID uuid.UUID, testID, filename, contentType string, size int64, reader io.Reader) (*models.Candidate, error)
	EvidenceURL(ctx context.Context, tenantID, candidateID uuid.UUID, testID string) (string, error)
	Summarize(ctx context.Context, tenantID, candidateID uuid.UUID, testID string) (*models.Candidate, error)
}

type assessmentService struct {
	candidateRepo repositories.CandidateRepository
	storage       StorageService
	summarizer    Summarizer
	broadcaster   realtime.Broadcaster
	order         *EventOrder
	log           *zap.Logger
}

func NewAssessmentService(
	candidateRepo repositories.CandidateRepository,
	storage StorageService,
	summarizer Summarizer,
	broadcaster realtime.Broadcaster,
	order *EventOrder,
	log *zap.Logger,
) AssessmentService {
	return &assessmentService{
		candidateRepo: candidateRepo,
		storage:       storage,
		summarizer:    summarizer,
		broadcaster:   broadcaster,
		order:         order,
		log:           log,
	}
}

// SetResult records a manual evaluation. Status must come from the known
// set and the score, when present, sits in 0-100.
func (s *assessmentService) SetResult(ctx context.Context, tenantID, candidateID uuid.UUID, testID string, patch *models.TestResultPatch) (*models.Candidate, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, apperrors.Validation("test id is required")
	}
	if patch.Status != nil && !models.ValidTestStatus(*patch.Status) {
		return nil, apperrors.Validation("unknown test status %q", *patch.Status)
	}
	if patch.Score != nil && (*patch.Score < 0 || *patch.Score > 100) {
		return nil, apperrors.Validation("score must be between 0 and 100")
	}

	unlock := s.order.Lock(candidateID)
	defer unlock()

	candidate, err := s.candidateRepo.SetTestResult(ctx, tenantID, candidateID, testID, patch)
	if err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, tenantID, candidateID)
	return candidate, nil
}

// AttachEvidence streams the file into object storage and links it to the
// test entry. The result status moves to review and an AI summary kicks
// off in the background.
func (s *assessmentService) AttachEvidence(ctx context.Context, tenantID, candidateID uuid.UUID, testID, filename, contentType string, size int64, reader io.Reader) (*models.Candidate, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, apperrors.Validation("test id is required")
	}
	if size <= 0 || size > maxEvidenceSize {
		return nil, apperrors.Validation("evidence file must be between 1 byte and %d bytes", maxEvidenceSize)
	}
	if _, err := s.candidateRepo.GetByID(ctx, tenantID, candidateID); err != nil {
		return nil, err
	}

	objectName := evidenceObjectName(tenantID, candidateID, testID, filename)
	if err := s.storage.Upload(ctx, objectName, reader, size, contentType); err != nil {
		return nil, apperrors.Upstream(err, "evidence upload failed")
	}

	evidence := models.Evidence{
		Name:       path.Base(filename),
		MimeType:   contentType,
		StorageRef: objectName,
		UploadedAt: time.Now().UTC(),
	}
	unlock := s.order.Lock(candidateID)
	candidate, err := s.candidateRepo.AttachEvidence(ctx, tenantID, candidateID, testID, evidence)
	if err != nil {
		unlock()
		return nil, err
	}
	s.publishUpdated(ctx, tenantID, candidateID)
	unlock()

	// Summarization must not hold up the upload response. It runs with
	// its own deadline and logs on failure.
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundSummarizeTimeout)
		defer cancel()
		if _, err := s.Summarize(bgCtx, tenantID, candidateID, testID); err != nil {
			s.log.Warn("background summarize failed",
				zap.String("candidate_id", candidateID.String()),
				zap.String("test_id", testID),
				zap.Error(err),
			)
		}
	}()

	return candidate, nil
}

func (s *assessmentService) EvidenceURL(ctx context.Context, tenantID, candidateID uuid.UUID, testID string) (string, error) {
	candidate, err := s.candidateRepo.GetByID(ctx, tenantID, candidateID)
	if err != nil {
		return "", err
	}
	result, ok := candidate.TestResults[testID]
	if !ok || result.Evidence == nil {
		return "", apperrors.NotFound("no evidence attached to test %q", testID)
	}
	url, err := s.storage.PresignedURL(ctx, result.Evidence.StorageRef, evidenceURLTTL)
	if err != nil {
		return "", apperrors.Upstream(err, "could not sign evidence url")
	}
	return url, nil
}

// Summarize fetches the evidence (when present), asks the model for a
// short summary, and stores it on the test entry.
func (s *assessmentService) Summarize(ctx context.Context, tenantID, candidateID uuid.UUID, testID string) (*models.Candidate, error) {
	candidate, err := s.candidateRepo.GetByID(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	result, ok := candidate.TestResults[testID]
	if !ok {
		return nil, apperrors.NotFound("no result recorded for test %q", testID)
	}

	req := &SummarizeRequest{
		CandidateName: candidate.Name,
		Position:      candidate.Position,
		TestID:        testID,
		Notes:         result.Notes,
	}
	if result.Evidence != nil {
		data, err := s.storage.Download(ctx, result.Evidence.StorageRef)
		if err != nil {
			return nil, apperrors.Upstream(err, "could not fetch evidence")
		}
		req.Evidence = data
		req.EvidenceMime = result.Evidence.MimeType
	}

	// The model call runs outside the candidate lock; only the write-back
	// and its event are serialized.
	summary, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := s.order.Lock(candidateID)
	defer unlock()

	updated, err := s.candidateRepo.SetAISummary(ctx, tenantID, candidateID, testID, summary)
	if err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, tenantID, candidateID)
	return updated, nil
}

func (s *assessmentService) publishUpdated(ctx context.Context, tenantID, candidateID uuid.UUID) {
	s.broadcaster.Publish(ctx, realtime.Event{
		Type:     realtime.EventUpdated,
		TenantID: tenantID,
		At:       time.Now().UTC(),
		Payload: realtime.UpdatedPayload{
			CandidateID: candidateID,
			Actor:       common.GetActorFromContext(ctx),
		},
	})
}

func evidenceObjectName(tenantID, candidateID uuid.UUID, testID, filename string) string {
	return fmt.Sprintf("evidence/%s/%s/%s/%s", tenantID, candidateID, testID, path.Base(filename))
}
