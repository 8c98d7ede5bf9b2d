package services

import (
	"context"
	"io"
	"sync"
	"time"

	"talentflow/internal/models"
	"talentflow/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) UpdateSettings(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan string, maxUsers, maxCandidates int) error {
	args := m.Called(ctx, id, plan, maxUsers, maxCandidates)
	return args.Error(0)
}

func (m *MockTenantRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockStageRepository struct {
	mock.Mock
}

func (m *MockStageRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StageDefinition), args.Error(1)
}

func (m *MockStageRepository) GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*models.StageDefinition, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StageDefinition), args.Error(1)
}

func (m *MockStageRepository) Create(ctx context.Context, stage *models.StageDefinition) error {
	args := m.Called(ctx, stage)
	return args.Error(0)
}

func (m *MockStageRepository) CreateMany(ctx context.Context, stages []*models.StageDefinition) error {
	args := m.Called(ctx, stages)
	return args.Error(0)
}

func (m *MockStageRepository) Update(ctx context.Context, tenantID uuid.UUID, id string, title, color *string) (*models.StageDefinition, error) {
	args := m.Called(ctx, tenantID, id, title, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StageDefinition), args.Error(1)
}

func (m *MockStageRepository) Delete(ctx context.Context, tenantID uuid.UUID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockStageRepository) Reorder(ctx context.Context, tenantID uuid.UUID, orderedIDs []string) error {
	args := m.Called(ctx, tenantID, orderedIDs)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User, maxUsers int) error {
	args := m.Called(ctx, user, maxUsers)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

type MockCandidateRepository struct {
	mock.Mock
}

func (m *MockCandidateRepository) Create(ctx context.Context, candidate *models.Candidate, maxCandidates int) error {
	args := m.Called(ctx, candidate, maxCandidates)
	return args.Error(0)
}

func (m *MockCandidateRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) List(ctx context.Context, tenantID uuid.UUID, filter *models.CandidateFilter) ([]*models.Candidate, int, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Candidate), args.Int(1), args.Error(2)
}

func (m *MockCandidateRepository) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, patch *models.CandidatePatch, entry models.HistoryEntry) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, patch, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockCandidateRepository) AppendComment(ctx context.Context, tenantID, id uuid.UUID, comment models.Comment) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) Transition(ctx context.Context, tenantID, id uuid.UUID, newStage, actor string) (*models.Candidate, string, error) {
	args := m.Called(ctx, tenantID, id, newStage, actor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.Candidate), args.String(1), args.Error(2)
}

func (m *MockCandidateRepository) Archive(ctx context.Context, tenantID, id uuid.UUID, actor string) (*models.Candidate, string, error) {
	args := m.Called(ctx, tenantID, id, actor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*models.Candidate), args.String(1), args.Error(2)
}

func (m *MockCandidateRepository) Unarchive(ctx context.Context, tenantID, id uuid.UUID, actor, entryStage string) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, actor, entryStage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) SetTestResult(ctx context.Context, tenantID, id uuid.UUID, testID string, patch *models.TestResultPatch) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, testID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) AttachEvidence(ctx context.Context, tenantID, id uuid.UUID, testID string, evidence models.Evidence) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, testID, evidence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) SetAISummary(ctx context.Context, tenantID, id uuid.UUID, testID, summary string) (*models.Candidate, error) {
	args := m.Called(ctx, tenantID, id, testID, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockCandidateRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetStages(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StageDefinition), args.Error(1)
}

func (m *MockCacheService) SetStages(ctx context.Context, tenantID uuid.UUID, stages []*models.StageDefinition, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, stages, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateStages(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) GetUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantUsage), args.Error(1)
}

func (m *MockCacheService) SetUsage(ctx context.Context, tenantID uuid.UUID, usage *models.TenantUsage, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, usage, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStorageService struct {
	mock.Mock
}

func (m *MockStorageService) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorageService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.Error(0)
}

func (m *MockStorageService) Download(ctx context.Context, objectName string) ([]byte, error) {
	args := m.Called(ctx, objectName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageService) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageService) Remove(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, req *SummarizeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// recordingBroadcaster captures published events so tests can assert on
// event type and payload without a running hub. Safe for concurrent
// publishers.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *recordingBroadcaster) Publish(ctx context.Context, event realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) recorded() []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.Event(nil), b.events...)
}
