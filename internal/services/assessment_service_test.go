package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/models"
	"talentflow/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type AssessmentServiceTestSuite struct {
	suite.Suite
	candidateRepo *MockCandidateRepository
	storage       *MockStorageService
	summarizer    *MockSummarizer
	broadcaster   *recordingBroadcaster
	service       AssessmentService
	tenantID      uuid.UUID
	candidateID   uuid.UUID
}

func (suite *AssessmentServiceTestSuite) SetupTest() {
	suite.candidateRepo = &MockCandidateRepository{}
	suite.storage = &MockStorageService{}
	suite.summarizer = &MockSummarizer{}
	suite.broadcaster = &recordingBroadcaster{}
	suite.service = NewAssessmentService(
		suite.candidateRepo,
		suite.storage,
		suite.summarizer,
		suite.broadcaster,
		NewEventOrder(),
		zap.NewNop(),
	)
	suite.tenantID = uuid.New()
	suite.candidateID = uuid.New()

	suite.candidateRepo.Test(suite.T())
	suite.storage.Test(suite.T())
	suite.summarizer.Test(suite.T())
}

func TestAssessmentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AssessmentServiceTestSuite))
}

func (suite *AssessmentServiceTestSuite) TestSetResult_RejectsUnknownStatus() {
	status := "maybe"
	candidate, err := suite.service.SetResult(context.Background(), suite.tenantID, suite.candidateID, "coding", &models.TestResultPatch{Status: &status})
	assert.Nil(suite.T(), candidate)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindValidation))
}

func (suite *AssessmentServiceTestSuite) TestSetResult_RejectsScoreOutOfRange() {
	score := 110.0
	candidate, err := suite.service.SetResult(context.Background(), suite.tenantID, suite.candidateID, "coding", &models.TestResultPatch{Score: &score})
	assert.Nil(suite.T(), candidate)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindValidation))
}

func (suite *AssessmentServiceTestSuite) TestSetResult_RecordsAndPublishes() {
	ctx := context.Background()
	status := models.TestStatusPassed
	score := 87.5
	patch := &models.TestResultPatch{Status: &status, Score: &score}
	updated := &models.Candidate{ID: suite.candidateID}

	suite.candidateRepo.On("SetTestResult", ctx, suite.tenantID, suite.candidateID, "coding", patch).Return(updated, nil)

	candidate, err := suite.service.SetResult(ctx, suite.tenantID, suite.candidateID, "coding", patch)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), updated, candidate)
	suite.candidateRepo.AssertExpectations(suite.T())

	if assert.Len(suite.T(), suite.broadcaster.events, 1) {
		assert.Equal(suite.T(), realtime.EventUpdated, suite.broadcaster.events[0].Type)
	}
}

func (suite *AssessmentServiceTestSuite) TestAttachEvidence_RejectsOversizedFile() {
	candidate, err := suite.service.AttachEvidence(
		context.Background(), suite.tenantID, suite.candidateID,
		"coding", "sub.pdf", "application/pdf", maxEvidenceSize+1, strings.NewReader("x"),
	)
	assert.Nil(suite.T(), candidate)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindValidation))
}

func (suite *AssessmentServiceTestSuite) TestAttachEvidence_StoresDescriptorAndSummarizesInBackground() {
	ctx := context.Background()
	objectName := fmt.Sprintf("evidence/%s/%s/coding/sub.pdf", suite.tenantID, suite.candidateID)
	attached := &models.Candidate{
		ID: suite.candidateID,
		TestResults: map[string]models.TestResult{
			"coding": {
				Status:   models.TestStatusReview,
				Evidence: &models.Evidence{Name: "sub.pdf", MimeType: "application/pdf", StorageRef: objectName},
			},
		},
	}

	suite.candidateRepo.On("GetByID", mock.Anything, suite.tenantID, suite.candidateID).Return(attached, nil)
	suite.storage.On("Upload", ctx, objectName, mock.Anything, int64(9), "application/pdf").Return(nil)
	suite.candidateRepo.On("AttachEvidence", ctx, suite.tenantID, suite.candidateID, "coding", mock.MatchedBy(func(e models.Evidence) bool {
		return e.Name == "sub.pdf" && e.MimeType == "application/pdf" && e.StorageRef == objectName
	})).Return(attached, nil)

	// Background pass runs on its own context.
	suite.storage.On("Download", mock.Anything, objectName).Return([]byte("pdf-bytes"), nil)
	suite.summarizer.On("Summarize", mock.Anything, mock.AnythingOfType("*services.SummarizeRequest")).Return("Solid work.", nil)
	summarized := make(chan struct{})
	suite.candidateRepo.On("SetAISummary", mock.Anything, suite.tenantID, suite.candidateID, "coding", "Solid work.").
		Return(attached, nil).
		Run(func(mock.Arguments) { close(summarized) })

	candidate, err := suite.service.AttachEvidence(
		ctx, suite.tenantID, suite.candidateID,
		"coding", "sub.pdf", "application/pdf", 9, strings.NewReader("pdf-bytes"),
	)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TestStatusReview, candidate.TestResults["coding"].Status)

	select {
	case <-summarized:
	case <-time.After(2 * time.Second):
		suite.T().Fatal("background summarize never stored a summary")
	}
	// One updated event for the attach, one for the stored summary.
	assert.Eventually(suite.T(), func() bool {
		return len(suite.broadcaster.recorded()) == 2
	}, time.Second, 10*time.Millisecond)
	for _, event := range suite.broadcaster.recorded() {
		assert.Equal(suite.T(), realtime.EventUpdated, event.Type)
	}
}

func (suite *AssessmentServiceTestSuite) TestEvidenceURL_MissingEvidence() {
	ctx := context.Background()
	candidate := &models.Candidate{
		ID:          suite.candidateID,
		TestResults: map[string]models.TestResult{"coding": {Status: models.TestStatusPending}},
	}
	suite.candidateRepo.On("GetByID", ctx, suite.tenantID, suite.candidateID).Return(candidate, nil)

	url, err := suite.service.EvidenceURL(ctx, suite.tenantID, suite.candidateID, "coding")
	assert.Empty(suite.T(), url)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindNotFound))
}

func (suite *AssessmentServiceTestSuite) TestEvidenceURL_Signs() {
	ctx := context.Background()
	candidate := &models.Candidate{
		ID: suite.candidateID,
		TestResults: map[string]models.TestResult{
			"coding": {Status: models.TestStatusReview, Evidence: &models.Evidence{StorageRef: "evidence/x/y/coding/sub.pdf"}},
		},
	}
	suite.candidateRepo.On("GetByID", ctx, suite.tenantID, suite.candidateID).Return(candidate, nil)
	suite.storage.On("PresignedURL", ctx, "evidence/x/y/coding/sub.pdf", 15*time.Minute).Return("https://minio/signed", nil)

	url, err := suite.service.EvidenceURL(ctx, suite.tenantID, suite.candidateID, "coding")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "https://minio/signed", url)
}

func (suite *AssessmentServiceTestSuite) TestSummarize_FetchesEvidenceAndStoresSummary() {
	ctx := context.Background()
	notes := "solid solution, minor style issues"
	candidate := &models.Candidate{
		ID:       suite.candidateID,
		Name:     "Jane",
		Position: "Backend Engineer",
		TestResults: map[string]models.TestResult{
			"coding": {
				Status:   models.TestStatusReview,
				Notes:    notes,
				Evidence: &models.Evidence{StorageRef: "evidence/x/y/coding/sub.pdf", MimeType: "application/pdf"},
			},
		},
	}
	summarized := &models.Candidate{ID: suite.candidateID}

	suite.candidateRepo.On("GetByID", ctx, suite.tenantID, suite.candidateID).Return(candidate, nil)
	suite.storage.On("Download", ctx, "evidence/x/y/coding/sub.pdf").Return([]byte("pdf-bytes"), nil)
	suite.summarizer.On("Summarize", ctx, &SummarizeRequest{
		CandidateName: "Jane",
		Position:      "Backend Engineer",
		TestID:        "coding",
		Notes:         notes,
		Evidence:      []byte("pdf-bytes"),
		EvidenceMime:  "application/pdf",
	}).Return("Strong submission.", nil)
	suite.candidateRepo.On("SetAISummary", ctx, suite.tenantID, suite.candidateID, "coding", "Strong submission.").Return(summarized, nil)

	result, err := suite.service.Summarize(ctx, suite.tenantID, suite.candidateID, "coding")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), summarized, result)
	suite.summarizer.AssertExpectations(suite.T())

	if assert.Len(suite.T(), suite.broadcaster.events, 1) {
		assert.Equal(suite.T(), realtime.EventUpdated, suite.broadcaster.events[0].Type)
	}
}

func (suite *AssessmentServiceTestSuite) TestSummarize_UnknownTest() {
	ctx := context.Background()
	candidate := &models.Candidate{ID: suite.candidateID, TestResults: map[string]models.TestResult{}}
	suite.candidateRepo.On("GetByID", ctx, suite.tenantID, suite.candidateID).Return(candidate, nil)

	result, err := suite.service.Summarize(ctx, suite.tenantID, suite.candidateID, "coding")
	assert.Nil(suite.T(), result)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindNotFound))
}

func (suite *AssessmentServiceTestSuite) TestSummarize_ProviderFailureDoesNotStore() {
	ctx := context.Background()
	candidate := &models.Candidate{
		ID:          suite.candidateID,
		Name:        "Jane",
		TestResults: map[string]models.TestResult{"coding": {Status: models.TestStatusPending}},
	}
	suite.candidateRepo.On("GetByID", ctx, suite.tenantID, suite.candidateID).Return(candidate, nil)
	suite.summarizer.On("Summarize", ctx, mock.AnythingOfType("*services.SummarizeRequest")).Return("", apperrors.Upstream(nil, "summarizer unavailable"))

	result, err := suite.service.Summarize(ctx, suite.tenantID, suite.candidateID, "coding")
	assert.Nil(suite.T(), result)
	assert.True(suite.T(), apperrors.IsKind(err, apperrors.KindUpstream))
	suite.candidateRepo.AssertNotCalled(suite.T(), "SetAISummary")
	assert.Empty(suite.T(), suite.broadcaster.events)
}
