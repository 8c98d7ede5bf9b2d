package handlers

import (
	"net/http"
	"strconv"

	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/models"
	"talentflow/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CandidateHandlers handles HTTP requests for candidate records, stage
// movement, and the test workflow.
type CandidateHandlers struct {
	candidates  services.CandidateService
	pipeline    services.PipelineService
	assessments services.AssessmentService
}

func NewCandidateHandlers(
	candidates services.CandidateService,
	pipeline services.PipelineService,
	assessments services.AssessmentService,
) *CandidateHandlers {
	return &CandidateHandlers{
		candidates:  candidates,
		pipeline:    pipeline,
		assessments: assessments,
	}
}

func tenantFromRequest(c echo.Context) (uuid.UUID, error) {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}
	return tenantID, nil
}

func candidateIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := common.ValidateUUID(c.Param("id"), "candidate id")
	if err != nil {
		return uuid.Nil, apperrors.Validation("%s", err)
	}
	return id, nil
}

// Create handles POST /candidates
func (h *CandidateHandlers) Create(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req services.CreateCandidateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	candidate, err := h.candidates.Create(c.Request().Context(), tenantID, &req)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "Candidate created", candidate)
}

// List handles GET /candidates
func (h *CandidateHandlers) List(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	filter := &models.CandidateFilter{
		Search: c.QueryParam("search"),
		SortBy: c.QueryParam("sort_by"),
		Order:  c.QueryParam("order"),
	}
	if v := c.QueryParam("stage"); v != "" {
		filter.Stage = &v
	}
	if v := c.QueryParam("position"); v != "" {
		filter.Position = &v
	}
	if v := c.QueryParam("source"); v != "" {
		filter.Source = &v
	}
	if v := c.QueryParam("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Validation("archived must be true or false")
		}
		filter.Archived = &archived
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	candidates, total, err := h.candidates.List(c.Request().Context(), tenantID, filter)
	if err != nil {
		return err
	}
	return common.SendList(c, candidates, total, filter.Page, filter.Limit)
}

// Get handles GET /candidates/:id
func (h *CandidateHandlers) Get(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	candidate, err := h.candidates.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", candidate)
}

// Update handles PATCH /candidates/:id
func (h *CandidateHandlers) Update(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	var patch models.CandidatePatch
	if err := c.Bind(&patch); err != nil {
		return apperrors.Validation("invalid request body")
	}

	candidate, err := h.candidates.Update(c.Request().Context(), tenantID, id, &patch)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Candidate updated", candidate)
}

// Delete handles DELETE /candidates/:id
func (h *CandidateHandlers) Delete(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	if err := h.candidates.Delete(c.Request().Context(), tenantID, id); err != nil {
		return err
	}
	return common.SendSuccess(c, "Candidate deleted", nil)
}

// UpdateStage handles PUT /candidates/:id/stage
func (h *CandidateHandlers) UpdateStage(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Stage string `json:"stage"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}
	if req.Stage == "" {
		return apperrors.Validation("stage is required")
	}

	candidate, err := h.pipeline.Transition(c.Request().Context(), tenantID, id, req.Stage)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Stage updated", candidate)
}

// SetArchived handles PUT /candidates/:id/archive
func (h *CandidateHandlers) SetArchived(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	var candidate *models.Candidate
	if req.Archived {
		candidate, err = h.pipeline.Archive(c.Request().Context(), tenantID, id)
	} else {
		candidate, err = h.pipeline.Unarchive(c.Request().Context(), tenantID, id)
	}
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Archive state updated", candidate)
}

// AddComment handles POST /candidates/:id/comments
func (h *CandidateHandlers) AddComment(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	candidate, err := h.candidates.AddComment(c.Request().Context(), tenantID, id, req.Text)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "Comment added", candidate)
}

// SetTestResult handles PUT /candidates/:id/tests/:testId
func (h *CandidateHandlers) SetTestResult(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	var patch models.TestResultPatch
	if err := c.Bind(&patch); err != nil {
		return apperrors.Validation("invalid request body")
	}

	candidate, err := h.assessments.SetResult(c.Request().Context(), tenantID, id, c.Param("testId"), &patch)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Test result recorded", candidate)
}

// UploadEvidence handles POST /candidates/:id/tests/:testId/evidence
func (h *CandidateHandlers) UploadEvidence(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.Validation("multipart field 'file' is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.Validation("could not read uploaded file")
	}
	defer file.Close()

	candidate, err := h.assessments.AttachEvidence(
		c.Request().Context(),
		tenantID,
		id,
		c.Param("testId"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "Evidence uploaded", candidate)
}

// GetEvidenceURL handles GET /candidates/:id/tests/:testId/evidence
func (h *CandidateHandlers) GetEvidenceURL(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	url, err := h.assessments.EvidenceURL(c.Request().Context(), tenantID, id, c.Param("testId"))
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", map[string]string{"url": url})
}

// Summarize handles POST /candidates/:id/tests/:testId/summarize
func (h *CandidateHandlers) Summarize(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := candidateIDParam(c)
	if err != nil {
		return err
	}

	candidate, err := h.assessments.Summarize(c.Request().Context(), tenantID, id, c.Param("testId"))
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Summary generated", candidate)
}
