package handlers

import (
	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/services"

	"github.com/labstack/echo/v4"
)

// SettingsHandlers handles the tenant settings surface: the settings
// document, stage management, and usage.
type SettingsHandlers struct {
	settings services.SettingsService
}

func NewSettingsHandlers(settings services.SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings}
}

// Bootstrap handles POST /tenants
func (h *SettingsHandlers) Bootstrap(c echo.Context) error {
	var req services.BootstrapTenantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	tenant, err := h.settings.Bootstrap(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "Tenant created", tenant)
}

// GetSettings handles GET /settings
func (h *SettingsHandlers) GetSettings(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	settings, err := h.settings.GetSettings(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", settings)
}

// UpdateSettings handles PUT /settings
func (h *SettingsHandlers) UpdateSettings(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req services.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	tenant, err := h.settings.UpdateSettings(c.Request().Context(), tenantID, &req)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Settings updated", tenant)
}

// ChangePlan handles PUT /settings/plan
func (h *SettingsHandlers) ChangePlan(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	tenant, err := h.settings.ChangePlan(c.Request().Context(), tenantID, req.Plan)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Plan changed", tenant)
}

// ListStages handles GET /settings/stages
func (h *SettingsHandlers) ListStages(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	stages, err := h.settings.GetStages(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", stages)
}

// AddStage handles POST /settings/stages
func (h *SettingsHandlers) AddStage(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req services.AddStageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	stage, err := h.settings.AddStage(c.Request().Context(), tenantID, &req)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "Stage added", stage)
}

// UpdateStage handles PUT /settings/stages/:id
func (h *SettingsHandlers) UpdateStage(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req struct {
		Title *string `json:"title"`
		Color *string `json:"color"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	stage, err := h.settings.UpdateStage(c.Request().Context(), tenantID, c.Param("id"), req.Title, req.Color)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Stage updated", stage)
}

// RemoveStage handles DELETE /settings/stages/:id
func (h *SettingsHandlers) RemoveStage(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	if err := h.settings.RemoveStage(c.Request().Context(), tenantID, c.Param("id")); err != nil {
		return err
	}
	return common.SendSuccess(c, "Stage removed", nil)
}

// ReorderStages handles PUT /settings/stages/reorder
func (h *SettingsHandlers) ReorderStages(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req struct {
		Order []string `json:"order"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	if err := h.settings.ReorderStages(c.Request().Context(), tenantID, req.Order); err != nil {
		return err
	}

	stages, err := h.settings.GetStages(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "Stages reordered", stages)
}

// GetUsage handles GET /settings/usage
func (h *SettingsHandlers) GetUsage(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	usage, err := h.settings.GetUsage(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", usage)
}
