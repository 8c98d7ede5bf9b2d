package handlers

import (
	"strconv"

	"talentflow/internal/apperrors"
	"talentflow/internal/common"
	"talentflow/internal/services"

	"github.com/labstack/echo/v4"
)

// UserHandlers handles the tenant member directory.
type UserHandlers struct {
	users services.UserService
}

func NewUserHandlers(users services.UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// Invite handles POST /users
func (h *UserHandlers) Invite(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	var req services.InviteUserRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid request body")
	}

	user, err := h.users.Invite(c.Request().Context(), tenantID, &req)
	if err != nil {
		return err
	}
	return common.SendCreated(c, "User invited", user)
}

// Get handles GET /users/:id
func (h *UserHandlers) Get(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}
	id, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return apperrors.Validation("%s", err)
	}

	user, err := h.users.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", user)
}

// List handles GET /users
func (h *UserHandlers) List(c echo.Context) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	users, err := h.users.List(c.Request().Context(), tenantID, page, limit)
	if err != nil {
		return err
	}
	return common.SendSuccess(c, "", users)
}
