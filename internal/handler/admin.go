package handler

import (
	"net/http"
	"strings"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.UserSummary
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, map[error]string{nil: "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body model.RoleUpdateRequest true "New role (user or admin)"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /admin/users/{id}/role [put]
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	var req model.RoleUpdateRequest
	_ = c.ShouldBindJSON(&req)

	invalid := "Invalid role"
	if strings.TrimSpace(req.Role) == "" {
		invalid = "Role is required"
	}

	if err := h.svc.UpdateRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		writeServiceError(c, err, map[error]string{
			service.ErrInvalidInput: invalid,
			service.ErrNotFound:     "User not found",
			nil:                     "Failed to update user role",
		})
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "User role updated successfully"})
}
