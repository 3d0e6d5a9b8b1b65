// Package admin serves user management and the audit trail to admins.
package admin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/handler"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type UserService interface {
	ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	SetUserStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status string) (*model.User, error)
}

type AuditService interface {
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, int, error)
}

type Handler struct {
	users UserService
	audit AuditService
}

func NewHandler(users UserService, audit AuditService) *Handler {
	return &Handler{users: users, audit: audit}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", middleware.RequireRoles(model.RoleAdmin))
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PATCH("/users/:id/status", h.UpdateUserStatus)
		admin.GET("/audit-logs", h.ListAuditLogs)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	var filter model.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	filter.Pagination = filter.Pagination.Normalize()

	users, total, err := h.users.ListUsers(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, users, filter.Page, filter.PageSize, total)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) UpdateUserStatus(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	user, err := h.users.SetUserStatus(c.Request.Context(), middleware.CurrentActor(c), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	var filter model.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	filter.Pagination = filter.Pagination.Normalize()
	var err error
	if filter.UserID, err = handler.QueryUUID(c, "user_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.EntityID, err = handler.QueryUUID(c, "entity_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	logs, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, logs, filter.Page, filter.PageSize, total)
}
