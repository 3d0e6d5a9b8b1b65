package patient

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/handler"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type Service interface {
	List(ctx context.Context, actor model.Actor, filter model.PatientFilter) ([]*model.Patient, int, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error)
	GetMine(ctx context.Context, actor model.Actor) (*model.Patient, error)
	UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdatePatientRequest) (*model.Patient, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", middleware.RequireRoles(model.RoleDoctor, model.RoleAdmin), h.ListPatients)
		patients.GET("/me", middleware.RequireRoles(model.RolePatient), h.GetProfile)
		patients.PUT("/me", middleware.RequireRoles(model.RolePatient), h.UpdateProfile)
		patients.GET("/:id", h.GetPatient)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filter model.PatientFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	filter.Pagination = filter.Pagination.Normalize()

	patients, total, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, patients, filter.Page, filter.PageSize, total)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.svc.GetMine(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	p, err := h.svc.UpdateMine(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}
