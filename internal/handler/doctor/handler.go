package doctor

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/handler"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type Service interface {
	List(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, int, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	GetMine(ctx context.Context, actor model.Actor) (*model.Doctor, error)
	UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdateDoctorRequest) (*model.Doctor, error)
	Availability(ctx context.Context, doctorID uuid.UUID, date string) (*model.Availability, error)
}

type Dashboard interface {
	Get(ctx context.Context, actor model.Actor) (*model.DoctorDashboard, error)
	MyPatients(ctx context.Context, actor model.Actor) ([]*model.DoctorPatient, error)
}

type Handler struct {
	svc       Service
	dashboard Dashboard
	loc       *time.Location
}

// NewHandler builds the doctor handler. loc is the practice time zone used
// when no availability date is given.
func NewHandler(svc Service, dashboard Dashboard, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, dashboard: dashboard, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)

		me := doctors.Group("/me", middleware.RequireRoles(model.RoleDoctor))
		me.GET("", h.GetProfile)
		me.PUT("", h.UpdateProfile)
		me.GET("/dashboard", h.GetDashboard)
		me.GET("/patients", h.ListPatients)

		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/availability", h.GetAvailability)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	var filter model.DoctorFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	page, err := handler.Pagination(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	filter.Pagination = page

	doctors, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, doctors, page.Page, page.PageSize, total)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	date := c.DefaultQuery("date", time.Now().In(h.loc).Format("2006-01-02"))

	slots, err := h.svc.Availability(c.Request.Context(), id, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) GetProfile(c *gin.Context) {
	d, err := h.svc.GetMine(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	d, err := h.svc.UpdateMine(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	d, err := h.dashboard.Get(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.dashboard.MyPatients(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}
