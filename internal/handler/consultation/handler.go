package consultation

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
	Create(ctx context.Context, actor model.Actor, req *model.CreateConsultationRequest) (*model.Consultation, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error)
	List(ctx context.Context, actor model.Actor, filter model.ConsultationFilter) ([]*model.Consultation, int, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctorOnly := middleware.RequireRoles(model.RoleDoctor)

	consultations := r.Group("/consultations")
	{
		consultations.POST("", doctorOnly, h.CreateConsultation)
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:id", h.GetConsultation)
		consultations.PUT("/:id", doctorOnly, h.UpdateConsultation)
	}
}

// CreateConsultation records the outcome of an appointment and completes it.
func (h *Handler) CreateConsultation(c *gin.Context) {
	var req model.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	cons, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, cons)
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	cons, err := h.svc.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cons)
}

func (h *Handler) ListConsultations(c *gin.Context) {
	var filter model.ConsultationFilter
	var err error
	if filter.Pagination, err = handler.Pagination(c); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.DoctorID, err = handler.QueryUUID(c, "doctor_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.PatientID, err = handler.QueryUUID(c, "patient_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	list, total, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, list, filter.Page, filter.PageSize, total)
}

func (h *Handler) UpdateConsultation(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	cons, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cons)
}
