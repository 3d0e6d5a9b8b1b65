package prescription

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/handler"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, actor model.Actor, consultationID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error)
	List(ctx context.Context, actor model.Actor, filter model.PrescriptionFilter) ([]*model.Prescription, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctorOnly := middleware.RequireRoles(model.RoleDoctor)

	r.POST("/consultations/:id/prescriptions", doctorOnly, h.CreatePrescription)

	rx := r.Group("/prescriptions")
	{
		rx.GET("", h.ListPrescriptions)
		rx.GET("/:id", h.GetPrescription)
		rx.PUT("/:id", doctorOnly, h.UpdatePrescription)
		rx.DELETE("/:id", doctorOnly, h.DeletePrescription)
	}
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	consultationID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	p, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), consultationID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) GetPrescription(c *gin.Context) {
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

func (h *Handler) ListPrescriptions(c *gin.Context) {
	var filter model.PrescriptionFilter
	var err error
	for name, dst := range map[string]**uuid.UUID{
		"consultation_id": &filter.ConsultationID,
		"doctor_id":       &filter.DoctorID,
		"patient_id":      &filter.PatientID,
	} {
		if *dst, err = handler.QueryUUID(c, name); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
	}

	list, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) UpdatePrescription(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}
	p, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) DeletePrescription(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
