package vitals

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
	Record(ctx context.Context, actor model.Actor, patientID uuid.UUID, req *model.RecordVitalsRequest) (*model.Vitals, error)
	List(ctx context.Context, actor model.Actor, filter model.VitalsFilter) ([]*model.Vitals, error)
	Latest(ctx context.Context, actor model.Actor, patientID uuid.UUID) (*model.Vitals, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Vitals, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the per-patient series under /patients/:id/vitals
// and single readings under /vitals/:id.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	series := r.Group("/patients/:id/vitals")
	{
		series.POST("", h.RecordVitals)
		series.GET("", h.ListVitals)
		series.GET("/latest", h.LatestVitals)
	}

	readings := r.Group("/vitals")
	{
		readings.GET("/:id", h.GetVitals)
		readings.DELETE("/:id", h.DeleteVitals)
	}
}

func (h *Handler) RecordVitals(c *gin.Context) {
	patientID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.RecordVitalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	v, err := h.svc.Record(c.Request.Context(), middleware.CurrentActor(c), patientID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, v)
}

func (h *Handler) ListVitals(c *gin.Context) {
	patientID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	filter := model.VitalsFilter{PatientID: patientID}
	var err error
	if filter.From, err = handler.QueryTime(c, "from"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.To, err = handler.QueryTime(c, "to"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filter.Limit, err = handler.QueryInt(c, "limit", 0); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	list, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) LatestVitals(c *gin.Context) {
	patientID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Latest(c.Request.Context(), middleware.CurrentActor(c), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) GetVitals(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) DeleteVitals(c *gin.Context) {
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
