package appointment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/handler"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type Service interface {
	Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error)
	Create(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentView, error)
	List(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.AppointmentView, int, error)
	UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentStatusRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error)
	Reschedule(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

// Exporter renders a doctor's schedule as a spreadsheet.
type Exporter interface {
	Appointments(ctx context.Context, actor model.Actor, doctorID uuid.UUID, from, to time.Time, w io.Writer) (int, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc      Service
	exporter Exporter
}

func NewHandler(svc Service, exporter Exporter) *Handler {
	return &Handler{svc: svc, exporter: exporter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	staff := middleware.RequireRoles(model.RoleDoctor, model.RoleAdmin)

	apts := r.Group("/appointments")
	{
		apts.POST("", staff, h.CreateAppointment)
		apts.POST("/book", middleware.RequireRoles(model.RolePatient), h.BookAppointment)
		apts.GET("", h.ListAppointments)
		apts.GET("/export", staff, h.ExportAppointments)
		apts.GET("/:id", h.GetAppointment)
		apts.PATCH("/:id/status", h.UpdateStatus)
		apts.POST("/:id/cancel", h.CancelAppointment)
		apts.PUT("/:id/reschedule", h.RescheduleAppointment)
		apts.DELETE("/:id", middleware.RequireRoles(model.RoleAdmin), h.DeleteAppointment)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	apt, err := h.svc.Book(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	apt, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	apt, err := h.svc.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apts, total, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, apts, filter.Page, filter.PageSize, total)
}

func listFilter(c *gin.Context) (model.AppointmentFilter, error) {
	var filter model.AppointmentFilter
	var err error
	if filter.Pagination, err = handler.Pagination(c); err != nil {
		return filter, err
	}
	if status := c.Query("status"); status != "" {
		filter.Status = model.AppointmentStatus(status)
		if !filter.Status.Valid() {
			return filter, apperrors.BadRequest(fmt.Sprintf("unknown status %q", status), nil)
		}
	}
	if filter.DoctorID, err = handler.QueryUUID(c, "doctor_id"); err != nil {
		return filter, err
	}
	if filter.PatientID, err = handler.QueryUUID(c, "patient_id"); err != nil {
		return filter, err
	}
	if filter.From, err = handler.QueryTime(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = handler.QueryTime(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	apt, err := h.svc.UpdateStatus(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBindingError(c, err)
			return
		}
	}

	apt, err := h.svc.Cancel(c.Request.Context(), middleware.CurrentActor(c), id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	apt, err := h.svc.Reschedule(c.Request.Context(), middleware.CurrentActor(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
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

// ExportAppointments streams an XLSX workbook. The range defaults to the
// last 30 days.
func (h *Handler) ExportAppointments(c *gin.Context) {
	doctorID, err := handler.QueryUUID(c, "doctor_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	from, err := handler.QueryTime(c, "from")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	to, err := handler.QueryTime(c, "to")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	end := time.Now().UTC()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}
	var doctor uuid.UUID
	if doctorID != nil {
		doctor = *doctorID
	}

	// Rendered into memory first so validation errors still get a JSON body.
	var buf bytes.Buffer
	if _, err := h.exporter.Appointments(c.Request.Context(), middleware.CurrentActor(c), doctor, start, end, &buf); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filename := fmt.Sprintf("appointments_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
