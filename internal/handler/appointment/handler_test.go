package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, actor, req)
	apt, _ := args.Get(0).(*model.Appointment)
	return apt, args.Error(1)
}

func (m *mockService) Create(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, actor, req)
	apt, _ := args.Get(0).(*model.Appointment)
	return apt, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentView, error) {
	args := m.Called(ctx, actor, id)
	v, _ := args.Get(0).(*model.AppointmentView)
	return v, args.Error(1)
}

func (m *mockService) List(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.AppointmentView, int, error) {
	args := m.Called(ctx, actor, filter)
	list, _ := args.Get(0).([]*model.AppointmentView)
	return list, args.Int(1), args.Error(2)
}

func (m *mockService) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentStatusRequest) (*model.Appointment, error) {
	args := m.Called(ctx, actor, id, req)
	apt, _ := args.Get(0).(*model.Appointment)
	return apt, args.Error(1)
}

func (m *mockService) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	args := m.Called(ctx, actor, id, reason)
	apt, _ := args.Get(0).(*model.Appointment)
	return apt, args.Error(1)
}

func (m *mockService) Reschedule(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, actor, id, req)
	apt, _ := args.Get(0).(*model.Appointment)
	return apt, args.Error(1)
}

func (m *mockService) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Appointments(ctx context.Context, actor model.Actor, doctorID uuid.UUID, from, to time.Time, w io.Writer) (int, error) {
	args := m.Called(ctx, actor, doctorID, from, to, w)
	if args.Error(1) == nil {
		_, _ = w.Write([]byte("PK"))
	}
	return args.Int(0), args.Error(1)
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newRouter(svc Service, exp Exporter, actor model.Actor) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextActor, actor)
		c.Next()
	})
	NewHandler(svc, exp).RegisterRoutes(api)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var (
	patient = model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	doctor  = model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
)

func TestBookAppointment(t *testing.T) {
	svc := new(mockService)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	apt := &model.Appointment{Base: model.Base{ID: uuid.New()}, DoctorID: doctor.ProfileID, PatientID: patient.ProfileID, StartTime: start, Status: model.AppointmentStatusScheduled}
	svc.On("Book", mock.Anything, patient, mock.MatchedBy(func(req *model.BookAppointmentRequest) bool {
		return req.DoctorID == doctor.ProfileID && req.StartTime.Equal(start)
	})).Return(apt, nil)

	w := do(newRouter(svc, nil, patient), http.MethodPost, "/api/v1/appointments/book", gin.H{
		"doctor_id":  doctor.ProfileID,
		"start_time": start,
		"reason":     "checkup",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), apt.ID.String())
	svc.AssertExpectations(t)
}

func TestBookAppointment_Rejected(t *testing.T) {
	t.Run("missing doctor", func(t *testing.T) {
		svc := new(mockService)
		w := do(newRouter(svc, nil, patient), http.MethodPost, "/api/v1/appointments/book", gin.H{"start_time": time.Now()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Book", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("doctor cannot book", func(t *testing.T) {
		svc := new(mockService)
		w := do(newRouter(svc, nil, doctor), http.MethodPost, "/api/v1/appointments/book", gin.H{
			"doctor_id": doctor.ProfileID, "start_time": time.Now(),
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("slot taken", func(t *testing.T) {
		svc := new(mockService)
		svc.On("Book", mock.Anything, patient, mock.Anything).
			Return(nil, apperrors.Conflict("doctor already has an appointment in this time slot", nil))
		w := do(newRouter(svc, nil, patient), http.MethodPost, "/api/v1/appointments/book", gin.H{
			"doctor_id": doctor.ProfileID, "start_time": time.Now(),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestListAppointments(t *testing.T) {
	svc := new(mockService)
	svc.On("List", mock.Anything, doctor, mock.MatchedBy(func(f model.AppointmentFilter) bool {
		return f.Page == 2 && f.PageSize == 5 && f.Status == model.AppointmentStatusConfirmed && f.From != nil && f.To == nil
	})).Return([]*model.AppointmentView{{Appointment: &model.Appointment{Base: model.Base{ID: uuid.New()}}}}, 6, nil)

	w := do(newRouter(svc, nil, doctor), http.MethodGet, "/api/v1/appointments?page=2&page_size=5&status=CONFIRMED&from=2026-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	svc.AssertExpectations(t)
}

func TestListAppointments_BadQuery(t *testing.T) {
	svc := new(mockService)
	r := newRouter(svc, nil, doctor)

	for _, q := range []string{"status=LATE", "doctor_id=nope", "from=yesterday", "page=x"} {
		w := do(r, http.MethodGet, "/api/v1/appointments?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("UpdateStatus", mock.Anything, doctor, id, &model.UpdateAppointmentStatusRequest{Status: model.AppointmentStatusConfirmed}).
		Return(&model.Appointment{Base: model.Base{ID: id}, Status: model.AppointmentStatusConfirmed}, nil)
	r := newRouter(svc, nil, doctor)

	w := do(r, http.MethodPatch, "/api/v1/appointments/"+id.String()+"/status", gin.H{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPatch, "/api/v1/appointments/"+id.String()+"/status", gin.H{"status": "DONE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/api/v1/appointments/not-a-uuid/status", gin.H{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestCancelAppointment(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("Cancel", mock.Anything, patient, id, "feeling better").
		Return(&model.Appointment{Base: model.Base{ID: id}, Status: model.AppointmentStatusCancelled}, nil)
	svc.On("Cancel", mock.Anything, patient, id, "").
		Return(nil, apperrors.BadRequest("cannot cancel an appointment that is COMPLETED", nil))
	r := newRouter(svc, nil, patient)

	w := do(r, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", gin.H{"reason": "feeling better"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/appointments/"+id.String()+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestDeleteAppointment(t *testing.T) {
	id := uuid.New()
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}
	svc := new(mockService)
	svc.On("Delete", mock.Anything, admin, id).Return(nil)

	w := do(newRouter(svc, nil, admin), http.MethodDelete, "/api/v1/appointments/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(newRouter(svc, nil, doctor), http.MethodDelete, "/api/v1/appointments/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNumberOfCalls(t, "Delete", 1)
}

func TestExportAppointments(t *testing.T) {
	exp := new(mockExporter)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	exp.On("Appointments", mock.Anything, doctor, uuid.Nil, from, to, mock.Anything).Return(3, nil)

	w := do(newRouter(new(mockService), exp, doctor), http.MethodGet, "/api/v1/appointments/export?from=2026-03-01&to=2026-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "appointments_20260301_20260331.xlsx")
	assert.Equal(t, "PK", w.Body.String())
	exp.AssertExpectations(t)
}

func TestExportAppointments_Errors(t *testing.T) {
	exp := new(mockExporter)
	exp.On("Appointments", mock.Anything, doctor, uuid.Nil, mock.Anything, mock.Anything, mock.Anything).
		Return(0, apperrors.Validation("export range cannot exceed one year"))

	w := do(newRouter(new(mockService), exp, doctor), http.MethodGet, "/api/v1/appointments/export?from=2020-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = do(newRouter(new(mockService), exp, patient), http.MethodGet, "/api/v1/appointments/export", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
