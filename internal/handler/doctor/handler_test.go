package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) List(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, int, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]*model.Doctor)
	return list, args.Int(1), args.Error(2)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*model.Doctor)
	return d, args.Error(1)
}

func (m *mockService) GetMine(ctx context.Context, actor model.Actor) (*model.Doctor, error) {
	args := m.Called(ctx, actor)
	d, _ := args.Get(0).(*model.Doctor)
	return d, args.Error(1)
}

func (m *mockService) UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	args := m.Called(ctx, actor, req)
	d, _ := args.Get(0).(*model.Doctor)
	return d, args.Error(1)
}

func (m *mockService) Availability(ctx context.Context, doctorID uuid.UUID, date string) (*model.Availability, error) {
	args := m.Called(ctx, doctorID, date)
	a, _ := args.Get(0).(*model.Availability)
	return a, args.Error(1)
}

type mockDashboard struct {
	mock.Mock
}

func (m *mockDashboard) Get(ctx context.Context, actor model.Actor) (*model.DoctorDashboard, error) {
	args := m.Called(ctx, actor)
	d, _ := args.Get(0).(*model.DoctorDashboard)
	return d, args.Error(1)
}

func (m *mockDashboard) MyPatients(ctx context.Context, actor model.Actor) ([]*model.DoctorPatient, error) {
	args := m.Called(ctx, actor)
	list, _ := args.Get(0).([]*model.DoctorPatient)
	return list, args.Error(1)
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newRouter(svc Service, dash Dashboard, actor model.Actor) *gin.Engine {
	r := gin.New()
	api := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextActor, actor)
		c.Next()
	})
	NewHandler(svc, dash, time.UTC).RegisterRoutes(api)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var doctor = model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}

func TestListDoctors(t *testing.T) {
	svc := new(mockService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.DoctorFilter) bool {
		return f.Specialization == "cardiology" && f.Page == 1 && f.PageSize == model.DefaultPageSize
	})).Return([]*model.Doctor{{Base: model.Base{ID: uuid.New()}}}, 1, nil)

	w := serve(newRouter(svc, nil, doctor), http.MethodGet, "/doctors?specialization=cardiology", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGetAvailability(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("Availability", mock.Anything, id, "2026-03-02").
		Return(&model.Availability{DoctorID: id, Date: "2026-03-02"}, nil)
	svc.On("Availability", mock.Anything, id, "03/02/2026").
		Return(nil, apperrors.Validation("date must be in YYYY-MM-DD format"))
	r := newRouter(svc, nil, doctor)

	w := serve(r, http.MethodGet, "/doctors/"+id.String()+"/availability?date=2026-03-02", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2026-03-02"`)

	w = serve(r, http.MethodGet, "/doctors/"+id.String()+"/availability?date=03/02/2026", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestMeRoutes(t *testing.T) {
	svc := new(mockService)
	dash := new(mockDashboard)
	svc.On("GetMine", mock.Anything, doctor).Return(&model.Doctor{Base: model.Base{ID: doctor.ProfileID}}, nil)
	dash.On("Get", mock.Anything, doctor).Return(&model.DoctorDashboard{DoctorID: doctor.ProfileID, TodayTotal: 4}, nil)
	dash.On("MyPatients", mock.Anything, doctor).Return([]*model.DoctorPatient{{PatientID: uuid.New(), AppointmentCount: 2}}, nil)
	r := newRouter(svc, dash, doctor)

	w := serve(r, http.MethodGet, "/doctors/me", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/doctors/me/dashboard", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"today_total":4`)

	w = serve(r, http.MethodGet, "/doctors/me/patients", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"appointment_count":2`)

	svc.AssertExpectations(t)
	dash.AssertExpectations(t)
}

func TestMeRoutes_RequireDoctor(t *testing.T) {
	patient := model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	r := newRouter(new(mockService), new(mockDashboard), patient)

	for _, path := range []string{"/doctors/me", "/doctors/me/dashboard", "/doctors/me/patients"} {
		w := serve(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := new(mockService)
	svc.On("UpdateMine", mock.Anything, doctor, mock.MatchedBy(func(req *model.UpdateDoctorRequest) bool {
		return req.WorkingHoursStart != nil && *req.WorkingHoursStart == "08:30"
	})).Return(&model.Doctor{Base: model.Base{ID: doctor.ProfileID}, WorkingHoursStart: "08:30"}, nil)
	r := newRouter(svc, nil, doctor)

	w := serve(r, http.MethodPut, "/doctors/me", `{"working_hours_start":"08:30"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPut, "/doctors/me", `{"working_hours_start":"25:99"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPut, "/doctors/me", `{"working_days":["funday"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdateMine", 1)
}
