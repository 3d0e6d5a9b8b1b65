package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

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

func (m *mockService) List(ctx context.Context, actor model.Actor, filter model.PatientFilter) ([]*model.Patient, int, error) {
	args := m.Called(ctx, actor, filter)
	list, _ := args.Get(0).([]*model.Patient)
	return list, args.Int(1), args.Error(2)
}

func (m *mockService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error) {
	args := m.Called(ctx, actor, id)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockService) GetMine(ctx context.Context, actor model.Actor) (*model.Patient, error) {
	args := m.Called(ctx, actor)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *mockService) UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdatePatientRequest) (*model.Patient, error) {
	args := m.Called(ctx, actor, req)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newRouter(svc Service, actor model.Actor) *gin.Engine {
	r := gin.New()
	api := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextActor, actor)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var (
	patient = model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	doctor  = model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
)

func TestListPatients(t *testing.T) {
	svc := new(mockService)
	svc.On("List", mock.Anything, doctor, model.PatientFilter{
		Pagination: model.Pagination{Page: 1, PageSize: model.MaxPageSize},
		Search:     "doe",
	}).Return([]*model.Patient{}, 0, nil)

	w := serve(newRouter(svc, doctor), http.MethodGet, "/patients?search=doe&page_size=1000", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	w = serve(newRouter(svc, patient), http.MethodGet, "/patients", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetPatient(t *testing.T) {
	other := uuid.New()
	svc := new(mockService)
	svc.On("Get", mock.Anything, patient, patient.ProfileID).Return(&model.Patient{Base: model.Base{ID: patient.ProfileID}}, nil)
	svc.On("Get", mock.Anything, patient, other).Return(nil, apperrors.NotFound("patient", nil))
	r := newRouter(svc, patient)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/patients/"+patient.ProfileID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/patients/"+other.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/patients/123", "").Code)
}

func TestUpdateProfile(t *testing.T) {
	svc := new(mockService)
	svc.On("UpdateMine", mock.Anything, patient, mock.MatchedBy(func(req *model.UpdatePatientRequest) bool {
		return req.BloodGroup != nil && *req.BloodGroup == "O+"
	})).Return(&model.Patient{Base: model.Base{ID: patient.ProfileID}, BloodGroup: "O+"}, nil)
	r := newRouter(svc, patient)

	w := serve(r, http.MethodPut, "/patients/me", `{"blood_group":"O+"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPut, "/patients/me", `{"blood_group":"Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "blood_group")

	w = serve(r, http.MethodPut, "/patients/me", `{"date_of_birth":"15/06/1990"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdateMine", 1)
}
