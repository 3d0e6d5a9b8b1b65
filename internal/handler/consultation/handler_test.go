package consultation

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

func (m *mockService) Create(ctx context.Context, actor model.Actor, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	args := m.Called(ctx, actor, req)
	c, _ := args.Get(0).(*model.Consultation)
	return c, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	args := m.Called(ctx, actor, id)
	c, _ := args.Get(0).(*model.Consultation)
	return c, args.Error(1)
}

func (m *mockService) List(ctx context.Context, actor model.Actor, filter model.ConsultationFilter) ([]*model.Consultation, int, error) {
	args := m.Called(ctx, actor, filter)
	list, _ := args.Get(0).([]*model.Consultation)
	return list, args.Int(1), args.Error(2)
}

func (m *mockService) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error) {
	args := m.Called(ctx, actor, id, req)
	c, _ := args.Get(0).(*model.Consultation)
	return c, args.Error(1)
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
	doctor  = model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
	patient = model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
)

func TestCreateConsultation(t *testing.T) {
	aptID := uuid.New()
	svc := new(mockService)
	svc.On("Create", mock.Anything, doctor, mock.MatchedBy(func(req *model.CreateConsultationRequest) bool {
		return req.AppointmentID == aptID && req.Prescription != nil && len(req.Prescription.Medicines) == 1
	})).Return(&model.Consultation{Base: model.Base{ID: uuid.New()}, AppointmentID: aptID}, nil)
	r := newRouter(svc, doctor)

	body := `{"appointment_id":"` + aptID.String() + `","diagnosis":"influenza","symptoms":["fever"],
		"prescription":{"medicines":[{"name":"Oseltamivir","dosage":"75mg","frequency":"twice daily","duration_days":5}]}}`
	w := serve(r, http.MethodPost, "/consultations", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodPost, "/consultations", `{"appointment_id":"`+aptID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "diagnosis")
	svc.AssertNumberOfCalls(t, "Create", 1)
}

func TestCreateConsultation_Conflict(t *testing.T) {
	svc := new(mockService)
	svc.On("Create", mock.Anything, doctor, mock.Anything).
		Return(nil, apperrors.Conflict("a consultation already exists for this appointment", nil))

	w := serve(newRouter(svc, doctor), http.MethodPost, "/consultations", `{"appointment_id":"`+uuid.NewString()+`","diagnosis":"flu"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateConsultation_DoctorOnly(t *testing.T) {
	svc := new(mockService)
	w := serve(newRouter(svc, patient), http.MethodPost, "/consultations", `{"appointment_id":"`+uuid.NewString()+`","diagnosis":"flu"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestListConsultations(t *testing.T) {
	svc := new(mockService)
	svc.On("List", mock.Anything, patient, model.ConsultationFilter{
		Pagination: model.Pagination{Page: 1, PageSize: model.DefaultPageSize},
		PatientID:  &patient.ProfileID,
	}).Return([]*model.Consultation{}, 0, nil)

	w := serve(newRouter(svc, patient), http.MethodGet, "/consultations?patient_id="+patient.ProfileID.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateConsultation(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("Update", mock.Anything, doctor, id, mock.Anything).Return(&model.Consultation{Base: model.Base{ID: id}}, nil)
	r := newRouter(svc, doctor)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/consultations/"+id.String(), `{"notes":"rest"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, "/consultations/"+id.String(), `{"follow_up_date":"next week"}`).Code)
	svc.AssertNumberOfCalls(t, "Update", 1)
}
