package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/config"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/repository/memory"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	engine *gin.Engine
}

func (c *client) call(method, path, token string, body interface{}) (int, envelope, *httptest.ResponseRecorder) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env, w
}

func testConfig() *config.Config {
	return &config.Config{
		Env:    "test",
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		JWT: config.JWTConfig{
			Secret:     "test-secret-that-is-at-least-32-chars",
			Issuer:     "practice-api-test",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: time.Hour,
			BcryptCost: 4,
		},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"*"}},
		Cache:    config.CacheConfig{DoctorTTL: time.Minute, CleanupInterval: time.Minute},
		Practice: config.PracticeConfig{Name: "Test Practice", Timezone: "UTC"},
		Metrics:  config.MetricsConfig{Namespace: "practice_test"},
	}
}

func setup(t *testing.T) (*client, *memory.Store, *App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	store := memory.NewStore()
	a := New(testConfig(), store.Repositories(), Deps{Registry: prometheus.NewRegistry()})
	return &client{t: t, engine: a.Router.Engine()}, store, a
}

type session struct {
	Token     string
	ProfileID string
}

func register(t *testing.T, c *client, body map[string]interface{}) session {
	t.Helper()
	code, env, w := c.call(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code, w.Body.String())

	var resp struct {
		Doctor  *struct{ ID string } `json:"doctor"`
		Patient *struct{ ID string } `json:"patient"`
		Tokens  struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	s := session{Token: resp.Tokens.AccessToken}
	if resp.Doctor != nil {
		s.ProfileID = resp.Doctor.ID
	}
	if resp.Patient != nil {
		s.ProfileID = resp.Patient.ID
	}
	require.NotEmpty(t, s.Token)
	require.NotEmpty(t, s.ProfileID)
	return s
}

func TestAppointmentLifecycle(t *testing.T) {
	c, store, _ := setup(t)

	doctor := register(t, c, map[string]interface{}{
		"email": "house@example.com", "password": "diagnostics1", "first_name": "Greg", "last_name": "House", "role": "DOCTOR",
		"doctor": map[string]interface{}{
			"specialization": "Diagnostics", "license_number": "LIC-42",
			"working_hours_start": "08:00", "working_hours_end": "18:00",
			"working_days": []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"},
		},
	})
	patient := register(t, c, map[string]interface{}{
		"email": "jane@example.com", "password": "patient-pass", "first_name": "Jane", "last_name": "Roe", "role": "PATIENT",
		"patient": map[string]interface{}{"date_of_birth": "1990-06-15", "blood_group": "O+"},
	})

	code, _, _ := c.call(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "JANE@example.com", "password": "patient-pass"})
	assert.Equal(t, http.StatusOK, code)

	y, m, d := time.Now().UTC().AddDate(0, 0, 1).Date()
	start := time.Date(y, m, d, 10, 0, 0, 0, time.UTC)

	code, env, _ := c.call(http.MethodGet, "/api/v1/doctors/"+doctor.ProfileID+"/availability?date="+start.Format("2006-01-02"), patient.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), start.Format(time.RFC3339))

	code, env, w := c.call(http.MethodPost, "/api/v1/appointments/book", patient.Token, map[string]interface{}{
		"doctor_id": doctor.ProfileID, "start_time": start, "reason": "persistent cough",
	})
	require.Equal(t, http.StatusCreated, code, w.Body.String())
	var apt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &apt))
	assert.Equal(t, "SCHEDULED", apt.Status)

	code, _, _ = c.call(http.MethodPost, "/api/v1/appointments/book", patient.Token, map[string]interface{}{
		"doctor_id": doctor.ProfileID, "start_time": start.Add(15 * time.Minute),
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _, _ = c.call(http.MethodPatch, "/api/v1/appointments/"+apt.ID+"/status", doctor.Token, map[string]string{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusOK, code)

	code, _, w = c.call(http.MethodPost, "/api/v1/consultations", doctor.Token, map[string]interface{}{
		"appointment_id": apt.ID,
		"diagnosis":      "acute bronchitis",
		"symptoms":       []string{"cough", "fatigue"},
		"prescription": map[string]interface{}{
			"medicines": []map[string]interface{}{
				{"name": "Amoxicillin", "dosage": "500mg", "frequency": "3x daily", "duration_days": 7},
			},
		},
	})
	require.Equal(t, http.StatusCreated, code, w.Body.String())

	code, env, _ = c.call(http.MethodGet, "/api/v1/appointments/"+apt.ID, patient.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"COMPLETED"`)

	code, env, _ = c.call(http.MethodGet, "/api/v1/prescriptions", patient.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Amoxicillin")

	code, env, _ = c.call(http.MethodGet, "/api/v1/doctors/me/patients", doctor.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), patient.ProfileID)

	code, _, _ = c.call(http.MethodGet, "/api/v1/doctors/me/dashboard", doctor.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _, w = c.call(http.MethodGet, "/api/v1/appointments/export?from="+start.Format("2006-01-02")+"&to="+start.AddDate(0, 0, 1).Format("2006-01-02"), doctor.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))

	types := map[string]bool{}
	for _, e := range store.OutboxEvents() {
		types[e.EventType] = true
	}
	assert.True(t, types["appointment.booked"])
	assert.True(t, types["consultation.created"])
}

func TestAccessControl(t *testing.T) {
	c, _, _ := setup(t)
	patient := register(t, c, map[string]interface{}{
		"email": "p@example.com", "password": "patient-pass", "first_name": "P", "last_name": "Q", "role": "PATIENT",
	})

	code, _, _ := c.call(http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/appointments", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/doctors/me", patient.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/admin/users", patient.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/patients/me", patient.Token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	c, _, _ := setup(t)
	patient := register(t, c, map[string]interface{}{
		"email": "p@example.com", "password": "patient-pass", "first_name": "P", "last_name": "Q", "role": "PATIENT",
	})

	code, _, _ := c.call(http.MethodGet, "/api/v1/auth/me", patient.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _, _ = c.call(http.MethodPost, "/api/v1/auth/logout", patient.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/auth/me", patient.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminAuditTrail(t *testing.T) {
	c, _, a := setup(t)
	_, err := a.Services.Auth.SeedAdmin(context.Background(), "admin@example.com", "admin-password", "Ada", "Min")
	require.NoError(t, err)

	code, env, _ := c.call(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "admin-password"})
	require.Equal(t, http.StatusOK, code)
	var resp struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	code, env, _ = c.call(http.MethodGet, "/api/v1/admin/audit-logs?entity_type=user", resp.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "login")
}

func TestHealthAndMetrics(t *testing.T) {
	c, _, _ := setup(t)

	code, _, _ := c.call(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _, _ = c.call(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _, w := c.call(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, w.Body.String(), "practice_test_http_requests_total")
}
