// Package app assembles services, handlers and the HTTP router from a
// repository backend.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/medidesk/practice-api/internal/config"
	adminhandler "github.com/medidesk/practice-api/internal/handler/admin"
	appointmenthandler "github.com/medidesk/practice-api/internal/handler/appointment"
	authhandler "github.com/medidesk/practice-api/internal/handler/auth"
	consultationhandler "github.com/medidesk/practice-api/internal/handler/consultation"
	doctorhandler "github.com/medidesk/practice-api/internal/handler/doctor"
	"github.com/medidesk/practice-api/internal/handler/health"
	patienthandler "github.com/medidesk/practice-api/internal/handler/patient"
	prescriptionhandler "github.com/medidesk/practice-api/internal/handler/prescription"
	vitalshandler "github.com/medidesk/practice-api/internal/handler/vitals"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/router"
	"github.com/medidesk/practice-api/internal/service/appointment"
	"github.com/medidesk/practice-api/internal/service/audit"
	authservice "github.com/medidesk/practice-api/internal/service/auth"
	"github.com/medidesk/practice-api/internal/service/consultation"
	"github.com/medidesk/practice-api/internal/service/dashboard"
	"github.com/medidesk/practice-api/internal/service/doctor"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/export"
	"github.com/medidesk/practice-api/internal/service/notification"
	"github.com/medidesk/practice-api/internal/service/patient"
	"github.com/medidesk/practice-api/internal/service/prescription"
	"github.com/medidesk/practice-api/internal/service/user"
	"github.com/medidesk/practice-api/internal/service/vitals"
	"github.com/medidesk/practice-api/pkg/auth"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/mailer"
	"github.com/medidesk/practice-api/pkg/metrics"
	"github.com/medidesk/practice-api/pkg/security"
	"github.com/medidesk/practice-api/pkg/tokenstore"
)

// Deps are the process-level collaborators that differ between the API,
// the worker and tests.
type Deps struct {
	Tokens    tokenstore.Store
	Mailer    mailer.Mailer
	Registry  *prometheus.Registry
	Logger    *logger.Logger
	AuditSink *zap.Logger
	// Readiness checks exposed on /health/ready.
	Checks map[string]health.Pinger
}

type Services struct {
	Auth          *authservice.Service
	Users         *user.Service
	Doctors       *doctor.Service
	Patients      *patient.Service
	Appointments  *appointment.Service
	Consultations *consultation.Service
	Prescriptions *prescription.Service
	Vitals        *vitals.Service
	Dashboard     *dashboard.Service
	Export        *export.Service
	Audit         *audit.Service
}

type App struct {
	Config   *config.Config
	Services Services
	Metrics  *metrics.Metrics
	Router   *router.Router
}

// NewServices wires every domain service on repos.
func NewServices(cfg *config.Config, repos *repository.Repositories, deps Deps) (Services, *metrics.Metrics) {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NopMailer{}
	}
	if deps.Tokens == nil {
		deps.Tokens = tokenstore.NewMemoryStore(time.Minute)
	}
	var reg prometheus.Registerer = prometheus.NewRegistry()
	if deps.Registry != nil {
		reg = deps.Registry
	}
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)
	loc := cfg.Practice.Location()
	events := event.NewOutboxEmitter(repos.Outbox)

	auditor := audit.NewService(repos.Audit, deps.AuditSink, deps.Logger)

	authSvc := authservice.NewService(authservice.Deps{
		Tx:       repos.Tx,
		Users:    repos.Users,
		Doctors:  repos.Doctors,
		Patients: repos.Patients,
		Hasher:   security.NewBcryptHasher(cfg.JWT.BcryptCost),
		JWT: auth.NewJWTService(auth.Config{
			Secret:     cfg.JWT.Secret,
			Issuer:     cfg.JWT.Issuer,
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
		}),
		Tokens:  deps.Tokens,
		Auditor: auditor,
		Events:  events,
		Metrics: m,
		Logger:  deps.Logger.With("auth"),
	})

	appointments := appointment.NewService(appointment.Deps{
		Tx:           repos.Tx,
		Appointments: repos.Appointments,
		Doctors:      repos.Doctors,
		Patients:     repos.Patients,
		Events:       events,
		Notifier:     notification.NewService(deps.Mailer, repos.Doctors, repos.Patients, cfg.Practice.Name, loc),
		Auditor:      auditor,
		Metrics:      m,
		Logger:       deps.Logger.With("appointment"),
		Location:     loc,
	})

	return Services{
		Auth:          authSvc,
		Users:         user.NewService(repos.Users, auditor),
		Doctors:       doctor.NewService(repos.Tx, repos.Doctors, repos.Users, repos.Appointments, auditor, cfg.Cache.DoctorTTL, cfg.Cache.CleanupInterval, loc),
		Patients:      patient.NewService(repos.Tx, repos.Patients, repos.Users, auditor),
		Appointments:  appointments,
		Consultations: consultation.NewService(repos.Tx, repos.Consultations, repos.Appointments, repos.Prescriptions, events, auditor, m),
		Prescriptions: prescription.NewService(repos.Tx, repos.Prescriptions, repos.Consultations, events, auditor),
		Vitals:        vitals.NewService(repos.Tx, repos.Vitals, repos.Patients, events, auditor),
		Dashboard:     dashboard.NewService(repos.Appointments, repos.Consultations, repos.Patients, appointments, loc),
		Export:        export.NewService(repos.Appointments, appointments, auditor, loc),
		Audit:         auditor,
	}, m
}

// New builds the HTTP application.
func New(cfg *config.Config, repos *repository.Repositories, deps Deps) *App {
	svcs, m := NewServices(cfg, repos, deps)

	routerCfg := router.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   1 << 20,
		Metrics:        m,
	}
	if deps.Registry != nil {
		routerCfg.Gatherer = deps.Registry
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	loc := cfg.Practice.Location()
	r := router.NewRouter(middleware.NewAuthMiddleware(svcs.Auth), router.Handlers{
		Auth:         authhandler.NewHandler(svcs.Auth),
		Health:       health.NewHandler(deps.Checks),
		Doctor:       doctorhandler.NewHandler(svcs.Doctors, svcs.Dashboard, loc),
		Patient:      patienthandler.NewHandler(svcs.Patients),
		Vitals:       vitalshandler.NewHandler(svcs.Vitals),
		Appointment:  appointmenthandler.NewHandler(svcs.Appointments, svcs.Export),
		Consultation: consultationhandler.NewHandler(svcs.Consultations),
		Prescription: prescriptionhandler.NewHandler(svcs.Prescriptions),
		Admin:        adminhandler.NewHandler(svcs.Users, svcs.Audit),
	}, routerCfg)
	r.Setup()

	return &App{Config: cfg, Services: svcs, Metrics: m, Router: r}
}
