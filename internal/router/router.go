package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/medidesk/practice-api/internal/handler/admin"
	"github.com/medidesk/practice-api/internal/handler/appointment"
	"github.com/medidesk/practice-api/internal/handler/auth"
	"github.com/medidesk/practice-api/internal/handler/consultation"
	"github.com/medidesk/practice-api/internal/handler/doctor"
	"github.com/medidesk/practice-api/internal/handler/health"
	"github.com/medidesk/practice-api/internal/handler/patient"
	"github.com/medidesk/practice-api/internal/handler/prescription"
	"github.com/medidesk/practice-api/internal/handler/vitals"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/pkg/metrics"
)

// Handler is a resource handler mounted on the authenticated group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Auth         *auth.Handler
	Health       *health.Handler
	Doctor       *doctor.Handler
	Patient      *patient.Handler
	Vitals       *vitals.Handler
	Appointment  *appointment.Handler
	Consultation *consultation.Handler
	Prescription *prescription.Handler
	Admin        *admin.Handler
}

type RouterConfig struct {
	AllowedOrigins []string
	CORSMaxAge     time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Metrics        *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if config.Metrics != nil {
		engine.Use(middleware.Metrics(config.Metrics))
	}
	engine.Use(
		cors.New(corsConfig(config)),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/api/v1/appointments/export"})),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(config.RequestTimeout))
	}
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(config.MaxBodyBytes))
	}
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

func corsConfig(config RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderXRequestID},
		ExposeHeaders: []string{middleware.HeaderXRequestID, "Content-Disposition", "Retry-After"},
		MaxAge:        config.CORSMaxAge,
	}
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = config.AllowedOrigins
		c.AllowCredentials = true
	}
	return c
}

func (r *Router) Setup() {
	if r.config.Gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.config.Gatherer, promhttp.HandlerOpts{})))
	}
	api := r.engine.Group("/api/v1")
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
		r.handlers.Health.RegisterRoutes(api)
	}
	protected := api.Group("", r.auth.Authenticate())

	r.handlers.Auth.RegisterRoutes(api, protected)

	for _, h := range []Handler{
		r.handlers.Doctor,
		r.handlers.Patient,
		r.handlers.Vitals,
		r.handlers.Appointment,
		r.handlers.Consultation,
		r.handlers.Prescription,
		r.handlers.Admin,
	} {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
