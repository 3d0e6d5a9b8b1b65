package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/medidesk/practice-api/internal/app"
	"github.com/medidesk/practice-api/internal/config"
	"github.com/medidesk/practice-api/internal/handler/health"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/repository/postgres"
	"github.com/medidesk/practice-api/internal/worker"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/messaging/redis"
	"github.com/medidesk/practice-api/pkg/tokenstore"
	outbox "github.com/medidesk/practice-api/pkg/worker"
)

func main() {
	var configDir string
	cmd := &cobra.Command{
		Use:          "practice-worker",
		Short:        "Outbox relay and scheduled jobs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if configDir != "" {
				paths = append(paths, configDir)
			}
			cfg, err := config.Load(paths...)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&configDir, "config", "", "directory containing config.yml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).With("worker")
	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url is required by the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := app.NewRedisClient(cfg.Redis)
	if err != nil {
		return err
	}
	broker := redis.NewRedisBroker(client, redis.DefaultConfig(), *log.Zerolog())
	defer broker.Close()

	auditSink, err := logger.NewAuditSink(cfg.Log.AuditFile)
	if err != nil {
		return err
	}
	defer func() { _ = auditSink.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	repos := postgres.NewRepositories(db)
	svcs, m := app.NewServices(cfg, repos, app.Deps{
		Tokens:    tokenstore.NewRedisStore(client),
		Mailer:    app.NewMailer(cfg, log),
		Registry:  registry,
		Logger:    log,
		AuditSink: auditSink,
	})

	processor, err := outbox.NewOutboxProcessor(repos.Outbox, broker, outbox.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		ChannelPrefix: cfg.Outbox.ChannelPrefix,
		Retention:     cfg.Outbox.Retention,
	}, log.With("outbox"), m)
	if err != nil {
		return err
	}

	scheduler, err := worker.NewScheduler(worker.SchedulerConfig{
		Reminders:      cfg.Reminders,
		AuditRetention: cfg.Log.AuditRetention,
		Location:       cfg.Practice.Location(),
	}, svcs.Appointments, svcs.Audit, processor, log)
	if err != nil {
		return err
	}

	srv := healthServer(cfg.Worker.HealthPort, registry, map[string]health.Pinger{
		"database": db,
		"redis": health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}),
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health server failed")
			stop()
		}
	}()

	scheduler.Start(ctx)
	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(port int, gatherer prometheus.Gatherer, checks map[string]health.Pinger) *http.Server {
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
}
