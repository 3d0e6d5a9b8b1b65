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
	"github.com/spf13/cobra"

	"github.com/medidesk/practice-api/internal/app"
	"github.com/medidesk/practice-api/internal/config"
	"github.com/medidesk/practice-api/internal/handler/health"
	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/repository/postgres"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/tokenstore"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:          "practice-api",
		Short:        "Medical practice management API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yml")

	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	auditSink, err := logger.NewAuditSink(cfg.Log.AuditFile)
	if err != nil {
		return err
	}
	defer func() { _ = auditSink.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := app.Deps{
		Registry:  registry,
		Logger:    log,
		AuditSink: auditSink,
		Mailer:    app.NewMailer(cfg, log),
		Checks:    map[string]health.Pinger{"database": db},
	}

	if cfg.Redis.URL != "" {
		client, err := app.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Tokens = tokenstore.NewRedisStore(client)
		deps.Checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	} else {
		log.Warn("Redis not configured, token revocation is process-local")
		deps.Tokens = tokenstore.NewMemoryStore(cfg.Cache.CleanupInterval)
	}

	application := app.New(cfg, postgres.NewRepositories(db), deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      application.Router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info("Database is up to date")
			}
			for _, name := range applied {
				log.Info("Applied migration", "name", name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := postgres.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-32s %s\n", "VERSION", "NAME", "APPLIED")
			for _, s := range statuses {
				applied := "pending"
				if s.Applied && s.AppliedAt != nil {
					applied = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-8d %-32s %s\n", s.Version, s.Name, applied)
			}
			return nil
		},
	})

	return cmd
}

func seedAdminCmd() *cobra.Command {
	var email, firstName, lastName string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an ADMIN account",
		Long:  "Create an ADMIN account. The password is read from PRACTICE_ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("PRACTICE_ADMIN_PASSWORD")
			if password == "" {
				return fmt.Errorf("PRACTICE_ADMIN_PASSWORD is not set")
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svcs, _ := app.NewServices(cfg, postgres.NewRepositories(db), app.Deps{Logger: log})
			user, err := svcs.Auth.SeedAdmin(cmd.Context(), email, password, firstName, lastName)
			if err != nil {
				return err
			}
			log.Info("Admin created", "user_id", user.ID.String(), "email", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&firstName, "first-name", "Practice", "admin first name")
	cmd.Flags().StringVar(&lastName, "last-name", "Admin", "admin last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
