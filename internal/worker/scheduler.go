// Package worker runs the periodic maintenance jobs of the practice:
// appointment reminders, no-show detection and retention cleanup.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/medidesk/practice-api/internal/config"
	"github.com/medidesk/practice-api/pkg/logger"
)

const (
	TagReminders     = "reminders"
	TagNoShows       = "no-shows"
	TagAuditCleanup  = "audit-cleanup"
	TagOutboxCleanup = "outbox-cleanup"
)

// Reminders is implemented by the appointment service.
type Reminders interface {
	SendDueReminders(ctx context.Context, lead, window time.Duration) (int, error)
	RecordNoShows(ctx context.Context, grace time.Duration) (int, error)
}

// OutboxCleaner is implemented by the outbox processor.
type OutboxCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type SchedulerConfig struct {
	Reminders       config.ReminderConfig
	AuditRetention  time.Duration
	CleanupInterval time.Duration
	Location        *time.Location
}

type Scheduler struct {
	cron      *gocron.Scheduler
	config    SchedulerConfig
	reminders Reminders
	audit     AuditCleaner
	outbox    OutboxCleaner
	logger    *logger.Logger
	ctx       context.Context
}

// NewScheduler registers one job per configured collaborator. A nil
// collaborator skips its jobs.
func NewScheduler(cfg SchedulerConfig, reminders Reminders, audit AuditCleaner, outbox OutboxCleaner, log *logger.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}

	cron := gocron.NewScheduler(cfg.Location)
	cron.SingletonModeAll()
	cron.WaitForScheduleAll()

	s := &Scheduler{
		cron:      cron,
		config:    cfg,
		reminders: reminders,
		audit:     audit,
		outbox:    outbox,
		logger:    log.With("scheduler"),
		ctx:       context.Background(),
	}

	if reminders != nil && cfg.Reminders.Enabled {
		if cfg.Reminders.Interval <= 0 {
			return nil, fmt.Errorf("reminders.interval must be positive")
		}
		if err := s.schedule(TagReminders, cfg.Reminders.Interval, s.sendReminders); err != nil {
			return nil, err
		}
		if err := s.schedule(TagNoShows, cfg.Reminders.Interval, s.recordNoShows); err != nil {
			return nil, err
		}
	}
	if audit != nil && cfg.AuditRetention > 0 {
		if err := s.schedule(TagAuditCleanup, cfg.CleanupInterval, s.cleanupAudit); err != nil {
			return nil, err
		}
	}
	if outbox != nil {
		if err := s.schedule(TagOutboxCleanup, cfg.CleanupInterval, s.cleanupOutbox); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) schedule(tag string, every time.Duration, run func(context.Context) error) error {
	_, err := s.cron.Every(every).Tag(tag).Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, every)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error(err, "Scheduled job failed", "job", tag)
			return
		}
		s.logger.Debug("Scheduled job finished", "job", tag, "duration", time.Since(start).String())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", tag, err)
	}
	return nil
}

// Start runs the jobs in the background until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.StartAsync()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Jobs()))

	go func() {
		<-ctx.Done()
		s.cron.Stop()
		s.logger.Info("Scheduler stopped")
	}()
}

// Tags lists the registered jobs.
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, job := range s.cron.Jobs() {
		tags = append(tags, job.Tags()...)
	}
	return tags
}

func (s *Scheduler) sendReminders(ctx context.Context) error {
	sent, err := s.reminders.SendDueReminders(ctx, s.config.Reminders.LeadTime, s.config.Reminders.Window)
	if err != nil {
		return fmt.Errorf("failed to send reminders: %w", err)
	}
	if sent > 0 {
		s.logger.Info("Sent appointment reminders", "count", sent)
	}
	return nil
}

func (s *Scheduler) recordNoShows(ctx context.Context) error {
	if _, err := s.reminders.RecordNoShows(ctx, s.config.Reminders.NoShowGrace); err != nil {
		return fmt.Errorf("failed to record no-shows: %w", err)
	}
	return nil
}

func (s *Scheduler) cleanupOutbox(ctx context.Context) error {
	removed, err := s.outbox.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Removed processed outbox events", "count", removed)
	}
	return nil
}
