package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/messaging"
	"github.com/medidesk/practice-api/pkg/metrics"
)

// OutboxStore is the subset of the outbox repository the processor needs.
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	ChannelPrefix string
	Retention     time.Duration
}

type OutboxProcessor struct {
	store   OutboxStore
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store OutboxStore,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("MaxAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Start polls the outbox until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were
// published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.store.ClaimPending(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox", "success").Inc()

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}

	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	body, err := json.Marshal(messaging.Envelope{
		ID:          event.ID,
		Type:        event.EventType,
		AggregateID: event.AggregateID,
		OccurredAt:  event.CreatedAt,
		Payload:     event.Payload,
	})
	if err != nil {
		return p.fail(ctx, event, err)
	}

	if err := p.broker.Publish(ctx, p.config.ChannelPrefix+event.EventType, body); err != nil {
		attempt := event.RetryCount + 1
		if attempt >= p.config.MaxAttempts {
			return p.fail(ctx, event, err)
		}
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(backoff(p.config.RetryDelay, attempt))
		if updateErr := p.store.MarkRetry(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to schedule event retry", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.store.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) error {
	p.metrics.OutboxEventsFailed.Inc()
	if err := p.store.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return cause
}

// Cleanup removes processed events older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	return p.store.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
}

// backoff doubles delay for every attempt after the first.
func backoff(delay time.Duration, attempt int) time.Duration {
	d := delay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
