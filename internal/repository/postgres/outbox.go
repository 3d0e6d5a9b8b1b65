package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const outboxColumns = `
	id, event_type, aggregate_id, payload, status, error_message,
	retry_count, retry_at, processed_at, created_at, updated_at`

// processingTimeout is how long a claimed event may stay in processing
// before another worker may claim it again.
const processingTimeout = 5 * time.Minute

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, aggregate_id, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	_, err := r.conn(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return mapError(err, "create outbox event")
}

// ClaimPending moves up to limit due events to processing and returns them.
// SKIP LOCKED lets several workers claim disjoint batches.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status = 'pending' AND (retry_at IS NULL OR retry_at <= NOW()))
				OR (status = 'processing' AND updated_at < $2)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	events := []*model.OutboxEvent{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &events, query, limit, time.Now().Add(-processingTimeout)); err != nil {
		return nil, mapError(err, "claim outbox events")
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = 'processed', error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.conn(ctx).ExecContext(ctx, query, id)
	return mapError(err, "mark outbox event processed")
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'pending', error_message = $2, retry_count = retry_count + 1,
			retry_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.conn(ctx).ExecContext(ctx, query, id, errMsg, retryAt)
	return mapError(err, "schedule outbox retry")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE outbox_events
		SET status = 'failed', error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.conn(ctx).ExecContext(ctx, query, id, errMsg)
	return mapError(err, "mark outbox event failed")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.conn(ctx).ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
