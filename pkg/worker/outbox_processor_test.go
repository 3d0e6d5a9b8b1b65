package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/messaging"
	"github.com/medidesk/practice-api/pkg/metrics"
)

type fakeStore struct {
	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	retries   map[uuid.UUID]time.Time
}

func newFakeStore(events ...*model.OutboxEvent) *fakeStore {
	return &fakeStore{
		pending: events,
		failed:  make(map[uuid.UUID]string),
		retries: make(map[uuid.UUID]time.Time),
	}
}

func (s *fakeStore) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	claimed := s.pending[:limit]
	s.pending = s.pending[limit:]
	return claimed, nil
}

func (s *fakeStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.processed = append(s.processed, id)
	return nil
}

func (s *fakeStore) MarkRetry(_ context.Context, id uuid.UUID, _ string, retryAt time.Time) error {
	s.retries[id] = retryAt
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

func (s *fakeStore) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return int64(len(s.processed)), nil
}

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func (b *fakeBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func newEvent(eventType string, retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"status":"SCHEDULED"}`),
		RetryCount:  retries,
		CreatedAt:   time.Now(),
	}
}

func newProcessor(t *testing.T, store OutboxStore, broker messaging.Broker) *OutboxProcessor {
	p, err := NewOutboxProcessor(store, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		MaxAttempts:   3,
		RetryDelay:    time.Second,
		ChannelPrefix: "practice.",
	}, logger.Nop(), metrics.NewMetrics("test", prometheus.NewRegistry()))
	require.NoError(t, err)
	return p
}

func TestProcessBatchPublishesEnvelope(t *testing.T) {
	evt := newEvent(model.EventAppointmentBooked, 0)
	store := newFakeStore(evt)
	broker := &fakeBroker{}

	n, err := newProcessor(t, store, broker).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{evt.ID}, store.processed)

	msgs := broker.published["practice.appointment.booked"]
	require.Len(t, msgs, 1)
	var env messaging.Envelope
	require.NoError(t, json.Unmarshal(msgs[0], &env))
	assert.Equal(t, evt.ID, env.ID)
	assert.Equal(t, evt.AggregateID, env.AggregateID)
	assert.JSONEq(t, `{"status":"SCHEDULED"}`, string(env.Payload))
}

func TestProcessBatchSchedulesRetry(t *testing.T) {
	evt := newEvent(model.EventVitalsRecorded, 1)
	store := newFakeStore(evt)
	p := newProcessor(t, store, &fakeBroker{err: errors.New("connection refused")})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, now.Add(2*time.Second), store.retries[evt.ID])
	assert.Empty(t, store.failed)
}

func TestProcessBatchFailsAfterMaxAttempts(t *testing.T) {
	evt := newEvent(model.EventVitalsRecorded, 2)
	store := newFakeStore(evt)

	_, err := newProcessor(t, store, &fakeBroker{err: errors.New("connection refused")}).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, store.failed[evt.ID], "connection refused")
	assert.Empty(t, store.retries)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(newFakeStore(), &fakeBroker{}, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 1))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 3))
}
