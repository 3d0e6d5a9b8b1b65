package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository/memory"
)

func TestEmit_WritesOutboxRow(t *testing.T) {
	store := memory.NewStore()
	emitter := NewOutboxEmitter(store.Outbox())

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	apt := &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    model.AppointmentStatusCancelled,
	}
	actor := uuid.New()

	payload := NewAppointmentPayload(apt, model.AppointmentStatusScheduled, actor)
	require.NoError(t, emitter.Emit(context.Background(), model.EventAppointmentStatusChanged, apt.ID, payload))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentStatusChanged, events[0].EventType)
	assert.Equal(t, apt.ID, events[0].AggregateID)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].Payload, &decoded))
	assert.Equal(t, "CANCELLED", decoded["status"])
	assert.Equal(t, "SCHEDULED", decoded["previous_status"])
	assert.Equal(t, "2026-03-02T08:00:00Z", decoded["start_time"])
	assert.Equal(t, actor.String(), decoded["actor_id"])
}

func TestEmit_UnmarshalablePayload(t *testing.T) {
	emitter := NewOutboxEmitter(memory.NewStore().Outbox())
	err := emitter.Emit(context.Background(), model.EventVitalsRecorded, uuid.New(), map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}
