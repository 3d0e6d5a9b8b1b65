// Package event writes domain events to the transactional outbox. Emit
// joins the caller's transaction when ctx carries one, so an event is
// stored if and only if the change it describes is committed.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

type Emitter interface {
	Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) error
}

type OutboxEmitter struct {
	outboxRepo repository.OutboxRepository
}

func NewOutboxEmitter(outboxRepo repository.OutboxRepository) *OutboxEmitter {
	return &OutboxEmitter{outboxRepo: outboxRepo}
}

func (e *OutboxEmitter) Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	evt := &model.OutboxEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payloadJSON,
	}
	if err := e.outboxRepo.Create(ctx, evt); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// AppointmentPayload is the body of appointment.* events.
type AppointmentPayload struct {
	AppointmentID uuid.UUID               `json:"appointment_id"`
	DoctorID      uuid.UUID               `json:"doctor_id"`
	PatientID     uuid.UUID               `json:"patient_id"`
	Status        model.AppointmentStatus `json:"status"`
	PrevStatus    model.AppointmentStatus `json:"previous_status,omitempty"`
	StartTime     string                  `json:"start_time"`
	EndTime       string                  `json:"end_time"`
	ActorID       uuid.UUID               `json:"actor_id"`
}

func NewAppointmentPayload(apt *model.Appointment, prev model.AppointmentStatus, actorID uuid.UUID) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: apt.ID,
		DoctorID:      apt.DoctorID,
		PatientID:     apt.PatientID,
		Status:        apt.Status,
		PrevStatus:    prev,
		StartTime:     apt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       apt.EndTime.UTC().Format(time.RFC3339),
		ActorID:       actorID,
	}
}

// RecordPayload is the body of consultation, prescription and vitals events.
type RecordPayload struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id,omitempty"`
	ActorID   uuid.UUID `json:"actor_id"`
}
