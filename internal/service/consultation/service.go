package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/prescription"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/metrics"
)

type Service struct {
	tx            repository.Transactor
	consultations repository.ConsultationRepository
	appointments  repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	events        event.Emitter
	auditor       *audit.Service
	metrics       *metrics.Metrics
}

func NewService(
	tx repository.Transactor,
	consultations repository.ConsultationRepository,
	appointments repository.AppointmentRepository,
	prescriptions repository.PrescriptionRepository,
	events event.Emitter,
	auditor *audit.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tx:            tx,
		consultations: consultations,
		appointments:  appointments,
		prescriptions: prescriptions,
		events:        events,
		auditor:       auditor,
		metrics:       m,
	}
}

// Create records the consultation for an appointment of the calling doctor
// and completes that appointment. An optional prescription is stored in the
// same transaction.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	if !actor.Is(model.RoleDoctor) {
		return nil, apperrors.Forbidden("only doctors may record consultations")
	}
	diagnosis := strings.TrimSpace(req.Diagnosis)
	if diagnosis == "" {
		return nil, apperrors.Validation("diagnosis is required")
	}
	followUp, err := shared.ParseDate(req.FollowUpDate, "follow_up_date")
	if err != nil {
		return nil, err
	}

	c := &model.Consultation{
		AppointmentID: req.AppointmentID,
		DoctorID:      actor.ProfileID,
		Symptoms:      cleanList(req.Symptoms),
		Diagnosis:     diagnosis,
		Notes:         strings.TrimSpace(req.Notes),
		FollowUpDate:  followUp,
	}
	var rx *model.Prescription
	if req.Prescription != nil {
		if rx, err = prescription.Build(c, req.Prescription); err != nil {
			return nil, err
		}
	}
	var prevStatus model.AppointmentStatus

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		apt, err := s.appointments.GetByIDForUpdate(ctx, req.AppointmentID)
		if err != nil {
			return shared.RepoError("appointment", err)
		}
		if apt.DoctorID != actor.ProfileID {
			return apperrors.Forbidden("appointment belongs to another doctor")
		}
		switch apt.Status {
		case model.AppointmentStatusScheduled, model.AppointmentStatusConfirmed, model.AppointmentStatusInProgress:
		default:
			return apperrors.BadRequest(fmt.Sprintf("cannot record a consultation for a %s appointment", apt.Status), nil)
		}

		if _, err := s.consultations.GetByAppointmentID(ctx, apt.ID); err == nil {
			return apperrors.Conflict("appointment already has a consultation", nil)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return shared.RepoError("consultation", err)
		}

		prevStatus = apt.Status
		apt.Status = model.AppointmentStatusCompleted
		if err := s.appointments.Update(ctx, apt, prevStatus); err != nil {
			return shared.RepoError("appointment", err)
		}

		c.PatientID = apt.PatientID
		if err := s.consultations.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.Conflict("appointment already has a consultation", err)
			}
			return shared.RepoError("consultation", err)
		}
		if err := s.events.Emit(ctx, model.EventAppointmentStatusChanged, apt.ID, event.NewAppointmentPayload(apt, prevStatus, actor.UserID)); err != nil {
			return err
		}

		if rx != nil {
			rx.ConsultationID, rx.PatientID = c.ID, c.PatientID
			if err := s.prescriptions.Create(ctx, rx); err != nil {
				return shared.RepoError("prescription", err)
			}
			if err := s.events.Emit(ctx, model.EventPrescriptionIssued, rx.ID, event.RecordPayload{
				ID: rx.ID, PatientID: rx.PatientID, DoctorID: rx.DoctorID, ActorID: actor.UserID,
			}); err != nil {
				return err
			}
			c.Prescriptions = []*model.Prescription{rx}
		}

		return s.events.Emit(ctx, model.EventConsultationCreated, c.ID, event.RecordPayload{
			ID: c.ID, PatientID: c.PatientID, DoctorID: c.DoctorID, ActorID: actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(prevStatus), string(model.AppointmentStatusCompleted)).Inc()
	}
	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityConsultation, c.ID, model.JSONMap{
		"appointment_id": c.AppointmentID,
		"patient_id":     c.PatientID,
	})
	return c, nil
}

// Get returns a consultation with its prescriptions.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("consultation", err)
	}
	if !shared.CanReadPatient(actor, c.PatientID) {
		return nil, apperrors.NotFound("consultation", nil)
	}

	c.Prescriptions, err = s.prescriptions.List(ctx, model.PrescriptionFilter{ConsultationID: &c.ID})
	if err != nil {
		return nil, shared.RepoError("prescription", err)
	}

	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityConsultation, c.ID, nil)
	return c, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.ConsultationFilter) ([]*model.Consultation, int, error) {
	patientID, err := shared.PatientScope(actor, filter.PatientID)
	if err != nil {
		return nil, 0, err
	}
	filter.PatientID = patientID

	list, total, err := s.consultations.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("consultation", err)
	}
	if patientID != nil {
		s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityConsultation, uuid.Nil, model.JSONMap{
			"patient_id": *patientID,
			"count":      len(list),
		})
	}
	return list, total, nil
}

// Update edits a consultation. Only its author may do so.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("consultation", err)
	}
	if !actor.Is(model.RoleDoctor) || actor.ProfileID != c.DoctorID {
		return nil, apperrors.Forbidden("only the consulting doctor may edit this consultation")
	}

	if req.Symptoms != nil {
		c.Symptoms = cleanList(req.Symptoms)
	}
	if req.Diagnosis != nil {
		d := strings.TrimSpace(*req.Diagnosis)
		if d == "" {
			return nil, apperrors.Validation("diagnosis cannot be empty")
		}
		c.Diagnosis = d
	}
	if req.Notes != nil {
		c.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.FollowUpDate != nil {
		if c.FollowUpDate, err = shared.ParseDate(*req.FollowUpDate, "follow_up_date"); err != nil {
			return nil, err
		}
	}

	if err := s.consultations.Update(ctx, c); err != nil {
		return nil, shared.RepoError("consultation", err)
	}
	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityConsultation, c.ID, nil)
	return c, nil
}

func cleanList(in []string) pq.StringArray {
	out := pq.StringArray{}
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
