package prescription

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

const maxMedicines = 50

type Service struct {
	tx            repository.Transactor
	prescriptions repository.PrescriptionRepository
	consultations repository.ConsultationRepository
	events        event.Emitter
	auditor       *audit.Service
}

func NewService(
	tx repository.Transactor,
	prescriptions repository.PrescriptionRepository,
	consultations repository.ConsultationRepository,
	events event.Emitter,
	auditor *audit.Service,
) *Service {
	return &Service{
		tx:            tx,
		prescriptions: prescriptions,
		consultations: consultations,
		events:        events,
		auditor:       auditor,
	}
}

// Build validates req and returns a prescription attached to c.
func Build(c *model.Consultation, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	medicines, err := normalizeMedicines(req.Medicines)
	if err != nil {
		return nil, err
	}
	validUntil, err := shared.ParseDate(req.ValidUntil, "valid_until")
	if err != nil {
		return nil, err
	}
	return &model.Prescription{
		ConsultationID: c.ID,
		DoctorID:       c.DoctorID,
		PatientID:      c.PatientID,
		Medicines:      medicines,
		Instructions:   strings.TrimSpace(req.Instructions),
		ValidUntil:     validUntil,
	}, nil
}

func normalizeMedicines(in []model.Medicine) (model.Medicines, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one medicine is required")
	}
	if len(in) > maxMedicines {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d medicines are allowed", maxMedicines))
	}
	out := make(model.Medicines, 0, len(in))
	for i, m := range in {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" {
			return nil, apperrors.Validation(fmt.Sprintf("medicines[%d]: name, dosage and frequency are required", i))
		}
		if m.DurationDays < 0 {
			return nil, apperrors.Validation(fmt.Sprintf("medicines[%d]: duration_days cannot be negative", i))
		}
		out = append(out, m)
	}
	return out, nil
}

// Create attaches a prescription to a consultation written by the caller.
func (s *Service) Create(ctx context.Context, actor model.Actor, consultationID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	c, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		return nil, shared.RepoError("consultation", err)
	}
	if !actor.Is(model.RoleDoctor) || actor.ProfileID != c.DoctorID {
		return nil, apperrors.Forbidden("only the consulting doctor may prescribe")
	}

	p, err := Build(c, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return shared.RepoError("prescription", err)
		}
		return s.events.Emit(ctx, model.EventPrescriptionIssued, p.ID, event.RecordPayload{
			ID:        p.ID,
			PatientID: p.PatientID,
			DoctorID:  p.DoctorID,
			ActorID:   actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityPrescription, p.ID, model.JSONMap{
		"patient_id": p.PatientID,
	})
	return p, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("prescription", err)
	}
	if !shared.CanReadPatient(actor, p.PatientID) {
		return nil, apperrors.NotFound("prescription", nil)
	}
	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityPrescription, p.ID, nil)
	return p, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.PrescriptionFilter) ([]*model.Prescription, error) {
	patientID, err := shared.PatientScope(actor, filter.PatientID)
	if err != nil {
		return nil, err
	}
	filter.PatientID = patientID

	list, err := s.prescriptions.List(ctx, filter)
	if err != nil {
		return nil, shared.RepoError("prescription", err)
	}
	if patientID != nil {
		s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityPrescription, uuid.Nil, model.JSONMap{
			"patient_id": *patientID,
			"count":      len(list),
		})
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error) {
	p, err := s.authored(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Medicines != nil {
		if p.Medicines, err = normalizeMedicines(req.Medicines); err != nil {
			return nil, err
		}
	}
	if req.Instructions != nil {
		p.Instructions = strings.TrimSpace(*req.Instructions)
	}
	if req.ValidUntil != nil {
		if p.ValidUntil, err = shared.ParseDate(*req.ValidUntil, "valid_until"); err != nil {
			return nil, err
		}
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, shared.RepoError("prescription", err)
	}
	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityPrescription, p.ID, nil)
	return p, nil
}

// Delete is allowed to the prescribing doctor and admins.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return shared.RepoError("prescription", err)
	}
	if !shared.CanManageDoctorRecord(actor, p.DoctorID) {
		return apperrors.Forbidden("only the prescribing doctor may delete this prescription")
	}
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return shared.RepoError("prescription", err)
	}
	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityPrescription, id, model.JSONMap{
		"patient_id": p.PatientID,
	})
	return nil
}

func (s *Service) authored(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("prescription", err)
	}
	if !actor.Is(model.RoleDoctor) || actor.ProfileID != p.DoctorID {
		return nil, apperrors.Forbidden("only the prescribing doctor may modify this prescription")
	}
	return p, nil
}
