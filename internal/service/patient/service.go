package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type Service struct {
	tx       repository.Transactor
	patients repository.PatientRepository
	users    repository.UserRepository
	auditor  *audit.Service
}

func NewService(tx repository.Transactor, patients repository.PatientRepository, users repository.UserRepository, auditor *audit.Service) *Service {
	return &Service{
		tx:       tx,
		patients: patients,
		users:    users,
		auditor:  auditor,
	}
}

// List is restricted to staff.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.PatientFilter) ([]*model.Patient, int, error) {
	if !actor.Is(model.RoleAdmin, model.RoleDoctor) {
		return nil, 0, apperrors.Forbidden("only staff may list patients")
	}
	patients, total, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("patient", err)
	}
	return patients, total, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error) {
	if !shared.CanReadPatient(actor, id) {
		return nil, apperrors.NotFound("patient", nil)
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("patient", err)
	}
	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityPatient, p.ID, nil)
	return p, nil
}

func (s *Service) GetMine(ctx context.Context, actor model.Actor) (*model.Patient, error) {
	p, err := s.patients.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, shared.RepoError("patient profile", err)
	}
	return p, nil
}

func (s *Service) UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdatePatientRequest) (*model.Patient, error) {
	p, err := s.GetMine(ctx, actor)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, shared.RepoError("user", err)
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.DateOfBirth != nil {
		dob, err := shared.ParseDate(*req.DateOfBirth, "date_of_birth")
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = dob
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.BloodGroup != nil {
		p.BloodGroup = *req.BloodGroup
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.EmergencyContactName != nil {
		p.EmergencyContactName = *req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = *req.EmergencyContactPhone
	}
	if req.Allergies != nil {
		p.Allergies = pq.StringArray(req.Allergies)
	}
	if req.ChronicConditions != nil {
		p.ChronicConditions = pq.StringArray(req.ChronicConditions)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return shared.RepoError("user", err)
		}
		return shared.RepoError("patient", s.patients.Update(ctx, p))
	})
	if err != nil {
		return nil, err
	}

	p.FirstName, p.LastName, p.Phone = u.FirstName, u.LastName, u.Phone
	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityPatient, p.ID, nil)
	return p, nil
}
