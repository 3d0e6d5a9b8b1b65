package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	// allowance for clocks of the recording device running slightly ahead
	futureSkew = 5 * time.Minute
)

type bounds struct {
	field    string
	min, max float64
}

var (
	heartRateRange   = bounds{"heart_rate", 20, 250}
	systolicRange    = bounds{"systolic_bp", 50, 300}
	diastolicRange   = bounds{"diastolic_bp", 30, 200}
	temperatureRange = bounds{"temperature_c", 30, 45}
	respiratoryRange = bounds{"respiratory_rate", 5, 60}
	oxygenRange      = bounds{"oxygen_saturation", 50, 100}
	weightRange      = bounds{"weight_kg", 0.5, 500}
	heightRange      = bounds{"height_cm", 20, 272}
	glucoseRange     = bounds{"blood_glucose", 10, 1000}
)

func (b bounds) checkInt(v *int) error {
	if v == nil {
		return nil
	}
	return b.check(float64(*v))
}

func (b bounds) checkFloat(v *float64) error {
	if v == nil {
		return nil
	}
	return b.check(*v)
}

func (b bounds) check(v float64) error {
	if v < b.min || v > b.max {
		return apperrors.Validation(fmt.Sprintf("%s must be between %g and %g", b.field, b.min, b.max))
	}
	return nil
}

type Service struct {
	tx       repository.Transactor
	vitals   repository.VitalsRepository
	patients repository.PatientRepository
	events   event.Emitter
	auditor  *audit.Service
	now      func() time.Time
}

func NewService(
	tx repository.Transactor,
	vitals repository.VitalsRepository,
	patients repository.PatientRepository,
	events event.Emitter,
	auditor *audit.Service,
) *Service {
	return &Service{
		tx:       tx,
		vitals:   vitals,
		patients: patients,
		events:   events,
		auditor:  auditor,
		now:      time.Now,
	}
}

// Record stores a set of measurements for a patient. Staff may record for
// anyone, patients only for themselves.
func (s *Service) Record(ctx context.Context, actor model.Actor, patientID uuid.UUID, req *model.RecordVitalsRequest) (*model.Vitals, error) {
	if !actor.Is(model.RoleAdmin, model.RoleDoctor) && !(actor.Is(model.RolePatient) && actor.ProfileID == patientID) {
		return nil, apperrors.Forbidden("cannot record vitals for this patient")
	}

	v := &model.Vitals{
		PatientID:        patientID,
		RecordedBy:       actor.UserID,
		HeartRate:        req.HeartRate,
		SystolicBP:       req.SystolicBP,
		DiastolicBP:      req.DiastolicBP,
		TemperatureC:     req.TemperatureC,
		RespiratoryRate:  req.RespiratoryRate,
		OxygenSaturation: req.OxygenSaturation,
		WeightKg:         req.WeightKg,
		HeightCm:         req.HeightCm,
		BloodGlucose:     req.BloodGlucose,
		Notes:            strings.TrimSpace(req.Notes),
	}
	if err := validate(v); err != nil {
		return nil, err
	}

	now := s.now()
	v.RecordedAt = now
	if req.RecordedAt != nil {
		if req.RecordedAt.After(now.Add(futureSkew)) {
			return nil, apperrors.Validation("recorded_at cannot be in the future")
		}
		v.RecordedAt = req.RecordedAt.UTC()
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, shared.RepoError("patient", err)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.vitals.Create(ctx, v); err != nil {
			return shared.RepoError("vitals", err)
		}
		return s.events.Emit(ctx, model.EventVitalsRecorded, v.ID, event.RecordPayload{
			ID:        v.ID,
			PatientID: v.PatientID,
			ActorID:   actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	v.ComputeBMI()
	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityVitals, v.ID, model.JSONMap{
		"patient_id": v.PatientID,
	})
	return v, nil
}

func validate(v *model.Vitals) error {
	if !v.HasMeasurement() {
		return apperrors.Validation("at least one measurement is required")
	}
	checks := []error{
		heartRateRange.checkInt(v.HeartRate),
		systolicRange.checkInt(v.SystolicBP),
		diastolicRange.checkInt(v.DiastolicBP),
		temperatureRange.checkFloat(v.TemperatureC),
		respiratoryRange.checkInt(v.RespiratoryRate),
		oxygenRange.checkInt(v.OxygenSaturation),
		weightRange.checkFloat(v.WeightKg),
		heightRange.checkFloat(v.HeightCm),
		glucoseRange.checkFloat(v.BloodGlucose),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if v.SystolicBP != nil && v.DiastolicBP != nil && *v.SystolicBP <= *v.DiastolicBP {
		return apperrors.Validation("systolic_bp must be greater than diastolic_bp")
	}
	return nil
}

// List returns a patient's measurements, newest first.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.VitalsFilter) ([]*model.Vitals, error) {
	if !shared.CanReadPatient(actor, filter.PatientID) {
		return nil, apperrors.NotFound("patient", nil)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperrors.Validation("to must not be before from")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	list, err := s.vitals.List(ctx, filter)
	if err != nil {
		return nil, shared.RepoError("vitals", err)
	}
	for _, v := range list {
		v.ComputeBMI()
	}

	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityVitals, uuid.Nil, model.JSONMap{
		"patient_id": filter.PatientID,
		"count":      len(list),
	})
	return list, nil
}

func (s *Service) Latest(ctx context.Context, actor model.Actor, patientID uuid.UUID) (*model.Vitals, error) {
	if !shared.CanReadPatient(actor, patientID) {
		return nil, apperrors.NotFound("patient", nil)
	}
	v, err := s.vitals.Latest(ctx, patientID)
	if err != nil {
		return nil, shared.RepoError("vitals", err)
	}
	v.ComputeBMI()
	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityVitals, v.ID, nil)
	return v, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Vitals, error) {
	v, err := s.vitals.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("vitals", err)
	}
	if !shared.CanReadPatient(actor, v.PatientID) {
		return nil, apperrors.NotFound("vitals", nil)
	}
	v.ComputeBMI()
	s.auditor.Log(ctx, actor, model.AuditActionRead, model.AuditEntityVitals, v.ID, nil)
	return v, nil
}

// Delete is allowed to admins and the user who recorded the entry.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	v, err := s.vitals.GetByID(ctx, id)
	if err != nil {
		return shared.RepoError("vitals", err)
	}
	if !actor.Is(model.RoleAdmin) && v.RecordedBy != actor.UserID {
		return apperrors.Forbidden("only the recording user may delete these vitals")
	}
	if err := s.vitals.Delete(ctx, id); err != nil {
		return shared.RepoError("vitals", err)
	}
	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityVitals, id, model.JSONMap{
		"patient_id": v.PatientID,
	})
	return nil
}
