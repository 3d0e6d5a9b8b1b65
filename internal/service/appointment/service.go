package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/metrics"
)

const (
	MinAppointmentDuration = 5 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
)

// Notifier tells participants about appointment changes.
type Notifier interface {
	AppointmentBooked(ctx context.Context, apt *model.Appointment) error
	AppointmentCancelled(ctx context.Context, apt *model.Appointment) error
	AppointmentRescheduled(ctx context.Context, apt *model.Appointment) error
	AppointmentReminder(ctx context.Context, apt *model.Appointment) error
}

type Deps struct {
	Tx           repository.Transactor
	Appointments repository.AppointmentRepository
	Doctors      repository.DoctorRepository
	Patients     repository.PatientRepository
	Events       event.Emitter
	Notifier     Notifier
	Auditor      *audit.Service
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
	Location     *time.Location
}

type Service struct {
	Deps
	log *logger.Logger
	now func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{Deps: deps, log: log.With("appointment"), now: time.Now}
}

// Book schedules an appointment for the calling patient. The slot must lie
// inside the doctor's working hours; EndTime defaults to one slot.
func (s *Service) Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if !actor.Is(model.RolePatient) || actor.ProfileID == uuid.Nil {
		return nil, apperrors.Forbidden("only patients may book appointments")
	}

	doctor, err := s.Doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		return nil, shared.RepoError("doctor", err)
	}

	end := req.StartTime.Add(doctor.SlotDuration())
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if err := s.withinShift(doctor, req.StartTime, end); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		DoctorID:  doctor.ID,
		PatientID: actor.ProfileID,
		StartTime: req.StartTime,
		EndTime:   end,
		Reason:    req.Reason,
	}
	return s.schedule(ctx, actor, apt)
}

// Create schedules an appointment on behalf of a patient. Doctors create for
// themselves, admins name the doctor.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	doctorID := req.DoctorID
	switch actor.Role {
	case model.RoleDoctor:
		doctorID = actor.ProfileID
	case model.RoleAdmin:
		if doctorID == uuid.Nil {
			return nil, apperrors.Validation("doctor_id is required")
		}
	default:
		return nil, apperrors.Forbidden("only doctors and admins may create appointments")
	}

	apt := &model.Appointment{
		DoctorID:  doctorID,
		PatientID: req.PatientID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	return s.schedule(ctx, actor, apt)
}

func (s *Service) schedule(ctx context.Context, actor model.Actor, apt *model.Appointment) (*model.Appointment, error) {
	if err := s.validateWindow(apt.StartTime, apt.EndTime); err != nil {
		return nil, err
	}

	apt.Status = model.AppointmentStatusScheduled
	apt.CreatedBy = actor.UserID

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Doctors.LockForBooking(ctx, apt.DoctorID); err != nil {
			return shared.RepoError("doctor", err)
		}
		if _, err := s.Patients.GetByID(ctx, apt.PatientID); err != nil {
			return shared.RepoError("patient", err)
		}
		if err := s.checkConflict(ctx, apt.DoctorID, apt.StartTime, apt.EndTime, nil); err != nil {
			return err
		}
		if err := s.Appointments.Create(ctx, apt); err != nil {
			return shared.RepoError("appointment", err)
		}
		return s.Events.Emit(ctx, model.EventAppointmentBooked, apt.ID, event.NewAppointmentPayload(apt, "", actor.UserID))
	})
	if err != nil {
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.AppointmentsBooked.WithLabelValues(string(actor.Role)).Inc()
	}
	s.Auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityAppointment, apt.ID, model.JSONMap{
		"doctor_id":  apt.DoctorID,
		"patient_id": apt.PatientID,
	})
	s.notify(ctx, apt, Notifier.AppointmentBooked)
	return apt, nil
}

func (s *Service) checkConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) error {
	conflict, err := s.Appointments.FindConflict(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return shared.RepoError("appointment", err)
	}
	if conflict == nil {
		return nil
	}
	if s.Metrics != nil {
		s.Metrics.BookingConflicts.Inc()
	}
	return apperrors.Conflict("doctor already has an appointment in this time slot", nil).
		WithDetails(map[string]interface{}{
			"conflicting_appointment_id": conflict.ID,
			"start_time":                 conflict.StartTime,
			"end_time":                   conflict.EndTime,
		})
}

func (s *Service) validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return apperrors.Validation("end_time must be after start_time")
	}
	d := end.Sub(start)
	if d < MinAppointmentDuration {
		return apperrors.Validation(fmt.Sprintf("appointment must last at least %v", MinAppointmentDuration))
	}
	if d > MaxAppointmentDuration {
		return apperrors.Validation(fmt.Sprintf("appointment cannot last longer than %v", MaxAppointmentDuration))
	}
	if start.Before(s.now()) {
		return apperrors.Validation("appointment cannot start in the past")
	}
	return nil
}

func (s *Service) withinShift(doctor *model.Doctor, start, end time.Time) error {
	local := start.In(s.Location)
	if !doctor.WorksOn(local.Weekday()) {
		return apperrors.Validation(fmt.Sprintf("doctor does not work on %s", local.Weekday()))
	}
	shiftStart, shiftEnd, err := doctor.ShiftOn(local, s.Location)
	if err != nil {
		return apperrors.Internal(err)
	}
	if start.Before(shiftStart) || end.After(shiftEnd) {
		return apperrors.Validation(fmt.Sprintf("appointment must be within working hours %s-%s",
			doctor.WorkingHoursStart, doctor.WorkingHoursEnd))
	}
	return nil
}

// Get returns one appointment with participant names.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AppointmentView, error) {
	apt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	views, err := s.Views(ctx, []*model.Appointment{apt})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// List scopes the filter to the caller: patients and doctors only see their
// own appointments.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.AppointmentView, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.Validation("unknown appointment status")
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, 0, apperrors.Validation("to must be after from")
	}
	switch actor.Role {
	case model.RolePatient:
		own := actor.ProfileID
		filter.PatientID = &own
	case model.RoleDoctor:
		own := actor.ProfileID
		filter.DoctorID = &own
	}

	apts, total, err := s.Appointments.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("appointment", err)
	}
	views, err := s.Views(ctx, apts)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// UpdateStatus moves an appointment along its lifecycle. Patients may only
// cancel; NO_SHOW can only be recorded once the appointment has started.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentStatusRequest) (*model.Appointment, error) {
	if !req.Status.Valid() {
		return nil, apperrors.Validation("unknown appointment status")
	}
	if actor.Is(model.RolePatient) && req.Status != model.AppointmentStatusCancelled {
		return nil, apperrors.Forbidden("patients may only cancel appointments")
	}

	var (
		apt  *model.Appointment
		prev model.AppointmentStatus
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if apt, err = s.lock(ctx, actor, id); err != nil {
			return err
		}
		prev = apt.Status
		if !prev.CanTransitionTo(req.Status) {
			return apperrors.BadRequest(fmt.Sprintf("cannot change status from %s to %s", prev, req.Status), nil)
		}
		if req.Status == model.AppointmentStatusNoShow && s.now().Before(apt.StartTime) {
			return apperrors.BadRequest("cannot mark an appointment as no-show before it starts", nil)
		}

		apt.Status = req.Status
		if req.Status == model.AppointmentStatusCancelled && req.CancelReason != "" {
			reason := req.CancelReason
			apt.CancelReason = &reason
		}
		if err := s.Appointments.Update(ctx, apt, prev); err != nil {
			return shared.RepoError("appointment", err)
		}
		return s.Events.Emit(ctx, model.EventAppointmentStatusChanged, apt.ID, event.NewAppointmentPayload(apt, prev, actor.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(prev, apt.Status)
	s.Auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityAppointment, apt.ID, model.JSONMap{
		"from": prev,
		"to":   apt.Status,
	})
	if apt.Status == model.AppointmentStatusCancelled {
		s.notify(ctx, apt, Notifier.AppointmentCancelled)
	}
	return apt, nil
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, &model.UpdateAppointmentStatusRequest{
		Status:       model.AppointmentStatusCancelled,
		CancelReason: reason,
	})
}

// Reschedule moves an appointment to a new slot and resets it to SCHEDULED.
func (s *Service) Reschedule(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	var apt *model.Appointment
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if apt, err = s.lock(ctx, actor, id); err != nil {
			return err
		}
		prev := apt.Status
		if prev != model.AppointmentStatusScheduled && prev != model.AppointmentStatusConfirmed {
			return apperrors.BadRequest(fmt.Sprintf("cannot reschedule an appointment that is %s", prev), nil)
		}
		if err := s.Doctors.LockForBooking(ctx, apt.DoctorID); err != nil {
			return shared.RepoError("doctor", err)
		}
		if err := s.checkConflict(ctx, apt.DoctorID, req.StartTime, req.EndTime, &apt.ID); err != nil {
			return err
		}

		apt.StartTime = req.StartTime
		apt.EndTime = req.EndTime
		apt.Status = model.AppointmentStatusScheduled
		apt.ReminderSentAt = nil
		if err := s.Appointments.Update(ctx, apt, prev); err != nil {
			return shared.RepoError("appointment", err)
		}
		return s.Events.Emit(ctx, model.EventAppointmentRescheduled, apt.ID, event.NewAppointmentPayload(apt, prev, actor.UserID))
	})
	if err != nil {
		return nil, err
	}

	s.Auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityAppointment, apt.ID, model.JSONMap{
		"start_time": apt.StartTime,
		"end_time":   apt.EndTime,
	})
	s.notify(ctx, apt, Notifier.AppointmentRescheduled)
	return apt, nil
}

// Delete removes a cancelled appointment. Admin only.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if !actor.Is(model.RoleAdmin) {
		return apperrors.Forbidden("only admins may delete appointments")
	}
	apt, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if apt.Status != model.AppointmentStatusCancelled {
		return apperrors.BadRequest("only cancelled appointments can be deleted", nil)
	}
	if err := s.Appointments.Delete(ctx, id); err != nil {
		return shared.RepoError("appointment", err)
	}
	s.Auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityAppointment, id, nil)
	return nil
}

// load fetches an appointment the actor is allowed to see.
func (s *Service) load(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.Appointments.GetByID(ctx, id)
	return s.accessible(actor, apt, err)
}

// lock is load with a row lock; ctx must carry a transaction.
func (s *Service) lock(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.Appointments.GetByIDForUpdate(ctx, id)
	return s.accessible(actor, apt, err)
}

func (s *Service) accessible(actor model.Actor, apt *model.Appointment, err error) (*model.Appointment, error) {
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}
	if !CanAccess(actor, apt) {
		// hide existence from other patients and doctors
		return nil, apperrors.NotFound("appointment", nil)
	}
	return apt, nil
}

// CanAccess reports whether actor is a participant of apt or an admin.
func CanAccess(actor model.Actor, apt *model.Appointment) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleDoctor:
		return actor.ProfileID == apt.DoctorID
	case model.RolePatient:
		return actor.ProfileID == apt.PatientID
	}
	return false
}

// Views joins doctor and patient display data onto apts with one bulk
// lookup per side.
func (s *Service) Views(ctx context.Context, apts []*model.Appointment) ([]*model.AppointmentView, error) {
	doctorIDs := make([]uuid.UUID, 0, len(apts))
	patientIDs := make([]uuid.UUID, 0, len(apts))
	seen := make(map[uuid.UUID]bool, len(apts)*2)
	for _, a := range apts {
		if !seen[a.DoctorID] {
			seen[a.DoctorID] = true
			doctorIDs = append(doctorIDs, a.DoctorID)
		}
		if !seen[a.PatientID] {
			seen[a.PatientID] = true
			patientIDs = append(patientIDs, a.PatientID)
		}
	}

	doctorsByID := make(map[uuid.UUID]*model.UserSummary, len(doctorIDs))
	patientsByID := make(map[uuid.UUID]*model.UserSummary, len(patientIDs))
	if len(doctorIDs) > 0 {
		doctors, err := s.Doctors.GetByIDs(ctx, doctorIDs)
		if err != nil {
			return nil, shared.RepoError("doctor", err)
		}
		for _, d := range doctors {
			doctorsByID[d.ID] = &model.UserSummary{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Email: d.Email}
		}
	}
	if len(patientIDs) > 0 {
		patients, err := s.Patients.GetByIDs(ctx, patientIDs)
		if err != nil {
			return nil, shared.RepoError("patient", err)
		}
		for _, p := range patients {
			patientsByID[p.ID] = &model.UserSummary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
		}
	}

	views := make([]*model.AppointmentView, 0, len(apts))
	for _, a := range apts {
		views = append(views, &model.AppointmentView{
			Appointment: a,
			Doctor:      doctorsByID[a.DoctorID],
			Patient:     patientsByID[a.PatientID],
		})
	}
	return views, nil
}

func (s *Service) recordTransition(from, to model.AppointmentStatus) {
	if s.Metrics != nil {
		s.Metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (s *Service) notify(ctx context.Context, apt *model.Appointment, send func(Notifier, context.Context, *model.Appointment) error) {
	if s.Notifier == nil {
		return
	}
	if err := send(s.Notifier, context.WithoutCancel(ctx), apt); err != nil {
		s.log.Error(err, "Failed to send appointment notification", "appointment_id", apt.ID.String())
	}
}
