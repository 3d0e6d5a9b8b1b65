package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	// ErrStale is returned by conditional updates whose precondition no
	// longer holds.
	ErrStale = errors.New("record was modified concurrently")
)

// Transactor runs fn in a database transaction. Repositories called with
// the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
		// RecordLoginFailure increments the failure counter. Reaching
		// maxAttempts resets the counter and locks the user until lockUntil;
		// the return value reports whether that happened.
		RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (bool, error)
		RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
		List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, int, error)
		// LockForBooking takes a row lock on the doctor for the rest of the
		// surrounding transaction.
		LockForBooking(ctx context.Context, id uuid.UUID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, int, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// GetByIDForUpdate loads the appointment and locks its row for the
		// rest of the surrounding transaction.
		GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Update writes appointment only while the stored status still equals
		// expected, and returns ErrStale otherwise.
		Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, int, error)
		// FindConflict returns the first active appointment of the doctor
		// overlapping [start, end), or nil.
		FindConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*model.Appointment, error)
		ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*model.Appointment, error)
		MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
		// MarkNoShows moves SCHEDULED and CONFIRMED appointments that ended
		// before cutoff to NO_SHOW and returns them with their prior status.
		MarkNoShows(ctx context.Context, cutoff time.Time) ([]*model.StatusChange, error)
		CountByStatusBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[model.AppointmentStatus]int, error)
		DoctorPatientSummaries(ctx context.Context, doctorID uuid.UUID, limit int) ([]*model.PatientVisitSummary, error)
		CountDistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error)
	}

	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*model.Consultation, error)
		Update(ctx context.Context, consultation *model.Consultation) error
		List(ctx context.Context, filter model.ConsultationFilter) ([]*model.Consultation, int, error)
		CountForDoctorSince(ctx context.Context, doctorID uuid.UUID, since time.Time) (int, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Update(ctx context.Context, prescription *model.Prescription) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.PrescriptionFilter) ([]*model.Prescription, error)
	}

	VitalsRepository interface {
		Create(ctx context.Context, vitals *model.Vitals) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Vitals, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.VitalsFilter) ([]*model.Vitals, error)
		Latest(ctx context.Context, patientID uuid.UUID) (*model.Vitals, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, int, error)
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories groups one backend's repositories.
type Repositories struct {
	Tx            Transactor
	Users         UserRepository
	Doctors       DoctorRepository
	Patients      PatientRepository
	Appointments  AppointmentRepository
	Consultations ConsultationRepository
	Prescriptions PrescriptionRepository
	Vitals        VitalsRepository
	Audit         AuditRepository
	Outbox        OutboxRepository
}
