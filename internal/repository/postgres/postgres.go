package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/repository"
)

// NewRepositories builds every repository on one shared pool.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Tx:            NewTransactor(base),
		Users:         NewUserRepository(base),
		Doctors:       NewDoctorRepository(base),
		Patients:      NewPatientRepository(base),
		Appointments:  NewAppointmentRepository(base),
		Consultations: NewConsultationRepository(base),
		Prescriptions: NewPrescriptionRepository(base),
		Vitals:        NewVitalsRepository(base),
		Audit:         NewAuditRepository(base),
		Outbox:        NewOutboxRepository(base),
	}
}
