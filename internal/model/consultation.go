package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Consultation is the clinical record written when an appointment is
// completed.
type Consultation struct {
	Base
	AppointmentID uuid.UUID      `json:"appointment_id" db:"appointment_id"`
	DoctorID      uuid.UUID      `json:"doctor_id" db:"doctor_id"`
	PatientID     uuid.UUID      `json:"patient_id" db:"patient_id"`
	Symptoms      pq.StringArray `json:"symptoms" db:"symptoms"`
	Diagnosis     string         `json:"diagnosis" db:"diagnosis"`
	Notes         string         `json:"notes,omitempty" db:"notes"`
	FollowUpDate  *time.Time     `json:"follow_up_date,omitempty" db:"follow_up_date"`

	Prescriptions []*Prescription `json:"prescriptions,omitempty" db:"-"`
}

type CreateConsultationRequest struct {
	AppointmentID uuid.UUID                  `json:"appointment_id" binding:"required"`
	Symptoms      []string                   `json:"symptoms" binding:"omitempty,dive,required,max=200"`
	Diagnosis     string                     `json:"diagnosis" binding:"required,max=2000"`
	Notes         string                     `json:"notes" binding:"omitempty,max=5000"`
	FollowUpDate  string                     `json:"follow_up_date" binding:"omitempty,datetime=2006-01-02"`
	Prescription  *CreatePrescriptionRequest `json:"prescription"`
}

type UpdateConsultationRequest struct {
	Symptoms     []string `json:"symptoms" binding:"omitempty,dive,required,max=200"`
	Diagnosis    *string  `json:"diagnosis" binding:"omitempty,max=2000"`
	Notes        *string  `json:"notes" binding:"omitempty,max=5000"`
	FollowUpDate *string  `json:"follow_up_date" binding:"omitempty,datetime=2006-01-02"`
}

type ConsultationFilter struct {
	Pagination
	DoctorID  *uuid.UUID `form:"-"`
	PatientID *uuid.UUID `form:"-"`
}
