package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentStatusInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted  AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled  AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow     AppointmentStatus = "NO_SHOW"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusInProgress,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
}

// ActiveAppointmentStatuses hold a doctor's time and take part in
// conflict detection.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusInProgress,
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) IsActive() bool {
	for _, a := range ActiveAppointmentStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s.Valid() && len(appointmentTransitions[s]) == 0
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any
// instant. Intervals that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

type Appointment struct {
	Base
	DoctorID       uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	PatientID      uuid.UUID         `json:"patient_id" db:"patient_id"`
	StartTime      time.Time         `json:"start_time" db:"start_time"`
	EndTime        time.Time         `json:"end_time" db:"end_time"`
	Status         AppointmentStatus `json:"status" db:"status"`
	Reason         string            `json:"reason,omitempty" db:"reason"`
	Notes          string            `json:"notes,omitempty" db:"notes"`
	CancelReason   *string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedBy      uuid.UUID         `json:"created_by" db:"created_by"`
	ReminderSentAt *time.Time        `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
}

// StatusChange is an appointment after a bulk status update together with
// the status it held before.
type StatusChange struct {
	Appointment
	PreviousStatus AppointmentStatus `json:"previous_status" db:"previous_status"`
}

func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

func (a *Appointment) OverlapsWith(start, end time.Time) bool {
	return Overlaps(a.StartTime, a.EndTime, start, end)
}

// AppointmentView is an appointment with doctor and patient display data
// joined in.
type AppointmentView struct {
	*Appointment
	Doctor  *UserSummary `json:"doctor,omitempty"`
	Patient *UserSummary `json:"patient,omitempty"`
}

// BookAppointmentRequest is submitted by a patient. EndTime defaults to the
// doctor's slot length.
type BookAppointmentRequest struct {
	DoctorID  uuid.UUID  `json:"doctor_id" binding:"required"`
	StartTime time.Time  `json:"start_time" binding:"required"`
	EndTime   *time.Time `json:"end_time"`
	Reason    string     `json:"reason" binding:"omitempty,max=500"`
}

// CreateAppointmentRequest is submitted by a doctor or an admin. DoctorID is
// only read for admins.
type CreateAppointmentRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
	Reason    string    `json:"reason" binding:"omitempty,max=500"`
	Notes     string    `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateAppointmentStatusRequest struct {
	Status       AppointmentStatus `json:"status" binding:"required,appointment_status"`
	CancelReason string            `json:"cancel_reason" binding:"omitempty,max=500"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type AppointmentFilter struct {
	Pagination
	DoctorID  *uuid.UUID          `form:"-"`
	PatientID *uuid.UUID          `form:"-"`
	Status    AppointmentStatus   `form:"status"`
	From      *time.Time          `form:"-"`
	To        *time.Time          `form:"-"`
	Statuses  []AppointmentStatus `form:"-"`
}
