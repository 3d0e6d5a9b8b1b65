package model

import (
	"time"

	"github.com/google/uuid"
)

type DoctorDashboard struct {
	DoctorID               uuid.UUID                 `json:"doctor_id"`
	Date                   string                    `json:"date"`
	TodayByStatus          map[AppointmentStatus]int `json:"today_by_status"`
	TodayTotal             int                       `json:"today_total"`
	Upcoming               []*AppointmentView        `json:"upcoming"`
	TotalPatients          int                       `json:"total_patients"`
	ConsultationsThisMonth int                       `json:"consultations_this_month"`
	RecentPatients         []*DoctorPatient          `json:"recent_patients"`
}

// DoctorPatient is a patient seen by a doctor with visit statistics.
type DoctorPatient struct {
	PatientID        uuid.UUID  `json:"patient_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	Age              *int       `json:"age,omitempty"`
	AppointmentCount int        `json:"appointment_count"`
	LastVisit        *time.Time `json:"last_visit,omitempty"`
}
