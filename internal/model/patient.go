package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// Patient is the profile of a user with role PATIENT.
type Patient struct {
	Base
	UserID                uuid.UUID      `json:"user_id" db:"user_id"`
	DateOfBirth           *time.Time     `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender                string         `json:"gender,omitempty" db:"gender"`
	BloodGroup            string         `json:"blood_group,omitempty" db:"blood_group"`
	Address               string         `json:"address,omitempty" db:"address"`
	EmergencyContactName  string         `json:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactPhone string         `json:"emergency_contact_phone,omitempty" db:"emergency_contact_phone"`
	Allergies             pq.StringArray `json:"allergies" db:"allergies"`
	ChronicConditions     pq.StringArray `json:"chronic_conditions" db:"chronic_conditions"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone,omitempty" db:"phone"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns completed years at now, or -1 when the birth date is unknown.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return -1
	}
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

type PatientProfileRequest struct {
	DateOfBirth           string   `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender                string   `json:"gender" binding:"omitempty,gender"`
	BloodGroup            string   `json:"blood_group" binding:"omitempty,blood_group"`
	Address               string   `json:"address" binding:"omitempty,max=500"`
	EmergencyContactName  string   `json:"emergency_contact_name" binding:"omitempty,max=200"`
	EmergencyContactPhone string   `json:"emergency_contact_phone" binding:"omitempty,max=30"`
	Allergies             []string `json:"allergies" binding:"omitempty,dive,max=100"`
	ChronicConditions     []string `json:"chronic_conditions" binding:"omitempty,dive,max=100"`
}

type UpdatePatientRequest struct {
	FirstName             *string  `json:"first_name" binding:"omitempty,max=100"`
	LastName              *string  `json:"last_name" binding:"omitempty,max=100"`
	Phone                 *string  `json:"phone" binding:"omitempty,max=30"`
	DateOfBirth           *string  `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender                *string  `json:"gender" binding:"omitempty,gender"`
	BloodGroup            *string  `json:"blood_group" binding:"omitempty,blood_group"`
	Address               *string  `json:"address" binding:"omitempty,max=500"`
	EmergencyContactName  *string  `json:"emergency_contact_name" binding:"omitempty,max=200"`
	EmergencyContactPhone *string  `json:"emergency_contact_phone" binding:"omitempty,max=30"`
	Allergies             []string `json:"allergies" binding:"omitempty,dive,max=100"`
	ChronicConditions     []string `json:"chronic_conditions" binding:"omitempty,dive,max=100"`
}

type PatientFilter struct {
	Pagination
	Search string `form:"search"`
}

// PatientVisitSummary aggregates one doctor's history with one patient.
type PatientVisitSummary struct {
	PatientID        uuid.UUID  `json:"patient_id" db:"patient_id"`
	AppointmentCount int        `json:"appointment_count" db:"appointment_count"`
	LastVisit        *time.Time `json:"last_visit,omitempty" db:"last_visit"`
}
