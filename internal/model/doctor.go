package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Weekday codes stored in doctors.working_days
var weekdayCodes = map[time.Weekday]string{
	time.Monday:    "MON",
	time.Tuesday:   "TUE",
	time.Wednesday: "WED",
	time.Thursday:  "THU",
	time.Friday:    "FRI",
	time.Saturday:  "SAT",
	time.Sunday:    "SUN",
}

const (
	DefaultSlotMinutes       = 30
	DefaultWorkingHoursStart = "09:00"
	DefaultWorkingHoursEnd   = "17:00"
)

// DefaultWorkingDays is applied when a doctor registers without a schedule.
var DefaultWorkingDays = []string{"MON", "TUE", "WED", "THU", "FRI"}

func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[d]
}

func ValidWeekdayCode(code string) bool {
	for _, c := range weekdayCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Doctor is the profile of a user with role DOCTOR. Name and email are
// read from the owning user row.
type Doctor struct {
	Base
	UserID            uuid.UUID      `json:"user_id" db:"user_id"`
	Specialization    string         `json:"specialization" db:"specialization"`
	LicenseNumber     string         `json:"license_number" db:"license_number"`
	Qualification     string         `json:"qualification" db:"qualification"`
	ExperienceYears   int            `json:"experience_years" db:"experience_years"`
	ConsultationFee   float64        `json:"consultation_fee" db:"consultation_fee"`
	Bio               string         `json:"bio,omitempty" db:"bio"`
	WorkingHoursStart string         `json:"working_hours_start" db:"working_hours_start"`
	WorkingHoursEnd   string         `json:"working_hours_end" db:"working_hours_end"`
	SlotMinutes       int            `json:"slot_minutes" db:"slot_minutes"`
	WorkingDays       pq.StringArray `json:"working_days" db:"working_days"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
}

func (d *Doctor) FullName() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

func (d *Doctor) WorksOn(day time.Weekday) bool {
	code := WeekdayCode(day)
	for _, wd := range d.WorkingDays {
		if wd == code {
			return true
		}
	}
	return false
}

// ShiftOn returns the start and end of the doctor's working hours on the
// calendar date of day, in loc.
func (d *Doctor) ShiftOn(day time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := clockOn(day, d.WorkingHoursStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid working_hours_start: %w", err)
	}
	end, err := clockOn(day, d.WorkingHoursEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid working_hours_end: %w", err)
	}
	return start, end, nil
}

func (d *Doctor) SlotDuration() time.Duration {
	if d.SlotMinutes <= 0 {
		return DefaultSlotMinutes * time.Minute
	}
	return time.Duration(d.SlotMinutes) * time.Minute
}

func clockOn(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, dd := day.In(loc).Date()
	return time.Date(y, m, dd, t.Hour(), t.Minute(), 0, 0, loc), nil
}

type DoctorProfileRequest struct {
	Specialization    string   `json:"specialization" binding:"required,max=100"`
	LicenseNumber     string   `json:"license_number" binding:"required,max=50"`
	Qualification     string   `json:"qualification" binding:"omitempty,max=200"`
	ExperienceYears   int      `json:"experience_years" binding:"min=0,max=70"`
	ConsultationFee   float64  `json:"consultation_fee" binding:"min=0"`
	Bio               string   `json:"bio" binding:"omitempty,max=2000"`
	WorkingHoursStart string   `json:"working_hours_start" binding:"omitempty,clock"`
	WorkingHoursEnd   string   `json:"working_hours_end" binding:"omitempty,clock"`
	SlotMinutes       int      `json:"slot_minutes" binding:"omitempty,min=5,max=240"`
	WorkingDays       []string `json:"working_days" binding:"omitempty,dive,weekday"`
}

type UpdateDoctorRequest struct {
	FirstName         *string  `json:"first_name" binding:"omitempty,max=100"`
	LastName          *string  `json:"last_name" binding:"omitempty,max=100"`
	Phone             *string  `json:"phone" binding:"omitempty,max=30"`
	Specialization    *string  `json:"specialization" binding:"omitempty,max=100"`
	Qualification     *string  `json:"qualification" binding:"omitempty,max=200"`
	ExperienceYears   *int     `json:"experience_years" binding:"omitempty,min=0,max=70"`
	ConsultationFee   *float64 `json:"consultation_fee" binding:"omitempty,min=0"`
	Bio               *string  `json:"bio" binding:"omitempty,max=2000"`
	WorkingHoursStart *string  `json:"working_hours_start" binding:"omitempty,clock"`
	WorkingHoursEnd   *string  `json:"working_hours_end" binding:"omitempty,clock"`
	SlotMinutes       *int     `json:"slot_minutes" binding:"omitempty,min=5,max=240"`
	WorkingDays       []string `json:"working_days" binding:"omitempty,dive,weekday"`
}

type DoctorFilter struct {
	Pagination
	Specialization string `form:"specialization"`
	Search         string `form:"search"`
}

// AvailabilitySlot is a bookable interval in a doctor's day.
type AvailabilitySlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Availability struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     string             `json:"date"`
	Slots    []AvailabilitySlot `json:"slots"`
}
