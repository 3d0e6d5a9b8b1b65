package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Vitals is one set of measurements taken at RecordedAt. Every measurement
// is optional.
type Vitals struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PatientID        uuid.UUID `json:"patient_id" db:"patient_id"`
	RecordedBy       uuid.UUID `json:"recorded_by" db:"recorded_by"`
	RecordedAt       time.Time `json:"recorded_at" db:"recorded_at"`
	HeartRate        *int      `json:"heart_rate,omitempty" db:"heart_rate"`
	SystolicBP       *int      `json:"systolic_bp,omitempty" db:"systolic_bp"`
	DiastolicBP      *int      `json:"diastolic_bp,omitempty" db:"diastolic_bp"`
	TemperatureC     *float64  `json:"temperature_c,omitempty" db:"temperature_c"`
	RespiratoryRate  *int      `json:"respiratory_rate,omitempty" db:"respiratory_rate"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty" db:"oxygen_saturation"`
	WeightKg         *float64  `json:"weight_kg,omitempty" db:"weight_kg"`
	HeightCm         *float64  `json:"height_cm,omitempty" db:"height_cm"`
	BloodGlucose     *float64  `json:"blood_glucose,omitempty" db:"blood_glucose"`
	Notes            string    `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`

	BMI *float64 `json:"bmi,omitempty" db:"-"`
}

// HasMeasurement reports whether at least one measurement is present.
func (v *Vitals) HasMeasurement() bool {
	return v.HeartRate != nil || v.SystolicBP != nil || v.DiastolicBP != nil ||
		v.TemperatureC != nil || v.RespiratoryRate != nil || v.OxygenSaturation != nil ||
		v.WeightKg != nil || v.HeightCm != nil || v.BloodGlucose != nil
}

// ComputeBMI fills BMI, rounded to one decimal, when weight and height are
// both known.
func (v *Vitals) ComputeBMI() {
	v.BMI = nil
	if v.WeightKg == nil || v.HeightCm == nil || *v.HeightCm <= 0 {
		return
	}
	m := *v.HeightCm / 100
	bmi := math.Round(*v.WeightKg/(m*m)*10) / 10
	v.BMI = &bmi
}

type RecordVitalsRequest struct {
	RecordedAt       *time.Time `json:"recorded_at"`
	HeartRate        *int       `json:"heart_rate" binding:"omitempty,min=20,max=250"`
	SystolicBP       *int       `json:"systolic_bp" binding:"omitempty,min=50,max=300"`
	DiastolicBP      *int       `json:"diastolic_bp" binding:"omitempty,min=30,max=200"`
	TemperatureC     *float64   `json:"temperature_c" binding:"omitempty,min=30,max=45"`
	RespiratoryRate  *int       `json:"respiratory_rate" binding:"omitempty,min=5,max=60"`
	OxygenSaturation *int       `json:"oxygen_saturation" binding:"omitempty,min=50,max=100"`
	WeightKg         *float64   `json:"weight_kg" binding:"omitempty,min=0.5,max=500"`
	HeightCm         *float64   `json:"height_cm" binding:"omitempty,min=20,max=272"`
	BloodGlucose     *float64   `json:"blood_glucose" binding:"omitempty,min=10,max=1000"`
	Notes            string     `json:"notes" binding:"omitempty,max=1000"`
}

type VitalsFilter struct {
	PatientID uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
}
