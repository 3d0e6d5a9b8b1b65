package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Medicine struct {
	Name         string `json:"name" binding:"required,max=200"`
	Dosage       string `json:"dosage" binding:"required,max=100"`
	Frequency    string `json:"frequency" binding:"required,max=100"`
	DurationDays int    `json:"duration_days" binding:"omitempty,min=1,max=365"`
	Instructions string `json:"instructions,omitempty" binding:"omitempty,max=500"`
}

// Medicines is stored as a jsonb array.
type Medicines []Medicine

func (m Medicines) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *Medicines) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Medicines{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Medicines", src)
	}
	return json.Unmarshal(data, m)
}

type Prescription struct {
	Base
	ConsultationID uuid.UUID  `json:"consultation_id" db:"consultation_id"`
	DoctorID       uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	PatientID      uuid.UUID  `json:"patient_id" db:"patient_id"`
	Medicines      Medicines  `json:"medicines" db:"medicines"`
	Instructions   string     `json:"instructions,omitempty" db:"instructions"`
	ValidUntil     *time.Time `json:"valid_until,omitempty" db:"valid_until"`
}

type CreatePrescriptionRequest struct {
	Medicines    []Medicine `json:"medicines" binding:"required,min=1,max=50,dive"`
	Instructions string     `json:"instructions" binding:"omitempty,max=2000"`
	ValidUntil   string     `json:"valid_until" binding:"omitempty,datetime=2006-01-02"`
}

type UpdatePrescriptionRequest struct {
	Medicines    []Medicine `json:"medicines" binding:"omitempty,min=1,max=50,dive"`
	Instructions *string    `json:"instructions" binding:"omitempty,max=2000"`
	ValidUntil   *string    `json:"valid_until" binding:"omitempty,datetime=2006-01-02"`
}

type PrescriptionFilter struct {
	ConsultationID *uuid.UUID
	DoctorID       *uuid.UUID
	PatientID      *uuid.UUID
}
