package auth

import (
	"strings"

	"github.com/lib/pq"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

func newDoctorProfile(req *model.DoctorProfileRequest) (*model.Doctor, error) {
	d := &model.Doctor{
		Specialization:    strings.TrimSpace(req.Specialization),
		LicenseNumber:     strings.TrimSpace(req.LicenseNumber),
		Qualification:     req.Qualification,
		ExperienceYears:   req.ExperienceYears,
		ConsultationFee:   req.ConsultationFee,
		Bio:               req.Bio,
		WorkingHoursStart: req.WorkingHoursStart,
		WorkingHoursEnd:   req.WorkingHoursEnd,
		SlotMinutes:       req.SlotMinutes,
		WorkingDays:       pq.StringArray(req.WorkingDays),
	}
	if d.WorkingHoursStart == "" {
		d.WorkingHoursStart = model.DefaultWorkingHoursStart
	}
	if d.WorkingHoursEnd == "" {
		d.WorkingHoursEnd = model.DefaultWorkingHoursEnd
	}
	if d.SlotMinutes == 0 {
		d.SlotMinutes = model.DefaultSlotMinutes
	}
	if len(d.WorkingDays) == 0 {
		d.WorkingDays = append(pq.StringArray(nil), model.DefaultWorkingDays...)
	}
	// zero-padded HH:MM compares correctly as a string
	if d.WorkingHoursStart >= d.WorkingHoursEnd {
		return nil, apperrors.Validation("working_hours_start must be before working_hours_end")
	}
	return d, nil
}

func newPatientProfile(req *model.PatientProfileRequest) (*model.Patient, error) {
	p := &model.Patient{
		Allergies:         pq.StringArray{},
		ChronicConditions: pq.StringArray{},
	}
	if req == nil {
		return p, nil
	}

	dob, err := shared.ParseDate(req.DateOfBirth, "date_of_birth")
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = dob
	p.Gender = req.Gender
	p.BloodGroup = req.BloodGroup
	p.Address = req.Address
	p.EmergencyContactName = req.EmergencyContactName
	p.EmergencyContactPhone = req.EmergencyContactPhone
	if req.Allergies != nil {
		p.Allergies = pq.StringArray(req.Allergies)
	}
	if req.ChronicConditions != nil {
		p.ChronicConditions = pq.StringArray(req.ChronicConditions)
	}
	return p, nil
}
