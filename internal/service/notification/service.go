package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/pkg/mailer"
)

const timeLayout = "Mon, 02 Jan 2006 15:04 MST"

// Service emails appointment participants.
type Service struct {
	mailer   mailer.Mailer
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	practice string
	loc      *time.Location
}

func NewService(m mailer.Mailer, doctors repository.DoctorRepository, patients repository.PatientRepository, practice string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		mailer:   m,
		doctors:  doctors,
		patients: patients,
		practice: practice,
		loc:      loc,
	}
}

type participants struct {
	doctor  *model.Doctor
	patient *model.Patient
}

func (s *Service) load(ctx context.Context, apt *model.Appointment) (*participants, error) {
	doctor, err := s.doctors.GetByID(ctx, apt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	patient, err := s.patients.GetByID(ctx, apt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return &participants{doctor: doctor, patient: patient}, nil
}

func (s *Service) AppointmentBooked(ctx context.Context, apt *model.Appointment) error {
	p, err := s.load(ctx, apt)
	if err != nil {
		return err
	}
	when := apt.StartTime.In(s.loc).Format(timeLayout)

	if err := s.send(ctx, p.patient.Email, "Appointment booked",
		fmt.Sprintf("Dear %s,\n\nyour appointment with %s is booked for %s.\n",
			p.patient.FullName(), p.doctor.FullName(), when)); err != nil {
		return err
	}
	return s.send(ctx, p.doctor.Email, "New appointment",
		fmt.Sprintf("%s booked an appointment for %s.\nReason: %s\n",
			p.patient.FullName(), when, orDash(apt.Reason)))
}

func (s *Service) AppointmentCancelled(ctx context.Context, apt *model.Appointment) error {
	p, err := s.load(ctx, apt)
	if err != nil {
		return err
	}
	when := apt.StartTime.In(s.loc).Format(timeLayout)
	reason := ""
	if apt.CancelReason != nil {
		reason = *apt.CancelReason
	}
	body := fmt.Sprintf("The appointment between %s and %s on %s has been cancelled.\nReason: %s\n",
		p.patient.FullName(), p.doctor.FullName(), when, orDash(reason))

	if err := s.send(ctx, p.patient.Email, "Appointment cancelled", body); err != nil {
		return err
	}
	return s.send(ctx, p.doctor.Email, "Appointment cancelled", body)
}

func (s *Service) AppointmentRescheduled(ctx context.Context, apt *model.Appointment) error {
	p, err := s.load(ctx, apt)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("The appointment between %s and %s has moved to %s.\n",
		p.patient.FullName(), p.doctor.FullName(), apt.StartTime.In(s.loc).Format(timeLayout))

	if err := s.send(ctx, p.patient.Email, "Appointment rescheduled", body); err != nil {
		return err
	}
	return s.send(ctx, p.doctor.Email, "Appointment rescheduled", body)
}

// AppointmentReminder is sent to the patient only.
func (s *Service) AppointmentReminder(ctx context.Context, apt *model.Appointment) error {
	p, err := s.load(ctx, apt)
	if err != nil {
		return err
	}
	return s.send(ctx, p.patient.Email, "Appointment reminder",
		fmt.Sprintf("Dear %s,\n\nthis is a reminder of your appointment with %s on %s.\n",
			p.patient.FullName(), p.doctor.FullName(), apt.StartTime.In(s.loc).Format(timeLayout)))
}

func (s *Service) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return nil
	}
	if s.practice != "" {
		subject = s.practice + ": " + subject
		body += "\n" + s.practice + "\n"
	}
	return s.mailer.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	})
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
