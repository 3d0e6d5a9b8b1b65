package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/dashboard"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

const (
	appointmentsSheet = "Appointments"
	maxRange          = 366 * 24 * time.Hour
	timeLayout        = "2006-01-02 15:04"
)

var appointmentHeaders = []string{
	"Date", "Start", "End", "Status", "Patient", "Patient Email", "Reason", "Cancel Reason",
}

type Service struct {
	appointments repository.AppointmentRepository
	viewer       dashboard.AppointmentViewer
	auditor      *audit.Service
	loc          *time.Location
}

func NewService(appointments repository.AppointmentRepository, viewer dashboard.AppointmentViewer, auditor *audit.Service, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{appointments: appointments, viewer: viewer, auditor: auditor, loc: loc}
}

// Appointments writes an XLSX workbook with one row per appointment of the
// doctor overlapping [from, to). Doctors export their own schedule; admins
// name the doctor.
func (s *Service) Appointments(ctx context.Context, actor model.Actor, doctorID uuid.UUID, from, to time.Time, w io.Writer) (int, error) {
	switch actor.Role {
	case model.RoleDoctor:
		doctorID = actor.ProfileID
	case model.RoleAdmin:
		if doctorID == uuid.Nil {
			return 0, apperrors.Validation("doctor_id is required")
		}
	default:
		return 0, apperrors.Forbidden("only doctors and admins may export appointments")
	}
	if !to.After(from) {
		return 0, apperrors.Validation("to must be after from")
	}
	if to.Sub(from) > maxRange {
		return 0, apperrors.Validation("export range cannot exceed one year")
	}

	apts, err := s.appointments.ListForDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return 0, shared.RepoError("appointment", err)
	}
	views, err := s.viewer.Views(ctx, apts)
	if err != nil {
		return 0, err
	}

	file := s.workbook(views)
	if err := file.Write(w); err != nil {
		return 0, apperrors.Internal(fmt.Errorf("write workbook: %w", err))
	}

	s.auditor.Log(ctx, actor, model.AuditActionExport, model.AuditEntityAppointment, uuid.Nil, model.JSONMap{
		"doctor_id": doctorID,
		"from":      from.Format(time.RFC3339),
		"to":        to.Format(time.RFC3339),
		"rows":      len(views),
	})
	return len(views), nil
}

func (s *Service) workbook(views []*model.AppointmentView) *excelize.File {
	file := excelize.NewFile()
	index := file.NewSheet(appointmentsSheet)
	file.DeleteSheet("Sheet1")
	file.SetActiveSheet(index)

	for i, h := range appointmentHeaders {
		file.SetCellValue(appointmentsSheet, cell(i, 1), h)
	}
	for i, v := range views {
		row := i + 2
		start, end := v.StartTime.In(s.loc), v.EndTime.In(s.loc)
		values := []interface{}{
			start.Format(shared.DateLayout),
			start.Format(timeLayout),
			end.Format(timeLayout),
			string(v.Status),
			"",
			"",
			v.Reason,
			"",
		}
		if v.Patient != nil {
			values[4] = v.Patient.FirstName + " " + v.Patient.LastName
			values[5] = v.Patient.Email
		}
		if v.CancelReason != nil {
			values[7] = *v.CancelReason
		}
		for col, value := range values {
			file.SetCellValue(appointmentsSheet, cell(col, row), value)
		}
	}
	return file
}

// cell returns the A1 reference for a zero-based column and one-based row.
func cell(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
