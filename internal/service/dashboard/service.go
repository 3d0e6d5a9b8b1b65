package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

const (
	upcomingWindow = 7 * 24 * time.Hour
	upcomingLimit  = 10
	recentLimit    = 5
)

// AppointmentViewer joins display data onto appointments.
type AppointmentViewer interface {
	Views(ctx context.Context, apts []*model.Appointment) ([]*model.AppointmentView, error)
}

type Service struct {
	appointments  repository.AppointmentRepository
	consultations repository.ConsultationRepository
	patients      repository.PatientRepository
	viewer        AppointmentViewer
	loc           *time.Location
	now           func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	consultations repository.ConsultationRepository,
	patients repository.PatientRepository,
	viewer AppointmentViewer,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		appointments:  appointments,
		consultations: consultations,
		patients:      patients,
		viewer:        viewer,
		loc:           loc,
		now:           time.Now,
	}
}

// Get assembles the calling doctor's dashboard. Day and month boundaries
// follow the practice time zone.
func (s *Service) Get(ctx context.Context, actor model.Actor) (*model.DoctorDashboard, error) {
	if !actor.Is(model.RoleDoctor) {
		return nil, apperrors.Forbidden("dashboard is available to doctors only")
	}
	doctorID := actor.ProfileID
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	byStatus, err := s.appointments.CountByStatusBetween(ctx, doctorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}

	from, to := now, now.Add(upcomingWindow)
	upcoming, _, err := s.appointments.List(ctx, model.AppointmentFilter{
		Pagination: model.Pagination{Page: 1, PageSize: upcomingLimit},
		DoctorID:   &doctorID,
		From:       &from,
		To:         &to,
		Statuses:   model.ActiveAppointmentStatuses,
	})
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}
	views, err := s.viewer.Views(ctx, upcoming)
	if err != nil {
		return nil, err
	}

	totalPatients, err := s.appointments.CountDistinctPatients(ctx, doctorID)
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}
	consultations, err := s.consultations.CountForDoctorSince(ctx, doctorID, monthStart)
	if err != nil {
		return nil, shared.RepoError("consultation", err)
	}
	recent, err := s.doctorPatients(ctx, doctorID, recentLimit)
	if err != nil {
		return nil, err
	}

	return &model.DoctorDashboard{
		DoctorID:               doctorID,
		Date:                   dayStart.Format(shared.DateLayout),
		TodayByStatus:          byStatus,
		TodayTotal:             total,
		Upcoming:               views,
		TotalPatients:          totalPatients,
		ConsultationsThisMonth: consultations,
		RecentPatients:         recent,
	}, nil
}

// MyPatients lists every patient the calling doctor has seen, most recent
// visit first.
func (s *Service) MyPatients(ctx context.Context, actor model.Actor) ([]*model.DoctorPatient, error) {
	if !actor.Is(model.RoleDoctor) {
		return nil, apperrors.Forbidden("patient list is available to doctors only")
	}
	return s.doctorPatients(ctx, actor.ProfileID, 0)
}

func (s *Service) doctorPatients(ctx context.Context, doctorID uuid.UUID, limit int) ([]*model.DoctorPatient, error) {
	summaries, err := s.appointments.DoctorPatientSummaries(ctx, doctorID, limit)
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}
	if len(summaries) == 0 {
		return []*model.DoctorPatient{}, nil
	}

	ids := make([]uuid.UUID, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.PatientID
	}
	patients, err := s.patients.GetByIDs(ctx, ids)
	if err != nil {
		return nil, shared.RepoError("patient", err)
	}
	byID := make(map[uuid.UUID]*model.Patient, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}

	now := s.now()
	out := make([]*model.DoctorPatient, 0, len(summaries))
	for _, sum := range summaries {
		dp := &model.DoctorPatient{
			PatientID:        sum.PatientID,
			AppointmentCount: sum.AppointmentCount,
			LastVisit:        sum.LastVisit,
		}
		if p, ok := byID[sum.PatientID]; ok {
			dp.FirstName, dp.LastName, dp.Email, dp.Phone = p.FirstName, p.LastName, p.Email, p.Phone
			dp.Gender = p.Gender
			if age := p.Age(now); age >= 0 {
				dp.Age = &age
			}
		}
		out = append(out, dp)
	}
	return out, nil
}
