package doctor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type Service struct {
	tx           repository.Transactor
	doctors      repository.DoctorRepository
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	cache        *cache.Cache
	auditor      *audit.Service
	loc          *time.Location
	now          func() time.Time
}

// NewService builds the doctor catalogue. Profiles are cached for ttl.
func NewService(
	tx repository.Transactor,
	doctors repository.DoctorRepository,
	users repository.UserRepository,
	appointments repository.AppointmentRepository,
	auditor *audit.Service,
	ttl, cleanup time.Duration,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx:           tx,
		doctors:      doctors,
		users:        users,
		appointments: appointments,
		cache:        cache.New(ttl, cleanup),
		auditor:      auditor,
		loc:          loc,
		now:          time.Now,
	}
}

func (s *Service) List(ctx context.Context, filter model.DoctorFilter) ([]*model.Doctor, int, error) {
	doctors, total, err := s.doctors.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("doctor", err)
	}
	return doctors, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		d := *cached.(*model.Doctor)
		return &d, nil
	}

	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("doctor", err)
	}
	stored := *d
	s.cache.SetDefault(id.String(), &stored)
	return d, nil
}

func (s *Service) GetMine(ctx context.Context, actor model.Actor) (*model.Doctor, error) {
	d, err := s.doctors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, shared.RepoError("doctor profile", err)
	}
	return d, nil
}

func (s *Service) UpdateMine(ctx context.Context, actor model.Actor, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	d, err := s.GetMine(ctx, actor)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, shared.RepoError("user", err)
	}

	applyUserFields(u, req.FirstName, req.LastName, req.Phone)
	if req.Specialization != nil {
		d.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Qualification != nil {
		d.Qualification = *req.Qualification
	}
	if req.ExperienceYears != nil {
		d.ExperienceYears = *req.ExperienceYears
	}
	if req.ConsultationFee != nil {
		d.ConsultationFee = *req.ConsultationFee
	}
	if req.Bio != nil {
		d.Bio = *req.Bio
	}
	if req.WorkingHoursStart != nil {
		d.WorkingHoursStart = *req.WorkingHoursStart
	}
	if req.WorkingHoursEnd != nil {
		d.WorkingHoursEnd = *req.WorkingHoursEnd
	}
	if req.SlotMinutes != nil {
		d.SlotMinutes = *req.SlotMinutes
	}
	if req.WorkingDays != nil {
		d.WorkingDays = pq.StringArray(req.WorkingDays)
	}
	if d.WorkingHoursStart >= d.WorkingHoursEnd {
		return nil, apperrors.Validation("working_hours_start must be before working_hours_end")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return shared.RepoError("user", err)
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return shared.RepoError("doctor", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(d.ID.String())
	d.FirstName, d.LastName, d.Email = u.FirstName, u.LastName, u.Email
	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityDoctor, d.ID, nil)
	return d, nil
}

// Availability lists the free slots of a doctor on date (YYYY-MM-DD, in the
// practice timezone). Slots already started are omitted.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string) (*model.Availability, error) {
	day, err := time.ParseInLocation(shared.DateLayout, date, s.loc)
	if err != nil {
		return nil, apperrors.Validation("date must be in YYYY-MM-DD format")
	}

	d, err := s.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	result := &model.Availability{DoctorID: d.ID, Date: date, Slots: []model.AvailabilitySlot{}}
	if !d.WorksOn(day.Weekday()) {
		return result, nil
	}

	shiftStart, shiftEnd, err := d.ShiftOn(day, s.loc)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	booked, err := s.appointments.ListForDoctorBetween(ctx, d.ID, shiftStart, shiftEnd)
	if err != nil {
		return nil, shared.RepoError("appointment", err)
	}

	now := s.now()
	step := d.SlotDuration()
	for start := shiftStart; !start.Add(step).After(shiftEnd); start = start.Add(step) {
		end := start.Add(step)
		if start.Before(now) || overlapsActive(booked, start, end) {
			continue
		}
		result.Slots = append(result.Slots, model.AvailabilitySlot{Start: start, End: end})
	}
	return result, nil
}

func overlapsActive(booked []*model.Appointment, start, end time.Time) bool {
	for _, a := range booked {
		if a.Status.IsActive() && a.OverlapsWith(start, end) {
			return true
		}
	}
	return false
}

func applyUserFields(u *model.User, first, last, phone *string) {
	if first != nil {
		u.FirstName = strings.TrimSpace(*first)
	}
	if last != nil {
		u.LastName = strings.TrimSpace(*last)
	}
	if phone != nil {
		u.Phone = strings.TrimSpace(*phone)
	}
}
