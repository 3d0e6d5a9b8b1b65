// Package memory is a map-backed implementation of the repository
// interfaces used by service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]model.User
	doctors       map[uuid.UUID]model.Doctor
	patients      map[uuid.UUID]model.Patient
	appointments  map[uuid.UUID]model.Appointment
	consultations map[uuid.UUID]model.Consultation
	prescriptions map[uuid.UUID]model.Prescription
	vitals        map[uuid.UUID]model.Vitals
	audit         []model.AuditLog
	outbox        []model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]model.User),
		doctors:       make(map[uuid.UUID]model.Doctor),
		patients:      make(map[uuid.UUID]model.Patient),
		appointments:  make(map[uuid.UUID]model.Appointment),
		consultations: make(map[uuid.UUID]model.Consultation),
		prescriptions: make(map[uuid.UUID]model.Prescription),
		vitals:        make(map[uuid.UUID]model.Vitals),
	}
}

// WithinTx runs fn directly; the store has no rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Users() repository.UserRepository                 { return &users{s} }
func (s *Store) Doctors() repository.DoctorRepository             { return &doctors{s} }
func (s *Store) Patients() repository.PatientRepository           { return &patients{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return &appointments{s} }
func (s *Store) Consultations() repository.ConsultationRepository { return &consultations{s} }
func (s *Store) Prescriptions() repository.PrescriptionRepository { return &prescriptions{s} }
func (s *Store) Vitals() repository.VitalsRepository              { return &vitals{s} }
func (s *Store) Audit() repository.AuditRepository                { return &audit{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return &outbox{s} }

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:            s,
		Users:         s.Users(),
		Doctors:       s.Doctors(),
		Patients:      s.Patients(),
		Appointments:  s.Appointments(),
		Consultations: s.Consultations(),
		Prescriptions: s.Prescriptions(),
		Vitals:        s.Vitals(),
		Audit:         s.Audit(),
		Outbox:        s.Outbox(),
	}
}

// AuditLogs returns a snapshot of recorded audit entries.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditLog(nil), s.audit...)
}

// OutboxEvents returns a snapshot of written outbox events.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

func paginate[T any](items []T, p model.Pagination) []T {
	offset, limit := p.Offset(), p.Limit()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

func stamp(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
}

// users

type users struct{ s *Store }

func (r *users) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email && existing.DeletedAt == nil {
			return repository.ErrConflict
		}
	}
	stamp(&u.Base)
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *users) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r *users) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.FirstName, existing.LastName, existing.Phone, existing.Status = u.FirstName, u.LastName, u.Phone, u.Status
	existing.UpdatedAt = time.Now()
	r.s.users[u.ID] = existing
	return nil
}

func (r *users) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	r.s.users[id] = u
	return nil
}

func (r *users) RecordLoginFailure(_ context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	u.FailedLoginAttempts++
	locked := u.FailedLoginAttempts >= maxAttempts
	if locked {
		u.FailedLoginAttempts = 0
		u.LockedUntil = &lockUntil
	}
	r.s.users[id] = u
	return locked, nil
}

func (r *users) RecordLoginSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	r.s.users[id] = u
	return nil
}

func (r *users) List(_ context.Context, f model.UserFilter) ([]*model.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.User
	for _, u := range r.s.users {
		u := u
		if u.DeletedAt != nil || (f.Role != "" && u.Role != f.Role) || (f.Status != "" && u.Status != f.Status) {
			continue
		}
		if f.Search != "" && !contains(u.FirstName+" "+u.LastName+" "+u.Email, f.Search) {
			continue
		}
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Pagination), len(out), nil
}

// doctors

type doctors struct{ s *Store }

func (r *doctors) join(d model.Doctor) *model.Doctor {
	if u, ok := r.s.users[d.UserID]; ok {
		d.FirstName, d.LastName, d.Email = u.FirstName, u.LastName, u.Email
	}
	return &d
}

func (r *doctors) Create(_ context.Context, d *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.doctors {
		if existing.UserID == d.UserID || existing.LicenseNumber == d.LicenseNumber {
			return repository.ErrConflict
		}
	}
	stamp(&d.Base)
	r.s.doctors[d.ID] = *d
	return nil
}

func (r *doctors) GetByID(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.join(d), nil
}

func (r *doctors) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.doctors {
		if d.UserID == userID {
			return r.join(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *doctors) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Doctor{}
	for _, id := range ids {
		if d, ok := r.s.doctors[id]; ok {
			out = append(out, r.join(d))
		}
	}
	return out, nil
}

func (r *doctors) Update(_ context.Context, d *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.doctors[d.ID]; !ok {
		return repository.ErrNotFound
	}
	d.UpdatedAt = time.Now()
	r.s.doctors[d.ID] = *d
	return nil
}

func (r *doctors) List(_ context.Context, f model.DoctorFilter) ([]*model.Doctor, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Doctor
	for _, d := range r.s.doctors {
		j := r.join(d)
		if f.Specialization != "" && !contains(j.Specialization, f.Specialization) {
			continue
		}
		if f.Search != "" && !contains(j.FirstName+" "+j.LastName+" "+j.Specialization, f.Search) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return paginate(out, f.Pagination), len(out), nil
}

func (r *doctors) LockForBooking(_ context.Context, id uuid.UUID) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if _, ok := r.s.doctors[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

// patients

type patients struct{ s *Store }

func (r *patients) join(p model.Patient) *model.Patient {
	if u, ok := r.s.users[p.UserID]; ok {
		p.FirstName, p.LastName, p.Email, p.Phone = u.FirstName, u.LastName, u.Email, u.Phone
	}
	return &p
}

func (r *patients) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.patients {
		if existing.UserID == p.UserID {
			return repository.ErrConflict
		}
	}
	stamp(&p.Base)
	r.s.patients[p.ID] = *p
	return nil
}

func (r *patients) GetByID(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.join(p), nil
}

func (r *patients) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.patients {
		if p.UserID == userID {
			return r.join(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patients) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Patient{}
	for _, id := range ids {
		if p, ok := r.s.patients[id]; ok {
			out = append(out, r.join(p))
		}
	}
	return out, nil
}

func (r *patients) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	r.s.patients[p.ID] = *p
	return nil
}

func (r *patients) List(_ context.Context, f model.PatientFilter) ([]*model.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Patient
	for _, p := range r.s.patients {
		j := r.join(p)
		if f.Search != "" && !contains(j.FirstName+" "+j.LastName+" "+j.Email+" "+j.Phone, f.Search) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return paginate(out, f.Pagination), len(out), nil
}

// appointments

type appointments struct{ s *Store }

func (r *appointments) Create(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&a.Base)
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *appointments) GetByID(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *appointments) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.GetByID(ctx, id)
}

func (r *appointments) Update(_ context.Context, a *model.Appointment, expected model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.appointments[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected {
		return repository.ErrStale
	}
	a.UpdatedAt = time.Now()
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *appointments) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointments) sorted(keep func(a model.Appointment) bool) []*model.Appointment {
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		a := a
		if keep(a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *appointments) List(_ context.Context, f model.AppointmentFilter) ([]*model.Appointment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.sorted(func(a model.Appointment) bool {
		switch {
		case f.DoctorID != nil && a.DoctorID != *f.DoctorID,
			f.PatientID != nil && a.PatientID != *f.PatientID,
			f.Status != "" && a.Status != f.Status,
			f.From != nil && a.StartTime.Before(*f.From),
			f.To != nil && !a.StartTime.Before(*f.To):
			return false
		}
		if len(f.Statuses) > 0 {
			for _, s := range f.Statuses {
				if a.Status == s {
					return true
				}
			}
			return false
		}
		return true
	})
	return paginate(out, f.Pagination), len(out), nil
}

func (r *appointments) FindConflict(_ context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.sorted(func(a model.Appointment) bool {
		if excludeID != nil && a.ID == *excludeID {
			return false
		}
		return a.DoctorID == doctorID && a.Status.IsActive() && a.OverlapsWith(start, end)
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *appointments) ListForDoctorBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(func(a model.Appointment) bool {
		return a.DoctorID == doctorID && a.OverlapsWith(from, to)
	}), nil
}

func (r *appointments) ListDueForReminder(_ context.Context, from, to time.Time, limit int) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.sorted(func(a model.Appointment) bool {
		return (a.Status == model.AppointmentStatusScheduled || a.Status == model.AppointmentStatusConfirmed) &&
			a.ReminderSentAt == nil && !a.StartTime.Before(from) && a.StartTime.Before(to)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *appointments) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ReminderSentAt = &at
	r.s.appointments[id] = a
	return nil
}

func (r *appointments) MarkNoShows(_ context.Context, cutoff time.Time) ([]*model.StatusChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	due := r.sorted(func(a model.Appointment) bool {
		return (a.Status == model.AppointmentStatusScheduled || a.Status == model.AppointmentStatusConfirmed) &&
			a.EndTime.Before(cutoff)
	})
	out := make([]*model.StatusChange, 0, len(due))
	for _, a := range due {
		change := &model.StatusChange{Appointment: *a, PreviousStatus: a.Status}
		change.Status = model.AppointmentStatusNoShow
		change.UpdatedAt = time.Now()
		r.s.appointments[a.ID] = change.Appointment
		out = append(out, change)
	}
	return out, nil
}

func (r *appointments) CountByStatusBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) (map[model.AppointmentStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[model.AppointmentStatus]int)
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (r *appointments) DoctorPatientSummaries(_ context.Context, doctorID uuid.UUID, limit int) ([]*model.PatientVisitSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byPatient := make(map[uuid.UUID]*model.PatientVisitSummary)
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		s, ok := byPatient[a.PatientID]
		if !ok {
			s = &model.PatientVisitSummary{PatientID: a.PatientID}
			byPatient[a.PatientID] = s
		}
		s.AppointmentCount++
		if s.LastVisit == nil || a.StartTime.After(*s.LastVisit) {
			start := a.StartTime
			s.LastVisit = &start
		}
	}
	out := make([]*model.PatientVisitSummary, 0, len(byPatient))
	for _, s := range byPatient {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastVisit.After(*out[j].LastVisit) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *appointments) CountDistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error) {
	summaries, err := r.DoctorPatientSummaries(ctx, doctorID, 0)
	return len(summaries), err
}

// consultations

type consultations struct{ s *Store }

func (r *consultations) Create(_ context.Context, c *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.consultations {
		if existing.AppointmentID == c.AppointmentID {
			return repository.ErrConflict
		}
	}
	stamp(&c.Base)
	r.s.consultations[c.ID] = *c
	return nil
}

func (r *consultations) GetByID(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.consultations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *consultations) GetByAppointmentID(_ context.Context, appointmentID uuid.UUID) (*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.consultations {
		if c.AppointmentID == appointmentID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *consultations) Update(_ context.Context, c *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.consultations[c.ID]; !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	r.s.consultations[c.ID] = *c
	return nil
}

func (r *consultations) List(_ context.Context, f model.ConsultationFilter) ([]*model.Consultation, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.Consultation
	for _, c := range r.s.consultations {
		c := c
		if (f.DoctorID != nil && c.DoctorID != *f.DoctorID) || (f.PatientID != nil && c.PatientID != *f.PatientID) {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Pagination), len(out), nil
}

func (r *consultations) CountForDoctorSince(_ context.Context, doctorID uuid.UUID, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, c := range r.s.consultations {
		if c.DoctorID == doctorID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// prescriptions

type prescriptions struct{ s *Store }

func (r *prescriptions) Create(_ context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&p.Base)
	r.s.prescriptions[p.ID] = *p
	return nil
}

func (r *prescriptions) GetByID(_ context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.prescriptions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *prescriptions) Update(_ context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.prescriptions[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	r.s.prescriptions[p.ID] = *p
	return nil
}

func (r *prescriptions) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.prescriptions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.prescriptions, id)
	return nil
}

func (r *prescriptions) List(_ context.Context, f model.PrescriptionFilter) ([]*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Prescription{}
	for _, p := range r.s.prescriptions {
		p := p
		if (f.ConsultationID != nil && p.ConsultationID != *f.ConsultationID) ||
			(f.DoctorID != nil && p.DoctorID != *f.DoctorID) ||
			(f.PatientID != nil && p.PatientID != *f.PatientID) {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// vitals

type vitals struct{ s *Store }

func (r *vitals) Create(_ context.Context, v *model.Vitals) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	r.s.vitals[v.ID] = *v
	return nil
}

func (r *vitals) GetByID(_ context.Context, id uuid.UUID) (*model.Vitals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vitals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *vitals) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.vitals[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.vitals, id)
	return nil
}

func (r *vitals) List(_ context.Context, f model.VitalsFilter) ([]*model.Vitals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Vitals{}
	for _, v := range r.s.vitals {
		v := v
		if v.PatientID != f.PatientID ||
			(f.From != nil && v.RecordedAt.Before(*f.From)) ||
			(f.To != nil && v.RecordedAt.After(*f.To)) {
			continue
		}
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *vitals) Latest(ctx context.Context, patientID uuid.UUID) (*model.Vitals, error) {
	list, _ := r.List(ctx, model.VitalsFilter{PatientID: patientID, Limit: 1})
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return list[0], nil
}

// audit

type audit struct{ s *Store }

func (r *audit) Create(_ context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	r.s.audit = append(r.s.audit, *log)
	return nil
}

func (r *audit) List(_ context.Context, f model.AuditFilter) ([]*model.AuditLog, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.AuditLog
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		l := r.s.audit[i]
		if (f.EntityType != "" && l.EntityType != f.EntityType) ||
			(f.UserID != nil && (l.UserID == nil || *l.UserID != *f.UserID)) ||
			(f.EntityID != nil && (l.EntityID == nil || *l.EntityID != *f.EntityID)) {
			continue
		}
		out = append(out, &l)
	}
	return paginate(out, f.Pagination), len(out), nil
}

func (r *audit) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.audit[:0]
	var removed int64
	for _, l := range r.s.audit {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audit = kept
	return removed, nil
}

// outbox

type outbox struct{ s *Store }

func (r *outbox) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = uuid.New()
	e.Status = model.OutboxStatusPending
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	r.s.outbox = append(r.s.outbox, *e)
	return nil
}

func (r *outbox) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		if r.s.outbox[i].ID == id {
			fn(&r.s.outbox[i])
			r.s.outbox[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *outbox) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	out := []*model.OutboxEvent{}
	for i := range r.s.outbox {
		e := &r.s.outbox[i]
		if len(out) == limit {
			break
		}
		if e.Status != model.OutboxStatusPending || (e.RetryAt != nil && e.RetryAt.After(now)) {
			continue
		}
		e.Status = model.OutboxStatusProcessing
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outbox) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
	})
}

func (r *outbox) MarkRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusPending
		e.ErrorMessage = &errMsg
		e.RetryCount++
		e.RetryAt = &retryAt
	})
}

func (r *outbox) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
	})
}

func (r *outbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.outbox[:0]
	var removed int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return removed, nil
}

var (
	_ repository.Transactor = (*Store)(nil)
)
