package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const appointmentColumns = `
	id, doctor_id, patient_id, start_time, end_time, status, reason, notes,
	cancel_reason, created_by, reminder_sent_at, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func statusArray(statuses []model.AppointmentStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, start_time, end_time, status,
			reason, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.CreatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	return mapError(err, "create appointment")
}

func (r *appointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.conn(ctx), &appointment, query, id); err != nil {
		return nil, mapError(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`

	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.conn(ctx), &appointment, query, id); err != nil {
		return nil, mapError(err, "lock appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, status = $3, reason = $4, notes = $5,
			cancel_reason = $6, reminder_sent_at = $7, updated_at = $8
		WHERE id = $9 AND status = $10
	`
	updatedAt := time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.CancelReason,
		appointment.ReminderSentAt,
		updatedAt,
		appointment.ID,
		expected,
	)
	if err != nil {
		return mapError(err, "update appointment")
	}
	if err := requireAffected(result); !errors.Is(err, repository.ErrNotFound) {
		if err == nil {
			appointment.UpdatedAt = updatedAt
		}
		return err
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.conn(ctx), &exists,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, appointment.ID); err != nil {
		return mapError(err, "check appointment")
	}
	if exists {
		return repository.ErrStale
	}
	return repository.ErrNotFound
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete appointment")
	}
	return requireAffected(result)
}

func (r *appointmentRepository) List(ctx context.Context, f model.AppointmentFilter) ([]*model.Appointment, int, error) {
	var w filter
	if f.DoctorID != nil {
		w.add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		w.add("patient_id = $%d", *f.PatientID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", statusArray(f.Statuses))
	}
	if f.From != nil {
		w.add("start_time >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("start_time < $%d", *f.To)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, `SELECT COUNT(*) FROM appointments`+w.where(), w.args...); err != nil {
		return nil, 0, mapError(err, "count appointments")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	query := `SELECT ` + appointmentColumns + ` FROM appointments` + w.where() + ` ORDER BY start_time` + limit

	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &appointments, query, args...); err != nil {
		return nil, 0, mapError(err, "list appointments")
	}
	return appointments, total, nil
}

func (r *appointmentRepository) FindConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
			AND status = ANY($2)
			AND start_time < $3
			AND end_time > $4
	`
	args := []interface{}{doctorID, statusArray(model.ActiveAppointmentStatuses), end, start}
	if excludeID != nil {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, *excludeID)
	}
	query += " ORDER BY start_time LIMIT 1"

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.conn(ctx), &appointment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find conflicting appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &appointments, query, doctorID, from, to); err != nil {
		return nil, mapError(err, "list doctor appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status IN ('SCHEDULED', 'CONFIRMED')
			AND reminder_sent_at IS NULL
			AND start_time >= $1
			AND start_time < $2
		ORDER BY start_time
		LIMIT $3
	`
	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &appointments, query, from, to, limit); err != nil {
		return nil, mapError(err, "list appointments due for reminder")
	}
	return appointments, nil
}

func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE appointments SET reminder_sent_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
	if err != nil {
		return mapError(err, "mark reminder sent")
	}
	return requireAffected(result)
}

func (r *appointmentRepository) MarkNoShows(ctx context.Context, cutoff time.Time) ([]*model.StatusChange, error) {
	query := `
		WITH due AS (
			SELECT id, status
			FROM appointments
			WHERE status IN ('SCHEDULED', 'CONFIRMED') AND end_time < $1
			FOR UPDATE
		)
		UPDATE appointments a
		SET status = 'NO_SHOW', updated_at = NOW()
		FROM due
		WHERE a.id = due.id
		RETURNING a.id, a.doctor_id, a.patient_id, a.start_time, a.end_time, a.status,
			a.reason, a.notes, a.cancel_reason, a.created_by, a.reminder_sent_at,
			a.created_at, a.updated_at, due.status AS previous_status`

	changes := []*model.StatusChange{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &changes, query, cutoff); err != nil {
		return nil, mapError(err, "mark no-shows")
	}
	return changes, nil
}

func (r *appointmentRepository) CountByStatusBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[model.AppointmentStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM appointments
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3
		GROUP BY status
	`
	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &rows, query, doctorID, from, to); err != nil {
		return nil, mapError(err, "count appointments by status")
	}

	counts := make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *appointmentRepository) DoctorPatientSummaries(ctx context.Context, doctorID uuid.UUID, limit int) ([]*model.PatientVisitSummary, error) {
	query := `
		SELECT patient_id, COUNT(*) AS appointment_count, MAX(start_time) AS last_visit
		FROM appointments
		WHERE doctor_id = $1 AND status <> 'CANCELLED'
		GROUP BY patient_id
		ORDER BY last_visit DESC
	`
	args := []interface{}{doctorID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	summaries := []*model.PatientVisitSummary{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &summaries, query, args...); err != nil {
		return nil, mapError(err, "summarise doctor patients")
	}
	return summaries, nil
}

func (r *appointmentRepository) CountDistinctPatients(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.conn(ctx), &n,
		`SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1 AND status <> 'CANCELLED'`, doctorID)
	if err != nil {
		return 0, mapError(err, "count doctor patients")
	}
	return n, nil
}
