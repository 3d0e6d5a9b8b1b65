package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const doctorSelect = `
	SELECT d.id, d.user_id, d.specialization, d.license_number, d.qualification,
		d.experience_years, d.consultation_fee, d.bio, d.working_hours_start,
		d.working_hours_end, d.slot_minutes, d.working_days, d.created_at, d.updated_at,
		u.first_name, u.last_name, u.email
	FROM doctors d
	JOIN users u ON u.id = d.user_id`

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, user_id, specialization, license_number, qualification,
			experience_years, consultation_fee, bio, working_hours_start,
			working_hours_end, slot_minutes, working_days, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		doctor.ID,
		doctor.UserID,
		doctor.Specialization,
		doctor.LicenseNumber,
		doctor.Qualification,
		doctor.ExperienceYears,
		doctor.ConsultationFee,
		doctor.Bio,
		doctor.WorkingHoursStart,
		doctor.WorkingHoursEnd,
		doctor.SlotMinutes,
		doctor.WorkingDays,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	return mapError(err, "create doctor")
}

func (r *doctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := sqlx.GetContext(ctx, r.conn(ctx), &doctor, doctorSelect+` WHERE d.id = $1 AND u.deleted_at IS NULL`, id); err != nil {
		return nil, mapError(err, "get doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := sqlx.GetContext(ctx, r.conn(ctx), &doctor, doctorSelect+` WHERE d.user_id = $1 AND u.deleted_at IS NULL`, userID); err != nil {
		return nil, mapError(err, "get doctor by user")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Doctor, error) {
	if len(ids) == 0 {
		return []*model.Doctor{}, nil
	}
	doctors := []*model.Doctor{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &doctors, doctorSelect+` WHERE d.id = ANY($1::uuid[])`, uuidArray(ids)); err != nil {
		return nil, mapError(err, "get doctors")
	}
	return doctors, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET specialization = $1, qualification = $2, experience_years = $3,
			consultation_fee = $4, bio = $5, working_hours_start = $6,
			working_hours_end = $7, slot_minutes = $8, working_days = $9, updated_at = $10
		WHERE id = $11
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		doctor.Specialization,
		doctor.Qualification,
		doctor.ExperienceYears,
		doctor.ConsultationFee,
		doctor.Bio,
		doctor.WorkingHoursStart,
		doctor.WorkingHoursEnd,
		doctor.SlotMinutes,
		doctor.WorkingDays,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return mapError(err, "update doctor")
	}
	return requireAffected(result)
}

func (r *doctorRepository) List(ctx context.Context, f model.DoctorFilter) ([]*model.Doctor, int, error) {
	var w filter
	w.raw("u.deleted_at IS NULL")
	w.raw("u.status = 'active'")
	if f.Specialization != "" {
		w.add("d.specialization ILIKE $%d", likePattern(f.Specialization))
	}
	if f.Search != "" {
		w.add("(u.first_name ILIKE $%[1]d OR u.last_name ILIKE $%[1]d OR d.specialization ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id` + w.where()
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, countQuery, w.args...); err != nil {
		return nil, 0, mapError(err, "count doctors")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	doctors := []*model.Doctor{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &doctors, doctorSelect+w.where()+` ORDER BY u.last_name, u.first_name`+limit, args...); err != nil {
		return nil, 0, mapError(err, "list doctors")
	}
	return doctors, total, nil
}

func (r *doctorRepository) LockForBooking(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := sqlx.GetContext(ctx, r.conn(ctx), &locked, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, id)
	return mapError(err, "lock doctor")
}
