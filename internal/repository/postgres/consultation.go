package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const consultationColumns = `
	id, appointment_id, doctor_id, patient_id, symptoms, diagnosis, notes,
	follow_up_date, created_at, updated_at`

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(base BaseRepository) repository.ConsultationRepository {
	return &consultationRepository{base}
}

func (r *consultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, appointment_id, doctor_id, patient_id, symptoms, diagnosis,
			notes, follow_up_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		c.ID,
		c.AppointmentID,
		c.DoctorID,
		c.PatientID,
		c.Symptoms,
		c.Diagnosis,
		c.Notes,
		c.FollowUpDate,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return mapError(err, "create consultation")
}

func (r *consultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	if err := sqlx.GetContext(ctx, r.conn(ctx), &c, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "get consultation")
	}
	return &c, nil
}

func (r *consultationRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	if err := sqlx.GetContext(ctx, r.conn(ctx), &c, `SELECT `+consultationColumns+` FROM consultations WHERE appointment_id = $1`, appointmentID); err != nil {
		return nil, mapError(err, "get consultation by appointment")
	}
	return &c, nil
}

func (r *consultationRepository) Update(ctx context.Context, c *model.Consultation) error {
	query := `
		UPDATE consultations
		SET symptoms = $1, diagnosis = $2, notes = $3, follow_up_date = $4, updated_at = $5
		WHERE id = $6
	`
	c.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		c.Symptoms,
		c.Diagnosis,
		c.Notes,
		c.FollowUpDate,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return mapError(err, "update consultation")
	}
	return requireAffected(result)
}

func (r *consultationRepository) List(ctx context.Context, f model.ConsultationFilter) ([]*model.Consultation, int, error) {
	var w filter
	if f.DoctorID != nil {
		w.add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		w.add("patient_id = $%d", *f.PatientID)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, `SELECT COUNT(*) FROM consultations`+w.where(), w.args...); err != nil {
		return nil, 0, mapError(err, "count consultations")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	query := `SELECT ` + consultationColumns + ` FROM consultations` + w.where() + ` ORDER BY created_at DESC` + limit

	consultations := []*model.Consultation{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &consultations, query, args...); err != nil {
		return nil, 0, mapError(err, "list consultations")
	}
	return consultations, total, nil
}

func (r *consultationRepository) CountForDoctorSince(ctx context.Context, doctorID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.conn(ctx), &n,
		`SELECT COUNT(*) FROM consultations WHERE doctor_id = $1 AND created_at >= $2`, doctorID, since)
	if err != nil {
		return 0, mapError(err, "count consultations")
	}
	return n, nil
}
