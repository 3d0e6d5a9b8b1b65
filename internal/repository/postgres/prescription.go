package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const prescriptionColumns = `
	id, consultation_id, doctor_id, patient_id, medicines, instructions,
	valid_until, created_at, updated_at`

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, consultation_id, doctor_id, patient_id, medicines,
			instructions, valid_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.ConsultationID,
		p.DoctorID,
		p.PatientID,
		p.Medicines,
		p.Instructions,
		p.ValidUntil,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return mapError(err, "create prescription")
}

func (r *prescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	var p model.Prescription
	if err := sqlx.GetContext(ctx, r.conn(ctx), &p, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "get prescription")
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	query := `
		UPDATE prescriptions
		SET medicines = $1, instructions = $2, valid_until = $3, updated_at = $4
		WHERE id = $5
	`
	p.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query, p.Medicines, p.Instructions, p.ValidUntil, p.UpdatedAt, p.ID)
	if err != nil {
		return mapError(err, "update prescription")
	}
	return requireAffected(result)
}

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete prescription")
	}
	return requireAffected(result)
}

func (r *prescriptionRepository) List(ctx context.Context, f model.PrescriptionFilter) ([]*model.Prescription, error) {
	var w filter
	if f.ConsultationID != nil {
		w.add("consultation_id = $%d", *f.ConsultationID)
	}
	if f.DoctorID != nil {
		w.add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		w.add("patient_id = $%d", *f.PatientID)
	}

	prescriptions := []*model.Prescription{}
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions` + w.where() + ` ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &prescriptions, query, w.args...); err != nil {
		return nil, mapError(err, "list prescriptions")
	}
	return prescriptions, nil
}
