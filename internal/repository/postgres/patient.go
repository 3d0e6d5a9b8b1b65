package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const patientSelect = `
	SELECT p.id, p.user_id, p.date_of_birth, p.gender, p.blood_group, p.address,
		p.emergency_contact_name, p.emergency_contact_phone, p.allergies,
		p.chronic_conditions, p.created_at, p.updated_at,
		u.first_name, u.last_name, u.email, u.phone
	FROM patients p
	JOIN users u ON u.id = p.user_id`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, date_of_birth, gender, blood_group, address,
			emergency_contact_name, emergency_contact_phone, allergies,
			chronic_conditions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	if patient.Allergies == nil {
		patient.Allergies = []string{}
	}
	if patient.ChronicConditions == nil {
		patient.ChronicConditions = []string{}
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.conn(ctx).ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.DateOfBirth,
		patient.Gender,
		patient.BloodGroup,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.Allergies,
		patient.ChronicConditions,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return mapError(err, "create patient")
}

func (r *patientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.conn(ctx), &patient, patientSelect+` WHERE p.id = $1 AND u.deleted_at IS NULL`, id); err != nil {
		return nil, mapError(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.conn(ctx), &patient, patientSelect+` WHERE p.user_id = $1 AND u.deleted_at IS NULL`, userID); err != nil {
		return nil, mapError(err, "get patient by user")
	}
	return &patient, nil
}

func (r *patientRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	if len(ids) == 0 {
		return []*model.Patient{}, nil
	}
	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &patients, patientSelect+` WHERE p.id = ANY($1::uuid[])`, uuidArray(ids)); err != nil {
		return nil, mapError(err, "get patients")
	}
	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET date_of_birth = $1, gender = $2, blood_group = $3, address = $4,
			emergency_contact_name = $5, emergency_contact_phone = $6,
			allergies = $7, chronic_conditions = $8, updated_at = $9
		WHERE id = $10
	`
	patient.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		patient.DateOfBirth,
		patient.Gender,
		patient.BloodGroup,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.Allergies,
		patient.ChronicConditions,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return mapError(err, "update patient")
	}
	return requireAffected(result)
}

func (r *patientRepository) List(ctx context.Context, f model.PatientFilter) ([]*model.Patient, int, error) {
	var w filter
	w.raw("u.deleted_at IS NULL")
	if f.Search != "" {
		w.add("(u.first_name ILIKE $%[1]d OR u.last_name ILIKE $%[1]d OR u.email ILIKE $%[1]d OR u.phone ILIKE $%[1]d)", likePattern(f.Search))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM patients p JOIN users u ON u.id = p.user_id` + w.where()
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, countQuery, w.args...); err != nil {
		return nil, 0, mapError(err, "count patients")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &patients, patientSelect+w.where()+` ORDER BY u.last_name, u.first_name`+limit, args...); err != nil {
		return nil, 0, mapError(err, "list patients")
	}
	return patients, total, nil
}
