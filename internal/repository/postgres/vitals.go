package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const vitalsColumns = `
	id, patient_id, recorded_by, recorded_at, heart_rate, systolic_bp,
	diastolic_bp, temperature_c, respiratory_rate, oxygen_saturation,
	weight_kg, height_cm, blood_glucose, notes, created_at`

const defaultVitalsLimit = 50

type vitalsRepository struct {
	BaseRepository
}

func NewVitalsRepository(base BaseRepository) repository.VitalsRepository {
	return &vitalsRepository{base}
}

func (r *vitalsRepository) Create(ctx context.Context, v *model.Vitals) error {
	query := `
		INSERT INTO vitals (
			id, patient_id, recorded_by, recorded_at, heart_rate, systolic_bp,
			diastolic_bp, temperature_c, respiratory_rate, oxygen_saturation,
			weight_kg, height_cm, blood_glucose, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()

	_, err := r.conn(ctx).ExecContext(ctx, query,
		v.ID,
		v.PatientID,
		v.RecordedBy,
		v.RecordedAt,
		v.HeartRate,
		v.SystolicBP,
		v.DiastolicBP,
		v.TemperatureC,
		v.RespiratoryRate,
		v.OxygenSaturation,
		v.WeightKg,
		v.HeightCm,
		v.BloodGlucose,
		v.Notes,
		v.CreatedAt,
	)
	return mapError(err, "record vitals")
}

func (r *vitalsRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Vitals, error) {
	var v model.Vitals
	if err := sqlx.GetContext(ctx, r.conn(ctx), &v, `SELECT `+vitalsColumns+` FROM vitals WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "get vitals")
	}
	return &v, nil
}

func (r *vitalsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM vitals WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete vitals")
	}
	return requireAffected(result)
}

func (r *vitalsRepository) List(ctx context.Context, f model.VitalsFilter) ([]*model.Vitals, error) {
	var w filter
	w.add("patient_id = $%d", f.PatientID)
	if f.From != nil {
		w.add("recorded_at >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("recorded_at <= $%d", *f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > model.MaxPageSize {
		limit = defaultVitalsLimit
	}
	clause, args := w.page(limit, 0)
	query := `SELECT ` + vitalsColumns + ` FROM vitals` + w.where() + ` ORDER BY recorded_at DESC` + clause

	vitals := []*model.Vitals{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &vitals, query, args...); err != nil {
		return nil, mapError(err, "list vitals")
	}
	return vitals, nil
}

func (r *vitalsRepository) Latest(ctx context.Context, patientID uuid.UUID) (*model.Vitals, error) {
	query := `SELECT ` + vitalsColumns + ` FROM vitals WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`

	var v model.Vitals
	if err := sqlx.GetContext(ctx, r.conn(ctx), &v, query, patientID); err != nil {
		return nil, mapError(err, "get latest vitals")
	}
	return &v, nil
}
