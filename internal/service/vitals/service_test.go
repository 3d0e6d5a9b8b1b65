package vitals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository/memory"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

var clock = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }
func timep(v time.Time) *time.Time { return &v }

func setup(t *testing.T) (*Service, *memory.Store, model.Actor, model.Actor) {
	t.Helper()
	store := memory.NewStore()
	p := &model.Patient{UserID: uuid.New()}
	require.NoError(t, store.Patients().Create(context.Background(), p))

	svc := NewService(store, store.Vitals(), store.Patients(),
		event.NewOutboxEmitter(store.Outbox()), audit.NewService(store.Audit(), nil, nil))
	svc.now = func() time.Time { return clock }

	doctor := model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
	patient := model.Actor{UserID: p.UserID, Role: model.RolePatient, ProfileID: p.ID}
	return svc, store, doctor, patient
}

func TestRecord(t *testing.T) {
	svc, store, doctor, patient := setup(t)
	ctx := context.Background()

	v, err := svc.Record(ctx, doctor, patient.ProfileID, &model.RecordVitalsRequest{
		SystolicBP:  intp(120),
		DiastolicBP: intp(80),
		WeightKg:    floatp(70),
		HeightCm:    floatp(175),
	})
	require.NoError(t, err)
	assert.Equal(t, clock, v.RecordedAt)
	assert.Equal(t, doctor.UserID, v.RecordedBy)
	require.NotNil(t, v.BMI)
	assert.Equal(t, 22.9, *v.BMI)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventVitalsRecorded, events[0].EventType)

	// a patient may record their own readings
	_, err = svc.Record(ctx, patient, patient.ProfileID, &model.RecordVitalsRequest{HeartRate: intp(64)})
	require.NoError(t, err)
}

func TestRecord_Rejections(t *testing.T) {
	svc, _, doctor, patient := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor model.Actor
		req   *model.RecordVitalsRequest
		code  apperrors.ErrorCode
	}{
		{"no measurement", doctor, &model.RecordVitalsRequest{Notes: "fine"}, apperrors.ErrValidation},
		{"heart rate too low", doctor, &model.RecordVitalsRequest{HeartRate: intp(10)}, apperrors.ErrValidation},
		{"temperature too high", doctor, &model.RecordVitalsRequest{TemperatureC: floatp(46)}, apperrors.ErrValidation},
		{"spo2 above 100", doctor, &model.RecordVitalsRequest{OxygenSaturation: intp(101)}, apperrors.ErrValidation},
		{"systolic not above diastolic", doctor, &model.RecordVitalsRequest{SystolicBP: intp(80), DiastolicBP: intp(80)}, apperrors.ErrValidation},
		{"future timestamp", doctor, &model.RecordVitalsRequest{HeartRate: intp(70), RecordedAt: timep(clock.Add(time.Hour))}, apperrors.ErrValidation},
		{"other patient", model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()},
			&model.RecordVitalsRequest{HeartRate: intp(70)}, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.actor, patient.ProfileID, tt.req)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	_, err := svc.Record(ctx, doctor, uuid.New(), &model.RecordVitalsRequest{HeartRate: intp(70)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestListAndLatest(t *testing.T) {
	svc, _, doctor, patient := setup(t)
	ctx := context.Background()

	for i := 3; i >= 1; i-- {
		_, err := svc.Record(ctx, doctor, patient.ProfileID, &model.RecordVitalsRequest{
			HeartRate:  intp(60 + i),
			RecordedAt: timep(clock.Add(-time.Duration(i) * time.Hour)),
		})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, patient, model.VitalsFilter{PatientID: patient.ProfileID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 61, *list[0].HeartRate)
	assert.Equal(t, 63, *list[2].HeartRate)

	list, err = svc.List(ctx, doctor, model.VitalsFilter{PatientID: patient.ProfileID, From: timep(clock.Add(-150 * time.Minute))})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	latest, err := svc.Latest(ctx, doctor, patient.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, 61, *latest.HeartRate)

	stranger := model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	_, err = svc.List(ctx, stranger, model.VitalsFilter{PatientID: patient.ProfileID})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	_, err = svc.Latest(ctx, stranger, patient.ProfileID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	_, err = svc.Get(ctx, stranger, latest.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestDelete(t *testing.T) {
	svc, _, doctor, patient := setup(t)
	ctx := context.Background()

	v, err := svc.Record(ctx, doctor, patient.ProfileID, &model.RecordVitalsRequest{HeartRate: intp(70)})
	require.NoError(t, err)

	err = svc.Delete(ctx, patient, v.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	require.NoError(t, svc.Delete(ctx, doctor, v.ID))
	_, err = svc.Get(ctx, doctor, v.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
