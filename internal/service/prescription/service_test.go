package prescription

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository/memory"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type fixture struct {
	svc          *Service
	store        *memory.Store
	consultation *model.Consultation
	doctor       model.Actor
	patient      model.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	c := &model.Consultation{
		AppointmentID: uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		Diagnosis:     "Migraine",
	}
	require.NoError(t, store.Consultations().Create(context.Background(), c))

	return &fixture{
		svc: NewService(store, store.Prescriptions(), store.Consultations(),
			event.NewOutboxEmitter(store.Outbox()), audit.NewService(store.Audit(), nil, nil)),
		store:        store,
		consultation: c,
		doctor:       model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: c.DoctorID},
		patient:      model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: c.PatientID},
	}
}

func request() *model.CreatePrescriptionRequest {
	return &model.CreatePrescriptionRequest{
		Medicines: []model.Medicine{
			{Name: " Sumatriptan ", Dosage: "50mg", Frequency: "as needed", DurationDays: 10},
		},
		Instructions: "Take with water",
		ValidUntil:   "2026-12-31",
	}
}

func TestCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.doctor, f.consultation.ID, request())
	require.NoError(t, err)
	assert.Equal(t, f.consultation.PatientID, p.PatientID)
	assert.Equal(t, "Sumatriptan", p.Medicines[0].Name)
	require.NotNil(t, p.ValidUntil)
	assert.Equal(t, "2026-12-31", p.ValidUntil.Format("2006-01-02"))

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPrescriptionIssued, events[0].EventType)
}

func TestCreate_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	otherDoctor := model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
	_, err := f.svc.Create(ctx, otherDoctor, f.consultation.ID, request())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Create(ctx, f.doctor, f.consultation.ID, &model.CreatePrescriptionRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.Create(ctx, f.doctor, f.consultation.ID, &model.CreatePrescriptionRequest{
		Medicines: []model.Medicine{{Name: "Ibuprofen", Dosage: "", Frequency: "daily"}},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, err = f.svc.Create(ctx, f.doctor, uuid.New(), request())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestPatientSeesOnlyOwn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.doctor, f.consultation.ID, request())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.patient, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	stranger := model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	_, err = f.svc.Get(ctx, stranger, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	list, err := f.svc.List(ctx, f.patient, model.PrescriptionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other := uuid.New()
	_, err = f.svc.List(ctx, f.patient, model.PrescriptionFilter{PatientID: &other})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestUpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.doctor, f.consultation.ID, request())
	require.NoError(t, err)

	instructions := "  After meals "
	updated, err := f.svc.Update(ctx, f.doctor, p.ID, &model.UpdatePrescriptionRequest{Instructions: &instructions})
	require.NoError(t, err)
	assert.Equal(t, "After meals", updated.Instructions)

	_, err = f.svc.Update(ctx, f.patient, p.ID, &model.UpdatePrescriptionRequest{Instructions: &instructions})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	assert.True(t, apperrors.HasCode(f.svc.Delete(ctx, f.patient, p.ID), apperrors.ErrForbidden))
	require.NoError(t, f.svc.Delete(ctx, f.doctor, p.ID))

	_, err = f.svc.Get(ctx, f.doctor, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
