package consultation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/repository/memory"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

type fixture struct {
	svc         *Service
	store       *memory.Store
	appointment *model.Appointment
	doctor      model.Actor
	patient     model.Actor
}

func setup(t *testing.T, status model.AppointmentStatus) *fixture {
	t.Helper()
	store := memory.NewStore()
	doctorID, patientID := uuid.New(), uuid.New()

	apt := &model.Appointment{
		DoctorID:  doctorID,
		PatientID: patientID,
		StartTime: time.Now().Add(-30 * time.Minute),
		EndTime:   time.Now(),
		Status:    status,
	}
	require.NoError(t, store.Appointments().Create(context.Background(), apt))

	svc := NewService(store, store.Consultations(), store.Appointments(), store.Prescriptions(),
		event.NewOutboxEmitter(store.Outbox()), audit.NewService(store.Audit(), nil, nil), nil)

	return &fixture{
		svc:         svc,
		store:       store,
		appointment: apt,
		doctor:      model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: doctorID},
		patient:     model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: patientID},
	}
}

func (f *fixture) request() *model.CreateConsultationRequest {
	return &model.CreateConsultationRequest{
		AppointmentID: f.appointment.ID,
		Symptoms:      []string{" cough ", "", "fever"},
		Diagnosis:     "Acute bronchitis",
		FollowUpDate:  "2026-04-01",
		Prescription: &model.CreatePrescriptionRequest{
			Medicines: []model.Medicine{{Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily", DurationDays: 7}},
		},
	}
}

func TestCreate_CompletesAppointmentWithPrescription(t *testing.T) {
	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusInProgress,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := setup(t, status)
			ctx := context.Background()

			c, err := f.svc.Create(ctx, f.doctor, f.request())
			require.NoError(t, err)
			assert.Equal(t, f.appointment.PatientID, c.PatientID)
			assert.Equal(t, []string{"cough", "fever"}, []string(c.Symptoms))
			require.Len(t, c.Prescriptions, 1)
			assert.Equal(t, c.ID, c.Prescriptions[0].ConsultationID)

			apt, err := f.store.Appointments().GetByID(ctx, f.appointment.ID)
			require.NoError(t, err)
			assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)

			var types []string
			for _, e := range f.store.OutboxEvents() {
				types = append(types, e.EventType)
			}
			assert.ElementsMatch(t, []string{
				model.EventAppointmentStatusChanged,
				model.EventPrescriptionIssued,
				model.EventConsultationCreated,
			}, types)
		})
	}
}

func TestCreate_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal appointment", func(t *testing.T) {
		f := setup(t, model.AppointmentStatusCancelled)
		_, err := f.svc.Create(ctx, f.doctor, f.request())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
	})

	t.Run("second consultation", func(t *testing.T) {
		f := setup(t, model.AppointmentStatusInProgress)
		_, err := f.svc.Create(ctx, f.doctor, f.request())
		require.NoError(t, err)

		// reopen the appointment to reach the duplicate check
		apt, _ := f.store.Appointments().GetByID(ctx, f.appointment.ID)
		apt.Status = model.AppointmentStatusInProgress
		require.NoError(t, f.store.Appointments().Update(ctx, apt, model.AppointmentStatusCompleted))

		_, err = f.svc.Create(ctx, f.doctor, f.request())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	})

	t.Run("other doctor", func(t *testing.T) {
		f := setup(t, model.AppointmentStatusConfirmed)
		other := model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
		_, err := f.svc.Create(ctx, other, f.request())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})

	t.Run("patient", func(t *testing.T) {
		f := setup(t, model.AppointmentStatusConfirmed)
		_, err := f.svc.Create(ctx, f.patient, f.request())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})

	t.Run("invalid prescription leaves appointment untouched", func(t *testing.T) {
		f := setup(t, model.AppointmentStatusConfirmed)
		req := f.request()
		req.Prescription.Medicines = []model.Medicine{{Name: "Ibuprofen"}}

		_, err := f.svc.Create(ctx, f.doctor, req)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

		apt, _ := f.store.Appointments().GetByID(ctx, f.appointment.ID)
		assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
	})
}

func TestGetAndList_PatientScope(t *testing.T) {
	f := setup(t, model.AppointmentStatusConfirmed)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, f.doctor, f.request())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.patient, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Prescriptions, 1)

	stranger := model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	_, err = f.svc.Get(ctx, stranger, c.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	list, total, err := f.svc.List(ctx, stranger, model.ConsultationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	_, _, err = f.svc.List(ctx, stranger, model.ConsultationFilter{PatientID: &f.appointment.PatientID})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, total, err = f.svc.List(ctx, f.doctor, model.ConsultationFilter{PatientID: &f.appointment.PatientID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpdate_AuthorOnly(t *testing.T) {
	f := setup(t, model.AppointmentStatusConfirmed)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, f.doctor, f.request())
	require.NoError(t, err)

	diagnosis := "Viral bronchitis"
	other := model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
	_, err = f.svc.Update(ctx, other, c.ID, &model.UpdateConsultationRequest{Diagnosis: &diagnosis})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	updated, err := f.svc.Update(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Diagnosis: &diagnosis})
	require.NoError(t, err)
	assert.Equal(t, diagnosis, updated.Diagnosis)

	empty := "  "
	_, err = f.svc.Update(ctx, f.doctor, c.ID, &model.UpdateConsultationRequest{Diagnosis: &empty})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

// cancelledMeanwhile commits a cancellation from another request right after
// the first locked read of an appointment.
type cancelledMeanwhile struct {
	repository.AppointmentRepository
	once sync.Once
}

func (r *cancelledMeanwhile) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := r.AppointmentRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		cancelled := *apt
		cancelled.Status = model.AppointmentStatusCancelled
		_ = r.AppointmentRepository.Update(ctx, &cancelled, apt.Status)
	})
	return apt, nil
}

func TestCreate_ConcurrentCancelWins(t *testing.T) {
	f := setup(t, model.AppointmentStatusInProgress)
	ctx := context.Background()
	f.svc.appointments = &cancelledMeanwhile{AppointmentRepository: f.store.Appointments()}

	_, err := f.svc.Create(ctx, f.doctor, f.request())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	apt, err := f.store.Appointments().GetByID(ctx, f.appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, apt.Status)

	_, err = f.store.Consultations().GetByAppointmentID(ctx, f.appointment.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
