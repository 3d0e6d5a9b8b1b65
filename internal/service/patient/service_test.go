package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository/memory"
	"github.com/medidesk/practice-api/internal/service/audit"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, *model.Patient, model.Actor) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	u := &model.User{Email: "jane@example.com", FirstName: "Jane", LastName: "Roe", Role: model.RolePatient}
	require.NoError(t, store.Users().Create(ctx, u))
	p := &model.Patient{UserID: u.ID, BloodGroup: "O+"}
	require.NoError(t, store.Patients().Create(ctx, p))

	svc := NewService(store, store.Patients(), store.Users(), audit.NewService(store.Audit(), nil, nil))
	return svc, store, p, model.Actor{UserID: u.ID, Role: model.RolePatient, ProfileID: p.ID}
}

func TestList_StaffOnly(t *testing.T) {
	svc, _, _, patient := setup(t)
	ctx := context.Background()

	_, _, err := svc.List(ctx, patient, model.PatientFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	doctor := model.Actor{UserID: uuid.New(), Role: model.RoleDoctor, ProfileID: uuid.New()}
	list, total, err := svc.List(ctx, doctor, model.PatientFilter{Search: "roe"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane", list[0].FirstName)
}

func TestGet_AuditsAndScopes(t *testing.T) {
	svc, store, p, patient := setup(t)
	ctx := context.Background()

	got, err := svc.Get(ctx, patient, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)

	stranger := model.Actor{UserID: uuid.New(), Role: model.RolePatient, ProfileID: uuid.New()}
	_, err = svc.Get(ctx, stranger, p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionRead, logs[0].Action)
	assert.Equal(t, model.AuditEntityPatient, logs[0].EntityType)
}

func TestUpdateMine(t *testing.T) {
	svc, _, _, patient := setup(t)
	ctx := context.Background()

	first, dob, gender := " Janet ", "1990-06-15", "female"
	updated, err := svc.UpdateMine(ctx, patient, &model.UpdatePatientRequest{
		FirstName:   &first,
		DateOfBirth: &dob,
		Gender:      &gender,
		Allergies:   []string{"penicillin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "female", updated.Gender)
	assert.Equal(t, []string{"penicillin"}, []string(updated.Allergies))
	require.NotNil(t, updated.DateOfBirth)
	assert.Equal(t, dob, updated.DateOfBirth.Format("2006-01-02"))

	mine, err := svc.GetMine(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, "Janet", mine.FirstName)
	assert.Equal(t, "O+", mine.BloodGroup)

	bad := "15/06/1990"
	_, err = svc.UpdateMine(ctx, patient, &model.UpdatePatientRequest{DateOfBirth: &bad})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}

func TestGetMine_NoProfile(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.GetMine(context.Background(), model.Actor{UserID: uuid.New(), Role: model.RolePatient})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
