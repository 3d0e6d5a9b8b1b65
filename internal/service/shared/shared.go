// Package shared holds helpers used by several domain services.
package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

const DateLayout = "2006-01-02"

// RepoError converts a repository error into an AppError for resource.
func RepoError(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict(resource+" already exists", err)
	case errors.Is(err, repository.ErrStale):
		return apperrors.Conflict(resource+" was changed by another request, reload and retry", err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err)
}

// ParseDate parses an optional YYYY-MM-DD value. Empty input yields nil.
func ParseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return &t, nil
}

// CanReadPatient reports whether actor may read records of patientID.
// Staff see every patient, patients only themselves.
func CanReadPatient(actor model.Actor, patientID uuid.UUID) bool {
	if actor.Is(model.RoleAdmin, model.RoleDoctor) {
		return true
	}
	return actor.Is(model.RolePatient) && actor.ProfileID == patientID
}

// CanManageDoctorRecord reports whether actor may modify a record authored
// by doctorID.
func CanManageDoctorRecord(actor model.Actor, doctorID uuid.UUID) bool {
	if actor.Is(model.RoleAdmin) {
		return true
	}
	return actor.Is(model.RoleDoctor) && actor.ProfileID == doctorID
}

// PatientScope narrows a patient id filter for patient callers. Other roles
// keep the requested filter. Another patient's id reads as not found.
func PatientScope(actor model.Actor, requested *uuid.UUID) (*uuid.UUID, error) {
	if !actor.Is(model.RolePatient) {
		return requested, nil
	}
	if requested != nil && *requested != actor.ProfileID {
		return nil, apperrors.NotFound("patient", nil)
	}
	own := actor.ProfileID
	return &own, nil
}
