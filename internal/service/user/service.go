package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/shared"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

// Service holds the administrator's account operations.
type Service struct {
	repo    repository.UserRepository
	auditor *audit.Service
}

func NewService(repo repository.UserRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
	}
}

func (s *Service) ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, apperrors.Validation("unknown role")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("user", err)
	}
	return users, total, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("user", err)
	}
	return u, nil
}

// SetUserStatus activates, deactivates or locks an account. Admins cannot
// change their own status.
func (s *Service) SetUserStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status string) (*model.User, error) {
	switch status {
	case model.UserStatusActive, model.UserStatusInactive, model.UserStatusLocked:
	default:
		return nil, apperrors.Validation("status must be one of active, inactive, locked")
	}
	if actor.UserID == id {
		return nil, apperrors.BadRequest("cannot change the status of your own account", nil)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, shared.RepoError("user", err)
	}
	previous := u.Status
	if previous == status {
		return u, nil
	}

	u.Status = status
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, shared.RepoError("user", err)
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, u.ID, model.JSONMap{
		"field": "status",
		"from":  previous,
		"to":    status,
	})
	return u, nil
}
