package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/shared"
	"github.com/medidesk/practice-api/pkg/logger"
)

type Service struct {
	repo repository.AuditRepository
	sink *zap.Logger
	log  *logger.Logger
	now  func() time.Time
}

// NewService builds the auditor. sink may be nil, in which case entries are
// only stored in the database.
func NewService(repo repository.AuditRepository, sink *zap.Logger, log *logger.Logger) *Service {
	if sink == nil {
		sink = zap.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo: repo,
		sink: sink,
		log:  log.With("audit"),
		now:  time.Now,
	}
}

// Log records that actor performed action on an entity. Errors are logged
// and swallowed so auditing never fails the caller's request.
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, metadata model.JSONMap) {
	entry := &model.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	if actor.UserID != uuid.Nil {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if entityID != uuid.Nil {
		entry.EntityID = &entityID
	}

	s.sink.Info(action,
		zap.String("entity_type", entityType),
		zap.Stringer("entity_id", entityID),
		zap.Stringer("user_id", actor.UserID),
		zap.String("role", string(actor.Role)),
		zap.String("ip", actor.IPAddress),
		zap.Any("metadata", metadata),
	)

	// the request context may already be cancelled once the response is out
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error(err, "Failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String(),
		)
	}
}

func (s *Service) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, int, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, shared.RepoError("audit log", err)
	}
	return logs, total, nil
}

// Cleanup removes entries older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, shared.RepoError("audit log", err)
	}
	if removed > 0 {
		s.log.Info("Removed expired audit logs", "count", removed, "before", cutoff)
	}
	return removed, nil
}
