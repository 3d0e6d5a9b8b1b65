package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
)

const auditColumns = `
	id, user_id, action, entity_type, entity_id, ip_address, user_agent,
	metadata, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, action, entity_type, entity_id,
			ip_address, user_agent, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.conn(ctx).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.IPAddress,
		log.UserAgent,
		log.Metadata,
		log.CreatedAt,
	)
	return mapError(err, "create audit log")
}

func (r *auditRepository) List(ctx context.Context, f model.AuditFilter) ([]*model.AuditLog, int, error) {
	var w filter
	if f.EntityType != "" {
		w.add("entity_type = $%d", f.EntityType)
	}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.EntityID != nil {
		w.add("entity_id = $%d", *f.EntityID)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.conn(ctx), &total, `SELECT COUNT(*) FROM audit_logs`+w.where(), w.args...); err != nil {
		return nil, 0, mapError(err, "count audit logs")
	}

	limit, args := w.page(f.Limit(), f.Offset())
	query := `SELECT ` + auditColumns + ` FROM audit_logs` + w.where() + ` ORDER BY created_at DESC` + limit

	logs := []*model.AuditLog{}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &logs, query, args...); err != nil {
		return nil, 0, mapError(err, "list audit logs")
	}
	return logs, total, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
