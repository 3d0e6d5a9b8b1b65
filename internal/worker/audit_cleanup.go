package worker

import (
	"context"
	"fmt"
	"time"
)

// AuditCleaner is implemented by the audit service.
type AuditCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// cleanupAudit drops audit entries older than the configured retention.
func (s *Scheduler) cleanupAudit(ctx context.Context) error {
	if _, err := s.audit.Cleanup(ctx, s.config.AuditRetention); err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return nil
}
