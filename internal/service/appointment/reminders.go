package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/shared"
)

const reminderBatchSize = 200

// SendDueReminders emails patients whose appointment starts between
// now+lead and now+lead+window and marks each reminder as sent.
func (s *Service) SendDueReminders(ctx context.Context, lead, window time.Duration) (int, error) {
	from := s.now().Add(lead)
	due, err := s.Appointments.ListDueForReminder(ctx, from, from.Add(window), reminderBatchSize)
	if err != nil {
		return 0, shared.RepoError("appointment", err)
	}

	sent := 0
	for _, apt := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if s.Notifier != nil {
			if err := s.Notifier.AppointmentReminder(ctx, apt); err != nil {
				s.log.Error(err, "Failed to send reminder", "appointment_id", apt.ID.String())
				continue
			}
		}
		if err := s.Appointments.MarkReminderSent(ctx, apt.ID, s.now()); err != nil {
			return sent, shared.RepoError("appointment", err)
		}
		sent++
		if s.Metrics != nil {
			s.Metrics.RemindersSent.Inc()
		}
	}
	return sent, nil
}

// RecordNoShows marks scheduled and confirmed appointments that ended more
// than grace ago as NO_SHOW and emits a status change for each.
func (s *Service) RecordNoShows(ctx context.Context, grace time.Duration) (int, error) {
	var marked []*model.StatusChange
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		marked, err = s.Appointments.MarkNoShows(ctx, s.now().Add(-grace))
		if err != nil {
			return shared.RepoError("appointment", err)
		}
		for _, change := range marked {
			payload := event.NewAppointmentPayload(&change.Appointment, change.PreviousStatus, uuid.Nil)
			if err := s.Events.Emit(ctx, model.EventAppointmentStatusChanged, change.ID, payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, change := range marked {
		s.recordTransition(change.PreviousStatus, change.Status)
	}
	if s.Metrics != nil {
		s.Metrics.NoShowsRecorded.Add(float64(len(marked)))
	}
	if len(marked) > 0 {
		s.log.Info("Recorded no-shows", "count", len(marked))
	}
	return len(marked), nil
}
