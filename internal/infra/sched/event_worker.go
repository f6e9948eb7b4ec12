// File: internal/infra/sched/event_worker.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"journal-ai-coach/internal/usecase"
)

// EventWorker fires agenda before/after reminders. The trigger window on the
// due check matches the tick interval, so a reminder whose moment falls
// between ticks still fires on the next one and only once.
type EventWorker struct {
	interval time.Duration
	notif    usecase.NotificationUseCase
	log      *zerolog.Logger
}

func NewEventWorker(interval time.Duration, notif usecase.NotificationUseCase, logger *zerolog.Logger) *EventWorker {
	compLog := logger.With().Str("component", "EventWorker").Logger()
	return &EventWorker{interval: interval, notif: notif, log: &compLog}
}

func (w *EventWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting event worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping event worker")
			return ctx.Err()
		case <-ticker.C:
			fired, err := w.notif.NotifyEventReminders(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("event reminder pass failed")
			}
			if fired > 0 {
				w.log.Info().Int("count", fired).Msg("event reminders fired")
			}
		}
	}
}
