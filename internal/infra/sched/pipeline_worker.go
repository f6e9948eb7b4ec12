// File: internal/infra/sched/pipeline_worker.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"journal-ai-coach/internal/usecase"
)

// PipelineWorker is the periodic safety net of the response pipeline. Each
// pass first claims and finishes pending assistant messages, then pushes
// notifications for completed replies that aged past the delay. Both phases
// are idempotent, so overlapping instances are safe, just wasteful.
type PipelineWorker struct {
	interval time.Duration
	pending  usecase.PendingUseCase
	notif    usecase.NotificationUseCase
	log      *zerolog.Logger
}

func NewPipelineWorker(interval time.Duration, pending usecase.PendingUseCase, notif usecase.NotificationUseCase, logger *zerolog.Logger) *PipelineWorker {
	compLog := logger.With().Str("component", "PipelineWorker").Logger()
	return &PipelineWorker{interval: interval, pending: pending, notif: notif, log: &compLog}
}

func (w *PipelineWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting pipeline worker")
	// Run once on startup, then on every tick
	w.runPass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pipeline worker")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *PipelineWorker) runPass(ctx context.Context) {
	processed, err := w.pending.ProcessPending(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("pending pass failed")
	}
	if processed > 0 {
		w.log.Info().Int("count", processed).Msg("pending messages finished")
	}

	notified, err := w.notif.NotifyCompletedReplies(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("notification pass failed")
	}
	if notified > 0 {
		w.log.Info().Int("count", notified).Msg("reply notifications handled")
	}
}
