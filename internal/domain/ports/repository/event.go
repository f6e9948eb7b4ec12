package repository

import (
	"context"
	"time"

	"journal-ai-coach/internal/domain/model"
)

type AgendaEventRepository interface {
	Save(ctx context.Context, qx any, e *model.AgendaEvent) error
	FindByID(ctx context.Context, qx any, id string) (*model.AgendaEvent, error)
	// FindWithPendingReminders returns events that still have an unsent
	// before/after reminder whose fire time falls at or before horizon.
	FindWithPendingReminders(ctx context.Context, qx any, horizon time.Time, limit int) ([]*model.AgendaEvent, error)
	MarkBeforeSent(ctx context.Context, qx any, id string) error
	MarkAfterSent(ctx context.Context, qx any, id string) error
}
