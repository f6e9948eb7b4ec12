package repository

import (
	"context"
	"time"

	"journal-ai-coach/internal/domain/model"
)

// SentNotificationRepository is an append-only audit log. There is no
// update or delete on purpose.
type SentNotificationRepository interface {
	Save(ctx context.Context, qx any, n *model.SentNotification) error
	// FindRecentByUser returns the latest notifications for topical
	// de-duplication when composing proactive pushes.
	FindRecentByUser(ctx context.Context, qx any, userID string, since time.Time, limit int) ([]*model.SentNotification, error)
}
