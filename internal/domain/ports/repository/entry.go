package repository

import (
	"context"

	"journal-ai-coach/internal/domain/model"
)

// EntryRepository is the read-only context feed owned by the journaling
// subsystem; the pipeline never writes entries.
type EntryRepository interface {
	FindRecentByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.JournalEntry, error)
}
