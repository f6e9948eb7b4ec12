package repository

import (
	"context"
	"time"

	"journal-ai-coach/internal/domain/model"
)

type MessageRepository interface {
	Save(ctx context.Context, qx any, m *model.Message) error
	FindByID(ctx context.Context, qx any, id string) (*model.Message, error)

	// ClaimPending flips status from 'pending' to 'processing' only if the
	// stored status is still 'pending', and reports whether the row actually
	// changed. When N workers race on one message exactly one sees true;
	// everyone else must treat false as "already claimed, skip".
	ClaimPending(ctx context.Context, id string) (bool, error)

	// ReclaimStuck performs the same conditional flip for a message stuck in
	// 'processing' longer than staleAfter with fewer than maxAttempts
	// attempts, so a crashed worker's claim is eventually recovered.
	ReclaimStuck(ctx context.Context, id string, staleAfter time.Duration, maxAttempts int) (bool, error)

	// FindPendingAssistant returns unclaimed assistant placeholders oldest
	// first, plus stale 'processing' ones eligible for reclaim.
	FindPendingAssistant(ctx context.Context, qx any, staleAfter time.Duration, limit int) ([]*model.Message, error)

	// FindNotifiable returns completed assistant messages past the delay
	// window that have not had a notification attempt yet.
	FindNotifiable(ctx context.Context, qx any, delay time.Duration, limit int) ([]*model.Message, error)

	MarkNotified(ctx context.Context, qx any, id string) error
	Finalize(ctx context.Context, qx any, id, content string, status model.MessageStatus) error
}
