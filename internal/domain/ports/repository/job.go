package repository

import (
	"context"

	"journal-ai-coach/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, qx any, job *model.Job) error
	FindByID(ctx context.Context, qx any, id string) (*model.Job, error)

	// ClaimPending atomically flips a pending job to processing; false means
	// another callback delivery already owns it or it is terminal.
	ClaimPending(ctx context.Context, id string) (bool, error)

	// AppendBuffer persists accumulated partial output. Called at bounded
	// intervals during streaming, not per token.
	AppendBuffer(ctx context.Context, qx any, id, buffer string) error

	SetClientConnected(ctx context.Context, qx any, id string, connected bool) error
}
