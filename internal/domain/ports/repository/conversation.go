package repository

import (
	"context"

	"journal-ai-coach/internal/domain/model"
)

type ConversationRepository interface {
	Save(ctx context.Context, qx any, conv *model.Conversation) error
	FindByID(ctx context.Context, qx any, id string) (*model.Conversation, error)
	// FindByIDWithMessages loads the conversation and its messages in
	// creation order.
	FindByIDWithMessages(ctx context.Context, qx any, id string) (*model.Conversation, error)
	FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.Conversation, error)
	Touch(ctx context.Context, qx any, id string) error
}
