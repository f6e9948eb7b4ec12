package repository

import (
	"context"

	"journal-ai-coach/internal/domain/model"
)

type PushSubscriptionRepository interface {
	Save(ctx context.Context, qx any, sub *model.PushSubscription) error
	FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.PushSubscription, error)
	// DeleteByEndpoint removes a subscription whose endpoint reported itself
	// gone. The dispatcher is the only caller permitted to delete rows it
	// did not create.
	DeleteByEndpoint(ctx context.Context, qx any, userID, endpoint string) error
}
