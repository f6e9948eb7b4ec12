package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
)

var _ repository.PushSubscriptionRepository = (*pushSubscriptionRepo)(nil)

type pushSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionRepo(pool *pgxpool.Pool) *pushSubscriptionRepo {
	return &pushSubscriptionRepo{pool: pool}
}

func (r *pushSubscriptionRepo) Save(ctx context.Context, qx any, sub *model.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	// Re-registering the same endpoint refreshes keys instead of duplicating.
	const q = `
INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()))
ON CONFLICT (user_id, endpoint) DO UPDATE SET
  p256dh = EXCLUDED.p256dh,
  auth = EXCLUDED.auth;`

	_, err := execSQL(ctx, r.pool, qx, q, sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

func (r *pushSubscriptionRepo) FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.PushSubscription, error) {
	const q = `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscriptions
WHERE user_id = $1
ORDER BY created_at;`

	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*model.PushSubscription
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *pushSubscriptionRepo) DeleteByEndpoint(ctx context.Context, qx any, userID, endpoint string) error {
	const q = `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2;`
	_, err := execSQL(ctx, r.pool, qx, q, userID, endpoint)
	return err
}
