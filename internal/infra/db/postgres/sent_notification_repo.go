package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
)

var _ repository.SentNotificationRepository = (*sentNotificationRepo)(nil)

type sentNotificationRepo struct {
	pool *pgxpool.Pool
}

func NewSentNotificationRepo(pool *pgxpool.Pool) *sentNotificationRepo {
	return &sentNotificationRepo{pool: pool}
}

// Save appends to the audit log. There is deliberately no update path.
func (r *sentNotificationRepo) Save(ctx context.Context, qx any, n *model.SentNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	const q = `
INSERT INTO sent_notifications (id, user_id, title, body, topic_ref, time_of_day, sent_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, qx, q, n.ID, n.UserID, n.Title, n.Body, n.TopicRef, n.TimeOfDay, n.SentAt)
	if err != nil {
		return fmt.Errorf("save sent notification: %w", err)
	}
	return nil
}

func (r *sentNotificationRepo) FindRecentByUser(ctx context.Context, qx any, userID string, since time.Time, limit int) ([]*model.SentNotification, error) {
	const q = `
SELECT id, user_id, title, body, topic_ref, time_of_day, sent_at
FROM sent_notifications
WHERE user_id = $1 AND sent_at >= $2
ORDER BY sent_at DESC
LIMIT $3;`

	rows, err := pickRows(ctx, r.pool, qx, q, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent notifications: %w", err)
	}
	defer rows.Close()

	var out []*model.SentNotification
	for rows.Next() {
		var n model.SentNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.TopicRef, &n.TimeOfDay, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
