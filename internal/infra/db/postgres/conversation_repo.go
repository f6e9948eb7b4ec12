package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
)

var _ repository.ConversationRepository = (*conversationRepo)(nil)

type conversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *conversationRepo {
	return &conversationRepo{pool: pool}
}

func (r *conversationRepo) Save(ctx context.Context, qx any, conv *model.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	const q = `
INSERT INTO conversations (id, user_id, title, created_at, updated_at)
VALUES ($1,$2,$3,COALESCE($4,NOW()),COALESCE($5,NOW()))
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) FindByID(ctx context.Context, qx any, id string) (*model.Conversation, error) {
	const q = `SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	var c model.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *conversationRepo) FindByIDWithMessages(ctx context.Context, qx any, id string) (*model.Conversation, error) {
	c, err := r.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}

	// created_at ties are broken by insertion order; id is a uuid so the
	// serial column keeps causal order stable.
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE conversation_id = $1
ORDER BY created_at, seq;`

	rows, err := pickRows(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	c.Messages = make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		c.Messages = append(c.Messages, *m)
	}
	return c, nil
}

func (r *conversationRepo) FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.Conversation, error) {
	const q = `
SELECT id, user_id, title, created_at, updated_at
FROM conversations
WHERE user_id = $1
ORDER BY updated_at DESC;`

	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *conversationRepo) Touch(ctx context.Context, qx any, id string) error {
	const q = `UPDATE conversations SET updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	return err
}
