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

var _ repository.MessageRepository = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

const messageColumns = `id, conversation_id, role, content, status, notification_sent, attempts, claimed_at, created_at, updated_at`

func (r *messageRepo) Save(ctx context.Context, qx any, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.UpdatedAt = time.Now()

	const q = `
INSERT INTO messages (id, conversation_id, role, content, status, notification_sent, attempts, claimed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9,NOW()),$10)
ON CONFLICT (id) DO UPDATE SET
  content = EXCLUDED.content,
  status = EXCLUDED.status,
  notification_sent = EXCLUDED.notification_sent,
  attempts = EXCLUDED.attempts,
  claimed_at = EXCLUDED.claimed_at,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q,
		m.ID, m.ConversationID, string(m.Role), m.Content, string(m.Status),
		m.NotificationSent, m.Attempts, m.ClaimedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *messageRepo) FindByID(ctx context.Context, qx any, id string) (*model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMessage(row)
}

// ClaimPending is the linchpin of the at-most-one-worker guarantee: a single
// conditional UPDATE whose affected-row count tells the caller whether it
// won the race. No other locking exists on this path.
func (r *messageRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE messages
SET status = 'processing', attempts = attempts + 1, claimed_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'pending';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("claim pending: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReclaimStuck recovers a claim abandoned by a crashed worker. Same
// conditional-update shape as ClaimPending, with a processing-age predicate
// and an attempt cap so a poisoned message cannot loop forever.
func (r *messageRepo) ReclaimStuck(ctx context.Context, id string, staleAfter time.Duration, maxAttempts int) (bool, error) {
	const q = `
UPDATE messages
SET attempts = attempts + 1, claimed_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'processing'
  AND claimed_at < NOW() - $2::interval
  AND attempts < $3;`

	tag, err := r.pool.Exec(ctx, q, id, staleAfter.String(), maxAttempts)
	if err != nil {
		return false, fmt.Errorf("reclaim stuck: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *messageRepo) FindPendingAssistant(ctx context.Context, qx any, staleAfter time.Duration, limit int) ([]*model.Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE role = 'assistant'
  AND (status = 'pending'
       OR (status = 'processing' AND claimed_at < NOW() - $1::interval))
ORDER BY created_at
LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, qx, q, staleAfter.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("find pending: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepo) FindNotifiable(ctx context.Context, qx any, delay time.Duration, limit int) ([]*model.Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE role = 'assistant'
  AND status = 'completed'
  AND notification_sent = FALSE
  AND created_at <= NOW() - $1::interval
ORDER BY created_at
LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, qx, q, delay.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("find notifiable: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepo) MarkNotified(ctx context.Context, qx any, id string) error {
	const q = `UPDATE messages SET notification_sent = TRUE, updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	return err
}

// Finalize writes the terminal content and status. The status predicate
// keeps a terminal row immutable: a late writer that lost its claim cannot
// overwrite a reply another worker already completed.
func (r *messageRepo) Finalize(ctx context.Context, qx any, id, content string, status model.MessageStatus) error {
	const q = `
UPDATE messages SET content = $2, status = $3, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');`
	_, err := execSQL(ctx, r.pool, qx, q, id, content, string(status))
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var role, status string
	err := row.Scan(
		&m.ID, &m.ConversationID, &role, &m.Content, &status,
		&m.NotificationSent, &m.Attempts, &m.ClaimedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	m.Role = model.MessageRole(role)
	m.Status = model.MessageStatus(status)
	return &m, nil
}

func scanMessages(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
