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

var _ repository.AgendaEventRepository = (*agendaEventRepo)(nil)

type agendaEventRepo struct {
	pool *pgxpool.Pool
}

func NewAgendaEventRepo(pool *pgxpool.Pool) *agendaEventRepo {
	return &agendaEventRepo{pool: pool}
}

const eventColumns = `id, user_id, title, start_at, end_at, notify_before, minutes_before, before_sent, notify_after, minutes_after, after_sent, created_at, updated_at`

func (r *agendaEventRepo) Save(ctx context.Context, qx any, e *model.AgendaEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.UpdatedAt = time.Now()

	const q = `
INSERT INTO agenda_events (id, user_id, title, start_at, end_at, notify_before, minutes_before, before_sent, notify_after, minutes_after, after_sent, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,COALESCE($12,NOW()),$13)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  start_at = EXCLUDED.start_at,
  end_at = EXCLUDED.end_at,
  notify_before = EXCLUDED.notify_before,
  minutes_before = EXCLUDED.minutes_before,
  before_sent = EXCLUDED.before_sent,
  notify_after = EXCLUDED.notify_after,
  minutes_after = EXCLUDED.minutes_after,
  after_sent = EXCLUDED.after_sent,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q,
		e.ID, e.UserID, e.Title, e.StartAt, e.EndAt,
		e.NotifyBefore, e.MinutesBefore, e.BeforeSent,
		e.NotifyAfter, e.MinutesAfter, e.AfterSent,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save agenda event: %w", err)
	}
	return nil
}

func (r *agendaEventRepo) FindByID(ctx context.Context, qx any, id string) (*model.AgendaEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM agenda_events WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEvent(row)
}

func (r *agendaEventRepo) FindWithPendingReminders(ctx context.Context, qx any, horizon time.Time, limit int) ([]*model.AgendaEvent, error) {
	// The due-window decision lives in the model; this query only narrows
	// the candidate set to events with an unsent reminder at or before the
	// horizon.
	const q = `
SELECT ` + eventColumns + `
FROM agenda_events
WHERE (notify_before AND NOT before_sent AND start_at - make_interval(mins => minutes_before) <= $1)
   OR (notify_after AND NOT after_sent AND end_at + make_interval(mins => minutes_after) <= $1)
ORDER BY start_at
LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, qx, q, horizon, limit)
	if err != nil {
		return nil, fmt.Errorf("find pending reminders: %w", err)
	}
	defer rows.Close()

	var out []*model.AgendaEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *agendaEventRepo) MarkBeforeSent(ctx context.Context, qx any, id string) error {
	const q = `UPDATE agenda_events SET before_sent = TRUE, updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	return err
}

func (r *agendaEventRepo) MarkAfterSent(ctx context.Context, qx any, id string) error {
	const q = `UPDATE agenda_events SET after_sent = TRUE, updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	return err
}

func scanEvent(row rowScanner) (*model.AgendaEvent, error) {
	var e model.AgendaEvent
	err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.StartAt, &e.EndAt,
		&e.NotifyBefore, &e.MinutesBefore, &e.BeforeSent,
		&e.NotifyAfter, &e.MinutesAfter, &e.AfterSent,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}
