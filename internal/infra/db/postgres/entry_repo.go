package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
)

var _ repository.EntryRepository = (*entryRepo)(nil)

// entryRepo reads journal entries owned by the journaling subsystem. The
// pipeline never writes this table.
type entryRepo struct {
	pool *pgxpool.Pool
}

func NewEntryRepo(pool *pgxpool.Pool) *entryRepo {
	return &entryRepo{pool: pool}
}

func (r *entryRepo) FindRecentByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.JournalEntry, error) {
	const q = `
SELECT id, user_id, title, body, mood, created_at
FROM journal_entries
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, qx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var out []*model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Body, &e.Mood, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
