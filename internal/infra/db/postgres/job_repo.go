package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Save(ctx context.Context, qx any, job *model.Job) error {
	if job.ID == "" {
		// ULIDs sort by creation time, which keeps job listings FIFO.
		job.ID = ulid.Make().String()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, user_id, kind, related_entity_id, status, buffer, last_error, queue_message_id, client_connected, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10,NOW()),$11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  buffer = EXCLUDED.buffer,
  last_error = EXCLUDED.last_error,
  queue_message_id = EXCLUDED.queue_message_id,
  client_connected = EXCLUDED.client_connected,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q,
		job.ID, job.UserID, string(job.Kind), job.RelatedEntityID, string(job.Status),
		job.Buffer, job.LastError, job.QueueMessageID, job.ClientConnected, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, qx any, id string) (*model.Job, error) {
	const q = `
SELECT id, user_id, kind, related_entity_id, status, buffer, last_error, queue_message_id, client_connected, created_at, updated_at
FROM jobs WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	var j model.Job
	var kind, status string
	err = row.Scan(&j.ID, &j.UserID, &kind, &j.RelatedEntityID, &status,
		&j.Buffer, &j.LastError, &j.QueueMessageID, &j.ClientConnected, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	return &j, nil
}

// ClaimPending guards against duplicate queue callback deliveries the same
// way message claiming guards against racing claimers.
func (r *jobRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE jobs
SET status = 'processing', updated_at = NOW()
WHERE id = $1 AND status = 'pending';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) AppendBuffer(ctx context.Context, qx any, id, buffer string) error {
	const q = `UPDATE jobs SET buffer = $2, updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, buffer)
	return err
}

func (r *jobRepo) SetClientConnected(ctx context.Context, qx any, id string, connected bool) error {
	const q = `UPDATE jobs SET client_connected = $2, updated_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, connected)
	return err
}
