// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/adapter"
	"journal-ai-coach/internal/domain/ports/repository"
	"journal-ai-coach/internal/infra/logging"
	"journal-ai-coach/internal/infra/metrics"
	red "journal-ai-coach/internal/infra/redis"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// JobUseCase owns the background-job state machine. Jobs are created by the
// API, handed to the external task queue, and actually executed when the
// queue calls back. Callbacks may arrive more than once; HandleCallback must
// be safe to re-invoke for any job in any state.
type JobUseCase interface {
	// CreateJob persists the job and enqueues it on the external queue.
	// For chat_response jobs relatedEntityID is the pending assistant
	// message id; for tool_generation it is the conversation id.
	CreateJob(ctx context.Context, userID string, kind model.JobKind, relatedEntityID string) (*model.Job, error)

	// HandleCallback executes the job named by a queue delivery. Terminal
	// jobs short-circuit with success so queue retries converge.
	HandleCallback(ctx context.Context, jobID string) error

	// GetJob returns the job with the freshest buffer available, scoped to
	// its owner.
	GetJob(ctx context.Context, userID, jobID string) (*model.Job, error)

	// Detach records that the client stopped watching. Best-effort signal;
	// generation continues either way.
	Detach(ctx context.Context, userID, jobID string) error
}

type JobConfig struct {
	BufferFlushInterval time.Duration
}

type jobUC struct {
	jobs    repository.JobRepository
	pending PendingUseCase
	gen     ResponseGenerator
	queue   adapter.TaskQueueClient
	buffer  *red.StreamBuffer
	cfg     JobConfig
	log     *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	pending PendingUseCase,
	gen ResponseGenerator,
	queue adapter.TaskQueueClient,
	buffer *red.StreamBuffer,
	cfg JobConfig,
	logger *zerolog.Logger,
) *jobUC {
	if cfg.BufferFlushInterval <= 0 {
		cfg.BufferFlushInterval = 750 * time.Millisecond
	}
	l := logger.With().Str("component", "jobs").Logger()
	return &jobUC{jobs: jobs, pending: pending, gen: gen, queue: queue, buffer: buffer, cfg: cfg, log: &l}
}

func (u *jobUC) CreateJob(ctx context.Context, userID string, kind model.JobKind, relatedEntityID string) (*model.Job, error) {
	if kind != model.JobKindChatResponse && kind != model.JobKindToolGeneration {
		return nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidArgument, kind)
	}
	if relatedEntityID == "" {
		return nil, fmt.Errorf("%w: related entity required", domain.ErrInvalidArgument)
	}

	job := model.NewJob("", userID, kind, relatedEntityID)
	if err := u.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	msgID, err := u.queue.Enqueue(ctx, job.ID, map[string]any{"kind": string(kind)})
	if err != nil {
		// The job row stays pending; the queue enqueue is the only step
		// that failed and the caller can retry it.
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	job.QueueMessageID = msgID
	if err := u.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, fmt.Errorf("record queue message id: %w", err)
	}
	metrics.IncJob(string(kind), string(job.Status))
	return job, nil
}

func (u *jobUC) HandleCallback(ctx context.Context, jobID string) error {
	ctx = logging.WithJobID(ctx, jobID)

	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncQueueCallback("rejected")
		}
		return err
	}
	if job.Terminal() {
		// Duplicate delivery after completion. Success, so the queue stops
		// retrying.
		metrics.IncQueueCallback("duplicate")
		return nil
	}

	won, err := u.jobs.ClaimPending(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !won {
		// A concurrent delivery owns it right now.
		metrics.IncQueueCallback("duplicate")
		return nil
	}

	if err := u.run(ctx, job); err != nil {
		job.Status = model.JobStatusFailed
		job.LastError = err.Error()
		if saveErr := u.jobs.Save(ctx, repository.NoTX, job); saveErr != nil {
			u.log.Error().Err(saveErr).Str("job_id", job.ID).Msg("record job failure")
		}
		metrics.IncQueueCallback("error")
		metrics.IncJob(string(job.Kind), string(job.Status))
		return err
	}

	job.Status = model.JobStatusCompleted
	job.LastError = ""
	if err := u.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return fmt.Errorf("record job completion: %w", err)
	}
	if u.buffer != nil {
		_ = u.buffer.Store(ctx, job.ID, job.Buffer)
	}
	metrics.IncQueueCallback("processed")
	metrics.IncJob(string(job.Kind), string(job.Status))
	return nil
}

// run executes the claimed job, streaming output into the job buffer at
// bounded intervals.
func (u *jobUC) run(ctx context.Context, job *model.Job) error {
	sink := u.newBufferSink(ctx, job)
	defer sink.stop()

	switch job.Kind {
	case model.JobKindChatResponse:
		// The message claim inside ProcessMessage still guards against the
		// periodic claimer picking the same placeholder up.
		if err := u.pending.ProcessMessage(ctx, job.RelatedEntityID, sink.write); err != nil {
			return fmt.Errorf("chat response: %w", err)
		}
	case model.JobKindToolGeneration:
		text, err := u.gen.GenerateStream(ctx, job.RelatedEntityID, sink.write)
		if err != nil {
			return fmt.Errorf("tool generation: %w", err)
		}
		if job.Buffer == "" {
			job.AppendBuffer(text)
		}
	default:
		return fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidArgument, job.Kind)
	}
	return nil
}

func (u *jobUC) GetJob(ctx context.Context, userID, jobID string) (*model.Job, error) {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	// Prefer the mirror while streaming; it is flushed on the same cadence
	// but avoids racing the durable write.
	if u.buffer != nil && !job.Terminal() {
		if b, ok, err := u.buffer.Load(ctx, job.ID); err == nil && ok && len(b) > len(job.Buffer) {
			job.Buffer = b
		}
	}
	return job, nil
}

func (u *jobUC) Detach(ctx context.Context, userID, jobID string) error {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return domain.ErrNotFound
	}
	return u.jobs.SetClientConnected(ctx, repository.NoTX, jobID, false)
}

// bufferSink accumulates streamed chunks on the job and flushes them to
// Postgres and the Redis mirror at bounded intervals. Per-chunk writes would
// hammer the database for no reader benefit.
type bufferSink struct {
	uc        *jobUC
	ctx       context.Context
	job       *model.Job
	mu        sync.Mutex
	lastFlush time.Time
	streaming bool
}

func (u *jobUC) newBufferSink(ctx context.Context, job *model.Job) *bufferSink {
	return &bufferSink{uc: u, ctx: ctx, job: job, lastFlush: time.Now()}
}

func (s *bufferSink) write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaming && strings.TrimSpace(chunk) != "" {
		s.streaming = true
		s.job.Status = model.JobStatusStreaming
		if err := s.uc.jobs.Save(s.ctx, repository.NoTX, s.job); err != nil {
			s.uc.log.Warn().Err(err).Str("job_id", s.job.ID).Msg("mark job streaming")
		}
	}
	s.job.AppendBuffer(chunk)
	if time.Since(s.lastFlush) >= s.uc.cfg.BufferFlushInterval {
		s.flushLocked()
	}
	return nil
}

func (s *bufferSink) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *bufferSink) flushLocked() {
	if err := s.uc.jobs.AppendBuffer(s.ctx, repository.NoTX, s.job.ID, s.job.Buffer); err != nil {
		s.uc.log.Warn().Err(err).Str("job_id", s.job.ID).Msg("flush job buffer")
	}
	if s.uc.buffer != nil {
		_ = s.uc.buffer.Store(s.ctx, s.job.ID, s.job.Buffer)
	}
	s.lastFlush = time.Now()
}
