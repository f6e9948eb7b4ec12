// File: internal/usecase/pending_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
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

const claimPassLockKey = "lock:pending_pass"

// Compile-time check
var _ PendingUseCase = (*pendingUC)(nil)

// PendingUseCase owns phase one of the pipeline: find pending assistant
// placeholders, claim them and drive each claimed one to a terminal state.
type PendingUseCase interface {
	// ProcessPending scans oldest-first and processes everything it can
	// claim. Returns how many messages reached a terminal state this pass.
	ProcessPending(ctx context.Context) (int, error)

	// ProcessMessage runs the claim-generate-finalize path for one message.
	// Losing the claim is a success (someone else owns it). fn, when not
	// nil, receives streamed chunks.
	ProcessMessage(ctx context.Context, messageID string, fn adapter.StreamFunc) error
}

type PendingConfig struct {
	ProcessingTimeout time.Duration
	MaxAttempts       int
	BatchLimit        int
}

type pendingUC struct {
	messages repository.MessageRepository
	gen      ResponseGenerator
	locker   red.Locker
	cfg      PendingConfig
	log      *zerolog.Logger
}

func NewPendingUseCase(
	messages repository.MessageRepository,
	gen ResponseGenerator,
	locker red.Locker,
	cfg PendingConfig,
	logger *zerolog.Logger,
) *pendingUC {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	l := logger.With().Str("component", "pending_claimer").Logger()
	return &pendingUC{messages: messages, gen: gen, locker: locker, cfg: cfg, log: &l}
}

func (p *pendingUC) ProcessPending(ctx context.Context) (int, error) {
	// Best-effort pass lock. Claims stay correct without it; the lock only
	// keeps overlapping instances from scanning the same rows. Only a held
	// lock skips the pass; a redis outage must not stop the claimer.
	if p.locker != nil {
		token, err := p.locker.TryLock(ctx, claimPassLockKey, time.Minute)
		switch {
		case err == nil:
			defer func() { _ = p.locker.Unlock(ctx, claimPassLockKey, token) }()
		case errors.Is(err, domain.ErrAlreadyExists):
			p.log.Debug().Msg("pass lock held, skipping scan")
			return 0, nil
		default:
			p.log.Warn().Err(err).Msg("pass lock unavailable, scanning without it")
		}
	}

	batch, err := p.messages.FindPendingAssistant(ctx, repository.NoTX, p.cfg.ProcessingTimeout, p.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("scan pending: %w", err)
	}

	done := 0
	for _, m := range batch {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if err := p.process(ctx, m, nil); err != nil {
			p.log.Error().Err(err).Str("message_id", m.ID).Msg("process pending message")
			continue
		}
		done++
	}
	return done, nil
}

func (p *pendingUC) ProcessMessage(ctx context.Context, messageID string, fn adapter.StreamFunc) error {
	m, err := p.messages.FindByID(ctx, repository.NoTX, messageID)
	if err != nil {
		return err
	}
	return p.process(ctx, m, fn)
}

func (p *pendingUC) process(ctx context.Context, m *model.Message, fn adapter.StreamFunc) error {
	ctx = logging.WithConversationID(ctx, m.ConversationID)

	switch m.Status {
	case model.MessageStatusPending:
		won, err := p.messages.ClaimPending(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		if !won {
			metrics.IncClaim("lost")
			return nil
		}
		metrics.IncClaim("won")

	case model.MessageStatusProcessing:
		// A stale claim from a crashed worker. Past the attempt cap we stop
		// retrying and make the failure user-visible. The snapshot from the
		// scan may be stale, so the claim must still be won conditionally: a
		// worker that finished meanwhile flipped the status and the update
		// loses here instead of clobbering a real reply.
		if m.Attempts >= p.cfg.MaxAttempts {
			won, err := p.messages.ReclaimStuck(ctx, m.ID, p.cfg.ProcessingTimeout, m.Attempts+1)
			if err != nil {
				return fmt.Errorf("reclaim capped message: %w", err)
			}
			if !won {
				metrics.IncClaim("lost")
				return nil
			}
			if err := p.messages.Finalize(ctx, repository.NoTX, m.ID, FallbackReply, model.MessageStatusCompleted); err != nil {
				return fmt.Errorf("finalize capped message: %w", err)
			}
			metrics.IncFallback("attempt_cap")
			metrics.IncMessageProcessed("fallback")
			return nil
		}
		won, err := p.messages.ReclaimStuck(ctx, m.ID, p.cfg.ProcessingTimeout, p.cfg.MaxAttempts)
		if err != nil {
			return fmt.Errorf("reclaim: %w", err)
		}
		if !won {
			metrics.IncClaim("lost")
			return nil
		}
		metrics.IncClaim("reclaimed")

	default:
		// Terminal already; nothing to do.
		return nil
	}

	return p.finalize(ctx, m, fn)
}

// finalize runs the generator and writes the terminal state. Any generator
// failure degrades to the fallback reply; a claimed message never stays
// processing after this returns nil.
func (p *pendingUC) finalize(ctx context.Context, m *model.Message, fn adapter.StreamFunc) error {
	content, genErr := p.gen.GenerateStream(ctx, m.ConversationID, fn)
	outcome := "completed"
	if genErr != nil || content == "" {
		p.log.Warn().Err(genErr).Str("message_id", m.ID).Msg("generation failed, using fallback")
		metrics.IncFallback(fallbackReason(genErr))
		content = FallbackReply
		outcome = "fallback"
	}
	if err := p.messages.Finalize(ctx, repository.NoTX, m.ID, content, model.MessageStatusCompleted); err != nil {
		metrics.IncMessageProcessed("failed")
		return fmt.Errorf("finalize: %w", err)
	}
	metrics.IncMessageProcessed(outcome)
	return nil
}

func fallbackReason(err error) string {
	switch {
	case err == nil, errors.Is(err, domain.ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, domain.ErrHistoryNoUserTurn):
		return "no_user_turn"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
