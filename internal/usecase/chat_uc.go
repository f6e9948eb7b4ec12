// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/repository"
	red "journal-ai-coach/internal/infra/redis"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase is the client-facing surface of the pipeline: submitting a
// message, polling its status and reading conversations. Submitting never
// waits on the model; the caller gets a pending placeholder id back
// immediately.
type ChatUseCase interface {
	// StartConversation creates a conversation atomically with its opening
	// messages. seed, when non-empty, becomes a completed assistant turn
	// (proactive, notification-initiated openers). firstMessage, when
	// non-empty, becomes the first user turn plus a pending placeholder.
	StartConversation(ctx context.Context, userID, title, seed, firstMessage string) (*model.Conversation, string, error)

	// SubmitMessage appends a user turn and its pending assistant
	// placeholder and returns the placeholder id for polling.
	SubmitMessage(ctx context.Context, userID, conversationID, content string) (string, error)

	// GetMessage returns one message, scoped to its owner.
	GetMessage(ctx context.Context, userID, messageID string) (*model.Message, error)

	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
}

type ChatConfig struct {
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

type chatUC struct {
	convs    repository.ConversationRepository
	messages repository.MessageRepository
	tm       repository.TransactionManager
	limiter  *red.RateLimiter
	cfg      ChatConfig
	log      *zerolog.Logger
}

func NewChatUseCase(
	convs repository.ConversationRepository,
	messages repository.MessageRepository,
	tm repository.TransactionManager,
	limiter *red.RateLimiter,
	cfg ChatConfig,
	logger *zerolog.Logger,
) *chatUC {
	l := logger.With().Str("component", "chat").Logger()
	return &chatUC{convs: convs, messages: messages, tm: tm, limiter: limiter, cfg: cfg, log: &l}
}

func (c *chatUC) StartConversation(ctx context.Context, userID, title, seed, firstMessage string) (*model.Conversation, string, error) {
	seed = strings.TrimSpace(seed)
	firstMessage = strings.TrimSpace(firstMessage)
	if seed == "" && firstMessage == "" {
		return nil, "", fmt.Errorf("%w: conversation needs a seed or a first message", domain.ErrInvalidArgument)
	}
	if err := c.allowSubmit(ctx, userID); err != nil {
		return nil, "", err
	}

	conv := model.NewConversation(uuid.NewString(), userID, titleOr(title, firstMessage, seed))
	var pendingID string

	// One transaction: a half-created conversation (conversation without its
	// seed, or a user turn without its placeholder) must never be visible.
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := c.convs.Save(ctx, tx, conv); err != nil {
			return err
		}
		if seed != "" {
			sm := model.NewSeedAssistantMessage(uuid.NewString(), conv.ID, seed)
			if err := c.messages.Save(ctx, tx, sm); err != nil {
				return err
			}
			conv.AddMessage(*sm)
		}
		if firstMessage != "" {
			id, err := c.appendTurn(ctx, tx, conv, firstMessage)
			if err != nil {
				return err
			}
			pendingID = id
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("start conversation: %w", err)
	}
	return conv, pendingID, nil
}

func (c *chatUC) SubmitMessage(ctx context.Context, userID, conversationID, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message", domain.ErrInvalidArgument)
	}
	if err := c.allowSubmit(ctx, userID); err != nil {
		return "", err
	}

	conv, err := c.convs.FindByID(ctx, repository.NoTX, conversationID)
	if err != nil {
		return "", err
	}
	if conv.UserID != userID {
		// Ownership failures look identical to missing rows.
		return "", domain.ErrNotFound
	}

	var pendingID string
	err = c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		id, err := c.appendTurn(ctx, tx, conv, content)
		if err != nil {
			return err
		}
		pendingID = id
		return c.convs.Touch(ctx, tx, conv.ID)
	})
	if err != nil {
		return "", fmt.Errorf("submit message: %w", err)
	}
	return pendingID, nil
}

// appendTurn writes the completed user turn and its pending assistant
// placeholder, returning the placeholder id.
func (c *chatUC) appendTurn(ctx context.Context, tx repository.Tx, conv *model.Conversation, content string) (string, error) {
	um := model.NewUserMessage(uuid.NewString(), conv.ID, content)
	if err := c.messages.Save(ctx, tx, um); err != nil {
		return "", err
	}
	pm := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
	if err := c.messages.Save(ctx, tx, pm); err != nil {
		return "", err
	}
	conv.AddMessage(*um)
	conv.AddMessage(*pm)
	return pm.ID, nil
}

func (c *chatUC) GetMessage(ctx context.Context, userID, messageID string) (*model.Message, error) {
	m, err := c.messages.FindByID(ctx, repository.NoTX, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := c.convs.FindByID(ctx, repository.NoTX, m.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (c *chatUC) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := c.convs.FindByIDWithMessages(ctx, repository.NoTX, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (c *chatUC) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return c.convs.FindAllByUser(ctx, repository.NoTX, userID)
}

func (c *chatUC) allowSubmit(ctx context.Context, userID string) error {
	if c.limiter == nil || c.cfg.SubmitRateLimit <= 0 {
		return nil
	}
	ok, err := c.limiter.Allow(ctx, red.SubmitKey(userID), c.cfg.SubmitRateLimit, c.cfg.SubmitRateWindow)
	if err != nil {
		// Redis being down must not take submissions with it.
		c.log.Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func titleOr(title, firstMessage, seed string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if firstMessage != "" {
		return snippet(firstMessage, 60)
	}
	return snippet(seed, 60)
}
