// File: internal/usecase/notification_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/adapter"
	"journal-ai-coach/internal/domain/ports/repository"
	"journal-ai-coach/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase owns every push the system sends: the debounced
// "coach replied" nudge, agenda event reminders, and the subscription
// lifecycle. Delivery is strictly best-effort; nothing here may fail a
// pipeline pass.
type NotificationUseCase interface {
	// NotifyCompletedReplies pushes for completed assistant replies older
	// than the delay window. Each reply gets exactly one attempt ever,
	// whatever the outcome. Returns how many replies were handled.
	NotifyCompletedReplies(ctx context.Context) (int, error)

	// NotifyEventReminders fires due before/after agenda reminders.
	NotifyEventReminders(ctx context.Context, now time.Time) (int, error)

	// DispatchToUser fans one payload out to every subscription the user
	// has, pruning endpoints that report themselves gone. True when at
	// least one endpoint accepted.
	DispatchToUser(ctx context.Context, userID string, payload adapter.PushPayload, topicRef string) (bool, error)

	RegisterSubscription(ctx context.Context, userID, endpoint, p256dh, auth string) (*model.PushSubscription, error)
	UnregisterSubscription(ctx context.Context, userID, endpoint string) error
}

type NotificationConfig struct {
	ReplyDelay  time.Duration
	EventWindow time.Duration
	BatchLimit  int
}

type notificationUC struct {
	subs     repository.PushSubscriptionRepository
	sent     repository.SentNotificationRepository
	messages repository.MessageRepository
	convs    repository.ConversationRepository
	events   repository.AgendaEventRepository
	sender   adapter.PushSender
	cfg      NotificationConfig
	log      *zerolog.Logger
}

func NewNotificationUseCase(
	subs repository.PushSubscriptionRepository,
	sent repository.SentNotificationRepository,
	messages repository.MessageRepository,
	convs repository.ConversationRepository,
	events repository.AgendaEventRepository,
	sender adapter.PushSender,
	cfg NotificationConfig,
	logger *zerolog.Logger,
) *notificationUC {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	l := logger.With().Str("component", "notifications").Logger()
	return &notificationUC{
		subs: subs, sent: sent, messages: messages, convs: convs,
		events: events, sender: sender, cfg: cfg, log: &l,
	}
}

func (n *notificationUC) NotifyCompletedReplies(ctx context.Context) (int, error) {
	batch, err := n.messages.FindNotifiable(ctx, repository.NoTX, n.cfg.ReplyDelay, n.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("scan notifiable: %w", err)
	}

	handled := 0
	for _, m := range batch {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		conv, err := n.convs.FindByID(ctx, repository.NoTX, m.ConversationID)
		if err != nil {
			n.log.Error().Err(err).Str("message_id", m.ID).Msg("load conversation for notification")
			continue
		}

		ok, err := n.DispatchToUser(ctx, conv.UserID, adapter.PushPayload{
			Title: "Your coach replied",
			Body:  snippet(m.Content, 120),
		}, conv.ID)
		if err != nil && !errors.Is(err, domain.ErrPushUnsupported) {
			n.log.Warn().Err(err).Str("message_id", m.ID).Msg("dispatch reply notification")
		}
		metrics.IncNotification("chat_reply", outcomeLabel(ok))

		// One attempt ever. Marking unconditionally is what makes the reply
		// nudge debounced rather than retried.
		if err := n.messages.MarkNotified(ctx, repository.NoTX, m.ID); err != nil {
			n.log.Error().Err(err).Str("message_id", m.ID).Msg("mark notified")
			continue
		}
		handled++
	}
	return handled, nil
}

func (n *notificationUC) NotifyEventReminders(ctx context.Context, now time.Time) (int, error) {
	events, err := n.events.FindWithPendingReminders(ctx, repository.NoTX, now, n.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("scan events: %w", err)
	}

	fired := 0
	for _, e := range events {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}
		if e.BeforeDue(now, n.cfg.EventWindow) {
			ok, _ := n.DispatchToUser(ctx, e.UserID, adapter.PushPayload{
				Title: "Coming up: " + e.Title,
				Body:  fmt.Sprintf("Starts at %s.", e.StartAt.Format("15:04")),
			}, e.ID)
			metrics.IncNotification("event_before", outcomeLabel(ok))
			if err := n.events.MarkBeforeSent(ctx, repository.NoTX, e.ID); err != nil {
				n.log.Error().Err(err).Str("event_id", e.ID).Msg("mark before-reminder sent")
			} else {
				fired++
			}
		} else if e.BeforeMissed(now, n.cfg.EventWindow) {
			// The moment passed hours ago; pushing "coming up" now would lie.
			// Mark it anyway so the pending-reminder scan stays bounded.
			if err := n.events.MarkBeforeSent(ctx, repository.NoTX, e.ID); err != nil {
				n.log.Error().Err(err).Str("event_id", e.ID).Msg("mark missed before-reminder")
			}
		}
		if e.AfterDue(now, n.cfg.EventWindow) {
			ok, _ := n.DispatchToUser(ctx, e.UserID, adapter.PushPayload{
				Title: "How did it go?",
				Body:  fmt.Sprintf("%s wrapped up. Want to reflect on it?", e.Title),
			}, e.ID)
			metrics.IncNotification("event_after", outcomeLabel(ok))
			if err := n.events.MarkAfterSent(ctx, repository.NoTX, e.ID); err != nil {
				n.log.Error().Err(err).Str("event_id", e.ID).Msg("mark after-reminder sent")
			} else {
				fired++
			}
		} else if e.AfterMissed(now, n.cfg.EventWindow) {
			if err := n.events.MarkAfterSent(ctx, repository.NoTX, e.ID); err != nil {
				n.log.Error().Err(err).Str("event_id", e.ID).Msg("mark missed after-reminder")
			}
		}
	}
	return fired, nil
}

func (n *notificationUC) DispatchToUser(ctx context.Context, userID string, payload adapter.PushPayload, topicRef string) (bool, error) {
	subs, err := n.subs.FindAllByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return false, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return false, nil
	}

	accepted := 0
	for _, sub := range subs {
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrEndpointGone):
			// The endpoint told us to stop. Prune and keep going; one dead
			// browser must not block the user's other devices.
			if delErr := n.subs.DeleteByEndpoint(ctx, repository.NoTX, userID, sub.Endpoint); delErr != nil {
				n.log.Error().Err(delErr).Str("endpoint", sub.Endpoint).Msg("prune subscription")
			} else {
				metrics.IncSubscriptionPruned()
			}
		case errors.Is(err, domain.ErrPushUnsupported):
			return false, err
		default:
			n.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("push delivery failed")
		}
	}

	n.audit(ctx, userID, payload, topicRef)
	return accepted > 0, nil
}

// audit appends to the sent-notification log. The log feeds topical
// de-duplication for proactive pushes; losing a row is logged, not fatal.
func (n *notificationUC) audit(ctx context.Context, userID string, payload adapter.PushPayload, topicRef string) {
	now := time.Now()
	rec := &model.SentNotification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     payload.Title,
		Body:      payload.Body,
		TopicRef:  topicRef,
		TimeOfDay: timeOfDay(now),
		SentAt:    now,
	}
	if err := n.sent.Save(ctx, repository.NoTX, rec); err != nil {
		n.log.Error().Err(err).Str("user_id", userID).Msg("append notification audit")
	}
}

func (n *notificationUC) RegisterSubscription(ctx context.Context, userID, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, fmt.Errorf("%w: endpoint and keys are required", domain.ErrInvalidArgument)
	}
	sub := &model.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now(),
	}
	if err := n.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

func (n *notificationUC) UnregisterSubscription(ctx context.Context, userID, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint required", domain.ErrInvalidArgument)
	}
	return n.subs.DeleteByEndpoint(ctx, repository.NoTX, userID, endpoint)
}

func outcomeLabel(ok bool) string {
	if ok {
		return "delivered"
	}
	return "undelivered"
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return "night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
