package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"journal-ai-coach/internal/config"
	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/adapter"
)

var _ adapter.PushSender = (*WebPushSender)(nil)

// WebPushSender delivers Web Push messages signed with VAPID keys. The keys
// are explicit construction-time configuration: without them NewWebPushSender
// returns a sender that reports domain.ErrPushUnsupported instead of silently
// doing nothing.
type WebPushSender struct {
	cfg        config.PushConfig
	configured bool
}

func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{
		cfg:        cfg,
		configured: cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "",
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error {
	if !s.configured {
		return domain.ErrPushUnsupported
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("webpush send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return domain.ErrEndpointGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("webpush endpoint returned %d", resp.StatusCode)
	}
	return nil
}
