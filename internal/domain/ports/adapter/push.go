package adapter

import (
	"context"

	"journal-ai-coach/internal/domain/model"
)

// PushPayload is the rendered notification handed to the sender.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushSender delivers one payload to one subscription. It must return
// domain.ErrEndpointGone when the endpoint reports HTTP 404/410 so the
// dispatcher can prune the row, and domain.ErrPushUnsupported when no
// delivery credentials were configured.
type PushSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload PushPayload) error
}
