// File: internal/usecase/pipeline_test.go
package usecase

import (
	"context"
	"testing"
	"time"

	"journal-ai-coach/internal/domain/model"
)

// TestPipeline_SubmitToNotification walks the whole happy path the way the
// deployed system runs it: a user submits a message and polls pending, a
// claimer pass generates the reply, polling turns completed, and once the
// reply has aged past the delay the user gets exactly one push.
func TestPipeline_SubmitToNotification(t *testing.T) {
	ctx := context.Background()

	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	chat := NewChatUseCase(convs, msgs, fakeTM{}, nil, ChatConfig{}, testLogger())

	ai := &fakeAI{reply: "That sounds like a lot. What part weighed on you most?"}
	gen := NewResponseGenerator(convs, &memEntryRepo{}, ai, genConfig(), testLogger())
	pending := NewPendingUseCase(msgs, gen, nil, pendingConfig(), testLogger())

	subs := &memPushSubRepo{}
	sender := &fakePushSender{gone: map[string]bool{}}
	notif := NewNotificationUseCase(subs, &memSentRepo{}, msgs, convs, newMemEventRepo(), sender,
		NotificationConfig{ReplyDelay: 30 * time.Second, EventWindow: 5 * time.Minute}, testLogger())

	if _, err := notif.RegisterSubscription(ctx, "u1", "https://push.example/a", "p256dh", "auth"); err != nil {
		t.Fatalf("RegisterSubscription: %v", err)
	}

	// Submit. The caller is released immediately with a pending placeholder.
	conv, pendingID, err := chat.StartConversation(ctx, "u1", "", "", "I had a really hard day")
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if m, err := chat.GetMessage(ctx, "u1", pendingID); err != nil || m.Status != model.MessageStatusPending {
		t.Fatalf("early poll = %v/%v, want pending", m, err)
	}

	// One claimer pass picks it up and finishes it.
	n, err := pending.ProcessPending(ctx)
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}
	m, err := chat.GetMessage(ctx, "u1", pendingID)
	if err != nil {
		t.Fatalf("poll after processing: %v", err)
	}
	if m.Status != model.MessageStatusCompleted || m.Content == "" {
		t.Fatalf("reply = %s/%q", m.Status, m.Content)
	}

	// The reply is fresh, so the user is assumed to still be looking at the
	// app. No push yet.
	if _, err := notif.NotifyCompletedReplies(ctx); err != nil {
		t.Fatalf("NotifyCompletedReplies: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("push sent inside the delay window")
	}

	// Age the reply past the delay; the next pass sends exactly one push.
	msgs.mu.Lock()
	msgs.byID[pendingID].CreatedAt = time.Now().Add(-time.Minute)
	msgs.mu.Unlock()

	for i := 0; i < 2; i++ {
		if _, err := notif.NotifyCompletedReplies(ctx); err != nil {
			t.Fatalf("notify pass %d: %v", i, err)
		}
	}
	if len(sender.sent) != 1 {
		t.Fatalf("pushes = %d, want exactly 1", len(sender.sent))
	}

	// The user message never notifies; only the coach reply does.
	full, err := chat.GetConversation(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(full.Messages) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(full.Messages))
	}
}
