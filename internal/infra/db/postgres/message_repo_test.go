//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"journal-ai-coach/internal/domain/model"
)

func seedConversation(t *testing.T, ctx context.Context) *model.Conversation {
	t.Helper()
	convRepo := NewConversationRepo(testPool)
	conv := model.NewConversation(uuid.NewString(), "user-1", "morning check-in")
	if err := convRepo.Save(ctx, nil, conv); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	return conv
}

func TestMessageRepo_ClaimPending(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewMessageRepo(testPool)

	t.Run("claims a pending message exactly once", func(t *testing.T) {
		cleanup(t)
		conv := seedConversation(t, ctx)
		m := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
		if err := repo.Save(ctx, nil, m); err != nil {
			t.Fatalf("failed to save message: %v", err)
		}

		ok, err := repo.ClaimPending(ctx, m.ID)
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if !ok {
			t.Fatal("expected first claim to succeed")
		}

		ok, err = repo.ClaimPending(ctx, m.ID)
		if err != nil {
			t.Fatalf("second claim errored: %v", err)
		}
		if ok {
			t.Fatal("expected second claim to report already claimed")
		}
	})

	t.Run("exactly one of K concurrent claimers wins", func(t *testing.T) {
		cleanup(t)
		conv := seedConversation(t, ctx)
		m := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
		if err := repo.Save(ctx, nil, m); err != nil {
			t.Fatalf("failed to save message: %v", err)
		}

		const k = 16
		var wg sync.WaitGroup
		wins := make(chan bool, k)
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.ClaimPending(ctx, m.ID)
				if err != nil {
					t.Errorf("claim errored: %v", err)
					return
				}
				wins <- ok
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for ok := range wins {
			if ok {
				won++
			}
		}
		if won != 1 {
			t.Fatalf("expected exactly 1 winner, got %d", won)
		}
	})

	t.Run("finalize cannot overwrite a terminal message", func(t *testing.T) {
		cleanup(t)
		conv := seedConversation(t, ctx)
		m := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
		if err := repo.Save(ctx, nil, m); err != nil {
			t.Fatalf("failed to save message: %v", err)
		}
		if ok, _ := repo.ClaimPending(ctx, m.ID); !ok {
			t.Fatal("setup claim should succeed")
		}
		if err := repo.Finalize(ctx, nil, m.ID, "the real reply", model.MessageStatusCompleted); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		// A late writer that lost its claim must not clobber the reply.
		if err := repo.Finalize(ctx, nil, m.ID, "stale fallback", model.MessageStatusCompleted); err != nil {
			t.Fatalf("late finalize errored: %v", err)
		}
		got, err := repo.FindByID(ctx, nil, m.ID)
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		if got.Content != "the real reply" {
			t.Fatalf("terminal content changed to %q", got.Content)
		}
	})

	t.Run("reclaim requires stale claim and respects attempt cap", func(t *testing.T) {
		cleanup(t)
		conv := seedConversation(t, ctx)
		m := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
		if err := repo.Save(ctx, nil, m); err != nil {
			t.Fatalf("failed to save message: %v", err)
		}
		if ok, _ := repo.ClaimPending(ctx, m.ID); !ok {
			t.Fatal("setup claim should succeed")
		}

		// Fresh claim: not reclaimable yet.
		ok, err := repo.ReclaimStuck(ctx, m.ID, time.Hour, 3)
		if err != nil {
			t.Fatalf("reclaim errored: %v", err)
		}
		if ok {
			t.Fatal("fresh processing message must not be reclaimable")
		}

		// Age the claim artificially.
		if _, err := testPool.Exec(ctx, `UPDATE messages SET claimed_at = NOW() - INTERVAL '2 hours' WHERE id = $1`, m.ID); err != nil {
			t.Fatalf("failed to age claim: %v", err)
		}
		ok, err = repo.ReclaimStuck(ctx, m.ID, time.Hour, 3)
		if err != nil {
			t.Fatalf("reclaim errored: %v", err)
		}
		if !ok {
			t.Fatal("stale processing message should be reclaimable")
		}

		// Exhaust attempts.
		if _, err := testPool.Exec(ctx, `UPDATE messages SET claimed_at = NOW() - INTERVAL '2 hours', attempts = 3 WHERE id = $1`, m.ID); err != nil {
			t.Fatalf("failed to exhaust attempts: %v", err)
		}
		ok, err = repo.ReclaimStuck(ctx, m.ID, time.Hour, 3)
		if err != nil {
			t.Fatalf("reclaim errored: %v", err)
		}
		if ok {
			t.Fatal("message past the attempt cap must not be reclaimable")
		}
	})
}

func TestMessageRepo_FindNotifiable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewMessageRepo(testPool)

	cleanup(t)
	conv := seedConversation(t, ctx)

	old := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
	if err := repo.Save(ctx, nil, old); err != nil {
		t.Fatalf("failed to save message: %v", err)
	}
	if err := repo.Finalize(ctx, nil, old.ID, "Hi!", model.MessageStatusCompleted); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	if _, err := testPool.Exec(ctx, `UPDATE messages SET created_at = NOW() - INTERVAL '2 minutes' WHERE id = $1`, old.ID); err != nil {
		t.Fatalf("failed to age message: %v", err)
	}

	fresh := model.NewPendingAssistantMessage(uuid.NewString(), conv.ID)
	if err := repo.Save(ctx, nil, fresh); err != nil {
		t.Fatalf("failed to save message: %v", err)
	}
	if err := repo.Finalize(ctx, nil, fresh.ID, "Hello again", model.MessageStatusCompleted); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	got, err := repo.FindNotifiable(ctx, nil, 30*time.Second, 10)
	if err != nil {
		t.Fatalf("find notifiable errored: %v", err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("expected only the aged message, got %d rows", len(got))
	}

	if err := repo.MarkNotified(ctx, nil, old.ID); err != nil {
		t.Fatalf("mark notified errored: %v", err)
	}
	got, err = repo.FindNotifiable(ctx, nil, 30*time.Second, 10)
	if err != nil {
		t.Fatalf("find notifiable errored: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no notifiable rows after marking, got %d", len(got))
	}
}
