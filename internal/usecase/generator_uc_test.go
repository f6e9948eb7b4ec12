// File: internal/usecase/generator_uc_test.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
)

func genConfig() GeneratorConfig {
	return GeneratorConfig{
		Model:             "gpt-4o-mini",
		HistoryMessages:   30,
		TokenBudget:       6000,
		EntryContextLimit: 5,
		RequestTimeout:    time.Second,
	}
}

func seedConversation(t *testing.T, convs *memConvRepo, msgs *memMessageRepo, userID string, turns ...*model.Message) *model.Conversation {
	t.Helper()
	conv := model.NewConversation(uuid.NewString(), userID, "t")
	if err := convs.Save(context.Background(), nil, conv); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	base := time.Now().Add(-time.Hour)
	for i, m := range turns {
		m.ConversationID = conv.ID
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := msgs.Save(context.Background(), nil, m); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}
	return conv
}

func TestGenerator_SeedFoldsIntoSystemPrompt(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	ai := &fakeAI{reply: "glad to hear it"}
	gen := NewResponseGenerator(convs, &memEntryRepo{}, ai, genConfig(), testLogger())

	conv := seedConversation(t, convs, msgs, "u1",
		model.NewSeedAssistantMessage(uuid.NewString(), "", "How did your week go?"),
		model.NewUserMessage(uuid.NewString(), "", "Pretty well actually"),
		model.NewPendingAssistantMessage(uuid.NewString(), ""),
	)

	out, err := gen.Generate(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "glad to hear it" {
		t.Fatalf("out = %q", out)
	}

	prompt := ai.lastPrompt
	if len(prompt) != 2 {
		t.Fatalf("prompt turns = %d, want system + user", len(prompt))
	}
	if prompt[0].Role != "system" || !strings.Contains(prompt[0].Content, "How did your week go?") {
		t.Fatalf("seed not folded into system prompt: %q", prompt[0].Content)
	}
	if prompt[1].Role != "user" {
		t.Fatalf("first turn role = %q, want user", prompt[1].Role)
	}
}

func TestGenerator_PendingTurnsFilteredOut(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	ai := &fakeAI{reply: "ok"}
	gen := NewResponseGenerator(convs, &memEntryRepo{}, ai, genConfig(), testLogger())

	conv := seedConversation(t, convs, msgs, "u1",
		model.NewUserMessage(uuid.NewString(), "", "first"),
		model.NewSeedAssistantMessage(uuid.NewString(), "", "reply one"),
		model.NewUserMessage(uuid.NewString(), "", "second"),
		model.NewPendingAssistantMessage(uuid.NewString(), ""),
	)

	if _, err := gen.Generate(context.Background(), conv.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, m := range ai.lastPrompt {
		if m.Content == "" {
			t.Fatal("pending placeholder leaked into the prompt")
		}
	}
	if len(ai.lastPrompt) != 4 {
		t.Fatalf("prompt turns = %d, want system + 3 completed", len(ai.lastPrompt))
	}
}

func TestGenerator_NoUserTurnFails(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	gen := NewResponseGenerator(convs, &memEntryRepo{}, &fakeAI{reply: "x"}, genConfig(), testLogger())

	// Seed only: nothing the user said yet, nothing to reply to.
	conv := seedConversation(t, convs, msgs, "u1",
		model.NewSeedAssistantMessage(uuid.NewString(), "", "hello there"),
		model.NewPendingAssistantMessage(uuid.NewString(), ""),
	)

	if _, err := gen.Generate(context.Background(), conv.ID); !errors.Is(err, domain.ErrHistoryNoUserTurn) {
		t.Fatalf("want ErrHistoryNoUserTurn, got %v", err)
	}
}

func TestGenerator_EmptyCompletionIsError(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	gen := NewResponseGenerator(convs, &memEntryRepo{}, &fakeAI{reply: "   "}, genConfig(), testLogger())

	conv := seedConversation(t, convs, msgs, "u1",
		model.NewUserMessage(uuid.NewString(), "", "hello"),
	)

	if _, err := gen.Generate(context.Background(), conv.ID); !errors.Is(err, domain.ErrEmptyCompletion) {
		t.Fatalf("want ErrEmptyCompletion, got %v", err)
	}
}

func TestGenerator_JournalEntriesInSystemPrompt(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	entries := &memEntryRepo{entries: []*model.JournalEntry{
		{ID: "e1", UserID: "u1", Title: "Monday", Mood: "tired", Body: "long day at work"},
	}}
	ai := &fakeAI{reply: "ok"}
	gen := NewResponseGenerator(convs, entries, ai, genConfig(), testLogger())

	conv := seedConversation(t, convs, msgs, "u1",
		model.NewUserMessage(uuid.NewString(), "", "hello"),
	)

	if _, err := gen.Generate(context.Background(), conv.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sys := ai.lastPrompt[0].Content
	if !strings.Contains(sys, "Monday") || !strings.Contains(sys, "tired") {
		t.Fatalf("journal context missing from system prompt: %q", sys)
	}
}

func TestGenerator_TokenBudgetDropsOldestTurns(t *testing.T) {
	msgs := newMemMessageRepo()
	convs := newMemConvRepo(msgs)
	ai := &fakeAI{reply: "ok"}
	cfg := genConfig()
	// fakeAI counts ~len/4+4 per turn; a tiny budget forces trimming.
	cfg.TokenBudget = 40
	gen := NewResponseGenerator(convs, &memEntryRepo{}, ai, cfg, testLogger())

	long := strings.Repeat("words and more words ", 10)
	conv := seedConversation(t, convs, msgs, "u1",
		model.NewUserMessage(uuid.NewString(), "", long),
		model.NewSeedAssistantMessage(uuid.NewString(), "", long),
		model.NewUserMessage(uuid.NewString(), "", "latest question"),
	)

	if _, err := gen.Generate(context.Background(), conv.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// The final user turn survives; the oldest pair is gone.
	last := ai.lastPrompt[len(ai.lastPrompt)-1]
	if last.Role != "user" || last.Content != "latest question" {
		t.Fatalf("final turn lost: %+v", last)
	}
	for _, m := range ai.lastPrompt[1:] {
		if m.Content == long && m.Role == "user" {
			t.Fatal("oldest turn survived a budget that cannot hold it")
		}
	}
	if ai.lastPrompt[1].Role != "user" {
		t.Fatalf("history no longer opens with a user turn: %q", ai.lastPrompt[1].Role)
	}
}
