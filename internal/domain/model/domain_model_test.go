//go:build !integration

package model

import (
	"testing"
	"time"
)

// --- Message Model Tests ---

func TestNewUserMessage(t *testing.T) {
	t.Run("should be created already completed", func(t *testing.T) {
		m := NewUserMessage("m1", "c1", "hello")
		if m.Role != RoleUser {
			t.Errorf("expected role user, got %s", m.Role)
		}
		if m.Status != MessageStatusCompleted {
			t.Errorf("expected completed status, got %s", m.Status)
		}
		if !m.Terminal() {
			t.Error("a user message is terminal from birth")
		}
	})
}

func TestNewPendingAssistantMessage(t *testing.T) {
	t.Run("should start empty and pending", func(t *testing.T) {
		m := NewPendingAssistantMessage("m1", "c1")
		if m.Role != RoleAssistant {
			t.Errorf("expected role assistant, got %s", m.Role)
		}
		if m.Status != MessageStatusPending {
			t.Errorf("expected pending status, got %s", m.Status)
		}
		if m.Content != "" {
			t.Errorf("expected empty content, got %q", m.Content)
		}
		if m.Terminal() {
			t.Error("a pending placeholder must not be terminal")
		}
		if m.Attempts != 0 || m.ClaimedAt != nil {
			t.Error("a fresh placeholder has no claim history")
		}
	})
}

func TestMessageTerminal(t *testing.T) {
	cases := []struct {
		status MessageStatus
		want   bool
	}{
		{MessageStatusPending, false},
		{MessageStatusProcessing, false},
		{MessageStatusCompleted, true},
		{MessageStatusFailed, true},
	}
	for _, c := range cases {
		m := &Message{Status: c.status}
		if m.Terminal() != c.want {
			t.Errorf("Terminal() for %s = %v, want %v", c.status, m.Terminal(), c.want)
		}
	}
}

// --- Conversation Model Tests ---

func TestConversationRecentMessages(t *testing.T) {
	c := NewConversation("c1", "u1", "t")
	for i := 0; i < 5; i++ {
		c.AddMessage(*NewUserMessage("", c.ID, "m"))
	}

	if got := len(c.RecentMessages(3)); got != 3 {
		t.Errorf("RecentMessages(3) = %d messages, want 3", got)
	}
	if got := len(c.RecentMessages(10)); got != 5 {
		t.Errorf("RecentMessages(10) = %d messages, want all 5", got)
	}
	if got := len(c.RecentMessages(0)); got != 5 {
		t.Errorf("RecentMessages(0) = %d messages, want all 5", got)
	}
}

// --- Job Model Tests ---

func TestJobLifecycle(t *testing.T) {
	t.Run("new job is pending and client-connected", func(t *testing.T) {
		j := NewJob("j1", "u1", JobKindChatResponse, "m1")
		if j.Status != JobStatusPending {
			t.Errorf("expected pending, got %s", j.Status)
		}
		if !j.ClientConnected {
			t.Error("a fresh job assumes the client is watching")
		}
		if j.Terminal() {
			t.Error("a pending job is not terminal")
		}
	})

	t.Run("buffer accumulates chunks", func(t *testing.T) {
		j := NewJob("j1", "u1", JobKindToolGeneration, "c1")
		j.AppendBuffer("one ")
		j.AppendBuffer("two")
		if j.Buffer != "one two" {
			t.Errorf("buffer = %q", j.Buffer)
		}
	})

	t.Run("completed and failed are terminal", func(t *testing.T) {
		for _, st := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
			j := &Job{Status: st}
			if !j.Terminal() {
				t.Errorf("expected %s to be terminal", st)
			}
		}
		for _, st := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusStreaming} {
			j := &Job{Status: st}
			if j.Terminal() {
				t.Errorf("expected %s to be non-terminal", st)
			}
		}
	})
}

// --- Agenda Event Tests ---

func TestAgendaEventDue(t *testing.T) {
	now := time.Now()
	window := 5 * time.Minute

	t.Run("before reminder fires inside its window", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(8 * time.Minute), EndAt: now.Add(time.Hour),
			NotifyBefore: true, MinutesBefore: 10,
		}
		if !e.BeforeDue(now, window) {
			t.Error("fire time two minutes ago should be due")
		}
	})

	t.Run("missed window stays silent", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(-time.Hour), EndAt: now.Add(-30 * time.Minute),
			NotifyBefore: true, MinutesBefore: 10,
		}
		if e.BeforeDue(now, window) {
			t.Error("a long-missed reminder must not fire")
		}
	})

	t.Run("sent flag suppresses refiring", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now, EndAt: now.Add(time.Hour),
			NotifyBefore: true, MinutesBefore: 0, BeforeSent: true,
		}
		if e.BeforeDue(now, window) {
			t.Error("a sent reminder must not fire again")
		}
	})

	t.Run("after reminder due past end plus offset", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-16 * time.Minute),
			NotifyAfter: true, MinutesAfter: 15,
		}
		if !e.AfterDue(now, window) {
			t.Error("after reminder one minute past fire time should be due")
		}
	})

	t.Run("disabled reminders never fire", func(t *testing.T) {
		e := &AgendaEvent{StartAt: now, EndAt: now}
		if e.BeforeDue(now, window) || e.AfterDue(now, window) {
			t.Error("reminders without opt-in must not fire")
		}
	})

	t.Run("missed window is reported as missed, not due", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(-time.Hour), EndAt: now.Add(-30 * time.Minute),
			NotifyBefore: true, MinutesBefore: 10,
			NotifyAfter: true, MinutesAfter: 5,
		}
		if !e.BeforeMissed(now, window) || !e.AfterMissed(now, window) {
			t.Error("long-passed reminders should report missed")
		}
	})

	t.Run("a due reminder is not missed", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(8 * time.Minute), EndAt: now.Add(time.Hour),
			NotifyBefore: true, MinutesBefore: 10,
		}
		if e.BeforeMissed(now, window) {
			t.Error("a reminder inside its window is due, not missed")
		}
	})

	t.Run("sent reminders are never missed", func(t *testing.T) {
		e := &AgendaEvent{
			StartAt: now.Add(-time.Hour), EndAt: now.Add(-30 * time.Minute),
			NotifyBefore: true, MinutesBefore: 10, BeforeSent: true,
		}
		if e.BeforeMissed(now, window) {
			t.Error("an already-sent reminder cannot be missed")
		}
	})
}
