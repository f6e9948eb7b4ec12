package model

import (
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "pending"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusCompleted  MessageStatus = "completed"
	MessageStatusFailed     MessageStatus = "failed"
)

// Message is one turn in a coaching conversation. User messages are created
// already completed; assistant replies start as an empty pending placeholder
// and are filled in by the pipeline.
type Message struct {
	ID               string
	ConversationID   string
	Role             MessageRole
	Content          string
	Status           MessageStatus
	NotificationSent bool
	Attempts         int
	ClaimedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the message can no longer change state.
func (m *Message) Terminal() bool {
	return m.Status == MessageStatusCompleted || m.Status == MessageStatusFailed
}

// Conversation is the aggregate root for a coach chat. Messages are ordered
// by creation; insertion order is causal order.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewConversation(id, userID, title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Messages:  make([]Message, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewUserMessage returns a completed user turn.
func NewUserMessage(id, conversationID, content string) *Message {
	now := time.Now()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		Status:         MessageStatusCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewPendingAssistantMessage returns the empty placeholder the pipeline will
// later claim and fill.
func NewPendingAssistantMessage(id, conversationID string) *Message {
	now := time.Now()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Status:         MessageStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewSeedAssistantMessage returns a completed assistant turn used to open a
// proactive (notification-initiated) conversation.
func NewSeedAssistantMessage(id, conversationID, content string) *Message {
	now := time.Now()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        content,
		Status:         MessageStatusCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (c *Conversation) AddMessage(m Message) {
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = time.Now()
}

// RecentMessages returns the last n messages in order.
func (c *Conversation) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
