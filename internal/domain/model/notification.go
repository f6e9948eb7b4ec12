package model

import "time"

// PushSubscription is one registered Web Push endpoint for a user. Rows are
// created on client opt-in and deleted only by the dispatcher when the
// endpoint reports itself gone.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

// SentNotification is an append-only audit record of every push the system
// attempted. It feeds topical de-duplication for future proactive
// notifications and is never mutated or deleted.
type SentNotification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	TopicRef  string
	TimeOfDay string
	SentAt    time.Time
}
