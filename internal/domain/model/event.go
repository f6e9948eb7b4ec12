package model

import "time"

// AgendaEvent is a scheduled agenda item with optional before/after push
// reminders. Each reminder fires at most once; the sent flags make the
// periodic check idempotent.
type AgendaEvent struct {
	ID            string
	UserID        string
	Title         string
	StartAt       time.Time
	EndAt         time.Time
	NotifyBefore  bool
	MinutesBefore int
	BeforeSent    bool
	NotifyAfter   bool
	MinutesAfter  int
	AfterSent     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BeforeFireTime is the target moment for the pre-event reminder.
func (e *AgendaEvent) BeforeFireTime() time.Time {
	return e.StartAt.Add(-time.Duration(e.MinutesBefore) * time.Minute)
}

// AfterFireTime is the target moment for the post-event reminder.
func (e *AgendaEvent) AfterFireTime() time.Time {
	return e.EndAt.Add(time.Duration(e.MinutesAfter) * time.Minute)
}

// BeforeDue reports whether the pre-event reminder should fire now. The
// check runs periodically, so the target moment is widened into
// [fireTime, fireTime+window) to survive a delayed trigger without
// double-firing.
func (e *AgendaEvent) BeforeDue(now time.Time, window time.Duration) bool {
	if !e.NotifyBefore || e.BeforeSent {
		return false
	}
	ft := e.BeforeFireTime()
	return !now.Before(ft) && now.Before(ft.Add(window))
}

// AfterDue reports whether the post-event reminder should fire now.
func (e *AgendaEvent) AfterDue(now time.Time, window time.Duration) bool {
	if !e.NotifyAfter || e.AfterSent {
		return false
	}
	ft := e.AfterFireTime()
	return !now.Before(ft) && now.Before(ft.Add(window))
}

// BeforeMissed reports that the pre-event fire window has passed entirely
// without the reminder having been sent.
func (e *AgendaEvent) BeforeMissed(now time.Time, window time.Duration) bool {
	if !e.NotifyBefore || e.BeforeSent {
		return false
	}
	return !now.Before(e.BeforeFireTime().Add(window))
}

// AfterMissed reports that the post-event fire window has passed entirely
// without the reminder having been sent.
func (e *AgendaEvent) AfterMissed(now time.Time, window time.Duration) bool {
	if !e.NotifyAfter || e.AfterSent {
		return false
	}
	return !now.Before(e.AfterFireTime().Add(window))
}
