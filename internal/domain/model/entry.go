package model

import "time"

// JournalEntry is a read-only view of a journal entry, owned by the
// journaling subsystem. The pipeline only reads recent entries to give the
// coach context.
type JournalEntry struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Mood      string
	CreatedAt time.Time
}
