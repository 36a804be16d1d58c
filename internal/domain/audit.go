package domain

import "time"

// AuditEntry is one persisted assignment event.
type AuditEntry struct {
	ID           int64
	EventID      string
	EventType    string
	RunID        string
	Team         string
	TicketID     string
	TicketNumber string
	Assignee     string
	Acknowledged bool
	Fields       map[string]string
	Reason       string
	OccurredAt   time.Time
	CreatedAt    time.Time
}
