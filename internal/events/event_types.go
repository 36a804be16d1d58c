package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned         EventType = "ticket_assigned"
	EventTicketAutoResolved     EventType = "ticket_auto_resolved"
	EventTicketAssignmentFailed EventType = "ticket_assignment_failed"
)

// AllTypes lists every event the assignment loop publishes.
var AllTypes = []EventType{EventTicketAssigned, EventTicketAutoResolved, EventTicketAssignmentFailed}

// Actor identifies what produced an event.
type Actor struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// SystemActor is the actor for events produced by the assignment loop.
var SystemActor = Actor{Type: "system", Name: "lx-autoassign"}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AssignmentPayload describes one ticket outcome.
type AssignmentPayload struct {
	RunID        string            `json:"run_id"`
	Team         string            `json:"team"`
	Number       string            `json:"number"`
	Assignee     string            `json:"assignee,omitempty"`
	Acknowledged bool              `json:"acknowledged"`
	Fields       map[string]string `json:"fields,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}
