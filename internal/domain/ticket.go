package domain

import "time"

// TicketState enumerates ServiceNow lifecycle states used by the assignment engine.
type TicketState string

const (
	TicketStateNew        TicketState = "1"
	TicketStateInProgress TicketState = "2"
	TicketStateOnHold     TicketState = "3"
	TicketStateResolved   TicketState = "6"
	TicketStateClosed     TicketState = "7"
	TicketStateAwaiting   TicketState = "10"
)

// Ticket is a read-mostly snapshot of an external ticket record.
type Ticket struct {
	ID               string
	Number           string
	State            TicketState
	ShortDescription string
	Description      string
	// Contact is the reporter identity (email or account id).
	Contact     string
	ContactName string
	AssignedTo  string
	Fields      map[string]string
	CreatedAt   time.Time
}

// Field names written by the assignment engine.
const (
	FieldState           = "state"
	FieldCategory        = "category"
	FieldSubcategory     = "subcategory"
	FieldIssueType       = "u_issue_type"
	FieldAssignmentGroup = "assignment_group"
	FieldAssignedTo      = "assigned_to"
	FieldShortDesc       = "short_description"
	FieldComments        = "comments"
	FieldWorkNotes       = "work_notes"
	FieldTimeWorked      = "time_worked"
	FieldCloseCode       = "close_code"
	FieldCloseNotes      = "close_notes"
)

// UpdateSet is the concrete set of field changes for one ticket.
type UpdateSet struct {
	Fields map[string]string
	// Acknowledge is true when Fields carries a customer-visible comment.
	Acknowledge bool
	Resolved    bool
}

// Get returns a field value from the update set.
func (u UpdateSet) Get(field string) string {
	return u.Fields[field]
}
