package domain

import "github.com/carias-rh/lx-toolbox/internal/ack"

// ProcessorKind selects the per-team processor variant.
type ProcessorKind string

const (
	ProcessorStandard ProcessorKind = "standard"
	ProcessorEnriched ProcessorKind = "enriched"
	ProcessorGeneric  ProcessorKind = "generic"
)

// Rewrite replaces every From with To.
type Rewrite struct {
	From string
	To   string
}

// TeamConfig is the immutable per-team assignment record.
type TeamConfig struct {
	Key             string
	Name            string
	AssignmentGroup string
	Category        string
	Subcategory     string
	IssueType       string
	TargetStates    []TicketState
	// AutoResolveReporters are matched exactly against Ticket.Contact.
	AutoResolveReporters []string
	AckTemplate          string
	// Ack is AckTemplate parsed by the registry.
	Ack *ack.Template
	// AckSuppressMarkers disables the acknowledgment when the short
	// description contains any marker (case-insensitive).
	AckSuppressMarkers []string
	// AckRewrites are literal substitutions applied in order to the
	// rendered acknowledgment.
	AckRewrites       []Rewrite
	EnableRoundRobin  bool
	RoundRobinURL     string
	Assignees         []string
	DefaultAssignee   string
	TimeWorkedSeconds int
	Processor         ProcessorKind
}

// IsAutoResolveReporter reports whether tickets from reporter are closed automatically.
func (t TeamConfig) IsAutoResolveReporter(reporter string) bool {
	for _, r := range t.AutoResolveReporters {
		if r == reporter {
			return true
		}
	}
	return false
}
