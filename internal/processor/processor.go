// Package processor turns an unassigned ticket into the field updates
// that assign (or auto-resolve) it.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/directory"
	"github.com/carias-rh/lx-toolbox/internal/domain"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// FallbackCustomerName greets contacts whose name cannot be determined.
const FallbackCustomerName = "Customer"

const (
	resolvedCloseCode = "Solved Remotely (Permanently)"
	durationLayout    = "2006-01-02 15:04:05"
)

// Processor computes the update set for one ticket. Implementations must
// not modify ticket.
type Processor interface {
	Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error)
}

// Func adapts a function to Processor.
type Func func(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error)

func (f Func) Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error) {
	return f(ctx, ticket, team, assignee)
}

// Dispatcher selects a processor per team key, then per processor kind,
// and recovers processor panics into errors.
type Dispatcher struct {
	byTeam   map[string]Processor
	byKind   map[domain.ProcessorKind]Processor
	fallback Processor
}

// NewDispatcher wires the three processor variants. dir may be nil, in
// which case enriched teams greet with the ticket's contact name.
func NewDispatcher(dir directory.Directory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	generic := Generic{}
	return &Dispatcher{
		byTeam: make(map[string]Processor),
		byKind: map[domain.ProcessorKind]Processor{
			domain.ProcessorStandard: Standard{},
			domain.ProcessorEnriched: NewEnriched(dir, logger),
			domain.ProcessorGeneric:  generic,
		},
		fallback: generic,
	}
}

// Register binds a bespoke processor to a team key.
func (d *Dispatcher) Register(teamKey string, p Processor) {
	d.byTeam[teamKey] = p
}

// For returns the processor that handles team.
func (d *Dispatcher) For(team domain.TeamConfig) Processor {
	if p, ok := d.byTeam[team.Key]; ok {
		return p
	}
	if p, ok := d.byKind[team.Processor]; ok {
		return p
	}
	return d.fallback
}

// Process runs the team's processor. Errors and panics come back as
// PROCESSOR_FAILURE domain errors.
func (d *Dispatcher) Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (updates domain.UpdateSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			updates = domain.UpdateSet{}
			err = apperrors.NewProcessorFailure(ticket.ID, fmt.Errorf("panic: %v", r))
		}
	}()
	updates, err = d.For(team).Process(ctx, ticket, team, assignee)
	if err != nil {
		return domain.UpdateSet{}, apperrors.NewProcessorFailure(ticket.ID, err)
	}
	return updates, nil
}

// Generic applies the team's standard field set and the plain
// acknowledgment.
type Generic struct{}

func (Generic) Process(_ context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error) {
	if updates, ok := autoResolve(ticket, team, assignee); ok {
		return updates, nil
	}
	updates := baseUpdates(team, assignee)
	if err := acknowledge(&updates, team, customerName(ticket.ContactName), assignee, false); err != nil {
		return domain.UpdateSet{}, err
	}
	return updates, nil
}

// Standard is Generic plus the team's acknowledgment policy: subject
// markers that suppress the message and literal text rewrites.
type Standard struct{}

func (Standard) Process(_ context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error) {
	if updates, ok := autoResolve(ticket, team, assignee); ok {
		return updates, nil
	}
	updates := baseUpdates(team, assignee)
	if suppressed(ticket.ShortDescription, team.AckSuppressMarkers) {
		return updates, nil
	}
	if err := acknowledge(&updates, team, customerName(ticket.ContactName), assignee, true); err != nil {
		return domain.UpdateSet{}, err
	}
	return updates, nil
}

func baseUpdates(team domain.TeamConfig, assignee string) domain.UpdateSet {
	fields := map[string]string{
		domain.FieldState:           string(domain.TicketStateInProgress),
		domain.FieldAssignmentGroup: team.AssignmentGroup,
		domain.FieldAssignedTo:      assignee,
		domain.FieldWorkNotes:       fmt.Sprintf("Assigned to %s by lx-autoassign (%s).", assignee, team.Name),
	}
	setIf(fields, domain.FieldCategory, team.Category)
	setIf(fields, domain.FieldSubcategory, team.Subcategory)
	setIf(fields, domain.FieldIssueType, team.IssueType)
	if team.TimeWorkedSeconds > 0 {
		fields[domain.FieldTimeWorked] = Duration(team.TimeWorkedSeconds)
	}
	return domain.UpdateSet{Fields: fields}
}

func autoResolve(ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, bool) {
	if !team.IsAutoResolveReporter(ticket.Contact) {
		return domain.UpdateSet{}, false
	}
	updates := baseUpdates(team, assignee)
	updates.Fields[domain.FieldState] = string(domain.TicketStateResolved)
	updates.Fields[domain.FieldCloseCode] = resolvedCloseCode
	updates.Fields[domain.FieldCloseNotes] = fmt.Sprintf("Automated message from %s, closed without action.", ticket.Contact)
	updates.Fields[domain.FieldWorkNotes] = fmt.Sprintf("Auto-resolved by lx-autoassign: reporter %s is an automated sender.", ticket.Contact)
	updates.Resolved = true
	return updates, true
}

func acknowledge(updates *domain.UpdateSet, team domain.TeamConfig, customer, assignee string, rewrite bool) error {
	if team.Ack == nil {
		return nil
	}
	text := team.Ack.Render(ackData(team, customer, assignee))
	if rewrite {
		for _, rw := range team.AckRewrites {
			if rw.From != "" {
				text = strings.ReplaceAll(text, rw.From, rw.To)
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	updates.Fields[domain.FieldComments] = text
	updates.Acknowledge = true
	return nil
}

func suppressed(subject string, markers []string) bool {
	lower := strings.ToLower(subject)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// customerName returns the first name of a display name.
func customerName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return FallbackCustomerName
	}
	return fields[0]
}

// Duration formats seconds as a ServiceNow duration value.
func Duration(seconds int) string {
	return time.Unix(int64(seconds), 0).UTC().Format(durationLayout)
}

func setIf(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
