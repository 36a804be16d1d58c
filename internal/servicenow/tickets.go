package servicenow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/carias-rh/lx-toolbox/internal/domain"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

const (
	// DefaultLimit applies when the caller passes a non-positive limit.
	DefaultLimit = 50
	// MaxLimit caps a single fetch.
	MaxLimit = 1000

	createdLayout = "2006-01-02 15:04:05"
)

// UnassignedQuery builds the encoded sysparm_query for a team's unassigned tickets.
func UnassignedQuery(team domain.TeamConfig) string {
	states := make([]string, 0, len(team.TargetStates))
	for _, s := range team.TargetStates {
		states = append(states, string(s))
	}
	parts := []string{
		"stateIN" + strings.Join(states, ","),
		"assigned_toISEMPTY",
	}
	if team.AssignmentGroup != "" {
		parts = append(parts, "assignment_group.name="+team.AssignmentGroup)
	}
	parts = append(parts, "ORDERBYsys_created_on")
	return strings.Join(parts, "^")
}

// ListUnassigned returns up to limit unassigned tickets in the team's
// target states, oldest first.
func (c *Client) ListUnassigned(ctx context.Context, team domain.TeamConfig, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	params := url.Values{}
	params.Set("sysparm_query", UnassignedQuery(team))
	params.Set("sysparm_limit", strconv.Itoa(limit))
	params.Set("sysparm_exclude_reference_link", "true")

	var out listResponse
	if err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+params.Encode(), nil, &out); err != nil {
		return nil, apperrors.NewSourceUnavailable(err)
	}

	wanted := make(map[domain.TicketState]struct{}, len(team.TargetStates))
	for _, s := range team.TargetStates {
		wanted[s] = struct{}{}
	}

	tickets := make([]domain.Ticket, 0, len(out.Result))
	for _, record := range out.Result {
		ticket := c.toTicket(record)
		if _, ok := wanted[ticket.State]; !ok || ticket.AssignedTo != "" {
			continue
		}
		tickets = append(tickets, ticket)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return olderFirst(tickets[i], tickets[j])
	})
	if len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

// UpdateTicket patches the ticket's fields.
func (c *Client) UpdateTicket(ctx context.Context, id string, updates domain.UpdateSet) error {
	if id == "" {
		return fmt.Errorf("empty ticket id")
	}
	target := fmt.Sprintf("%s/%s", c.tableURL(), url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, target, updates.Fields, nil)
}

// olderFirst orders by creation time, then number. Tickets with an
// unparseable creation time go last.
func olderFirst(a, b domain.Ticket) bool {
	aZero, bZero := a.CreatedAt.IsZero(), b.CreatedAt.IsZero()
	switch {
	case aZero != bZero:
		return bZero
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.Number < b.Number
	}
}

func (c *Client) toTicket(record map[string]any) domain.Ticket {
	fields := make(map[string]string, len(record))
	for k, v := range record {
		fields[k] = stringValue(v)
	}
	ticket := domain.Ticket{
		ID:               fields["sys_id"],
		Number:           fields["number"],
		State:            domain.TicketState(fields["state"]),
		ShortDescription: fields["short_description"],
		Description:      fields["description"],
		Contact:          fields[c.contactField],
		ContactName:      fields[c.contactNameField],
		AssignedTo:       fields["assigned_to"],
		Fields:           fields,
	}
	if created, err := time.Parse(createdLayout, fields["sys_created_on"]); err == nil {
		ticket.CreatedAt = created
	}
	return ticket
}

// stringValue flattens Table API values; reference fields may arrive as
// {"value": ..., "link": ...} objects.
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if inner, ok := val["value"]; ok {
			return stringValue(inner)
		}
		if inner, ok := val["display_value"]; ok {
			return stringValue(inner)
		}
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
