package repository

import (
	"strings"
	"testing"
	"time"
)

func TestBuildAuditQuery(t *testing.T) {
	team := "lx-feedback"
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildAuditQuery(AuditFilter{
		Team:       &team,
		EventTypes: []string{"ticket_assigned", "ticket_assignment_failed"},
		Since:      &since,
		Limit:      20,
	})

	for _, want := range []string{
		"team=$1",
		"event_type IN ($2,$3)",
		"occurred_at >= $4",
		"LIMIT $5",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 5 || args[0] != team || args[4] != 20 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildAuditQueryDefaultsLimit(t *testing.T) {
	for _, limit := range []int{0, -1, 10000} {
		query, args := buildAuditQuery(AuditFilter{Limit: limit})
		if !strings.Contains(query, "WHERE 1=1 ORDER BY") {
			t.Errorf("unexpected clauses: %s", query)
		}
		if len(args) != 1 || args[0] != 50 {
			t.Errorf("limit %d: args = %v", limit, args)
		}
	}
}
