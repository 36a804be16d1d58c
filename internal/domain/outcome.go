package domain

import "time"

// AssignmentOutcome records the result of processing one ticket in one cycle.
type AssignmentOutcome struct {
	TicketID string    `json:"ticket_id"`
	Number   string    `json:"number"`
	Team     string    `json:"team"`
	Assignee string    `json:"assignee,omitempty"`
	Success  bool      `json:"success"`
	Resolved bool      `json:"resolved"`
	Updates  UpdateSet `json:"-"`
	Reason   string    `json:"reason,omitempty"`
}

// RunSummary aggregates the outcomes of a single cycle.
type RunSummary struct {
	RunID     string              `json:"run_id"`
	Team      string              `json:"team"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration_ns"`
	Processed int                 `json:"processed"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Outcomes  []AssignmentOutcome `json:"outcomes,omitempty"`
}

// Record adds an outcome to the summary counters.
func (s *RunSummary) Record(outcome AssignmentOutcome) {
	s.Processed++
	if outcome.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, outcome)
}
