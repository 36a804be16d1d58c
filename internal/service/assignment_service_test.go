package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/carias-rh/lx-toolbox/internal/domain"
	"github.com/carias-rh/lx-toolbox/internal/events"
	"github.com/carias-rh/lx-toolbox/internal/observability"
	"github.com/carias-rh/lx-toolbox/internal/rotation"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

type fakeSource struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	err     error
	// failAfter lets the first calls succeed before err is returned.
	failAfter int
	calls     int
}

func (f *fakeSource) ListUnassigned(ctx context.Context, team domain.TeamConfig, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil && f.calls > f.failAfter {
		return nil, f.err
	}
	return f.tickets, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUpdater struct {
	fail      map[string]bool
	committed []string
}

func (f *fakeUpdater) UpdateTicket(ctx context.Context, id string, updates domain.UpdateSet) error {
	if f.fail[id] {
		return errors.New("HTTP 400")
	}
	f.committed = append(f.committed, id)
	return nil
}

type staticResolver struct {
	name string
	err  error
}

func (r staticResolver) Resolve(ctx context.Context, team domain.TeamConfig, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return r.name, r.err
}

type fieldProcessor struct {
	failOn string
}

func (p fieldProcessor) Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error) {
	if ticket.ID == p.failOn {
		return domain.UpdateSet{}, apperrors.NewProcessorFailure(ticket.ID, errors.New("boom"))
	}
	return domain.UpdateSet{Fields: map[string]string{
		domain.FieldState:      string(domain.TicketStateInProgress),
		domain.FieldAssignedTo: assignee,
	}}, nil
}

func threeTickets() []domain.Ticket {
	return []domain.Ticket{
		{ID: "t1", Number: "TR1"},
		{ID: "t2", Number: "TR2"},
		{ID: "t3", Number: "TR3"},
	}
}

var team = domain.TeamConfig{Key: "lx-feedback", Name: "LX"}

func newService(source TicketSource, updater TicketUpdater, resolver AssigneeResolver, proc TicketProcessor, d events.Dispatcher) *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{
		Source:     source,
		Updater:    updater,
		Resolver:   resolver,
		Processor:  proc,
		Dispatcher: d,
		Metrics:    observability.NewMetrics(),
		FetchLimit: 10,
	})
}

func TestRunOnceIsolatesCommitFailure(t *testing.T) {
	updater := &fakeUpdater{fail: map[string]bool{"t2": true}}
	dispatcher := events.NewInMemoryDispatcher()
	seen := map[events.EventType]int{}
	events.SubscribeAll(dispatcher, func(ctx context.Context, e events.Event) error {
		seen[e.Type]++
		return nil
	})
	svc := newService(&fakeSource{tickets: threeTickets()}, updater, staticResolver{name: "Bob"}, fieldProcessor{}, dispatcher)

	summary, err := svc.RunOnce(context.Background(), team, "")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Processed != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %d/%d/%d, want 3/2/1", summary.Processed, summary.Succeeded, summary.Failed)
	}
	if len(updater.committed) != 2 || updater.committed[0] != "t1" || updater.committed[1] != "t3" {
		t.Errorf("committed = %v", updater.committed)
	}
	if seen[events.EventTicketAssigned] != 2 || seen[events.EventTicketAssignmentFailed] != 1 {
		t.Errorf("events = %v", seen)
	}
	if summary.RunID == "" {
		t.Error("empty run id")
	}
	if st := svc.Status(); st.Cycles != 1 || st.LastSummary == nil || st.LastSummary.Failed != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunOnceIsolatesProcessorFailure(t *testing.T) {
	svc := newService(&fakeSource{tickets: threeTickets()}, &fakeUpdater{}, staticResolver{name: "Bob"},
		fieldProcessor{failOn: "t1"}, nil)
	summary, err := svc.RunOnce(context.Background(), team, "Alice")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Outcomes[1].Assignee != "Alice" {
		t.Errorf("explicit assignee not used: %+v", summary.Outcomes[1])
	}
}

func TestRunOnceFetchFailureAbortsCycle(t *testing.T) {
	updater := &fakeUpdater{}
	svc := newService(&fakeSource{err: apperrors.NewSourceUnavailable(errors.New("dial tcp"))}, updater,
		staticResolver{name: "Bob"}, fieldProcessor{}, nil)
	_, err := svc.RunOnce(context.Background(), team, "")
	if !apperrors.IsSourceUnavailable(err) {
		t.Fatalf("err = %v", err)
	}
	if len(updater.committed) != 0 {
		t.Error("updates attempted after fetch failure")
	}
	if apperrors.ExitCode(err) == apperrors.ExitOK {
		t.Error("fetch failure maps to exit code 0")
	}
}

func TestRunOnceMissingAssigneeIsConfigurationError(t *testing.T) {
	resolver := staticResolver{err: apperrors.NewConfigurationError("no assignee", nil)}
	svc := newService(&fakeSource{tickets: threeTickets()}, &fakeUpdater{}, resolver, fieldProcessor{}, nil)
	_, err := svc.RunOnce(context.Background(), team, "")
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	svc := newService(&fakeSource{}, &fakeUpdater{}, staticResolver{name: "Bob"}, fieldProcessor{}, nil)
	summary, err := svc.RunOnce(context.Background(), team, "")
	if err != nil || summary.Processed != 0 {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
}

func TestRunStopsWhenCanceledDuringSleep(t *testing.T) {
	source := &fakeSource{}
	svc := newService(source, &fakeUpdater{}, staticResolver{name: "Bob"}, fieldProcessor{}, nil)
	sleeping := make(chan struct{}, 1)
	svc.OnStateChange(func(s LoopState) {
		if s == StateSleeping {
			select {
			case sleeping <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, team, "", time.Hour) }()

	<-sleeping
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if svc.Status().State != StateStopped {
		t.Errorf("state = %s", svc.Status().State)
	}
	if source.Calls() != 1 {
		t.Errorf("fetches = %d", source.Calls())
	}
}

func TestWakeStartsNextCycle(t *testing.T) {
	source := &fakeSource{}
	svc := newService(source, &fakeUpdater{}, staticResolver{name: "Bob"}, fieldProcessor{}, nil)
	sleeping := make(chan struct{}, 4)
	svc.OnStateChange(func(s LoopState) {
		if s == StateSleeping {
			sleeping <- struct{}{}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, team, "", time.Hour) }()

	<-sleeping
	svc.Wake()
	select {
	case <-sleeping:
	case <-time.After(2 * time.Second):
		t.Fatal("wake did not trigger another cycle")
	}
	if source.Calls() != 2 {
		t.Errorf("fetches = %d, want 2", source.Calls())
	}
	cancel()
	<-done
}

func TestRunStartupFetchFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: apperrors.NewSourceUnavailable(errors.New("401"))}
	svc := newService(source, &fakeUpdater{}, staticResolver{name: "Bob"}, fieldProcessor{}, nil)
	err := svc.Run(context.Background(), team, "", time.Millisecond)
	if apperrors.ExitCode(err) != apperrors.ExitSourceUnavailable {
		t.Fatalf("err = %v (exit %d)", err, apperrors.ExitCode(err))
	}
}

type flakyResolver struct {
	mu    sync.Mutex
	calls int
}

func (r *flakyResolver) Resolve(ctx context.Context, team domain.TeamConfig, explicit string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls == 1 {
		return "Bob", nil
	}
	return "", fmt.Errorf("team %q: %w: 503", team.Key, rotation.ErrRotationUnavailable)
}

func waitForFetches(t *testing.T, source *fakeSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for source.Calls() < n {
		if time.Now().After(deadline) {
			t.Fatalf("fetches = %d, want at least %d", source.Calls(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunRetriesLaterFetchFailure(t *testing.T) {
	source := &fakeSource{err: apperrors.NewSourceUnavailable(errors.New("502")), failAfter: 1}
	svc := newService(source, &fakeUpdater{}, staticResolver{name: "Bob"}, fieldProcessor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, team, "", time.Millisecond) }()

	waitForFetches(t, source, 4)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil after retrying", err)
	}
	if got := svc.metrics.Teams()[team.Key].FetchErrors; got < 3 {
		t.Errorf("fetch errors = %d", got)
	}
}

func TestRunSurvivesRotationOutage(t *testing.T) {
	source := &fakeSource{tickets: threeTickets()}
	updater := &fakeUpdater{}
	svc := newService(source, updater, &flakyResolver{}, fieldProcessor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, team, "", time.Millisecond) }()

	waitForFetches(t, source, 3)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want the loop to keep polling", err)
	}
	counters := svc.metrics.Teams()[team.Key]
	if counters.Succeeded != 1 || counters.Failed < 5 {
		t.Errorf("counters = %+v, want 1 success and the rest failed", counters)
	}
}
