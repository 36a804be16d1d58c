package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/domain"
	"github.com/carias-rh/lx-toolbox/internal/events"
	"github.com/carias-rh/lx-toolbox/internal/observability"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// TicketSource lists a team's unassigned tickets, oldest first.
type TicketSource interface {
	ListUnassigned(ctx context.Context, team domain.TeamConfig, limit int) ([]domain.Ticket, error)
}

// TicketUpdater applies an update set to one ticket.
type TicketUpdater interface {
	UpdateTicket(ctx context.Context, id string, updates domain.UpdateSet) error
}

// AssigneeResolver picks the assignee for the next ticket.
type AssigneeResolver interface {
	Resolve(ctx context.Context, team domain.TeamConfig, explicit string) (string, error)
}

// TicketProcessor computes a ticket's update set.
type TicketProcessor interface {
	Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error)
}

// LoopState is the assignment loop's current phase.
type LoopState string

const (
	StateIdle       LoopState = "idle"
	StateFetching   LoopState = "fetching"
	StateProcessing LoopState = "processing"
	StateSleeping   LoopState = "sleeping"
	StateStopped    LoopState = "stopped"
)

// LoopStatus is a point-in-time view of the loop for the status API.
type LoopStatus struct {
	Team        string             `json:"team"`
	State       LoopState          `json:"state"`
	Cycles      int                `json:"cycles"`
	LastSummary *domain.RunSummary `json:"last_summary,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	NextCycleAt *time.Time         `json:"next_cycle_at,omitempty"`
}

// AssignmentService runs the fetch, resolve, process and commit cycle.
type AssignmentService struct {
	source     TicketSource
	updater    TicketUpdater
	resolver   AssigneeResolver
	processor  TicketProcessor
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	fetchLimit int
	now        func() time.Time

	wake chan struct{}

	mu        sync.RWMutex
	status    LoopStatus
	observers []func(LoopState)
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Source     TicketSource
	Updater    TicketUpdater
	Resolver   AssigneeResolver
	Processor  TicketProcessor
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	FetchLimit int
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		source:     deps.Source,
		updater:    deps.Updater,
		resolver:   deps.Resolver,
		processor:  deps.Processor,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		fetchLimit: deps.FetchLimit,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
		status:     LoopStatus{State: StateIdle},
	}
}

// OnStateChange registers fn to be called on every state transition.
func (s *AssignmentService) OnStateChange(fn func(LoopState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Status returns a copy of the loop status.
func (s *AssignmentService) Status() LoopStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.LastSummary != nil {
		summary := *st.LastSummary
		st.LastSummary = &summary
	}
	return st
}

// Wake cuts the current sleep short. A wake-up received while a cycle is
// running makes the following sleep return at once.
func (s *AssignmentService) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RunOnce performs a single cycle for team. A fetch failure aborts the
// cycle with a SOURCE_UNAVAILABLE error; a missing assignee aborts it
// with a configuration error. Per-ticket failures are counted, never
// returned.
func (s *AssignmentService) RunOnce(ctx context.Context, team domain.TeamConfig, explicitAssignee string) (domain.RunSummary, error) {
	summary := domain.RunSummary{RunID: uuid.NewString(), Team: team.Key, StartedAt: s.now()}
	log := s.logger.With(zap.String("team", team.Key), zap.String("run_id", summary.RunID))

	s.setState(StateFetching)
	tickets, err := s.source.ListUnassigned(ctx, team, s.fetchLimit)
	if err != nil {
		s.metrics.RecordFetchError(team.Key)
		log.Error("fetch unassigned tickets failed", zap.Error(err))
		return summary, err
	}
	log.Info("fetched unassigned tickets", zap.Int("count", len(tickets)))

	s.setState(StateProcessing)
	for _, ticket := range tickets {
		if ctx.Err() != nil {
			log.Info("cycle interrupted", zap.Int("remaining", len(tickets)-summary.Processed))
			break
		}
		outcome, err := s.assignTicket(ctx, team, ticket, explicitAssignee)
		if err != nil {
			summary.Duration = s.now().Sub(summary.StartedAt)
			return summary, err
		}
		summary.Record(outcome)
		s.publish(ctx, summary.RunID, outcome)
	}
	summary.Duration = s.now().Sub(summary.StartedAt)

	s.metrics.RecordCycle(team.Key, summary.Processed, summary.Succeeded, summary.Failed)
	log.Info("cycle complete",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	s.mu.Lock()
	s.status.Cycles++
	s.status.LastSummary = &summary
	s.mu.Unlock()
	return summary, nil
}

// Run repeats RunOnce every interval until ctx is canceled. Failing to
// fetch on the first cycle, or any configuration error, ends the loop
// with that error; later fetch failures are logged and retried on the
// next tick. Cancellation returns nil.
func (s *AssignmentService) Run(ctx context.Context, team domain.TeamConfig, explicitAssignee string, interval time.Duration) error {
	s.mu.Lock()
	s.status.Team = team.Key
	s.mu.Unlock()
	defer s.setState(StateStopped)

	for cycle := 0; ; cycle++ {
		_, err := s.RunOnce(ctx, team, explicitAssignee)
		s.setLastError(err)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			return nil
		case apperrors.IsConfiguration(err):
			return err
		case cycle == 0:
			return err
		default:
			s.logger.Warn("cycle failed, retrying after interval", zap.String("team", team.Key), zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
		if !s.sleep(ctx, interval) {
			return nil
		}
	}
}

// sleep waits for interval, a wake-up or cancellation. It reports false
// when ctx was canceled.
func (s *AssignmentService) sleep(ctx context.Context, interval time.Duration) bool {
	next := s.now().Add(interval)
	s.mu.Lock()
	s.status.NextCycleAt = &next
	s.mu.Unlock()
	s.setState(StateSleeping)

	defer func() {
		s.mu.Lock()
		s.status.NextCycleAt = nil
		s.mu.Unlock()
	}()

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.wake:
		s.logger.Info("woken before interval elapsed")
		return true
	}
}

func (s *AssignmentService) assignTicket(ctx context.Context, team domain.TeamConfig, ticket domain.Ticket, explicit string) (domain.AssignmentOutcome, error) {
	outcome := domain.AssignmentOutcome{TicketID: ticket.ID, Number: ticket.Number, Team: team.Key}
	log := s.logger.With(zap.String("team", team.Key), zap.String("ticket", ticket.Number))

	assignee, err := s.resolver.Resolve(ctx, team, explicit)
	if err != nil {
		if apperrors.IsConfiguration(err) {
			return outcome, err
		}
		outcome.Reason = err.Error()
		log.Error("resolve assignee failed", zap.Error(err))
		return outcome, nil
	}
	outcome.Assignee = assignee

	updates, err := s.processor.Process(ctx, ticket, team, assignee)
	if err != nil {
		outcome.Reason = err.Error()
		log.Error("process ticket failed", zap.Error(err))
		return outcome, nil
	}
	outcome.Updates = updates
	outcome.Resolved = updates.Resolved

	if !s.commit(ctx, ticket, updates) {
		outcome.Reason = apperrors.CodeUpdateFailed
		return outcome, nil
	}
	outcome.Success = true
	if updates.Resolved {
		log.Info("ticket auto-resolved", zap.String("reporter", ticket.Contact))
	} else {
		log.Info("ticket assigned", zap.String("assignee", assignee), zap.Bool("acknowledged", updates.Acknowledge))
	}
	return outcome, nil
}

// commit applies updates and reports success. It never retries; the
// ticket stays unassigned and is picked up again next cycle.
func (s *AssignmentService) commit(ctx context.Context, ticket domain.Ticket, updates domain.UpdateSet) bool {
	if err := s.updater.UpdateTicket(ctx, ticket.ID, updates); err != nil {
		s.logger.Error("update ticket failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("ticket", ticket.Number),
			zap.Error(apperrors.NewUpdateFailed(ticket.ID, err)))
		return false
	}
	return true
}

func (s *AssignmentService) publish(ctx context.Context, runID string, outcome domain.AssignmentOutcome) {
	if s.dispatcher == nil {
		return
	}
	eventType := events.EventTicketAssigned
	switch {
	case !outcome.Success:
		eventType = events.EventTicketAssignmentFailed
	case outcome.Resolved:
		eventType = events.EventTicketAutoResolved
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  outcome.TicketID,
		Actor:     events.SystemActor,
		Timestamp: s.now(),
		Payload: events.AssignmentPayload{
			RunID:        runID,
			Team:         outcome.Team,
			Number:       outcome.Number,
			Assignee:     outcome.Assignee,
			Acknowledged: outcome.Updates.Acknowledge,
			Fields:       outcome.Updates.Fields,
			Reason:       outcome.Reason,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event subscriber failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func (s *AssignmentService) setState(state LoopState) {
	s.mu.Lock()
	s.status.State = state
	observers := append([]func(LoopState){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}

func (s *AssignmentService) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.status.LastError = ""
		return
	}
	s.status.LastError = err.Error()
}
