package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/domain"
	"github.com/carias-rh/lx-toolbox/internal/events"
	"github.com/carias-rh/lx-toolbox/internal/repository"
)

// AuditService records assignment events in the audit repository.
type AuditService struct {
	repo   repository.AssignmentAuditRepository
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(repo repository.AssignmentAuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// RegisterHandlers subscribes to every assignment event.
func (a *AuditService) RegisterHandlers(d events.Dispatcher) {
	events.SubscribeAll(d, a.record)
}

// History returns the latest audit entries for team.
func (a *AuditService) History(ctx context.Context, team string, limit int) ([]domain.AuditEntry, error) {
	return a.repo.ListWithFilter(ctx, repository.AuditFilter{Team: &team, Limit: limit})
}

func (a *AuditService) record(ctx context.Context, event events.Event) error {
	entry := auditEntry(event)
	if err := a.repo.Create(ctx, &entry); err != nil {
		a.logger.Warn("audit write failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}

func auditEntry(event events.Event) domain.AuditEntry {
	entry := domain.AuditEntry{
		EventID:    event.ID,
		EventType:  string(event.Type),
		TicketID:   event.TicketID,
		OccurredAt: event.Timestamp,
	}
	if p, ok := event.Payload.(events.AssignmentPayload); ok {
		entry.RunID = p.RunID
		entry.Team = p.Team
		entry.TicketNumber = p.Number
		entry.Assignee = p.Assignee
		entry.Acknowledged = p.Acknowledged
		entry.Fields = p.Fields
		entry.Reason = p.Reason
	}
	return entry
}
