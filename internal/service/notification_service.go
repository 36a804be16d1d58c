package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/events"
)

// NotificationService writes a log line for every assignment event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketAutoResolved, n.handleTicketAutoResolved)
	n.dispatcher.Subscribe(events.EventTicketAssignmentFailed, n.handleAssignmentFailed)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	p, _ := event.Payload.(events.AssignmentPayload)
	n.logger.Info("TicketAssigned",
		zap.String("ticket_id", event.TicketID),
		zap.String("number", p.Number),
		zap.String("assignee", p.Assignee),
		zap.Bool("acknowledged", p.Acknowledged))
	return nil
}

func (n *NotificationService) handleTicketAutoResolved(ctx context.Context, event events.Event) error {
	p, _ := event.Payload.(events.AssignmentPayload)
	n.logger.Info("TicketAutoResolved", zap.String("ticket_id", event.TicketID), zap.String("number", p.Number))
	return nil
}

func (n *NotificationService) handleAssignmentFailed(ctx context.Context, event events.Event) error {
	p, _ := event.Payload.(events.AssignmentPayload)
	n.logger.Warn("TicketAssignmentFailed",
		zap.String("ticket_id", event.TicketID),
		zap.String("number", p.Number),
		zap.String("reason", p.Reason))
	return nil
}
