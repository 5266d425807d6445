package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/events"
)

// NotificationService fans movement events out to the notification layer.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  *events.RedisPublisher
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil publisher only logs.
func NewNotificationService(dispatcher events.Dispatcher, publisher *events.RedisPublisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     loggerOrNop(logger),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStageMoved, n.handleTicketStageMoved)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleLifecycleChange)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleLifecycleChange)
}

func (n *NotificationService) handleTicketStageMoved(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStageMoved",
		zap.String("ticket_id", event.TicketID),
		zap.String("process_id", event.ProcessID),
		zap.Any("payload", event.Payload))
	n.forward(ctx, event)
	return nil
}

func (n *NotificationService) handleLifecycleChange(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketLifecycleChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	n.forward(ctx, event)
	return nil
}

// forward is best-effort: a failed publish never fails the move.
func (n *NotificationService) forward(ctx context.Context, event events.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Handle(ctx, event); err != nil {
		n.logger.Warn("event fan-out failed",
			zap.String("channel", n.publisher.Channel()),
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
