package worker

import (
	"github.com/spec-kit/workflow-service/internal/service"
)

// StartNotificationWorker subscribes the notification forwarder to ticket
// movement events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
