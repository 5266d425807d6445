package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/service"
)

type recordingChannel struct {
	channels []string
}

func (r *recordingChannel) Publish(_ context.Context, channel string, _ []byte) error {
	r.channels = append(r.channels, channel)
	return nil
}

func TestStartNotificationWorker(t *testing.T) {
	StartNotificationWorker(nil)

	dispatcher := events.NewInMemoryDispatcher()
	channel := &recordingChannel{}
	publisher := events.NewRedisPublisher(channel, "workflow.events")
	StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, zaptest.NewLogger(t)))

	for _, eventType := range events.MovementEventTypes {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: eventType, TicketID: "t-1"}))
	}
	assert.Equal(t, []string{"workflow.events", "workflow.events", "workflow.events"}, channel.channels)
}
