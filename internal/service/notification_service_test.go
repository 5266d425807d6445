package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/workflow-service/internal/events"
)

type fakeChannel struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (c *fakeChannel) Publish(_ context.Context, _ string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis down")
	}
	c.messages = append(c.messages, string(payload))
	return nil
}

func TestNotificationServiceForwardsMoves(t *testing.T) {
	f := newFixture(t)
	channel := &fakeChannel{}
	notifications := NewNotificationService(f.dispatcher, events.NewRedisPublisher(channel, "workflow.events"), zaptest.NewLogger(t))
	notifications.RegisterHandlers()

	g := newMoverGraph(t, f)
	ticket := f.seedTicket(t, g.inProgress)
	_, err := f.mover.Move(context.Background(), MoveInput{TicketID: ticket.ID, TargetStageID: g.done.ID, Actor: agent})
	require.NoError(t, err)

	require.Len(t, channel.messages, 2)
	var moved events.Event
	require.NoError(t, json.Unmarshal([]byte(channel.messages[0]), &moved))
	assert.Equal(t, events.EventTicketStageMoved, moved.Type)
	assert.Equal(t, ticket.ID, moved.TicketID)
	assert.Equal(t, "Dana", moved.Actor.Name)
	assert.Contains(t, channel.messages[1], `"type":"ticket_completed"`)
}

func TestNotificationServiceFailureDoesNotFailMove(t *testing.T) {
	f := newFixture(t)
	channel := &fakeChannel{fail: true}
	NewNotificationService(f.dispatcher, events.NewRedisPublisher(channel, "workflow.events"), zaptest.NewLogger(t)).RegisterHandlers()

	g := newMoverGraph(t, f)
	ticket := f.seedTicket(t, g.inProgress)
	result, err := f.mover.Move(context.Background(), MoveInput{TicketID: ticket.ID, TargetStageID: g.todo.ID})
	require.NoError(t, err)
	assert.Equal(t, g.todo.ID, result.Ticket.CurrentStageID)
	assert.Equal(t, []events.EventType{events.EventTicketStageMoved}, f.events.types())
}
