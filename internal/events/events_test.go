package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
)

type recordingPublisher struct {
	channel string
	bodies  [][]byte
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if r.err != nil {
		return r.err
	}
	r.channel = channel
	r.bodies = append(r.bodies, payload)
	return nil
}

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketStageMoved, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("first failed")
	})
	d.Subscribe(EventTicketStageMoved, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketCompleted, func(context.Context, Event) error {
		calls = append(calls, "completed")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketStageMoved})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Equal(t, []string{"first", "second"}, calls)

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketReopened}))
}

func TestRedisPublisherEncodesEvent(t *testing.T) {
	client := &recordingPublisher{}
	pub := NewRedisPublisher(client, "workflow.events")
	require.NotNil(t, pub)

	movedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	due := movedAt.Add(4 * time.Hour)
	movement := domain.MovementDetail{
		TicketID:      "t1",
		FromStage:     &domain.StageRef{ID: "s1", Name: "Doing", ProcessID: "p1"},
		ToStage:       domain.StageRef{ID: "s2", Name: "Done", ProcessID: "p1", IsFinal: true},
		MovedAt:       movedAt,
		AutoCompleted: true,
		SLADueAt:      &due,
	}
	event := Event{
		ID:        "e1",
		Type:      EventTicketStageMoved,
		TicketID:  "t1",
		ProcessID: "p1",
		Actor:     ActorFrom(domain.Actor{ID: "u1"}),
		Timestamp: movedAt,
		Payload:   NewStageMovedPayload(movement, "c1"),
	}
	require.NoError(t, pub.Handle(context.Background(), event))
	require.Len(t, client.bodies, 1)
	assert.Equal(t, "workflow.events", client.channel)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.bodies[0], &decoded))
	assert.Equal(t, "ticket_stage_moved", decoded["type"])
	assert.Equal(t, "u1", decoded["actor"].(map[string]any)["name"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, true, payload["auto_completed"])
	assert.Equal(t, "Doing", payload["from_stage"].(map[string]any)["name"])
	assert.Equal(t, "c1", payload["comment_id"])
}

func TestRedisPublisherDisabled(t *testing.T) {
	assert.Nil(t, NewRedisPublisher(nil, "x"))
	assert.Nil(t, NewRedisPublisher(&recordingPublisher{}, ""))

	var pub *RedisPublisher
	assert.NoError(t, pub.Handle(context.Background(), Event{}))
	assert.Empty(t, pub.Channel())
}

func TestRedisPublisherWrapsFailure(t *testing.T) {
	boom := errors.New("connection refused")
	pub := NewRedisPublisher(&recordingPublisher{err: boom}, "c")
	err := pub.Handle(context.Background(), Event{Type: EventTicketReopened})
	assert.ErrorIs(t, err, boom)
}
