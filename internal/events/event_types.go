package events

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStageMoved EventType = "ticket_stage_moved"
	EventTicketCompleted  EventType = "ticket_completed"
	EventTicketReopened   EventType = "ticket_reopened"
)

// MovementEventTypes lists every event a ticket move can emit.
var MovementEventTypes = []EventType{EventTicketStageMoved, EventTicketCompleted, EventTicketReopened}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ActorFrom converts a domain actor.
func ActorFrom(actor domain.Actor) Actor {
	return Actor{ID: actor.ID, Name: actor.DisplayName()}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ProcessID string      `json:"process_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StageRef is the wire form of a stage reference.
type StageRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProcessID string `json:"process_id"`
	IsFinal   bool   `json:"is_final"`
}

// TicketStageMovedPayload payload.
type TicketStageMovedPayload struct {
	FromStage     *StageRef  `json:"from_stage,omitempty"`
	ToStage       StageRef   `json:"to_stage"`
	AutoCompleted bool       `json:"auto_completed"`
	AutoReopened  bool       `json:"auto_reopened"`
	CrossProcess  bool       `json:"cross_process"`
	SLADueAt      *time.Time `json:"sla_due_at,omitempty"`
	CommentID     string     `json:"comment_id,omitempty"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	StageID     string    `json:"stage_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	StageID         string `json:"stage_id"`
	PreviousStageID string `json:"previous_stage_id,omitempty"`
}

// NewStageMovedPayload builds the payload of a ticket_stage_moved event.
func NewStageMovedPayload(movement domain.MovementDetail, commentID string) TicketStageMovedPayload {
	payload := TicketStageMovedPayload{
		ToStage:       stageRef(movement.ToStage),
		AutoCompleted: movement.AutoCompleted,
		AutoReopened:  movement.AutoReopened,
		CrossProcess:  movement.CrossProcess,
		SLADueAt:      movement.SLADueAt,
		CommentID:     commentID,
	}
	if movement.FromStage != nil {
		from := stageRef(*movement.FromStage)
		payload.FromStage = &from
	}
	return payload
}

func stageRef(ref domain.StageRef) StageRef {
	return StageRef{ID: ref.ID, Name: ref.Name, ProcessID: ref.ProcessID, IsFinal: ref.IsFinal}
}
