package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// MoveTicketRequest payload.
type MoveTicketRequest struct {
	TargetStageID string `json:"target_stage_id"`
	// ValidateTransitions defaults to true when omitted.
	ValidateTransitions *bool   `json:"validate_transitions"`
	Comment             string  `json:"comment"`
	ExpectedStageID     *string `json:"expected_stage_id"`
}

// MoveToInitialRequest payload.
type MoveToInitialRequest struct {
	ProcessID string `json:"process_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string              `json:"id"`
	ProcessID      string              `json:"process_id"`
	Title          string              `json:"title"`
	CurrentStageID string              `json:"current_stage_id"`
	Status         domain.TicketStatus `json:"status"`
	CompletedAt    *time.Time          `json:"completed_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// StageRefResponse names a stage in a movement.
type StageRefResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProcessID string `json:"process_id"`
	IsFinal   bool   `json:"is_final"`
}

// MovementResponse describes a completed move.
type MovementResponse struct {
	FromStage     *StageRefResponse `json:"from_stage"`
	ToStage       StageRefResponse  `json:"to_stage"`
	ActorID       string            `json:"actor_id,omitempty"`
	ActorName     string            `json:"actor_name"`
	MovedAt       time.Time         `json:"moved_at"`
	AutoCompleted bool              `json:"auto_completed"`
	AutoReopened  bool              `json:"auto_reopened"`
	CrossProcess  bool              `json:"cross_process"`
	SLADueAt      *time.Time        `json:"sla_due_at,omitempty"`
}

// CommentResponse represents an audit comment.
type CommentResponse struct {
	ID        string             `json:"id"`
	Kind      domain.CommentKind `json:"kind"`
	Body      string             `json:"body"`
	CreatedAt time.Time          `json:"created_at"`
}

// MoveTicketResponse is returned by the move endpoints.
type MoveTicketResponse struct {
	Ticket   TicketSummary    `json:"ticket"`
	Movement MovementResponse `json:"movement"`
	Comment  *CommentResponse `json:"comment,omitempty"`
}
