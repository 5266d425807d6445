// Package workflow holds the datastore-free rules of the stage engine: how a
// ticket's lifecycle follows the stage it lands in, how order collisions are
// corrected and how stage names compare.
package workflow

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TicketState is the part of a ticket derived from its current stage.
type TicketState struct {
	Status      domain.TicketStatus
	CompletedAt *time.Time
}

// Effect describes the lifecycle change a move produced.
type Effect string

const (
	EffectNone      Effect = "none"
	EffectCompleted Effect = "completed"
	EffectReopened  Effect = "reopened"
)

// StateOf extracts the derived fields from a ticket.
func StateOf(ticket *domain.Ticket) TicketState {
	return TicketState{Status: ticket.Status, CompletedAt: ticket.CompletedAt}
}

func (s TicketState) completed() bool {
	return s.Status == domain.TicketStatusCompleted || s.CompletedAt != nil
}

// DeriveTicketState computes the ticket state after landing in target.
// A ticket is completed exactly when its stage is final: entering a final
// stage completes it and entering a non-final stage reopens it.
func DeriveTicketState(target *domain.Stage, current TicketState, now time.Time) (TicketState, Effect) {
	if target.IsFinal {
		if current.completed() {
			next := TicketState{Status: domain.TicketStatusCompleted, CompletedAt: current.CompletedAt}
			if next.CompletedAt == nil {
				ts := now
				next.CompletedAt = &ts
			}
			return next, EffectNone
		}
		ts := now
		return TicketState{Status: domain.TicketStatusCompleted, CompletedAt: &ts}, EffectCompleted
	}

	if current.completed() {
		return TicketState{Status: domain.TicketStatusActive}, EffectReopened
	}
	return TicketState{Status: domain.TicketStatusActive}, EffectNone
}
