package domain

import "time"

// Actor identifies who triggered an operation.
type Actor struct {
	ID   string
	Name string
}

// DisplayName returns the best human-readable label for the actor.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.ID != "" {
		return a.ID
	}
	return "system"
}

// MovementDetail records one ticket move for callers such as reporting and
// notification triggers.
type MovementDetail struct {
	TicketID      string
	FromStage     *StageRef
	ToStage       StageRef
	Actor         Actor
	MovedAt       time.Time
	AutoCompleted bool
	AutoReopened  bool
	CrossProcess  bool
	SLADueAt      *time.Time
}
