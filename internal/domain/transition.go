package domain

import "time"

// TransitionType classifies how an edge is expected to be traversed.
type TransitionType string

const (
	TransitionTypeManual    TransitionType = "manual"
	TransitionTypeAutomatic TransitionType = "automatic"
)

// Transition is a directed, ordered edge between two stages.
type Transition struct {
	ID          string
	FromStageID string
	ToStageID   string
	ToStageName string
	Type        TransitionType
	IsDefault   bool
	OrderIndex  int
	DisplayName string
	Conditions  map[string]any
	CreatedAt   time.Time
}
