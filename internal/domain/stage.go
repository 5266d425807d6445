package domain

import "time"

// Stage is a named step within one process's workflow. Stages form a
// two-level hierarchy: root stages and sub-stages grouped under a root.
type Stage struct {
	ID                  string
	ProcessID           string
	ParentStageID       *string
	Name                string
	Description         string
	Color               string
	OrderIndex          int
	Priority            int
	IsInitial           bool
	IsFinal             bool
	SLAHours            *int
	RequiredPermissions []string
	AutomationRules     []map[string]any
	Settings            map[string]any
	AllowedTransitions  []Transition
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsRoot reports whether the stage sits at the top of its process hierarchy.
func (s *Stage) IsRoot() bool {
	return s.ParentStageID == nil
}

// Ref returns the compact reference used in movement records.
func (s *Stage) Ref() StageRef {
	return StageRef{ID: s.ID, Name: s.Name, ProcessID: s.ProcessID, IsFinal: s.IsFinal}
}

// StageRef identifies a stage in audit and movement records.
type StageRef struct {
	ID        string
	Name      string
	ProcessID string
	IsFinal   bool
}
