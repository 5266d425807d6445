package dto

import "time"

// CreateStageRequest payload.
type CreateStageRequest struct {
	ParentStageID       *string          `json:"parent_stage_id"`
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	Color               string           `json:"color"`
	OrderIndex          *int             `json:"order_index"`
	Priority            *int             `json:"priority"`
	IsInitial           bool             `json:"is_initial"`
	IsFinal             bool             `json:"is_final"`
	SLAHours            *int             `json:"sla_hours"`
	RequiredPermissions []string         `json:"required_permissions"`
	AutomationRules     []map[string]any `json:"automation_rules"`
	Settings            map[string]any   `json:"settings"`
	AllowedTransitions  []string         `json:"allowed_transitions"`
}

// UpdateStageRequest payload. Omitted fields are left unchanged.
type UpdateStageRequest struct {
	Name                *string           `json:"name"`
	Description         *string           `json:"description"`
	Color               *string           `json:"color"`
	OrderIndex          *int              `json:"order_index"`
	Priority            *int              `json:"priority"`
	IsInitial           *bool             `json:"is_initial"`
	IsFinal             *bool             `json:"is_final"`
	SLAHours            *int              `json:"sla_hours"`
	ClearSLAHours       bool              `json:"clear_sla_hours"`
	RequiredPermissions *[]string         `json:"required_permissions"`
	AutomationRules     *[]map[string]any `json:"automation_rules"`
	Settings            map[string]any    `json:"settings"`
	AllowedTransitions  *[]string         `json:"allowed_transitions"`
}

// ReplaceTransitionsRequest payload.
type ReplaceTransitionsRequest struct {
	TargetStageIDs []string `json:"target_stage_ids"`
}

// ReorderStagesRequest payload.
type ReorderStagesRequest struct {
	Stages []StageOrder `json:"stages"`
}

// StageOrder is one reorder assignment.
type StageOrder struct {
	StageID    string `json:"stage_id"`
	OrderIndex int    `json:"order_index"`
	Priority   int    `json:"priority"`
}

// StageResponse represents a stage.
type StageResponse struct {
	ID                  string               `json:"id"`
	ProcessID           string               `json:"process_id"`
	ParentStageID       *string              `json:"parent_stage_id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	Color               string               `json:"color"`
	OrderIndex          int                  `json:"order_index"`
	Priority            int                  `json:"priority"`
	IsInitial           bool                 `json:"is_initial"`
	IsFinal             bool                 `json:"is_final"`
	SLAHours            *int                 `json:"sla_hours"`
	RequiredPermissions []string             `json:"required_permissions"`
	AutomationRules     []map[string]any     `json:"automation_rules"`
	Settings            map[string]any       `json:"settings"`
	AllowedTransitions  []TransitionResponse `json:"allowed_transitions,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// TransitionResponse represents an outgoing edge.
type TransitionResponse struct {
	ID          string         `json:"id"`
	ToStageID   string         `json:"to_stage_id"`
	ToStageName string         `json:"to_stage_name"`
	Type        string         `json:"transition_type"`
	IsDefault   bool           `json:"is_default"`
	OrderIndex  int            `json:"order_index"`
	DisplayName string         `json:"display_name"`
	Conditions  map[string]any `json:"conditions,omitempty"`
}

// StageTreeNode is a root stage with its sub-stages.
type StageTreeNode struct {
	StageResponse
	Children []StageResponse `json:"children"`
}

// StageListResponse is a page of stages.
type StageListResponse struct {
	Items  []StageResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
