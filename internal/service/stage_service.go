package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// StageService authors the stages of a process.
type StageService struct {
	stages      repository.StageRepository
	tickets     repository.TicketRepository
	transitions *TransitionService
	tx          repository.Transactor
	logger      *zap.Logger
	cfg         config.WorkflowConfig
}

// StageDependencies bundles collaborators for the stage service.
type StageDependencies struct {
	StageRepo   repository.StageRepository
	TicketRepo  repository.TicketRepository
	Transitions *TransitionService
	Transactor  repository.Transactor
	Logger      *zap.Logger
	Config      config.WorkflowConfig
}

// StageCreateInput describes a new stage. Nil OrderIndex or Priority means
// "append after the last stage".
type StageCreateInput struct {
	ProcessID           string
	ParentStageID       *string
	Name                string
	Description         string
	Color               string
	OrderIndex          *int
	Priority            *int
	IsInitial           bool
	IsFinal             bool
	SLAHours            *int
	RequiredPermissions []string
	AutomationRules     []map[string]any
	Settings            map[string]any
	AllowedTransitions  []string
}

// StagePatch lists the fields to change; nil fields are left untouched.
// AllowedTransitions set to an empty slice removes every outgoing edge.
type StagePatch struct {
	Name                *string
	Description         *string
	Color               *string
	OrderIndex          *int
	Priority            *int
	IsInitial           *bool
	IsFinal             *bool
	SLAHours            *int
	ClearSLAHours       bool
	RequiredPermissions *[]string
	AutomationRules     *[]map[string]any
	Settings            map[string]any
	AllowedTransitions  *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p StagePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil &&
		p.OrderIndex == nil && p.Priority == nil &&
		p.IsInitial == nil && p.IsFinal == nil &&
		p.SLAHours == nil && !p.ClearSLAHours &&
		p.RequiredPermissions == nil && p.AutomationRules == nil &&
		p.Settings == nil && p.AllowedTransitions == nil
}

// StageListFilter describes stage listing parameters.
type StageListFilter struct {
	ProcessID     string
	ParentStageID *string
	RootsOnly     bool
	IsInitial     *bool
	IsFinal       *bool
	SearchTerm    *string
	Limit         int
	Offset        int
}

// StageListResult is one page of stages plus the unpaged total.
type StageListResult struct {
	Items  []domain.Stage
	Total  int
	Limit  int
	Offset int
}

// StageNode is a root stage with its sub-stages.
type StageNode struct {
	Stage    domain.Stage
	Children []domain.Stage
}

// NewStageService constructs the service.
func NewStageService(deps StageDependencies) *StageService {
	return &StageService{
		stages:      deps.StageRepo,
		tickets:     deps.TicketRepo,
		transitions: deps.Transitions,
		tx:          deps.Transactor,
		logger:      loggerOrNop(deps.Logger),
		cfg:         deps.Config,
	}
}

// Create persists a stage, correcting order/priority collisions and
// installing its outgoing transitions, all in one transaction.
func (s *StageService) Create(ctx context.Context, input StageCreateInput) (*domain.Stage, error) {
	processID := strings.TrimSpace(input.ProcessID)
	name := strings.TrimSpace(input.Name)
	if processID == "" {
		return nil, apperrors.NewValidationError("process_id is required", nil)
	}
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if err := validateSLA(input.SLAHours); err != nil {
		return nil, err
	}

	stage := &domain.Stage{
		ProcessID:           processID,
		ParentStageID:       input.ParentStageID,
		Name:                name,
		Description:         strings.TrimSpace(input.Description),
		Color:               strings.TrimSpace(input.Color),
		IsInitial:           input.IsInitial,
		IsFinal:             input.IsFinal,
		SLAHours:            input.SLAHours,
		RequiredPermissions: normalizePermissions(input.RequiredPermissions),
		AutomationRules:     input.AutomationRules,
		Settings:            input.Settings,
	}
	if stage.AutomationRules == nil {
		stage.AutomationRules = []map[string]any{}
	}
	if stage.Settings == nil {
		stage.Settings = map[string]any{}
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if stage.ParentStageID != nil {
			if err := s.checkParent(ctx, processID, *stage.ParentStageID); err != nil {
				return err
			}
		}

		exists, err := s.stages.NameExists(ctx, processID, stage.ParentStageID, name, "")
		if err != nil {
			return apperrors.MapError(err)
		}
		if exists {
			return apperrors.NewDuplicateName(name, map[string]any{"process_id": processID})
		}

		slots, err := s.stages.OrderSlots(ctx, processID, input.OrderIndex, input.Priority)
		if err != nil {
			return apperrors.MapError(err)
		}
		stage.OrderIndex, stage.Priority = workflow.ResolveOrderPriority(input.OrderIndex, input.Priority, slots)

		if err := s.stages.Create(ctx, stage); err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewDuplicateName(name, map[string]any{"process_id": processID})
			}
			return apperrors.MapError(err)
		}

		if len(input.AllowedTransitions) > 0 {
			if err := s.transitions.ReplaceOutgoingEdges(ctx, stage.ID, input.AllowedTransitions); err != nil {
				return err
			}
		}
		stage.AllowedTransitions, err = s.transitions.outgoing(ctx, stage.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stage created",
		zap.String("stage_id", stage.ID),
		zap.String("process_id", stage.ProcessID),
		zap.Int("order_index", stage.OrderIndex),
		zap.Int("priority", stage.Priority))
	return stage, nil
}

// Update applies patch to the stage and, when AllowedTransitions is set,
// replaces its outgoing edges in the same transaction.
func (s *StageService) Update(ctx context.Context, id string, patch StagePatch) (*domain.Stage, error) {
	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError("no fields supplied to update", map[string]any{"id": id})
	}
	if err := validateSLA(patch.SLAHours); err != nil {
		return nil, err
	}

	var stage *domain.Stage
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stage, err = s.stages.GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "stage", id)
		}

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperrors.NewValidationError("name cannot be empty", nil)
			}
			exists, err := s.stages.NameExists(ctx, stage.ProcessID, stage.ParentStageID, name, stage.ID)
			if err != nil {
				return apperrors.MapError(err)
			}
			if exists {
				return apperrors.NewDuplicateName(name, map[string]any{"process_id": stage.ProcessID})
			}
			stage.Name = name
		}
		applyPatch(stage, patch)

		if err := s.stages.Update(ctx, stage); err != nil {
			switch {
			case isNotFound(err):
				return apperrors.NewNotFound("stage", map[string]any{"id": id})
			case isUniqueViolation(err):
				return apperrors.NewDuplicateName(stage.Name, map[string]any{"process_id": stage.ProcessID})
			}
			return apperrors.MapError(err)
		}

		if patch.AllowedTransitions != nil {
			if err := s.transitions.ReplaceOutgoingEdges(ctx, stage.ID, *patch.AllowedTransitions); err != nil {
				return err
			}
		}
		stage.AllowedTransitions, err = s.transitions.outgoing(ctx, stage.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stage updated", zap.String("stage_id", stage.ID), zap.String("process_id", stage.ProcessID))
	return stage, nil
}

// Delete removes an unoccupied leaf stage together with every edge touching it.
func (s *StageService) Delete(ctx context.Context, id string) error {
	var processID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		stage, err := s.stages.GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "stage", id)
		}
		processID = stage.ProcessID

		tickets, err := s.tickets.CountByStage(ctx, stage.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if tickets > 0 {
			return apperrors.NewHasDependentTickets(stage.ID, tickets)
		}
		children, err := s.stages.CountChildren(ctx, stage.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if children > 0 {
			return apperrors.NewHasSubStages(stage.ID, children)
		}

		if err := s.stages.Delete(ctx, stage.ProcessID, stage.ID); err != nil {
			switch {
			case isNotFound(err):
				return apperrors.NewNotFound("stage", map[string]any{"id": id})
			case isForeignKeyViolation(err):
				// a ticket moved in after the count
				return apperrors.NewHasDependentTickets(stage.ID, 1)
			}
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("stage deleted", zap.String("stage_id", id), zap.String("process_id", processID))
	return nil
}

// Get returns the stage with its outgoing transitions.
func (s *StageService) Get(ctx context.Context, id string) (*domain.Stage, error) {
	stage, err := s.stages.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "stage", id)
	}
	stage.AllowedTransitions, err = s.transitions.outgoing(ctx, stage.ID)
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// List returns one page of a process's stages.
func (s *StageService) List(ctx context.Context, filter StageListFilter) (*StageListResult, error) {
	if strings.TrimSpace(filter.ProcessID) == "" {
		return nil, apperrors.NewValidationError("process_id is required", nil)
	}
	limit := s.cfg.PageBounds(filter.Limit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.stages.List(ctx, repository.StageFilter{
		ProcessID:     filter.ProcessID,
		ParentStageID: filter.ParentStageID,
		RootsOnly:     filter.RootsOnly,
		IsInitial:     filter.IsInitial,
		IsFinal:       filter.IsFinal,
		SearchTerm:    filter.SearchTerm,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.Stage{}
	}
	return &StageListResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetInitialStage returns the process's entry stage, or nil when it has none.
func (s *StageService) GetInitialStage(ctx context.Context, processID string) (*domain.Stage, error) {
	stage, err := s.stages.GetInitial(ctx, processID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return stage, nil
}

// GetFinalStages returns every completion stage of the process.
func (s *StageService) GetFinalStages(ctx context.Context, processID string) ([]domain.Stage, error) {
	stages, err := s.stages.ListFinal(ctx, processID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if stages == nil {
		stages = []domain.Stage{}
	}
	return stages, nil
}

// Tree groups the process's stages under their root stage.
func (s *StageService) Tree(ctx context.Context, processID string) ([]StageNode, error) {
	stages, err := s.stages.ListByProcess(ctx, processID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	nodes := []StageNode{}
	index := make(map[string]int)
	for _, stage := range stages {
		if stage.IsRoot() {
			index[stage.ID] = len(nodes)
			nodes = append(nodes, StageNode{Stage: stage, Children: []domain.Stage{}})
		}
	}
	for _, stage := range stages {
		if stage.IsRoot() {
			continue
		}
		if i, ok := index[*stage.ParentStageID]; ok {
			nodes[i].Children = append(nodes[i].Children, stage)
		}
	}
	return nodes, nil
}

// checkParent keeps the hierarchy two levels deep and inside one process.
func (s *StageService) checkParent(ctx context.Context, processID, parentID string) error {
	parent, err := s.stages.GetByID(ctx, parentID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.NewValidationError("parent stage does not exist", map[string]any{"parent_stage_id": parentID})
		}
		return apperrors.MapError(err)
	}
	if parent.ProcessID != processID {
		return apperrors.NewValidationError("parent stage belongs to another process", map[string]any{"parent_stage_id": parentID})
	}
	if !parent.IsRoot() {
		return apperrors.NewValidationError("parent stage must be a root stage", map[string]any{"parent_stage_id": parentID})
	}
	return nil
}

func applyPatch(stage *domain.Stage, patch StagePatch) {
	if patch.Description != nil {
		stage.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		stage.Color = strings.TrimSpace(*patch.Color)
	}
	if patch.OrderIndex != nil {
		stage.OrderIndex = *patch.OrderIndex
	}
	if patch.Priority != nil {
		stage.Priority = *patch.Priority
	}
	if patch.IsInitial != nil {
		stage.IsInitial = *patch.IsInitial
	}
	if patch.IsFinal != nil {
		stage.IsFinal = *patch.IsFinal
	}
	if patch.ClearSLAHours {
		stage.SLAHours = nil
	}
	if patch.SLAHours != nil {
		hours := *patch.SLAHours
		stage.SLAHours = &hours
	}
	if patch.RequiredPermissions != nil {
		stage.RequiredPermissions = normalizePermissions(*patch.RequiredPermissions)
	}
	if patch.AutomationRules != nil {
		stage.AutomationRules = *patch.AutomationRules
		if stage.AutomationRules == nil {
			stage.AutomationRules = []map[string]any{}
		}
	}
	if patch.Settings != nil {
		stage.Settings = patch.Settings
	}
}

func validateSLA(hours *int) error {
	if hours != nil && *hours <= 0 {
		return apperrors.NewValidationError("sla_hours must be positive", map[string]any{"sla_hours": *hours})
	}
	return nil
}

// normalizePermissions trims, drops blanks and de-duplicates permission tags.
func normalizePermissions(perms []string) []string {
	out := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
