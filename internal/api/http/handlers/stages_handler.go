package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// StagesHandler exposes process authoring endpoints.
type StagesHandler struct {
	stages      *service.StageService
	transitions *service.TransitionService
	reorder     *service.ReorderService
}

// NewStagesHandler constructs handler.
func NewStagesHandler(stages *service.StageService, transitions *service.TransitionService, reorder *service.ReorderService) *StagesHandler {
	return &StagesHandler{stages: stages, transitions: transitions, reorder: reorder}
}

// ListStages GET /processes/:processId/stages.
func (h *StagesHandler) ListStages(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	filter, err := parseStageQuery(c)
	if err != nil {
		return err
	}
	filter.ProcessID = processID

	result, err := h.stages.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StageListResponse{
		Items:  stageResponses(result.Items),
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}})
}

// CreateStage POST /processes/:processId/stages.
func (h *StagesHandler) CreateStage(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateStageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	stage, err := h.stages.Create(c.UserContext(), service.StageCreateInput{
		ProcessID:           processID,
		ParentStageID:       req.ParentStageID,
		Name:                req.Name,
		Description:         req.Description,
		Color:               req.Color,
		OrderIndex:          req.OrderIndex,
		Priority:            req.Priority,
		IsInitial:           req.IsInitial,
		IsFinal:             req.IsFinal,
		SLAHours:            req.SLAHours,
		RequiredPermissions: req.RequiredPermissions,
		AutomationRules:     req.AutomationRules,
		Settings:            req.Settings,
		AllowedTransitions:  req.AllowedTransitions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": stageResponse(stage)})
}

// InitialStage GET /processes/:processId/stages/initial.
func (h *StagesHandler) InitialStage(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	stage, err := h.stages.GetInitialStage(c.UserContext(), processID)
	if err != nil {
		return err
	}
	if stage == nil {
		return apperrors.NewNotFound("initial stage", map[string]any{"process_id": processID})
	}
	return c.JSON(fiber.Map{"data": stageResponse(stage)})
}

// FinalStages GET /processes/:processId/stages/final.
func (h *StagesHandler) FinalStages(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	stages, err := h.stages.GetFinalStages(c.UserContext(), processID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stageResponses(stages)})
}

// StageTree GET /processes/:processId/stages/tree.
func (h *StagesHandler) StageTree(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	nodes, err := h.stages.Tree(c.UserContext(), processID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stageTree(nodes)})
}

// ReorderStages PUT /processes/:processId/stages/reorder.
func (h *StagesHandler) ReorderStages(c *fiber.Ctx) error {
	processID, err := processParam(c)
	if err != nil {
		return err
	}
	var req dto.ReorderStagesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	assignments := make([]service.StageOrderAssignment, 0, len(req.Stages))
	for _, s := range req.Stages {
		assignments = append(assignments, service.StageOrderAssignment{
			StageID:    s.StageID,
			OrderIndex: s.OrderIndex,
			Priority:   s.Priority,
		})
	}
	if err := h.reorder.BulkReorder(c.UserContext(), processID, assignments); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetStage GET /stages/:id.
func (h *StagesHandler) GetStage(c *fiber.Ctx) error {
	stage, err := h.stages.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stageResponse(stage)})
}

// UpdateStage PATCH /stages/:id.
func (h *StagesHandler) UpdateStage(c *fiber.Ctx) error {
	var req dto.UpdateStageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	stage, err := h.stages.Update(c.UserContext(), c.Params("id"), service.StagePatch{
		Name:                req.Name,
		Description:         req.Description,
		Color:               req.Color,
		OrderIndex:          req.OrderIndex,
		Priority:            req.Priority,
		IsInitial:           req.IsInitial,
		IsFinal:             req.IsFinal,
		SLAHours:            req.SLAHours,
		ClearSLAHours:       req.ClearSLAHours,
		RequiredPermissions: req.RequiredPermissions,
		AutomationRules:     req.AutomationRules,
		Settings:            req.Settings,
		AllowedTransitions:  req.AllowedTransitions,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stageResponse(stage)})
}

// DeleteStage DELETE /stages/:id.
func (h *StagesHandler) DeleteStage(c *fiber.Ctx) error {
	if err := h.stages.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTransitions GET /stages/:id/transitions.
func (h *StagesHandler) ListTransitions(c *fiber.Ctx) error {
	edges, err := h.transitions.ListOutgoing(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponses(edges)})
}

// ReplaceTransitions PUT /stages/:id/transitions.
func (h *StagesHandler) ReplaceTransitions(c *fiber.Ctx) error {
	var req dto.ReplaceTransitionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id := c.Params("id")
	if err := h.transitions.ReplaceOutgoingEdges(c.UserContext(), id, req.TargetStageIDs); err != nil {
		return err
	}
	edges, err := h.transitions.ListOutgoing(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponses(edges)})
}

func processParam(c *fiber.Ctx) (string, error) {
	processID := c.Params("processId")
	if _, err := uuid.Parse(processID); err != nil {
		return "", apperrors.NewValidationError("process id must be a uuid", map[string]any{"process_id": processID})
	}
	return processID, nil
}

func parseStageQuery(c *fiber.Ctx) (service.StageListFilter, error) {
	filter := service.StageListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if parent := strings.TrimSpace(c.Query("parent_stage_id")); parent != "" {
		filter.ParentStageID = &parent
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}

	flags := []struct {
		key    string
		target **bool
	}{
		{"is_initial", &filter.IsInitial},
		{"is_final", &filter.IsFinal},
	}
	for _, flag := range flags {
		raw := c.Query(flag.key)
		if raw == "" {
			continue
		}
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{flag.key: raw})
		}
		*flag.target = &val
	}
	if raw := c.Query("roots_only"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{"roots_only": raw})
		}
		filter.RootsOnly = val
	}
	return filter, nil
}
