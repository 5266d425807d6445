package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// TicketsHandler moves tickets between stages.
type TicketsHandler struct {
	mover       *service.MoverService
	stages      *service.StageService
	permissions auth.PermissionChecker
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(mover *service.MoverService, stages *service.StageService, permissions auth.PermissionChecker) *TicketsHandler {
	return &TicketsHandler{mover: mover, stages: stages, permissions: permissions}
}

// MoveTicket POST /tickets/:id/move.
func (h *TicketsHandler) MoveTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MoveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TargetStageID) == "" {
		return apperrors.NewValidationError("target_stage_id required", nil)
	}

	target, err := h.stages.Get(c.UserContext(), req.TargetStageID)
	if err != nil {
		return err
	}
	if err := h.permissions.CheckStageEntry(principal, target); err != nil {
		return err
	}

	validate := true
	if req.ValidateTransitions != nil {
		validate = *req.ValidateTransitions
	}
	result, err := h.mover.Move(c.UserContext(), service.MoveInput{
		TicketID:            c.Params("id"),
		TargetStageID:       target.ID,
		ValidateTransitions: validate,
		Comment:             req.Comment,
		Actor:               principal.Actor(),
		ExpectedStageID:     req.ExpectedStageID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": moveResponse(result)})
}

// MoveToInitial POST /tickets/:id/move-to-initial.
func (h *TicketsHandler) MoveToInitial(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MoveToInitialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := uuid.Parse(strings.TrimSpace(req.ProcessID)); err != nil {
		return apperrors.NewValidationError("process_id must be a uuid", nil)
	}

	initial, err := h.stages.GetInitialStage(c.UserContext(), req.ProcessID)
	if err != nil {
		return err
	}
	if initial != nil {
		if err := h.permissions.CheckStageEntry(principal, initial); err != nil {
			return err
		}
	}
	result, err := h.mover.MoveToInitialStage(c.UserContext(), c.Params("id"), req.ProcessID, principal.Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": moveResponse(result)})
}
