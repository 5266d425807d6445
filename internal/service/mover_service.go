package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// MoverService relocates tickets between stages and derives their
// completion state from the stage they land in.
type MoverService struct {
	stages      repository.StageRepository
	tickets     repository.TicketRepository
	comments    repository.TicketCommentRepository
	transitions *TransitionService
	tx          repository.Transactor
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// MoverDependencies bundles collaborators for the mover service.
type MoverDependencies struct {
	StageRepo   repository.StageRepository
	TicketRepo  repository.TicketRepository
	CommentRepo repository.TicketCommentRepository
	Transitions *TransitionService
	Transactor  repository.Transactor
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	// Clock overrides time.Now; tests pin it.
	Clock func() time.Time
}

// MoveInput describes one ticket move.
type MoveInput struct {
	TicketID            string
	TargetStageID       string
	ValidateTransitions bool
	Comment             string
	Actor               domain.Actor
	// ExpectedStageID, when set, makes the move fail with
	// CONCURRENT_MODIFICATION unless the ticket is still in that stage.
	ExpectedStageID *string
}

// MoveResult is returned by a successful move.
type MoveResult struct {
	Ticket   *domain.Ticket
	Movement domain.MovementDetail
	Comment  *domain.TicketComment
}

// NewMoverService constructs the service.
func NewMoverService(deps MoverDependencies) *MoverService {
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &MoverService{
		stages:      deps.StageRepo,
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		transitions: deps.Transitions,
		tx:          deps.Transactor,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      loggerOrNop(deps.Logger),
		now:         clock,
	}
}

// Move places the ticket in the target stage. The ticket update and its
// audit comment commit together; events are published after commit.
func (s *MoverService) Move(ctx context.Context, input MoveInput) (*MoveResult, error) {
	if strings.TrimSpace(input.TicketID) == "" || strings.TrimSpace(input.TargetStageID) == "" {
		return nil, apperrors.NewValidationError("ticket_id and target_stage_id are required", nil)
	}

	var (
		result *MoveResult
		effect workflow.Effect
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		target, err := s.stages.GetByID(ctx, input.TargetStageID)
		if err != nil {
			return notFoundOr(err, "stage", input.TargetStageID)
		}
		ticket, err := s.tickets.GetByID(ctx, input.TicketID)
		if err != nil {
			return notFoundOr(err, "ticket", input.TicketID)
		}
		if input.ExpectedStageID != nil && ticket.CurrentStageID != *input.ExpectedStageID {
			return staleTicket(ticket, *input.ExpectedStageID)
		}

		if input.ValidateTransitions {
			ok, err := s.transitions.CanTransition(ctx, ticket.CurrentStageID, target.ID)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewIllegalTransition(ticket.CurrentStageID, target.ID)
			}
		}

		var from *domain.StageRef
		if ticket.CurrentStageID != "" {
			if current, err := s.stages.GetByID(ctx, ticket.CurrentStageID); err == nil {
				ref := current.Ref()
				from = &ref
			} else if !isNotFound(err) {
				return apperrors.MapError(err)
			}
		}

		movedAt := s.now()
		var next workflow.TicketState
		next, effect = workflow.DeriveTicketState(target, workflow.StateOf(ticket), movedAt)

		crossProcess := ticket.ProcessID != target.ProcessID
		ticket.ProcessID = target.ProcessID
		ticket.CurrentStageID = target.ID
		ticket.Status = next.Status
		ticket.CompletedAt = next.CompletedAt

		if err := s.tickets.UpdateStage(ctx, ticket, input.ExpectedStageID); err != nil {
			switch {
			case errors.Is(err, repository.ErrStaleTicket):
				return apperrors.NewConcurrentModification("ticket", map[string]any{
					"ticket_id":         ticket.ID,
					"expected_stage_id": deref(input.ExpectedStageID),
				})
			case isNotFound(err):
				return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
			}
			return apperrors.MapError(err)
		}

		actor := input.Actor
		comment := &domain.TicketComment{
			TicketID: ticket.ID,
			Kind:     domain.CommentKindStageMove,
			Body:     workflow.MoveCommentBody(from, target.Ref(), actor, effect, input.Comment),
			IsSystem: true,
		}
		if actor.ID != "" {
			comment.AuthorID = &actor.ID
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return apperrors.MapError(err)
		}

		movement := domain.MovementDetail{
			TicketID:      ticket.ID,
			FromStage:     from,
			ToStage:       target.Ref(),
			Actor:         actor,
			MovedAt:       movedAt,
			AutoCompleted: effect == workflow.EffectCompleted,
			AutoReopened:  effect == workflow.EffectReopened,
			CrossProcess:  crossProcess,
		}
		if target.SLAHours != nil {
			due := movedAt.Add(time.Duration(*target.SLAHours) * time.Hour)
			movement.SLADueAt = &due
		}
		result = &MoveResult{Ticket: ticket, Movement: movement, Comment: comment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFrom(ctx, s.logger).Info("ticket moved",
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("to_stage_id", result.Movement.ToStage.ID),
		zap.String("effect", string(effect)),
		zap.Bool("cross_process", result.Movement.CrossProcess),
		zap.String("actor", input.Actor.DisplayName()))
	s.metrics.RecordMove(string(effect))
	s.publishMovement(ctx, result)
	return result, nil
}

// MoveToInitialStage places the ticket in the process's initial stage
// without transition validation.
func (s *MoverService) MoveToInitialStage(ctx context.Context, ticketID, processID string, actor domain.Actor) (*MoveResult, error) {
	initial, err := s.stages.GetInitial(ctx, processID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("initial stage", map[string]any{"process_id": processID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.Move(ctx, MoveInput{
		TicketID:            ticketID,
		TargetStageID:       initial.ID,
		ValidateTransitions: false,
		Actor:               actor,
	})
}

func (s *MoverService) publishMovement(ctx context.Context, result *MoveResult) {
	movement := result.Movement
	base := events.Event{
		TicketID:  movement.TicketID,
		ProcessID: movement.ToStage.ProcessID,
		Actor:     events.ActorFrom(movement.Actor),
		Timestamp: movement.MovedAt,
	}

	moved := base
	moved.Type = events.EventTicketStageMoved
	moved.Payload = events.NewStageMovedPayload(movement, result.Comment.ID)
	publishEvent(ctx, s.dispatcher, s.logger, moved)

	switch {
	case movement.AutoCompleted:
		completed := base
		completed.Type = events.EventTicketCompleted
		completed.Payload = events.TicketCompletedPayload{
			StageID:     movement.ToStage.ID,
			CompletedAt: *result.Ticket.CompletedAt,
		}
		publishEvent(ctx, s.dispatcher, s.logger, completed)
	case movement.AutoReopened:
		reopened := base
		reopened.Type = events.EventTicketReopened
		payload := events.TicketReopenedPayload{StageID: movement.ToStage.ID}
		if movement.FromStage != nil {
			payload.PreviousStageID = movement.FromStage.ID
		}
		reopened.Payload = payload
		publishEvent(ctx, s.dispatcher, s.logger, reopened)
	}
}

func staleTicket(ticket *domain.Ticket, expected string) error {
	return apperrors.NewConcurrentModification("ticket", map[string]any{
		"ticket_id":         ticket.ID,
		"expected_stage_id": expected,
		"current_stage_id":  ticket.CurrentStageID,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
