package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/workflow"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// TransitionService maintains the outgoing edge set of stages.
type TransitionService struct {
	stages      repository.StageRepository
	transitions repository.TransitionRepository
	tx          repository.Transactor
	logger      *zap.Logger
}

// TransitionDependencies bundles collaborators for the transition service.
type TransitionDependencies struct {
	StageRepo      repository.StageRepository
	TransitionRepo repository.TransitionRepository
	Transactor     repository.Transactor
	Logger         *zap.Logger
}

// NewTransitionService constructs the service.
func NewTransitionService(deps TransitionDependencies) *TransitionService {
	return &TransitionService{
		stages:      deps.StageRepo,
		transitions: deps.TransitionRepo,
		tx:          deps.Transactor,
		logger:      loggerOrNop(deps.Logger),
	}
}

// ReplaceOutgoingEdges rewrites every outgoing edge of stageID in one
// transaction. Edge i gets order_index i+1 of targetIDs. Targets that are
// blank, unknown, repeated, the source itself or in another process are
// skipped without error.
func (s *TransitionService) ReplaceOutgoingEdges(ctx context.Context, stageID string, targetIDs []string) error {
	installed := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		source, err := s.stages.GetByID(ctx, stageID)
		if err != nil {
			return notFoundOr(err, "stage", stageID)
		}
		if err := s.transitions.DeleteBySource(ctx, source.ID); err != nil {
			return apperrors.MapError(err)
		}

		seen := make(map[string]struct{}, len(targetIDs))
		for i, raw := range targetIDs {
			targetID := strings.TrimSpace(raw)
			if targetID == "" || targetID == source.ID {
				continue
			}
			if _, dup := seen[targetID]; dup {
				continue
			}
			target, err := s.stages.GetByID(ctx, targetID)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return apperrors.MapError(err)
			}
			if target.ProcessID != source.ProcessID {
				continue
			}
			seen[targetID] = struct{}{}

			edge := &domain.Transition{
				FromStageID: source.ID,
				ToStageID:   target.ID,
				ToStageName: target.Name,
				Type:        domain.TransitionTypeManual,
				IsDefault:   false,
				OrderIndex:  i + 1,
				DisplayName: workflow.DefaultTransitionLabel(target),
				Conditions:  map[string]any{},
			}
			if err := s.transitions.Create(ctx, edge); err != nil {
				return apperrors.MapError(err)
			}
			installed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("stage transitions replaced",
		zap.String("stage_id", stageID),
		zap.Int("requested", len(targetIDs)),
		zap.Int("installed", installed))
	return nil
}

// CanTransition reports whether an edge leads from fromID to toID.
func (s *TransitionService) CanTransition(ctx context.Context, fromID, toID string) (bool, error) {
	ok, err := s.transitions.Exists(ctx, fromID, toID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return ok, nil
}

// ListOutgoing returns the edges leaving stageID in order_index order.
func (s *TransitionService) ListOutgoing(ctx context.Context, stageID string) ([]domain.Transition, error) {
	if _, err := s.stages.GetByID(ctx, stageID); err != nil {
		return nil, notFoundOr(err, "stage", stageID)
	}
	return s.outgoing(ctx, stageID)
}

func (s *TransitionService) outgoing(ctx context.Context, stageID string) ([]domain.Transition, error) {
	edges, err := s.transitions.ListBySource(ctx, stageID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if edges == nil {
		edges = []domain.Transition{}
	}
	return edges, nil
}
