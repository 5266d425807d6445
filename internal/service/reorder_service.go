package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// ReorderService applies drag-and-drop orderings to a process's stages.
type ReorderService struct {
	stages repository.StageRepository
	tx     repository.Transactor
	logger *zap.Logger
}

// ReorderDependencies bundles collaborators for the reorder service.
type ReorderDependencies struct {
	StageRepo  repository.StageRepository
	Transactor repository.Transactor
	Logger     *zap.Logger
}

// StageOrderAssignment is the new position of one stage.
type StageOrderAssignment struct {
	StageID    string
	OrderIndex int
	Priority   int
}

// NewReorderService constructs the service.
func NewReorderService(deps ReorderDependencies) *ReorderService {
	return &ReorderService{
		stages: deps.StageRepo,
		tx:     deps.Transactor,
		logger: loggerOrNop(deps.Logger),
	}
}

// BulkReorder writes every assignment or none. Each update is scoped to
// processID, so a stage of another process counts as missing. Values are
// written as given, without collision correction.
func (s *ReorderService) BulkReorder(ctx context.Context, processID string, assignments []StageOrderAssignment) error {
	if strings.TrimSpace(processID) == "" {
		return apperrors.NewValidationError("process_id is required", nil)
	}
	if len(assignments) == 0 {
		return apperrors.NewValidationError("at least one stage assignment is required", nil)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, a := range assignments {
			if err := s.stages.UpdateOrder(ctx, processID, a.StageID, a.OrderIndex, a.Priority); err != nil {
				if isNotFound(err) {
					return apperrors.NewNotFound("stage", map[string]any{
						"id":         a.StageID,
						"process_id": processID,
						"position":   i,
					})
				}
				return apperrors.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("stages reordered", zap.String("process_id", processID), zap.Int("count", len(assignments)))
	return nil
}
