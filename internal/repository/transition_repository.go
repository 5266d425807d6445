package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TransitionRepository persists the outgoing edges of stages.
type TransitionRepository interface {
	Create(ctx context.Context, transition *domain.Transition) error
	DeleteBySource(ctx context.Context, fromStageID string) error
	ListBySource(ctx context.Context, fromStageID string) ([]domain.Transition, error)
	Exists(ctx context.Context, fromStageID, toStageID string) (bool, error)
}

type transitionRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionRepository builds repository.
func NewTransitionRepository(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepository{pool: pool}
}

func (r *transitionRepository) Create(ctx context.Context, transition *domain.Transition) error {
	const query = `
        INSERT INTO stage_transitions (from_stage_id, to_stage_id, transition_type, is_default, order_index, display_name, conditions)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		transition.FromStageID,
		transition.ToStageID,
		transition.Type,
		transition.IsDefault,
		transition.OrderIndex,
		transition.DisplayName,
		transition.Conditions,
	).Scan(&transition.ID, &transition.CreatedAt)
}

func (r *transitionRepository) DeleteBySource(ctx context.Context, fromStageID string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM stage_transitions WHERE from_stage_id=$1`, fromStageID); err != nil {
		return fmt.Errorf("delete transitions: %w", err)
	}
	return nil
}

func (r *transitionRepository) ListBySource(ctx context.Context, fromStageID string) ([]domain.Transition, error) {
	if !validID(fromStageID) {
		return nil, nil
	}
	const query = `
        SELECT t.id, t.from_stage_id, t.to_stage_id, s.name, t.transition_type, t.is_default,
               t.order_index, t.display_name, t.conditions, t.created_at
        FROM stage_transitions t
        JOIN stages s ON s.id = t.to_stage_id
        WHERE t.from_stage_id=$1
        ORDER BY t.order_index ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, fromStageID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()
	return scanTransitions(rows)
}

func (r *transitionRepository) Exists(ctx context.Context, fromStageID, toStageID string) (bool, error) {
	if !validID(fromStageID) || !validID(toStageID) {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM stage_transitions WHERE from_stage_id=$1 AND to_stage_id=$2)`
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, query, fromStageID, toStageID).Scan(&exists)
	return exists, err
}

func scanTransitions(rows pgx.Rows) ([]domain.Transition, error) {
	var result []domain.Transition
	for rows.Next() {
		var t domain.Transition
		if err := rows.Scan(
			&t.ID,
			&t.FromStageID,
			&t.ToStageID,
			&t.ToStageName,
			&t.Type,
			&t.IsDefault,
			&t.OrderIndex,
			&t.DisplayName,
			&t.Conditions,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
