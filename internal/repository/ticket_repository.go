package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TicketRepository reads tickets and writes their stage-derived fields.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateStage writes process, current stage, status and completed_at in
	// one statement. With expectedStageID set, the write only applies while
	// the ticket is still in that stage and ErrStaleTicket is returned otherwise.
	UpdateStage(ctx context.Context, ticket *domain.Ticket, expectedStageID *string) error
	CountByStage(ctx context.Context, stageID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, process_id, title, current_stage_id, status, completed_at, created_at, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ProcessID,
		&ticket.Title,
		&ticket.CurrentStageID,
		&ticket.Status,
		&ticket.CompletedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStage(ctx context.Context, ticket *domain.Ticket, expectedStageID *string) error {
	const query = `
        UPDATE tickets SET process_id=$1, current_stage_id=$2, status=$3, completed_at=$4, updated_at=NOW()
        WHERE id=$5 AND ($6::uuid IS NULL OR current_stage_id=$6::uuid)
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.ProcessID,
		ticket.CurrentStageID,
		ticket.Status,
		ticket.CompletedAt,
		ticket.ID,
		expectedStageID,
	).Scan(&ticket.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		if expectedStageID != nil {
			return ErrStaleTicket
		}
		return pgx.ErrNoRows
	default:
		return fmt.Errorf("update ticket stage: %w", err)
	}
}

func (r *ticketRepository) CountByStage(ctx context.Context, stageID string) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE current_stage_id=$1`, stageID).Scan(&count)
	return count, err
}
