package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// TicketCommentRepository stores audit comments.
type TicketCommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
}

type ticketCommentRepository struct {
	pool *pgxpool.Pool
}

// NewTicketCommentRepository builds repository.
func NewTicketCommentRepository(pool *pgxpool.Pool) TicketCommentRepository {
	return &ticketCommentRepository{pool: pool}
}

func (r *ticketCommentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, author_id, kind, body, is_system)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Kind,
		comment.Body,
		comment.IsSystem,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *ticketCommentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT id, ticket_id, author_id, kind, body, is_system, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Kind,
			&comment.Body,
			&comment.IsSystem,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
