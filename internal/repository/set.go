package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Set groups the repositories served by one storage backend.
type Set struct {
	Stages      StageRepository
	Transitions TransitionRepository
	Tickets     TicketRepository
	Comments    TicketCommentRepository
	Transactor  Transactor
}

// NewPostgresSet builds the pgx-backed repositories.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Stages:      NewStageRepository(pool),
		Transitions: NewTransitionRepository(pool),
		Tickets:     NewTicketRepository(pool),
		Comments:    NewTicketCommentRepository(pool),
		Transactor:  NewPgTransactor(pool),
	}
}

// Set exposes the store through the repository interfaces.
func (s *MemoryStore) Set() Set {
	return Set{
		Stages:      s.Stages(),
		Transitions: s.Transitions(),
		Tickets:     s.Tickets(),
		Comments:    s.Comments(),
		Transactor:  s,
	}
}
