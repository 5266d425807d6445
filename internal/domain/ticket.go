package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "active"
	TicketStatusCompleted TicketStatus = "completed"
)

// Ticket holds the work-item fields the stage engine reads and writes.
type Ticket struct {
	ID             string
	ProcessID      string
	Title          string
	CurrentStageID string
	Status         TicketStatus
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsCompleted reports whether the ticket is in its completed state.
func (t *Ticket) IsCompleted() bool {
	return t.Status == TicketStatusCompleted || t.CompletedAt != nil
}
