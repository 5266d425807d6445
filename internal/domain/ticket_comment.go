package domain

import "time"

// CommentKind differentiates generated audit entries from free-form notes.
type CommentKind string

const (
	CommentKindStageMove CommentKind = "stage_move"
	CommentKindNote      CommentKind = "note"
)

// TicketComment is an immutable audit trail entry on a ticket.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Kind      CommentKind
	Body      string
	IsSystem  bool
	CreatedAt time.Time
}
