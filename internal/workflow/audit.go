package workflow

import (
	"fmt"
	"strings"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// MoveCommentBody renders the audit comment appended after a move.
func MoveCommentBody(from *domain.StageRef, to domain.StageRef, actor domain.Actor, effect Effect, note string) string {
	var b strings.Builder
	if from == nil {
		fmt.Fprintf(&b, "Ticket placed in %q by %s.", to.Name, actor.DisplayName())
	} else {
		fmt.Fprintf(&b, "Ticket moved from %q to %q by %s.", from.Name, to.Name, actor.DisplayName())
	}
	switch effect {
	case EffectCompleted:
		b.WriteString(" Ticket was automatically marked as completed.")
	case EffectReopened:
		b.WriteString(" Ticket was automatically reopened.")
	}
	if note = strings.TrimSpace(note); note != "" {
		b.WriteString("\n\n")
		b.WriteString(note)
	}
	return b.String()
}
