package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// NameKey returns the comparison key for stage names; two names clash when
// their keys are equal.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two stage names clash.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}

// DefaultTransitionLabel is the display label given to generated edges.
func DefaultTransitionLabel(target *domain.Stage) string {
	return fmt.Sprintf("Move to %s", target.Name)
}
