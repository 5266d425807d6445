package auth

import (
	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// PermissionChecker decides whether a caller may place tickets in a stage.
// The stage engine stores required permissions but leaves enforcement to
// its callers.
type PermissionChecker interface {
	CheckStageEntry(principal *Principal, stage *domain.Stage) error
}

// ClaimsPermissionChecker grants entry when the token carries every
// permission the stage requires. Workflow managers may enter any stage.
type ClaimsPermissionChecker struct{}

// NewClaimsPermissionChecker constructs the checker.
func NewClaimsPermissionChecker() *ClaimsPermissionChecker {
	return &ClaimsPermissionChecker{}
}

// CheckStageEntry returns FORBIDDEN listing the missing permissions.
func (ClaimsPermissionChecker) CheckStageEntry(principal *Principal, stage *domain.Stage) error {
	if principal.HasPermission(domain.PermissionManageWorkflow) {
		return nil
	}
	var missing []string
	for _, required := range stage.RequiredPermissions {
		if !principal.HasPermission(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	err := apperrors.NewForbidden("missing permissions for stage " + stage.Name).(*apperrors.DomainError)
	err.Details = map[string]any{"stage_id": stage.ID, "missing_permissions": missing}
	return err
}
