package domain

import "time"

// PermissionManageWorkflow allows authoring stages, transitions and ordering.
const PermissionManageWorkflow = "workflow:manage"

// Token represents the metadata of an issued bearer token.
type Token struct {
	ID          string
	SubjectID   string
	Name        string
	Permissions []string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}
