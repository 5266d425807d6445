package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers of the workflow engine.
const (
	CodeValidation             = "INVALID_INPUT"
	CodeNotFound               = "NOT_FOUND"
	CodeDuplicateName          = "DUPLICATE_NAME"
	CodeHasDependentTickets    = "HAS_DEPENDENT_TICKETS"
	CodeHasSubStages           = "HAS_SUB_STAGES"
	CodeIllegalTransition      = "ILLEGAL_TRANSITION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["resource"] = resource
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewDuplicateName(name string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["name"] = name
	return NewDomainError(CodeDuplicateName, fmt.Sprintf("a stage named %q already exists at this level", name), http.StatusConflict, details)
}

func NewHasDependentTickets(stageID string, count int) error {
	return NewDomainError(CodeHasDependentTickets, "stage is the current stage of one or more tickets", http.StatusConflict, map[string]any{
		"stage_id":     stageID,
		"ticket_count": count,
	})
}

func NewHasSubStages(stageID string, count int) error {
	return NewDomainError(CodeHasSubStages, "stage still has sub-stages", http.StatusConflict, map[string]any{
		"stage_id":        stageID,
		"sub_stage_count": count,
	})
}

func NewIllegalTransition(fromStageID, toStageID string) error {
	return NewDomainError(CodeIllegalTransition, "transition between stages is not allowed", http.StatusUnprocessableEntity, map[string]any{
		"from_stage_id": fromStageID,
		"to_stage_id":   toStageID,
	})
}

func NewConcurrentModification(resource string, details map[string]any) error {
	return NewDomainError(CodeConcurrentModification, fmt.Sprintf("%s was modified concurrently", resource), http.StatusConflict, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError normalizes err into a DomainError, leaving nil untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
