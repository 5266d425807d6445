package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewDuplicateName("Done", nil), CodeDuplicateName, http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("create: %w", NewIllegalTransition("a", "b")), CodeIllegalTransition, http.StatusUnprocessableEntity},
		{"no rows", fmt.Errorf("get stage: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"anything else", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestNotFoundDetailsNameResource(t *testing.T) {
	err := NewNotFound("ticket", map[string]any{"id": "t-1"})
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ticket not found", domainErr.Message)
	assert.Equal(t, map[string]any{"id": "t-1", "resource": "ticket"}, domainErr.Details)
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: connection reset", err.Error())
	assert.False(t, HasCode(cause, CodeInternal))
}
