package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusAndCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *Error
		status int
		code   string
	}{
		{"invalid credentials", InvalidCredentials(), http.StatusUnauthorized, CodeInvalidCredentials},
		{"token expired", TokenExpired(), http.StatusUnauthorized, CodeTokenExpired},
		{"token invalid", TokenInvalid(), http.StatusUnauthorized, CodeTokenInvalid},
		{"forbidden", Forbidden("no"), http.StatusForbidden, CodeForbidden},
		{"not found", RecordNotFound("Todo", 7), http.StatusNotFound, CodeRecordNotFound},
		{"unique", UniqueConstraint("email"), http.StatusConflict, CodeUniqueConstraint},
		{"validation", Validation(""), http.StatusBadRequest, CodeValidation},
		{"rate limited", TooManyRequests(), http.StatusTooManyRequests, CodeTooManyRequests},
		{"internal", Internal(), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestRecordNotFound_Message(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Todo with identifier 42 not found", RecordNotFound("Todo", 42).Error())
}

func TestIs_MatchesOnCodeThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("update todo: %w", RecordNotFound("Todo", 3))
	assert.ErrorIs(t, wrapped, ErrRecordNotFound)
	assert.NotErrorIs(t, wrapped, ErrTokenExpired)

	e, ok := From(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.Status)

	_, ok = From(errors.New("boom"))
	assert.False(t, ok)
}
