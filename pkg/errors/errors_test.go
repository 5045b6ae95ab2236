package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewInternalError("failed to load polls", fmt.Errorf("connection refused"))
	assert.Equal(t, "internal: failed to load polls (connection refused)", err.Error())

	err = NewNotFoundError("Poll not found")
	assert.Equal(t, "not_found: Poll not found", err.Error())
}

func TestAsAndIsType(t *testing.T) {
	wrapped := fmt.Errorf("vote failed: %w", NewAlreadyVotedError("poll-1"))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)
	assert.Equal(t, "poll-1", appErr.Details["poll_id"])
	assert.True(t, IsType(wrapped, ErrorTypeAlreadyVoted))
	assert.False(t, IsType(wrapped, ErrorTypeConflict))

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	appErr := NewAuthorizationError("Account is banned").WithDetail("banned", true).WithDetail("banReason", "spam")

	resp := NewErrorResponse(appErr, "req-1")
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.NotEmpty(t, resp.Error.Timestamp)

	back := FromResponse(http.StatusForbidden, resp)
	assert.Equal(t, ErrorTypeAuthorization, back.Type)
	assert.Equal(t, "spam", back.Details["banReason"])
	assert.Equal(t, http.StatusForbidden, back.StatusCode)
}
