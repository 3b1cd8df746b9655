package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: resource not found", ErrNotFound.Error())

	err := ErrNotFound.WithDetail("message", "session abc not found")
	assert.Equal(t, "NOT_FOUND: session abc not found", err.Error())

	cause := fmt.Errorf("boom")
	assert.Equal(t, "BAD_GATEWAY: upstream fleet API failed (caused by: boom)", ErrBadGateway.WithCause(cause).Error())
}

func TestWithDetail_DoesNotMutateSentinel(t *testing.T) {
	_ = ErrValidation.WithDetail("field", "ruleId")
	assert.Empty(t, ErrValidation.Details)
}

func TestIs_MatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrNotFound.WithDetail("id", "x"))
	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrConflict))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: ErrNotFound, want: http.StatusNotFound},
		{name: "wrapped validation", err: fmt.Errorf("x: %w", ErrValidation), want: http.StatusBadRequest},
		{name: "bad gateway", err: Wrap(fmt.Errorf("down"), ErrBadGateway), want: http.StatusBadGateway},
		{name: "plain error", err: fmt.Errorf("plain"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(fmt.Errorf("plain"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
	assert.Equal(t, "internal server error", resp["error"])
	assert.NotContains(t, resp, "details")

	resp = ToErrorResponse(ErrNotFound.WithDetail("session_id", "s1"))
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"session_id": "s1"}, resp["details"])
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.EqualError(t, err.Cause, "panic: boom")
	assert.Contains(t, err.Details, "stack_trace")

	cause := fmt.Errorf("wrapped")
	assert.Same(t, cause, RecoverPanic(cause).Cause)
}
