package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load account")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeInternal))
	assert.Contains(t, err.Error(), "failed to load account")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestHasCodeWalksNestedErrors(t *testing.T) {
	inner := New(CodeDeletionWindowClosed, "grace period has ended")
	outer := Wrap(inner, CodeConflict, "cancel rejected")
	wrapped := fmt.Errorf("handler: %w", outer)

	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.True(t, HasCode(wrapped, CodeDeletionWindowClosed))
	assert.False(t, HasCode(wrapped, CodeAccountNotFound))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, Is(errors.New("boom"), CodeInternal))
}

func TestErrorsIsMatchesByCodeAndMessage(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeUnauthorized, "token has expired"))

	assert.ErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	assert.ErrorIs(t, err, &Error{Code: CodeUnauthorized})
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeForbidden, "token has expired"))
}
