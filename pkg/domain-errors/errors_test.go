package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "identity store unavailable")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "never happens"))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := New(CodeConflict, "status is not pending")
	outer := Wrap(inner, CodeInternal, "transition failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeConflict))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestHasCodeThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeValidation, "document too large"))
	assert.True(t, HasCode(err, CodeValidation))
}

func TestCodeOfAndMessageOf(t *testing.T) {
	t.Run("coded error", func(t *testing.T) {
		err := New(CodeForbidden, "administrator role required")
		assert.Equal(t, CodeForbidden, CodeOf(err))
		assert.Equal(t, "administrator role required", MessageOf(err))
	})

	t.Run("plain error falls back to internal", func(t *testing.T) {
		err := errors.New("driver: bad connection")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
	})
}
