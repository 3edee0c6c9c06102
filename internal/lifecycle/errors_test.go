package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := errConflict("slot taken")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, kind)

	kind, ok = KindOf(fmt.Errorf("approve event: %w", err))
	require.True(t, ok, "wrapping must not hide the kind")
	assert.Equal(t, KindConflict, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)

	_, ok = KindOf(nil)
	assert.False(t, ok)
}

func TestErrorUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("gateway down")
	err := errRefundFailed("processor refused the refund", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "processor refused the refund")
}
