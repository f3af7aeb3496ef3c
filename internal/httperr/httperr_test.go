package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithCode(t *testing.T) {
	t.Parallel()

	t.Run("wraps error with code", func(t *testing.T) {
		t.Parallel()

		base := errors.New("tree missing")
		err := WithCode(base, http.StatusNotFound)

		var coded *CodedError
		require.ErrorAs(t, err, &coded)
		require.Equal(t, http.StatusNotFound, Code(err))
		require.ErrorIs(t, err, base)
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		t.Parallel()
		require.Nil(t, WithCode(nil, http.StatusNotFound))
	})
}

func TestCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusOK, Code(nil))
	require.Equal(t, http.StatusInternalServerError, Code(errors.New("plain")))

	wrapped := fmt.Errorf("get tree: %w", New("too large", http.StatusConflict))
	require.Equal(t, http.StatusConflict, Code(wrapped))
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	require.True(t, HasCode(fmt.Errorf("fetch: %w", New("gone", http.StatusGone))))
	require.False(t, HasCode(errors.New("connection reset by peer")))
	require.False(t, HasCode(nil))
}
