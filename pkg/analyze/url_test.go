package analyze

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    RepoRef
		wantErr bool
	}{
		{in: "https://github.com/vercel/next.js", want: RepoRef{"vercel", "next.js"}},
		{in: "https://github.com/vercel/next.js.git/", want: RepoRef{"vercel", "next.js"}},
		{in: "https://github.com/vercel/next.js?tab=readme#top", want: RepoRef{"vercel", "next.js"}},
		{in: "http://www.github.com/acme/tools/tree/main/pkg", want: RepoRef{"acme", "tools"}},
		{in: "github.com/acme/tools", want: RepoRef{"acme", "tools"}},
		{in: "git@github.com:acme/tools.git", want: RepoRef{"acme", "tools"}},
		{in: "  https://GitHub.com/acme/tools  ", want: RepoRef{"acme", "tools"}},
		{in: "https://gitlab.com/acme/tools", wantErr: true},
		{in: "https://github.com/acme", wantErr: true},
		{in: "https://github.com//tools", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseGitHubURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewURLID(t *testing.T) {
	t.Parallel()

	a, b := NewURLID(), NewURLID()
	assert.Len(t, a, 10)
	assert.Regexp(t, "^[0-9a-f]{10}$", a)
	assert.NotEqual(t, a, b)
}

func TestEnsureUniqueURLID(t *testing.T) {
	t.Parallel()

	seq := func() func() string {
		n := 0
		return func() string {
			n++
			return fmt.Sprintf("id%d", n)
		}
	}

	t.Run("skips taken ids", func(t *testing.T) {
		t.Parallel()
		taken := map[string]bool{"id1": true, "id2": true}
		id, err := EnsureUniqueURLID(context.Background(), func(_ context.Context, id string) (bool, error) {
			return taken[id], nil
		}, seq())
		require.NoError(t, err)
		assert.Equal(t, "id3", id)
	})

	t.Run("bounded", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := EnsureUniqueURLID(context.Background(), func(context.Context, string) (bool, error) {
			calls++
			return true, nil
		}, seq())
		assert.ErrorIs(t, err, ErrURLIDExhausted)
		assert.Equal(t, MaxURLIDAttempts, calls)
	})

	t.Run("lookup error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("db down")
		_, err := EnsureUniqueURLID(context.Background(), func(context.Context, string) (bool, error) {
			return false, boom
		}, seq())
		assert.ErrorIs(t, err, boom)
	})
}
