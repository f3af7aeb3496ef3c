package content

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/skilldex/internal/httperr"
	"github.com/elonfeng/skilldex/internal/logging"
	"github.com/elonfeng/skilldex/internal/store"
)

type fakeStore struct {
	skill  *store.Skill
	writes int
	desc   *string
	body   *string
}

func (f *fakeStore) GetSkill(_ context.Context, id int64) (*store.Skill, error) {
	if f.skill == nil || f.skill.ID != id {
		return nil, store.ErrNotFound
	}
	return f.skill, nil
}

func (f *fakeStore) SetSkillContent(_ context.Context, _ int64, desc, body *string, _ time.Time) error {
	f.writes++
	f.desc, f.body = desc, body
	return nil
}

type fakeRaw struct {
	results []error
	text    string
	calls   int
}

func (f *fakeRaw) FetchRaw(context.Context, string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.results) && f.results[i] != nil {
		return "", f.results[i]
	}
	return f.text, nil
}

func resolvedSkill() *store.Skill {
	url := "https://raw.githubusercontent.com/acme/skills/main/skills/foo/SKILL.md"
	return &store.Skill{ID: 7, Source: "acme/skills", SkillID: "foo", SkillMdURL: &url}
}

func newTestFetcher(s Store, raw RawClient) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(s, raw, logging.Discard())
	var slept []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestFetchContent_Success(t *testing.T) {
	t.Parallel()

	st := &fakeStore{skill: resolvedSkill()}
	raw := &fakeRaw{text: "---\nname: foo\ndescription: Does foo\n---\n# Foo\n"}
	f, slept := newTestFetcher(st, raw)

	require.NoError(t, f.FetchContent(context.Background(), 7))

	assert.Equal(t, 1, raw.calls)
	assert.Empty(t, *slept)
	require.NotNil(t, st.desc)
	assert.Equal(t, "Does foo", *st.desc)
	require.NotNil(t, st.body)
	assert.Equal(t, "# Foo", *st.body)
}

func TestFetchContent_TransportErrorsRetryWithLinearBackoff(t *testing.T) {
	t.Parallel()

	st := &fakeStore{skill: resolvedSkill()}
	raw := &fakeRaw{
		results: []error{errors.New("connection reset"), errors.New("timeout")},
		text:    "plain body",
	}
	f, slept := newTestFetcher(st, raw)

	require.NoError(t, f.FetchContent(context.Background(), 7))

	assert.Equal(t, 3, raw.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
	assert.Nil(t, st.desc)
	require.NotNil(t, st.body)
	assert.Equal(t, "plain body", *st.body)
}

func TestFetchContent_GivesUpAfterThreeAttempts(t *testing.T) {
	t.Parallel()

	st := &fakeStore{skill: resolvedSkill()}
	boom := errors.New("dial tcp: no route to host")
	raw := &fakeRaw{results: []error{boom, boom, boom, boom}}
	f, _ := newTestFetcher(st, raw)

	require.NoError(t, f.FetchContent(context.Background(), 7))
	assert.Equal(t, 3, raw.calls)
	assert.Zero(t, st.writes)
}

func TestFetchContent_HTTPErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	st := &fakeStore{skill: resolvedSkill()}
	raw := &fakeRaw{results: []error{httperr.WithCode(errors.New("not found"), http.StatusNotFound)}}
	f, slept := newTestFetcher(st, raw)

	require.NoError(t, f.FetchContent(context.Background(), 7))
	assert.Equal(t, 1, raw.calls)
	assert.Empty(t, *slept)
	assert.Zero(t, st.writes)
}

func TestFetchContent_Preconditions(t *testing.T) {
	t.Parallel()

	t.Run("content already present", func(t *testing.T) {
		t.Parallel()
		sk := resolvedSkill()
		body, desc := "# Foo", "Does foo"
		sk.Content, sk.Description = &body, &desc
		raw := &fakeRaw{}
		f, _ := newTestFetcher(&fakeStore{skill: sk}, raw)

		require.NoError(t, f.FetchContent(context.Background(), 7))
		assert.Zero(t, raw.calls)
	})

	t.Run("malformed description is refetched and replaced", func(t *testing.T) {
		t.Parallel()
		sk := resolvedSkill()
		body, desc := "# Foo", "|"
		sk.Content, sk.Description = &body, &desc
		st := &fakeStore{skill: sk}
		raw := &fakeRaw{text: "---\ndescription: |\n  Multi\n  line\n---\n# Foo"}
		f, _ := newTestFetcher(st, raw)

		require.NoError(t, f.FetchContent(context.Background(), 7))
		require.NotNil(t, st.desc)
		assert.Equal(t, "Multi\nline", *st.desc)
	})

	t.Run("malformed description cleared when file has none", func(t *testing.T) {
		t.Parallel()
		sk := resolvedSkill()
		body, desc := "# Foo", ">"
		sk.Content, sk.Description = &body, &desc
		st := &fakeStore{skill: sk}
		f, _ := newTestFetcher(st, &fakeRaw{text: "# Foo"})

		require.NoError(t, f.FetchContent(context.Background(), 7))
		require.NotNil(t, st.desc)
		assert.Equal(t, "", *st.desc)
	})

	t.Run("unresolved url", func(t *testing.T) {
		t.Parallel()
		empty := ""
		raw := &fakeRaw{}
		f, _ := newTestFetcher(&fakeStore{skill: &store.Skill{ID: 7, SkillMdURL: &empty}}, raw)

		require.NoError(t, f.FetchContent(context.Background(), 7))
		assert.Zero(t, raw.calls)
	})
}

func TestFetchContent_MissingSkill(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(&fakeStore{}, &fakeRaw{})
	err := f.FetchContent(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
