package tech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDependencies(t *testing.T) {
	t.Parallel()

	reg := Default()

	tests := []struct {
		name string
		deps map[string]string
		want []string
	}{
		{
			name: "exact package",
			deps: map[string]string{"next": "14.0.0"},
			want: []string{"nextjs"},
		},
		{
			name: "prefix rule",
			deps: map[string]string{"@aws-sdk/client-s3": "x"},
			want: []string{"aws"},
		},
		{
			name: "unknown packages are ignored",
			deps: map[string]string{"left-pad": "1.0.0", "lodash": "4"},
			want: []string{},
		},
		{
			name: "mixed manifest",
			deps: map[string]string{
				"react":           "18",
				"react-dom":       "18",
				"@prisma/client":  "5",
				"tailwindcss":     "3",
				"@angular/core":   "17",
				"some-other-tool": "1",
			},
			want: []string{"angular", "prisma", "react", "tailwind"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, reg.MapDependencies(tt.deps))
		})
	}
}

func TestMapDependencies_ExactBeatsPrefix(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]Technology{
		{ID: "scoped", PackagePrefixes: []string{"@acme/"}},
		{ID: "special", Packages: []string{"@acme/special"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"special"}, reg.MapDependencies(map[string]string{"@acme/special": "1"}))
	assert.Equal(t, []string{"scoped"}, reg.MapDependencies(map[string]string{"@acme/other": "1"}))
}

func TestTagByKeywords(t *testing.T) {
	t.Parallel()

	reg := Default()

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()
		lower := reg.TagSkill("vercel-labs/agent-skills", "react-best-practices", "react best practices")
		upper := reg.TagSkill("VERCEL-LABS/AGENT-SKILLS", "REACT-BEST-PRACTICES", "React Best Practices")
		assert.Equal(t, lower, upper)
		assert.Contains(t, lower, "react")
		assert.Contains(t, lower, "vercel")
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		first := reg.TagSkill("supabase/agent-skills", "postgres-best-practices", "Postgres Best Practices")
		second := reg.TagSkill("supabase/agent-skills", "postgres-best-practices", "Postgres Best Practices")
		assert.Equal(t, first, second)
		assert.Equal(t, []string{"postgres", "supabase"}, first)
	})

	t.Run("standalone tokens", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, reg.TagSkill("acme/tools", "go-testing", "Go Testing"), "go")
		assert.NotContains(t, reg.TagSkill("acme/tools", "django-models", "Django Models"), "go")
		assert.NotContains(t, reg.TagSkill("acme/tools", "trust-and-safety", "Trust"), "rust")
	})

	t.Run("no match yields empty set", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, reg.TagByKeywords("brainstorming"))
	})
}

func TestMatchConfigFiles(t *testing.T) {
	t.Parallel()

	got := Default().MatchConfigFiles([]string{
		"next.config.mjs",
		"apps/web/tailwind.config.ts",
		"prisma/schema.prisma",
		"services/api/Dockerfile",
		"README.md",
	})
	assert.Equal(t, []string{"docker", "nextjs", "prisma", "tailwind"}, got)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Technology{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = NewRegistry([]Technology{
		{ID: "a", Packages: []string{"pkg"}},
		{ID: "b", Packages: []string{"pkg"}},
	})
	assert.Error(t, err)
}

func TestLookupAndMerge(t *testing.T) {
	t.Parallel()

	tech, ok := Default().Lookup("nextjs")
	require.True(t, ok)
	assert.Equal(t, "Next.js", tech.Name)

	_, ok = Default().Lookup("cobol")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b", "c"}, Merge([]string{"b", "a"}, []string{"c", "a"}))
}
