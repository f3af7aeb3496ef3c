package analyze

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsManifest(t *testing.T) {
	t.Parallel()

	assert.True(t, IsManifest("package.json"))
	assert.True(t, IsManifest("apps/web/package.json"))
	assert.False(t, IsManifest("node_modules/react/package.json"))
	assert.False(t, IsManifest("packages/ui/dist/package.json"))
	assert.False(t, IsManifest("examples/basic/package.json"))
	assert.False(t, IsManifest("package.json.bak"))
	assert.False(t, IsManifest("tsconfig.json"))
}

func TestPrioritizeAndCap(t *testing.T) {
	t.Parallel()

	paths := []string{
		"packages/ui/src/package.json",
		"apps/web/package.json",
		"package.json",
		"tools/package.json",
		"apps/web/package.json",
		"apps/api/package.json",
	}

	got := PrioritizeAndCap(paths, -1)
	assert.Equal(t, []string{
		"package.json",
		"tools/package.json",
		"apps/api/package.json",
		"apps/web/package.json",
		"packages/ui/src/package.json",
	}, got)

	assert.Equal(t, []string{"package.json", "tools/package.json"}, PrioritizeAndCap(paths, 2))
	assert.Empty(t, PrioritizeAndCap(paths, 0))
	assert.Empty(t, PrioritizeAndCap(nil, 5))
}

func TestPrioritizeAndCapLargeInput(t *testing.T) {
	t.Parallel()

	var paths []string
	for i := 40; i > 0; i-- {
		paths = append(paths, fmt.Sprintf("packages/p%02d/package.json", i))
	}
	paths = append(paths, "package.json")

	got := PrioritizeAndCap(paths, DefaultMaxManifests)
	require.Len(t, got, DefaultMaxManifests)
	assert.Equal(t, "package.json", got[0])
	assert.Equal(t, "packages/p01/package.json", got[1])
	assert.Equal(t, "packages/p14/package.json", got[DefaultMaxManifests-1])
}

func TestWorkspacePatterns(t *testing.T) {
	t.Parallel()

	arr, err := parseManifest(`{"name":"root","workspaces":["apps/*","packages/*"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/*", "packages/*"}, arr.workspacePatterns())

	obj, err := parseManifest(`{"workspaces":{"packages":["libs/**"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs/**"}, obj.workspacePatterns())

	none, err := parseManifest(`{"dependencies":{"react":"^18"}}`)
	require.NoError(t, err)
	assert.Nil(t, none.workspacePatterns())

	_, err = parseManifest(`{not json`)
	assert.Error(t, err)
}

func TestManifestDeps(t *testing.T) {
	t.Parallel()

	m, err := parseManifest(`{
		"dependencies": {"next": "14.0.0"},
		"devDependencies": {"typescript": "^5"},
		"peerDependencies": {"react": "^18"},
		"optionalDependencies": {"sharp": "*"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"next": "14.0.0", "typescript": "^5", "react": "^18", "sharp": "*",
	}, m.deps())
}

func TestParsePnpmWorkspace(t *testing.T) {
	t.Parallel()

	got, err := parsePnpmWorkspace("packages:\n  - 'apps/*'\n  - \"packages/**\"\n  - '!**/test/**'\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"apps/*", "packages/**", "!**/test/**"}, got)

	_, err = parsePnpmWorkspace("packages: [unclosed")
	assert.Error(t, err)
}

func TestInWorkspace(t *testing.T) {
	t.Parallel()

	patterns := []string{"./apps/*", "packages/**", "!packages/legacy"}

	tests := []struct {
		path string
		want bool
	}{
		{"apps/web/package.json", true},
		{"apps/web/nested/package.json", false},
		{"packages/ui/package.json", true},
		{"packages/ui/icons/package.json", true},
		{"packages/legacy/package.json", false},
		{"tools/package.json", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inWorkspace(patterns, tt.path), tt.path)
	}
}
