package packages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoaderDefaults(t *testing.T) {
	l := NewLoader()
	assert.NotEmpty(t, l.Paths())
	assert.False(t, l.IsBundledPath("/anything"))
}

func TestLoaderDiscover(t *testing.T) {
	user := t.TempDir()
	extra := t.TempDir()
	bundled := t.TempDir()

	alpha := writePackage(t, user, map[string]any{"name": "alpha", "version": "1.0.0"}, nil)
	writePackage(t, extra, map[string]any{"name": "alpha", "version": "2.0.0"}, nil)
	writePackage(t, extra, map[string]any{"name": "beta"}, nil)
	writePackage(t, bundled, map[string]any{"name": "core-pkg"}, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(user, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(user, "README.md"), []byte("x"), 0o644))

	broken := filepath.Join(extra, "broken")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, MetadataFile), []byte("{"), 0o644))

	l := NewLoader(WithPaths(user, extra, filepath.Join(user, "missing")), WithBundledPath(bundled))
	infos, err := l.Discover()
	require.NoError(t, err)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"alpha", "beta", "broken", "core-pkg"}, names)
	assert.Equal(t, names, l.ListNames())

	assert.Equal(t, alpha, infos[0].Path)
	assert.Equal(t, "1.0.0", infos[0].Metadata.Version)
	assert.False(t, infos[0].Bundled)
	assert.True(t, infos[3].Bundled)

	errored := l.Errors()
	require.Len(t, errored, 1)
	assert.Equal(t, "broken", errored[0].Name)
	assert.Error(t, errored[0].Error)
}

func TestLoaderFind(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]any{"name": "beta"}, nil)

	l := NewLoader(WithPaths(root))
	info, err := l.Find("beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", info.Name)
	assert.Equal(t, []string{"beta"}, l.ListNames())

	_, err = l.Find("nope")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestLoaderIsBundledPath(t *testing.T) {
	l := NewLoader(WithBundledPath("/opt/packhost/packages"))
	assert.True(t, l.IsBundledPath("/opt/packhost/packages/tree-view"))
	assert.False(t, l.IsBundledPath("/opt/packhost/other"))
	assert.False(t, l.IsBundledPath("/opt/packhost/packages-extra/x"))
}
