package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	s := New()

	require.NoError(t, s.Set("editor.fontSize", 14))
	require.NoError(t, s.Set("editor.fontFamily", "Menlo"))

	assert.Equal(t, float64(14), s.Get("editor.fontSize"))
	assert.Equal(t, "Menlo", s.GetString("editor.fontFamily"))
	assert.Equal(t, map[string]any{"fontSize": float64(14), "fontFamily": "Menlo"}, s.Get("editor"))
	assert.Nil(t, s.Get("editor.missing"))
}

func TestInvalidPaths(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Set("", 1), ErrInvalidPath)
	assert.ErrorIs(t, s.Set("a..b", 1), ErrInvalidPath)
	assert.Nil(t, s.Get(""))
}

func TestSpecialCharactersInPath(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("my-pkg@2.value*", "x"))
	assert.Equal(t, "x", s.Get("my-pkg@2.value*"))
}

func TestUnsetRestoresDefault(t *testing.T) {
	s := New()
	require.NoError(t, s.SetSchema("tree-view", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hideIgnoredNames": map[string]any{"type": "boolean", "default": false},
		},
	}))

	require.NoError(t, s.Set("tree-view.hideIgnoredNames", true))
	assert.True(t, s.GetBool("tree-view.hideIgnoredNames"))

	require.NoError(t, s.Unset("tree-view.hideIgnoredNames"))
	assert.Equal(t, false, s.Get("tree-view.hideIgnoredNames"))
}

func TestPushAtKeyPathIsSetLike(t *testing.T) {
	s := New()

	n, err := s.PushAtKeyPath(KeyDisabledPackages, "tree-view")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.PushAtKeyPath(KeyDisabledPackages, "tree-view")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.PushAtKeyPath(KeyDisabledPackages, "minimap")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"tree-view", "minimap"}, s.GetStrings(KeyDisabledPackages))
	assert.True(t, s.Contains(KeyDisabledPackages, "minimap"))
}

func TestRemoveAtKeyPath(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(KeyDisabledPackages, []any{"a", "b", "a"}))

	n, err := s.RemoveAtKeyPath(KeyDisabledPackages, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b"}, s.GetStrings(KeyDisabledPackages))

	n, err = s.RemoveAtKeyPath(KeyDisabledPackages, "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RemoveAtKeyPath("core.nothing", "x")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPushAtKeyPathTypeMismatch(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("core.name", "x"))
	_, err := s.PushAtKeyPath("core.name", "y")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOnDidChange(t *testing.T) {
	s := New()
	var got []any

	unsubscribe := s.OnDidChange("core.disabledPackages", func(newValue, _ any) {
		got = append(got, newValue)
	})

	_, err := s.PushAtKeyPath(KeyDisabledPackages, "a")
	require.NoError(t, err)
	require.NoError(t, s.Set("core.other", 1))
	// Writing the same value again is not a change.
	_, err = s.PushAtKeyPath(KeyDisabledPackages, "a")
	require.NoError(t, err)
	require.NoError(t, s.Set("core", map[string]any{"disabledPackages": []any{}}))

	unsubscribe()
	require.NoError(t, s.Set(KeyDisabledPackages, []any{"z"}))

	require.Len(t, got, 2)
	assert.Equal(t, []any{"a"}, got[0])
	assert.Empty(t, got[1])
}

func TestObserverMayWriteStore(t *testing.T) {
	s := New()
	s.OnDidChange("a", func(newValue, _ any) {
		_ = s.Set("b", newValue)
	})
	require.NoError(t, s.Set("a", "v"))
	assert.Equal(t, "v", s.Get("b"))
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	s := New()
	_, err := s.PushAtKeyPath(KeyDisabledPackages, "minimap")
	require.NoError(t, err)
	require.NoError(t, s.Set("editor.tabLength", 4))
	require.NoError(t, s.SaveFile(path))

	loaded := New()
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, []string{"minimap"}, loaded.GetStrings(KeyDisabledPackages))
	assert.Equal(t, float64(4), loaded.Get("editor.tabLength"))
}

func TestLoadFileMissing(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadFile(filepath.Join(t.TempDir(), "absent.toml")))
	assert.Empty(t, s.ToMap())
}

func TestLoadFileParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[core\n"), 0o644))

	var perr *ParseError
	assert.ErrorAs(t, New().LoadFile(path), &perr)
}

func TestScopedSettings(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("editor.tabLength", 2))

	values := map[string]any{"editor": map[string]any{"tabLength": 4}}
	require.NoError(t, s.SetScoped("/pkg/settings/go.json", ".source.go", values))
	require.NoError(t, s.SetScoped("/pkg/settings/go.json", ".source.go", values))
	assert.Equal(t, 1, s.ScopedSources())

	assert.Equal(t, float64(4), s.GetScoped([]string{".source.go"}, "editor.tabLength"))
	assert.Equal(t, float64(2), s.GetScoped([]string{".source.js"}, "editor.tabLength"))

	s.RemoveScopedSource("/pkg/settings/go.json")
	assert.Equal(t, float64(2), s.GetScoped([]string{".source.go"}, "editor.tabLength"))
	assert.ErrorIs(t, s.SetScoped("", ".x", nil), ErrInvalidPath)
}
