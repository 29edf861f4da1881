package packages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListResourcesSortedAndFiltered(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"keymaps/b.yaml":    "{}",
		"keymaps/a.json":    "{}",
		"keymaps/c.toml":    "",
		"keymaps/notes.txt": "ignored",
	})

	paths, err := listResources(dir, KeymapsDir, nil, dataPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, KeymapsDir, "a.json"),
		filepath.Join(dir, KeymapsDir, "b.yaml"),
		filepath.Join(dir, KeymapsDir, "c.toml"),
	}, paths)

	paths, err = listResources(dir, KeymapsDir, []string{"b", "a.json"}, dataPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, KeymapsDir, "b.yaml"),
		filepath.Join(dir, KeymapsDir, "a.json"),
	}, paths)

	_, err = listResources(dir, KeymapsDir, []string{"missing"}, dataPattern)
	assert.ErrorIs(t, err, os.ErrNotExist)

	paths, err = listResources(dir, MenusDir, nil, dataPattern)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestReadKeymapsFormats(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"keymaps/a.json": `{"atom-workspace": {"ctrl-a": "sample:a"}}`,
		"keymaps/b.yaml": "atom-text-editor:\n  ctrl-b: sample:b\n",
		"keymaps/c.toml": "[atom-workspace]\nctrl-c = \"sample:c\"\n",
	})

	files, err := readKeymaps(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "sample:a", files[0].keymap["atom-workspace"]["ctrl-a"])
	assert.Equal(t, "sample:b", files[1].keymap["atom-text-editor"]["ctrl-b"])
	assert.Equal(t, "sample:c", files[2].keymap["atom-workspace"]["ctrl-c"])
}

func TestStyleSheetContexts(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"styles/a.less":                  "a {}",
		"styles/b.atom-text-editor.less": "b {}",
		"styles/c.css":                   "c {}",
	})

	sheets, err := readStyleSheets(dir, &Metadata{Name: "sample"}, 0)
	require.NoError(t, err)
	require.Len(t, sheets, 3)
	assert.Equal(t, "", sheets[0].Context)
	assert.Equal(t, "atom-text-editor", sheets[1].Context)
	assert.Equal(t, "", sheets[2].Context)

	sheets, err = readStyleSheets(dir, &Metadata{Name: "sample", Theme: "syntax"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "text-editor", sheets[0].Context)
	assert.Equal(t, "atom-text-editor", sheets[1].Context)
}

func TestStyleSheetPathOrder(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"index.less":       "root {}",
		"styles/one.less":  "one {}",
		"styles/two.less":  "two {}",
		"custom/main.less": "main {}",
	})

	paths, err := styleSheetPaths(dir, &Metadata{MainStyleSheet: "custom/main.less"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "custom", "main.less")}, paths)

	paths, err = styleSheetPaths(dir, &Metadata{StyleSheets: []string{"two.less"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, StylesDir, "two.less")}, paths)

	paths, err = styleSheetPaths(dir, &Metadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "index.less")}, paths)
}

func TestReadGrammarRequiresScopeName(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"grammars/ok.yaml":   "scopeName: source.ok\nname: OK\nfileTypes: [ok, okk]\n",
		"grammars/none.json": `{"name": "nameless"}`,
	})

	g, err := readGrammar(filepath.Join(dir, GrammarsDir, "ok.yaml"), "sample")
	require.NoError(t, err)
	assert.Equal(t, "source.ok", g.ScopeName)
	assert.Equal(t, "OK", g.Name)
	assert.Equal(t, []string{"ok", "okk"}, g.FileTypes)

	_, err = readGrammar(filepath.Join(dir, GrammarsDir, "none.json"), "sample")
	assert.Error(t, err)
}

func TestSettingsFileActivate(t *testing.T) {
	e := newEnv(t)
	dir := writePackage(t, t.TempDir(), map[string]any{"name": "sample"}, map[string]string{
		"settings/lang.yaml": "'.source.go':\n  editor:\n    tabLength: 8\n'.source.js':\n  editor:\n    tabLength: 2\n",
	})

	sf, err := readSettings(filepath.Join(dir, SettingsDir, "lang.yaml"))
	require.NoError(t, err)
	require.NoError(t, sf.activate(e.config))

	assert.Equal(t, float64(8), e.config.GetScoped([]string{".source.go"}, "editor.tabLength"))
	assert.Equal(t, float64(2), e.config.GetScoped([]string{".source.js"}, "editor.tabLength"))
	assert.Equal(t, 1, e.config.ScopedSources())
}
