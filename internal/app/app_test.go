package app

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackage(t *testing.T, root string, metadata map[string]any, main string) {
	t.Helper()
	dir := filepath.Join(root, metadata["name"].(string))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(metadata)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte(main), 0o644))
}

func testOptions(t *testing.T, root string) Options {
	t.Helper()
	return Options{
		Paths:      []string{root},
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		LogLevel:   "debug",
		LogOutput:  io.Discard,
		Version:    "1.0.0",
	}
}

func TestLoadOptionsFromEnv(t *testing.T) {
	t.Setenv("PACKHOST_PATHS", "/a,/b")
	t.Setenv("PACKHOST_BUNDLED_PATH", "/opt/packhost")
	t.Setenv("PACKHOST_STRICT", "true")
	t.Setenv("PACKHOST_LOG_LEVEL", "warn")

	opts, err := LoadOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, opts.Paths)
	assert.Equal(t, "/opt/packhost", opts.BundledPath)
	assert.True(t, opts.Strict)
	assert.Equal(t, "warn", opts.LogLevel)
}

func TestLoadOptionsInvalid(t *testing.T) {
	t.Setenv("PACKHOST_STRICT", "maybe")
	_, err := LoadOptions()
	assert.Error(t, err)
}

func TestNewInvalidConfigFile(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte("[core\n"), 0o644))

	_, err := New(opts)
	assert.ErrorIs(t, err, ErrInitialization)
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "config", ie.Component)
}

func TestStartActivatesPackages(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]any{"name": "starter"}, `
function activate()
  editor.setConfig("starter.ran", true)
  editor.dispatch("follower:go", "atom-workspace")
end
`)
	writePackage(t, root, map[string]any{
		"name":               "follower",
		"activationCommands": map[string]any{"atom-workspace": []string{"follower:go"}},
	}, `
function activate()
  editor.setConfig("follower.ran", editor.getConfig("starter.ran"))
end
`)
	writePackage(t, root, map[string]any{
		"name":            "hooked",
		"activationHooks": []string{HookStarted},
	}, `
function activate()
  editor.setConfig("hooked.ran", true)
end
`)

	a, err := New(testOptions(t, root))
	require.NoError(t, err)
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.ErrorIs(t, a.Start(ctx), ErrAlreadyStarted)

	assert.Len(t, a.Manager().ListActive(), 3)
	assert.Equal(t, true, a.Config().Get("starter.ran"))
	assert.Equal(t, true, a.Config().Get("follower.ran"))
	assert.Equal(t, true, a.Config().Get("hooked.ran"))
	assert.Empty(t, a.Registries().Notifications.All())
	assert.Equal(t, float64(3), testutil.ToFloat64(a.metrics.Active))
}

func TestStartReportsBrokenPackage(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]any{"name": "broken"}, `
function activate()
  editor.notify("about to fail", "details")
  error("nope")
end
`)

	a, err := New(testOptions(t, root))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	notes := a.Registries().Notifications.All()
	require.Len(t, notes, 2)
	assert.Equal(t, "about to fail", notes[0].Message)
	assert.Equal(t, "Failed to activate the broken package", notes[1].Message)
}

func TestStrictStartReturnsErrors(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]any{"name": "broken"}, `function activate() error("nope") end`)

	opts := testOptions(t, root)
	opts.Strict = true
	a, err := New(opts)
	require.NoError(t, err)
	assert.Error(t, a.Start(context.Background()))
}

func TestDisabledPackagesPersist(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]any{"name": "quiet"}, `function activate() end`)
	opts := testOptions(t, root)

	a, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, a.Manager().Disable("quiet"))
	require.NoError(t, a.SaveConfig())

	b, err := New(opts)
	require.NoError(t, err)
	assert.True(t, b.Manager().IsDisabled("quiet"))
	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, 0, b.Manager().Count())
}
