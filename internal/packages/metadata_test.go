package packages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr error
	}{
		{"valid", Metadata{Name: "tree-view", Version: "1.2.3"}, nil},
		{"no version", Metadata{Name: "tree-view"}, nil},
		{"missing name", Metadata{}, ErrMissingName},
		{"uppercase name", Metadata{Name: "TreeView"}, ErrInvalidName},
		{"bad version", Metadata{Name: "a", Version: "one"}, ErrInvalidVersion},
		{"bad engine", Metadata{Name: "a", Engines: map[string]string{EngineName: "abc"}}, ErrInvalidEngine},
		{"other engine ignored", Metadata{Name: "a", Engines: map[string]string{"node": "abc"}}, nil},
		{"main not lua", Metadata{Name: "a", Main: "index.js"}, ErrInvalidMain},
		{"config type", Metadata{Name: "a", ConfigSchema: map[string]any{
			"x": map[string]any{"type": "string"},
			"y": map[string]any{"type": []any{"integer", "string"}},
		}}, nil},
		{"unknown config type", Metadata{Name: "a", ConfigSchema: map[string]any{
			"x": map[string]any{"type": "date"},
		}}, ErrInvalidConfigType},
		{"config not object", Metadata{Name: "a", ConfigSchema: map[string]any{"x": 1}}, ErrInvalidConfigType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestLoadMetadataFromDir(t *testing.T) {
	dir := writePackage(t, t.TempDir(), map[string]any{
		"name":               "sample",
		"version":            "2.0.0",
		"activationCommands": map[string]any{"atom-workspace": []string{"sample:toggle"}},
		"activationHooks":    []string{"core:loaded-shell-environment"},
		"uriHandler":         map[string]any{"method": "handleURI", "deferActivation": false},
	}, nil)

	m, err := LoadMetadataFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "sample", m.Name)
	assert.Equal(t, dir, m.Path())
	assert.Equal(t, "sample@2.0.0", m.String())
	assert.True(t, m.HasActivationCommands())
	assert.True(t, m.HasActivationHooks())
	assert.False(t, m.HasWorkspaceOpeners())
	assert.False(t, m.HasDeferredURIHandler())
	assert.Equal(t, filepath.Join(dir, DefaultMain), m.MainPath(dir))
	assert.Nil(t, m.SchemaObject())
}

func TestLoadMetadataMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	m, err := LoadMetadataFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "plain", m.Name)
	assert.Equal(t, "0.0.0", m.Version)
}

func TestLoadMetadataInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(`{"name": 1}`), 0o644))
	_, err := LoadMetadataFromDir(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte(`{"name": "Bad Name"}`), 0o644))
	_, err = LoadMetadataFromDir(dir)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSupportsHost(t *testing.T) {
	m := Metadata{Name: "a", Engines: map[string]string{EngineName: "^1.2.0"}}
	assert.True(t, m.SupportsHost("1.4.0"))
	assert.False(t, m.SupportsHost("2.0.0"))
	assert.False(t, m.SupportsHost("not-a-version"))
	assert.True(t, m.SupportsHost(""))

	open := Metadata{Name: "b"}
	assert.True(t, open.SupportsHost("9.9.9"))
}

func TestActivationCommandsWithEmptyLists(t *testing.T) {
	m := Metadata{Name: "a", ActivationCommands: map[string][]string{"atom-workspace": {}}}
	assert.False(t, m.HasActivationCommands())
}
