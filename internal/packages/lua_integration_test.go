package packages

import (
	"context"
	"sync"
	"testing"

	"github.com/dshills/packhost/internal/event"
	"github.com/dshills/packhost/internal/packages/lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuaPackageLifecycle(t *testing.T) {
	e := newEnv(t)

	var mu sync.Mutex
	var recorded []string
	e.host.Modules = lua.NewLoader(lua.WithModule("editor", map[string]lua.Func{
		"record": func(_ context.Context, args []any) (any, error) {
			s, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			recorded = append(recorded, s)
			mu.Unlock()
			return nil, nil
		},
	}))

	dir := writePackage(t, t.TempDir(), map[string]any{
		"name":               "greeter",
		"activationCommands": map[string]any{"atom-workspace": []string{"greeter:greet"}},
		"providedServices": map[string]any{
			"greeter.words": map[string]any{"versions": map[string]any{"1.0.0": "provideWords"}},
		},
	}, map[string]string{
		DefaultMain: `
config = {
  greeting = { type = "string", default = "hello" },
}

function initialize(state)
  editor.record("initialize")
end

function activate(state)
  editor.record("activate")
end

function provideWords()
  return { "hello", "world" }
end
`,
	})

	p := e.newPackage(t, dir, true).Load()
	require.NoError(t, p.LoadError())
	promise := p.Activate()
	assert.Equal(t, PhaseWaitingForTrigger, p.Phase())

	require.NoError(t, e.bus.Publish(context.Background(), event.New(event.CommandTopic("greeter:greet"), event.CommandEvent{
		Name:   "greeter:greet",
		Scopes: []string{"atom-workspace"},
	})))
	require.NoError(t, waitSettled(t, promise))

	mu.Lock()
	assert.Equal(t, []string{"initialize", "activate"}, recorded)
	mu.Unlock()

	assert.True(t, p.ConfigSchemaRegisteredOnActivate())
	assert.Equal(t, "hello", e.config.Get("greeter.greeting"))

	var words any
	_, err := e.services.Consume("greeter.words", "^1.0.0", func(svc any) { words = svc })
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", "world"}, words)
}

func TestLuaPackageActivationErrorIsIsolated(t *testing.T) {
	e := newEnv(t)
	e.host.Modules = lua.NewLoader()

	root := t.TempDir()
	bad := writePackage(t, root, map[string]any{"name": "bad"}, map[string]string{
		DefaultMain: `function activate() error("broken activate") end`,
	})
	good := writePackage(t, root, map[string]any{"name": "good"}, map[string]string{
		DefaultMain: `function activate() end`,
	})

	badPkg := e.newPackage(t, bad, false).Load()
	goodPkg := e.newPackage(t, good, false).Load()

	require.NoError(t, waitSettled(t, badPkg.Activate()))
	require.NoError(t, waitSettled(t, goodPkg.Activate()))

	assert.False(t, badPkg.IsActivated())
	assert.True(t, goodPkg.IsActivated())
	notes := e.notes.ForPackage("bad")
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Detail.Detail, "broken activate")
	assert.Empty(t, e.notes.ForPackage("good"))
}
