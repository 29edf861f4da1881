package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/packhost/internal/async"
	"github.com/dshills/packhost/internal/config"
	"github.com/dshills/packhost/internal/event"
	"github.com/dshills/packhost/internal/host"
	"github.com/dshills/packhost/internal/registry"
	"github.com/stretchr/testify/require"
)

// fakeModule is a main module whose methods are Go functions.
type fakeModule struct {
	mu      sync.Mutex
	methods map[string]func(args ...any) (any, error)
	calls   []string
	args    map[string][][]any
	schema  map[string]any
}

func newFakeModule() *fakeModule {
	return &fakeModule{
		methods: make(map[string]func(args ...any) (any, error)),
		args:    make(map[string][][]any),
	}
}

func (m *fakeModule) on(method string, fn func(args ...any) (any, error)) *fakeModule {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[method] = fn
	return m
}

func (m *fakeModule) Has(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.methods[method]
	return ok
}

func (m *fakeModule) Call(_ context.Context, method string, args ...any) (any, error) {
	m.mu.Lock()
	fn, ok := m.methods[method]
	m.calls = append(m.calls, method)
	m.args[method] = append(m.args[method], args)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	return fn(args...)
}

func (m *fakeModule) ConfigSchema() map[string]any {
	return m.schema
}

func (m *fakeModule) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *fakeModule) argsOf(method string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.args[method]...)
}

func noop(...any) (any, error) { return nil, nil }

// fakeLoader serves fake modules by main module path.
type fakeLoader struct {
	mu       sync.Mutex
	modules  map[string]host.MainModule
	requires map[string]int
	onLoad   map[string]func()
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		modules:  make(map[string]host.MainModule),
		requires: make(map[string]int),
		onLoad:   make(map[string]func()),
	}
}

func (l *fakeLoader) Require(_ context.Context, path string) (host.MainModule, error) {
	l.mu.Lock()
	l.requires[path]++
	mm, ok := l.modules[path]
	hook := l.onLoad[path]
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	if !ok {
		return nil, fmt.Errorf("no module at %s", path)
	}
	return mm, nil
}

func (l *fakeLoader) set(dir string, mm host.MainModule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[filepath.Join(dir, DefaultMain)] = mm
}

func (l *fakeLoader) requireCount(dir string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requires[filepath.Join(dir, DefaultMain)]
}

type hookSet map[string]bool

func (h hookSet) Triggered(hook string) bool { return h[hook] }

// env is a host backed by the in-memory registries.
type env struct {
	host *Host

	config        *config.Store
	keymaps       *registry.Keymaps
	menus         *registry.Menus
	contextMenus  *registry.ContextMenus
	styles        *registry.Styles
	grammars      *registry.Grammars
	deserializers *registry.Deserializers
	services      *registry.ServiceHub
	uris          *registry.URIHandlers
	commands      *registry.Commands
	modules       *registry.ModuleCache
	transpilers   *registry.Transpilers
	notes         *registry.Notifications
	state         *registry.StateStore
	loader        *fakeLoader
	bus           *event.Bus
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		config:        config.New(),
		keymaps:       registry.NewKeymaps(),
		menus:         registry.NewMenus(),
		contextMenus:  registry.NewContextMenus(),
		styles:        registry.NewStyles(),
		grammars:      registry.NewGrammars(),
		deserializers: registry.NewDeserializers(),
		services:      registry.NewServiceHub(),
		uris:          registry.NewURIHandlers(),
		commands:      registry.NewCommands(),
		modules:       registry.NewModuleCache(),
		transpilers:   registry.NewTranspilers(),
		notes:         registry.NewNotifications(nil),
		state:         registry.NewStateStore(),
		loader:        newFakeLoader(),
		bus:           event.NewBus(),
	}
	e.host = &Host{
		Config:        e.config,
		Keymaps:       e.keymaps,
		Menus:         e.menus,
		ContextMenus:  e.contextMenus,
		Styles:        e.styles,
		Grammars:      e.grammars,
		Deserializers: e.deserializers,
		Services:      e.services,
		URIHandlers:   e.uris,
		Commands:      e.commands,
		ModuleCache:   e.modules,
		Transpilers:   e.transpilers,
		Notifier:      e.notes,
		State:         e.state,
		Modules:       e.loader,
		Triggers:      e.bus,
	}
	return e
}

func (e *env) newPackage(t *testing.T, dir string, strict bool) *Package {
	t.Helper()
	p, err := New(Params{Path: dir, Host: e.host, Strict: strict})
	require.NoError(t, err)
	return p
}

// writePackage creates a package directory under root. files maps
// relative paths to contents; metadata is written as package.json.
func writePackage(t *testing.T, root string, metadata map[string]any, files map[string]string) string {
	t.Helper()
	name, _ := metadata["name"].(string)
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	data, err := json.Marshal(metadata)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644))

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func withMain(files map[string]string) map[string]string {
	if files == nil {
		files = make(map[string]string)
	}
	files[DefaultMain] = "-- main"
	return files
}

func waitSettled(t *testing.T, promise *async.Promise[struct{}]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := promise.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}
