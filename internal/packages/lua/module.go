package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dshills/packhost/internal/host"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ConfigGlobal is the global table holding a module's config schema.
const ConfigGlobal = "config"

// Loader loads Lua main modules. It implements host.ModuleLoader.
type Loader struct {
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	modules map[string]map[string]Func
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for module output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithExecutionTimeout bounds each call into a module.
func WithExecutionTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithModule exposes funcs to every loaded module as the global table name.
func WithModule(name string, funcs map[string]Func) LoaderOption {
	return func(l *Loader) {
		l.modules[name] = funcs
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:  zap.NewNop(),
		timeout: DefaultExecutionTimeout,
		modules: make(map[string]map[string]Func),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds or replaces a host module for modules loaded afterwards.
func (l *Loader) Register(name string, funcs map[string]Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[name] = funcs
}

// Require executes the file at path in a fresh state and returns the
// resulting module.
func (l *Loader) Require(ctx context.Context, path string) (host.MainModule, error) {
	return l.Load(ctx, path)
}

// Load is Require returning the concrete type.
func (l *Loader) Load(ctx context.Context, path string) (*Module, error) {
	state := NewState(filepath.Dir(path), l.timeout)
	logger := l.logger.With(zap.String("module", path))

	state.RegisterModule("log", map[string]lua.LGFunction{
		"debug": logFunc(logger.Debug),
		"info":  logFunc(logger.Info),
		"warn":  logFunc(logger.Warn),
		"error": logFunc(logger.Error),
	})

	l.mu.RLock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		funcs := make(map[string]lua.LGFunction, len(l.modules[name]))
		for fname, fn := range l.modules[name] {
			funcs[fname] = state.Bridge().WrapFunc(fn)
		}
		state.RegisterModule(name, funcs)
	}
	l.mu.RUnlock()

	if err := state.DoFile(ctx, path); err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &Module{path: path, state: state}, nil
}

func logFunc(fn func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		fn(L.CheckString(1))
		return 0
	}
}

// Module is a loaded Lua main module. It implements host.MainModule.
type Module struct {
	path  string
	state *State
}

// Path returns the file the module was loaded from.
func (m *Module) Path() string {
	return m.path
}

// Has reports whether the module defines a global function named method.
func (m *Module) Has(method string) bool {
	return m.state.HasFunction(method)
}

// Call invokes method and returns its first result.
func (m *Module) Call(ctx context.Context, method string, args ...any) (any, error) {
	results, err := m.state.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// ConfigSchema returns the module's config table, or nil.
func (m *Module) ConfigSchema() map[string]any {
	schema, _ := m.state.Global(ConfigGlobal).(map[string]any)
	return schema
}

// Close releases the module's Lua state.
func (m *Module) Close() error {
	return m.state.Close()
}
