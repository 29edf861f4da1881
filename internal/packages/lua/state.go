package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into Lua.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state rooted at a package directory.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	dir     string
	timeout time.Duration
	loaded  map[string]lua.LValue
	bridge  *Bridge
	closed  bool
}

// NewState creates a sandboxed state whose require resolves under dir.
func NewState(dir string, timeout time.Duration) *State {
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &State{
		L:       L,
		dir:     dir,
		timeout: timeout,
		loaded:  make(map[string]lua.LValue),
		bridge:  NewBridge(L),
	}
	s.installSandbox()
	return s
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

var moduleName = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// installSandbox removes file loading functions and replaces require with
// one that only loads Lua files from the package directory.
func (s *State) installSandbox() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if v, ok := s.loaded[name]; ok {
			L.Push(v)
			return 1
		}
		if !moduleName.MatchString(name) {
			L.RaiseError("%s: %q", ErrModuleNotAllowed, name)
			return 0
		}

		path := filepath.Join(s.dir, strings.ReplaceAll(name, ".", string(filepath.Separator))+".lua")
		fn, err := L.LoadFile(path)
		if err != nil {
			L.RaiseError("module %q: %s", name, err.Error())
			return 0
		}
		L.Push(fn)
		L.Call(0, 1)
		v := L.Get(-1)
		if v == lua.LNil {
			v = lua.LTrue
		}
		s.loaded[name] = v
		L.Pop(1)
		L.Push(v)
		return 1
	}))
}

// Bridge returns the value converter bound to this state.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.withContext(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.withContext(ctx, func() error {
		return s.L.DoString(code)
	})
}

// withContext runs fn with a deadline installed on the state and recovers
// panics raised by host functions.
func (s *State) withContext(ctx context.Context, fn func() error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// HasFunction reports whether name is a global function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls a global Lua function with Go arguments and returns its
// results converted to Go values.
func (s *State) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fn := s.L.GetGlobal(name)
	if fn == lua.LNil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotFunction, name, fn.Type())
	}

	var results []any
	err := s.withContext(ctx, func() error {
		top := s.L.GetTop()
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(s.bridge.ToLuaValue(arg))
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			s.L.SetTop(top)
			return err
		}
		n := s.L.GetTop() - top
		results = make([]any, 0, n)
		for i := 1; i <= n; i++ {
			results = append(results, s.bridge.ToGoValue(s.L.Get(top+i)))
		}
		s.L.Pop(n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	return results, nil
}

// Global returns a global variable converted to a Go value.
func (s *State) Global(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.bridge.ToGoValue(s.L.GetGlobal(name))
}

// RegisterModule exposes funcs to Lua as fields of a global table.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.SetFuncs(s.L.NewTable(), funcs))
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
