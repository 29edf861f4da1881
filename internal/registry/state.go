package registry

import "sync"

// StateStore keeps per-package state in memory.
type StateStore struct {
	mu       sync.RWMutex
	states   map[string]map[string]any
	canDefer map[string]bool
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states:   make(map[string]map[string]any),
		canDefer: make(map[string]bool),
	}
}

// PackageState returns the saved state for name, or nil.
func (s *StateStore) PackageState(name string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[name]
}

// SetPackageState saves state for name.
func (s *StateStore) SetPackageState(name string, state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = state
}

// CanDeferMainModuleRequire reports the remembered flag for name@version.
func (s *StateStore) CanDeferMainModuleRequire(name, version string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canDefer[name+"@"+version]
}

// SetCanDeferMainModuleRequire remembers the flag for name@version.
func (s *StateStore) SetCanDeferMainModuleRequire(name, version string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canDefer[name+"@"+version] = v
}
