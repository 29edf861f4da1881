package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
)

// scopedSettings holds selector-scoped values keyed by source.
type scopedSettings struct {
	mu      sync.RWMutex
	entries []scopedEntry
}

type scopedEntry struct {
	source   string
	selector string
	doc      []byte
}

// SetScoped registers values that apply under selector on behalf of
// source (usually a settings file path). Setting the same source and
// selector again replaces the earlier values.
func (s *Store) SetScoped(source, selector string, values map[string]any) error {
	if source == "" || selector == "" {
		return fmt.Errorf("%w: scoped settings need a source and selector", ErrInvalidPath)
	}
	doc, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("scoped settings %s: %w", source, err)
	}

	s.scoped.mu.Lock()
	defer s.scoped.mu.Unlock()
	for i, e := range s.scoped.entries {
		if e.source == source && e.selector == selector {
			s.scoped.entries[i].doc = doc
			return nil
		}
	}
	s.scoped.entries = append(s.scoped.entries, scopedEntry{source: source, selector: selector, doc: doc})
	return nil
}

// RemoveScopedSource drops every scoped value registered by source.
func (s *Store) RemoveScopedSource(source string) {
	s.scoped.mu.Lock()
	defer s.scoped.mu.Unlock()
	kept := s.scoped.entries[:0]
	for _, e := range s.scoped.entries {
		if e.source != source {
			kept = append(kept, e)
		}
	}
	s.scoped.entries = kept
}

// ScopedSources returns the number of distinct sources with scoped values.
func (s *Store) ScopedSources() int {
	s.scoped.mu.RLock()
	defer s.scoped.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range s.scoped.entries {
		seen[e.source] = struct{}{}
	}
	return len(seen)
}

// GetScoped returns the value at keyPath for the given scopes (innermost
// first). The most recently registered matching entry wins; if none
// matches, the unscoped value is returned.
func (s *Store) GetScoped(scopes []string, keyPath string) any {
	if validatePath(keyPath) == nil {
		p := escapePath(keyPath)
		s.scoped.mu.RLock()
		for _, scope := range scopes {
			for i := len(s.scoped.entries) - 1; i >= 0; i-- {
				e := s.scoped.entries[i]
				if e.selector != scope {
					continue
				}
				if r := gjson.GetBytes(e.doc, p); r.Exists() {
					s.scoped.mu.RUnlock()
					return r.Value()
				}
			}
		}
		s.scoped.mu.RUnlock()
	}
	return s.Get(keyPath)
}
