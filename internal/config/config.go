package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Well-known key paths.
const (
	// KeyDisabledPackages lists packages that must not be loaded.
	KeyDisabledPackages = "core.disabledPackages"

	// KeyPackagesWithKeymapsDisabled lists packages whose keymaps stay off.
	KeyPackagesWithKeymapsDisabled = "core.packagesWithKeymapsDisabled"
)

// ChangeFunc is called with the new and previous value at an observed path.
type ChangeFunc func(newValue, oldValue any)

type observer struct {
	keyPath string
	fn      ChangeFunc
}

// Store is the editor-wide configuration store.
//
// Store is safe for concurrent use. Observers are called after the store
// lock is released, so they may read or write the store.
type Store struct {
	mu sync.RWMutex

	// doc holds user values; defaults holds schema defaults.
	doc      []byte
	defaults []byte

	schemas map[string]*compiledSchema

	observers []*observer

	scoped scopedSettings
}

// New creates an empty store.
func New() *Store {
	return &Store{
		doc:      []byte("{}"),
		defaults: []byte("{}"),
		schemas:  make(map[string]*compiledSchema),
	}
}

// Get returns the value at keyPath, falling back to the schema default.
// Objects present in both are merged, user values winning.
// Returns nil if nothing is set and no default exists.
func (s *Store) Get(keyPath string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(keyPath)
}

// GetString returns the string at keyPath, or "" if absent or not a string.
func (s *Store) GetString(keyPath string) string {
	v, _ := s.Get(keyPath).(string)
	return v
}

// GetBool returns the bool at keyPath, or false if absent or not a bool.
func (s *Store) GetBool(keyPath string) bool {
	v, _ := s.Get(keyPath).(bool)
	return v
}

// GetStrings returns the string elements of the array at keyPath.
// Non-string elements are skipped.
func (s *Store) GetStrings(keyPath string) []string {
	arr, _ := s.Get(keyPath).([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Contains reports whether the array at keyPath holds value.
func (s *Store) Contains(keyPath string, value any) bool {
	arr, _ := s.Get(keyPath).([]any)
	return indexOf(arr, value) >= 0
}

func (s *Store) getLocked(keyPath string) any {
	if validatePath(keyPath) != nil {
		return nil
	}
	p := escapePath(keyPath)
	val := gjson.GetBytes(s.doc, p)
	def := gjson.GetBytes(s.defaults, p)

	switch {
	case val.Exists() && def.Exists() && val.IsObject() && def.IsObject():
		return mergeMaps(def.Value().(map[string]any), val.Value().(map[string]any))
	case val.Exists():
		return val.Value()
	case def.Exists():
		return def.Value()
	default:
		return nil
	}
}

// Set stores value at keyPath. The write is rejected with
// ErrValidationFailed if a schema registered at, above or below keyPath
// does not accept the result.
func (s *Store) Set(keyPath string, value any) error {
	if err := validatePath(keyPath); err != nil {
		return err
	}

	s.mu.Lock()
	next, err := sjson.SetBytes(s.doc, escapePath(keyPath), value)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set %s: %w", keyPath, err)
	}
	if err := s.validateLocked(next, keyPath); err != nil {
		s.mu.Unlock()
		return err
	}
	notify := s.commitLocked(next, keyPath)
	s.mu.Unlock()

	notify()
	return nil
}

// Unset removes the user value at keyPath so the default applies again.
func (s *Store) Unset(keyPath string) error {
	if err := validatePath(keyPath); err != nil {
		return err
	}

	s.mu.Lock()
	next, err := sjson.DeleteBytes(s.doc, escapePath(keyPath))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("unset %s: %w", keyPath, err)
	}
	notify := s.commitLocked(next, keyPath)
	s.mu.Unlock()

	notify()
	return nil
}

// PushAtKeyPath appends value to the array at keyPath unless it is already
// present, creating the array if needed. It returns the resulting length.
// Pushing a value twice leaves a single entry.
func (s *Store) PushAtKeyPath(keyPath string, value any) (int, error) {
	arr, err := s.arrayAt(keyPath)
	if err != nil {
		return 0, err
	}
	if indexOf(arr, value) >= 0 {
		return len(arr), nil
	}
	arr = append(arr, value)
	if err := s.Set(keyPath, arr); err != nil {
		return 0, err
	}
	return len(arr), nil
}

// RemoveAtKeyPath removes every occurrence of value from the array at
// keyPath and returns the resulting length.
func (s *Store) RemoveAtKeyPath(keyPath string, value any) (int, error) {
	arr, err := s.arrayAt(keyPath)
	if err != nil {
		return 0, err
	}
	kept := make([]any, 0, len(arr))
	for _, v := range arr {
		if !sameValue(v, value) {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(arr) {
		return len(arr), nil
	}
	if err := s.Set(keyPath, kept); err != nil {
		return 0, err
	}
	return len(kept), nil
}

func (s *Store) arrayAt(keyPath string) ([]any, error) {
	if err := validatePath(keyPath); err != nil {
		return nil, err
	}
	switch v := s.Get(keyPath).(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T, not an array", ErrTypeMismatch, keyPath, v)
	}
}

// OnDidChange calls fn whenever the value at keyPath changes, including
// changes made through a parent or child path. It returns a function that
// removes the observer.
func (s *Store) OnDidChange(keyPath string, fn ChangeFunc) func() {
	if fn == nil {
		return func() {}
	}
	o := &observer{keyPath: keyPath, fn: fn}

	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.observers {
			if existing == o {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// ToMap returns a copy of the user values.
func (s *Store) ToMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, _ := gjson.ParseBytes(s.doc).Value().(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	return m
}

// commitLocked installs next as the document and returns a function that
// notifies the observers affected by a change at changed. An empty changed
// path affects every observer. Must be called with mu held.
func (s *Store) commitLocked(next []byte, changed string) func() {
	type pending struct {
		fn       ChangeFunc
		old, new any
	}

	var affected []*observer
	var olds []any
	for _, o := range s.observers {
		if changed == "" || related(o.keyPath, changed) {
			affected = append(affected, o)
			olds = append(olds, s.getLocked(o.keyPath))
		}
	}

	s.doc = next

	var calls []pending
	for i, o := range affected {
		nv := s.getLocked(o.keyPath)
		if !reflect.DeepEqual(nv, olds[i]) {
			calls = append(calls, pending{fn: o.fn, old: olds[i], new: nv})
		}
	}

	return func() {
		for _, c := range calls {
			c.fn(c.new, c.old)
		}
	}
}

// validatePath rejects empty paths and empty segments.
func validatePath(keyPath string) error {
	if keyPath == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(keyPath, ".") {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, keyPath)
		}
	}
	return nil
}

// escapePath escapes the characters gjson and sjson treat as path syntax,
// leaving "." as the segment separator.
func escapePath(keyPath string) string {
	var b strings.Builder
	for _, r := range keyPath {
		switch r {
		case '\\', '*', '?', '#', '|', '@', '!', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// related reports whether a and b are equal or one is an ancestor of the other.
func related(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}

func mergeMaps(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func indexOf(arr []any, value any) int {
	for i, v := range arr {
		if sameValue(v, value) {
			return i
		}
	}
	return -1
}

// sameValue compares values by their JSON encoding, so 1 and 1.0 match and
// a string read back from the document matches the string written.
func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ja) == string(jb)
}
