package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
)

// LoadFile replaces the user values with the contents of a TOML file.
// A missing file is not an error and leaves the store unchanged.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var values map[string]any
	if err := toml.Unmarshal(data, &values); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	if values == nil {
		values = make(map[string]any)
	}
	doc, err := json.Marshal(values)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}

	s.mu.Lock()
	for key, cs := range s.schemas {
		inst := gjson.GetBytes(doc, escapePath(key))
		if !inst.Exists() {
			continue
		}
		if err := validateRaw(cs.schema, key, inst.Raw); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}
	notify := s.commitLocked(doc, "")
	s.mu.Unlock()

	notify()
	return nil
}

// SaveFile writes the user values to path as TOML, creating parent
// directories as needed.
func (s *Store) SaveFile(path string) error {
	data, err := toml.Marshal(s.ToMap())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
