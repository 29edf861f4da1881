package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type compiledSchema struct {
	raw    map[string]any
	schema *jsonschema.Schema
}

// SetSchema registers schema for keyPath. Defaults declared by the schema
// become visible through Get immediately. Registering again replaces the
// previous schema and its defaults.
func (s *Store) SetSchema(keyPath string, schema map[string]any) error {
	if err := validatePath(keyPath); err != nil {
		return err
	}
	if schema == nil {
		return fmt.Errorf("%w: %s: nil schema", ErrInvalidSchema, keyPath)
	}

	normalized, _ := normalizeSchema(schema).(map[string]any)
	compiled, err := compileSchema(keyPath, normalized)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defaults, err := sjson.DeleteBytes(s.defaults, escapePath(keyPath))
	if err == nil {
		if def := extractDefaults(normalized); def != nil {
			defaults, err = sjson.SetBytes(defaults, escapePath(keyPath), def)
		}
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchema, keyPath, err)
	}
	s.schemas[keyPath] = &compiledSchema{raw: normalized, schema: compiled}

	// Defaults change observed values just like a write would.
	oldDefaults := s.defaults
	s.defaults = defaults
	notify := s.commitDefaultsLocked(oldDefaults, keyPath)
	s.mu.Unlock()

	notify()
	return nil
}

// GetSchema returns the normalized schema registered at keyPath.
func (s *Store) GetSchema(keyPath string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.schemas[keyPath]
	if !ok {
		return nil, false
	}
	return cs.raw, true
}

// HasSchema reports whether a schema is registered at keyPath.
func (s *Store) HasSchema(keyPath string) bool {
	_, ok := s.GetSchema(keyPath)
	return ok
}

// Validate checks value against the schema registered at keyPath.
// Paths without a schema accept any value.
func (s *Store) Validate(keyPath string, value any) error {
	s.mu.RLock()
	cs, ok := s.schemas[keyPath]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidationFailed, keyPath, err)
	}
	return validateRaw(cs.schema, keyPath, string(data))
}

// validateLocked validates the document next against every schema whose
// key path is related to the written path. Must be called with mu held.
func (s *Store) validateLocked(next []byte, written string) error {
	for key, cs := range s.schemas {
		if !related(key, written) {
			continue
		}
		inst := gjson.GetBytes(next, escapePath(key))
		if !inst.Exists() {
			continue
		}
		if err := validateRaw(cs.schema, key, inst.Raw); err != nil {
			return err
		}
	}
	return nil
}

// commitDefaultsLocked notifies observers under keyPath whose effective
// value changed because the defaults changed. Must be called with mu held.
func (s *Store) commitDefaultsLocked(oldDefaults []byte, keyPath string) func() {
	newDefaults := s.defaults
	s.defaults = oldDefaults
	var olds []any
	var affected []*observer
	for _, o := range s.observers {
		if related(o.keyPath, keyPath) {
			affected = append(affected, o)
			olds = append(olds, s.getLocked(o.keyPath))
		}
	}
	s.defaults = newDefaults

	type call struct {
		fn       ChangeFunc
		old, new any
	}
	var calls []call
	for i, o := range affected {
		nv := s.getLocked(o.keyPath)
		if !sameValue(nv, olds[i]) {
			calls = append(calls, call{fn: o.fn, old: olds[i], new: nv})
		}
	}
	return func() {
		for _, c := range calls {
			c.fn(c.new, c.old)
		}
	}
}

func compileSchema(keyPath string, schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, keyPath, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, keyPath, err)
	}

	url := keyPath + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, keyPath, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, keyPath, err)
	}
	return compiled, nil
}

func validateRaw(schema *jsonschema.Schema, keyPath, raw string) error {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidationFailed, keyPath, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidationFailed, keyPath, err)
	}
	return nil
}

// normalizeSchema rewrites the editor extensions into plain JSON Schema:
// "color" becomes "string" and {"value", "description"} enum entries
// become their values. Keywords the validator would not understand as
// schema ("order", "title", "description" on properties) pass through.
func normalizeSchema(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			switch k {
			case "type":
				out[k] = normalizeType(val)
			case "enum":
				out[k] = normalizeEnum(val)
			case "properties", "patternProperties", "$defs", "definitions":
				props, ok := val.(map[string]any)
				if !ok {
					out[k] = val
					continue
				}
				np := make(map[string]any, len(props))
				for name, p := range props {
					np[name] = normalizeSchema(p)
				}
				out[k] = np
			case "items", "additionalProperties", "not":
				out[k] = normalizeSchema(val)
			case "anyOf", "oneOf", "allOf":
				if list, ok := val.([]any); ok {
					nl := make([]any, len(list))
					for i, item := range list {
						nl[i] = normalizeSchema(item)
					}
					out[k] = nl
					continue
				}
				out[k] = val
			default:
				out[k] = val
			}
		}
		return out
	default:
		return v
	}
}

func normalizeType(v any) any {
	switch t := v.(type) {
	case string:
		if t == "color" {
			return "string"
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeType(item)
		}
		return out
	default:
		return v
	}
}

func normalizeEnum(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(list))
	for i, item := range list {
		if m, ok := item.(map[string]any); ok {
			if value, has := m["value"]; has {
				out[i] = value
				continue
			}
		}
		out[i] = item
	}
	return out
}

// extractDefaults returns the default value a schema implies: its own
// "default", or for objects the defaults of its properties.
func extractDefaults(schema map[string]any) any {
	if def, ok := schema["default"]; ok {
		return def
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any)
	for name, p := range props {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if def := extractDefaults(pm); def != nil {
			out[name] = def
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
