package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/packhost/internal/host"
)

// ErrUnknownDeserializer is returned when no deserializer has the name.
var ErrUnknownDeserializer = errors.New("unknown deserializer")

type deserializer struct {
	packageName string
	fn          host.DeserializeFunc
}

// Deserializers maps deserializer names to functions.
type Deserializers struct {
	byName bySource[deserializer]
}

// NewDeserializers creates an empty deserializer registry.
func NewDeserializers() *Deserializers {
	return &Deserializers{}
}

// Add registers fn under name on behalf of packageName.
func (d *Deserializers) Add(name, packageName string, fn host.DeserializeFunc) {
	d.byName.put(name, deserializer{packageName: packageName, fn: fn})
}

// Has reports whether name is registered.
func (d *Deserializers) Has(name string) bool {
	_, ok := d.byName.get(name)
	return ok
}

// Count returns the number of registered deserializers.
func (d *Deserializers) Count() int {
	return d.byName.len()
}

// Deserialize restores state with the deserializer named by state["deserializer"].
func (d *Deserializers) Deserialize(ctx context.Context, state map[string]any) (any, error) {
	name, _ := state["deserializer"].(string)
	entry, ok := d.byName.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeserializer, name)
	}
	return entry.fn(ctx, state)
}
