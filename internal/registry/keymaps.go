package registry

import (
	"sort"

	"github.com/dshills/packhost/internal/host"
)

type keymapEntry struct {
	keymap   host.Keymap
	priority int
}

// Keymaps holds key bindings grouped by source file.
type Keymaps struct {
	sources bySource[keymapEntry]
}

// NewKeymaps creates an empty keymap registry.
func NewKeymaps() *Keymaps {
	return &Keymaps{}
}

// Add registers keymap from source, replacing earlier bindings from it.
func (k *Keymaps) Add(source string, keymap host.Keymap, priority int) {
	k.sources.put(source, keymapEntry{keymap: keymap, priority: priority})
}

// RemoveBindingsFromSource drops every binding from source.
func (k *Keymaps) RemoveBindingsFromSource(source string) {
	k.sources.remove(source)
}

// Sources returns the registered source paths, sorted.
func (k *Keymaps) Sources() []string {
	return k.sources.keys()
}

// Lookup returns the command bound to keystroke under selector. Higher
// priority sources win; among equal priorities the latest source wins.
func (k *Keymaps) Lookup(selector, keystroke string) (string, bool) {
	entries := k.sources.values()
	// Stable sort keeps insertion order for equal priorities.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	command, found := "", false
	for _, e := range entries {
		if cmd, ok := e.keymap[selector][keystroke]; ok {
			command, found = cmd, true
		}
	}
	return command, found
}

// BindingCount returns the number of keystroke bindings across sources.
func (k *Keymaps) BindingCount() int {
	n := 0
	for _, e := range k.sources.values() {
		for _, bindings := range e.keymap {
			n += len(bindings)
		}
	}
	return n
}
