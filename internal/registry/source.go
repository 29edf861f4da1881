package registry

import (
	"sort"
	"sync"
)

// bySource stores one value per key and remembers insertion order.
type bySource[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func (b *bySource[T]) put(key string, v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items == nil {
		b.items = make(map[string]T)
	}
	if _, exists := b.items[key]; !exists {
		b.order = append(b.order, key)
	}
	b.items[key] = v
}

func (b *bySource[T]) get(key string) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.items[key]
	return v, ok
}

func (b *bySource[T]) remove(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[key]; !ok {
		return false
	}
	delete(b.items, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// values returns the stored values in insertion order.
func (b *bySource[T]) values() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.items[k])
	}
	return out
}

func (b *bySource[T]) keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := append([]string(nil), b.order...)
	sort.Strings(keys)
	return keys
}

func (b *bySource[T]) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}
