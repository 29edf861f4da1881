package registry

import "sync"

// Commands holds the commands available under each selector.
type Commands struct {
	mu      sync.RWMutex
	entries map[string]map[string]int
}

// NewCommands creates an empty command registry.
func NewCommands() *Commands {
	return &Commands{entries: make(map[string]map[string]int)}
}

// Add registers command under selector. Adds are reference counted; the
// returned function releases this registration.
func (c *Commands) Add(selector, command string) func() {
	c.mu.Lock()
	if c.entries[selector] == nil {
		c.entries[selector] = make(map[string]int)
	}
	c.entries[selector][command]++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.entries[selector][command] <= 1 {
				delete(c.entries[selector], command)
				return
			}
			c.entries[selector][command]--
		})
	}
}

// Has reports whether command is registered under selector.
func (c *Commands) Has(selector, command string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[selector][command] > 0
}
