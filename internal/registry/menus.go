package registry

import "github.com/dshills/packhost/internal/host"

// Menus holds application menu templates by source.
type Menus struct {
	sources bySource[[]host.MenuItem]
}

// NewMenus creates an empty menu registry.
func NewMenus() *Menus {
	return &Menus{}
}

// Add registers items from source, replacing earlier items from it.
func (m *Menus) Add(source string, items []host.MenuItem) {
	m.sources.put(source, items)
}

// Remove drops the items from source.
func (m *Menus) Remove(source string) {
	m.sources.remove(source)
}

// Template returns the merged menu template in registration order.
func (m *Menus) Template() []host.MenuItem {
	var out []host.MenuItem
	for _, items := range m.sources.values() {
		out = append(out, items...)
	}
	return out
}

// ContextMenus holds context menu items keyed by selector, by source.
type ContextMenus struct {
	sources bySource[map[string][]host.MenuItem]
}

// NewContextMenus creates an empty context menu registry.
func NewContextMenus() *ContextMenus {
	return &ContextMenus{}
}

// Add registers items from source, replacing earlier items from it.
func (c *ContextMenus) Add(source string, items map[string][]host.MenuItem) {
	c.sources.put(source, items)
}

// ItemsFor returns the items registered for selector across sources.
func (c *ContextMenus) ItemsFor(selector string) []host.MenuItem {
	var out []host.MenuItem
	for _, bySelector := range c.sources.values() {
		out = append(out, bySelector[selector]...)
	}
	return out
}
