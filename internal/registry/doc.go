// Package registry provides in-memory implementations of the editor
// services packages register into.
//
// Each registry is safe for concurrent use and keyed so that repeating a
// registration replaces the earlier one: keymaps, menus and stylesheets by
// source path, grammars by scope name, deserializers by name, URI handlers
// by package name. Loading a package twice therefore leaves the same
// observable state as loading it once.
package registry
