// Package lua runs package main modules written in Lua.
//
// Each main module gets its own sandboxed gopher-lua state. Only the base,
// table, string and math libraries are opened; file loading functions are
// removed and require resolves modules relative to the package directory
// only.
//
// A main module is a Lua file that defines global functions. The package
// activator calls these by name:
//
//	function initialize(state) end
//	function activateConfig() end
//	function activate(state) end
//
// A global table named config, when present, is the package's
// configuration schema:
//
//	config = {
//	  tabLength = { type = "integer", default = 2 },
//	}
//
// Host functions are exposed to Lua as global tables registered with
// WithModule.
//
// gopher-lua's LState is not goroutine-safe; State serializes every call
// with a mutex.
package lua
