// Package selector owns the unit selector argument type.
//
// Ownership boundary:
// - sigil grammar: bare handle, #id, @label, ~category
// - Selector as a tagged, lazily evaluated resolver
// - require-some enforcement at resolution time
// - selector completion (category branch is context free)
//
// Parsing never consults the registry. Resolution re-queries the registry
// on every call and never caches.
package selector
