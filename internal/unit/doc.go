// Package unit owns the live unit model queried by selectors.
//
// Ownership boundary:
// - unit shape (handle, persistent id, label, category)
// - closed category enumeration
// - Lookup query surface and the in-process Registry backing it
// - privileged execution source that grants registry access
package unit
