// Package suggest owns completion results and the builder argument types
// write them into.
//
// Ownership boundary:
// - suggestion ranges relative to the full input line
// - ordering and de-duplication of candidate texts
// - deferred (possibly remote) completion results
package suggest
