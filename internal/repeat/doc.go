// Package repeat owns the repetition combinator that turns a single-value
// argument type into a list argument type.
//
// Ownership boundary:
// - greedy repeated parsing until input is exhausted
// - append vs flatten accumulation, fixed per instance
// - one-or-more vs zero-or-more acceptance
// - suggestion replay for the trailing, possibly partial element
//
// A Repeat consumes the rest of the line and must be the last argument of
// a command.
package repeat
