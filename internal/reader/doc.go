// Package reader owns the cursor-bearing text reader handed to argument types.
//
// Ownership boundary:
// - cursor movement over one command line
// - integer and unquoted-token primitives
// - positioned parse errors
//
// Cursor positions are byte offsets into the original input.
package reader
