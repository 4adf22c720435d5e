// Package console owns the literal command layer over argument types.
//
// Ownership boundary:
// - command table: name, summary, one trailing argument type, action
// - parse, execute and completion of a full input line
// - command tree export and mirroring through argsync descriptors
//
// Command names are single unquoted tokens. The argument, when present,
// receives everything after the separating space.
package console
