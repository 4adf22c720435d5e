// Package controller owns the authoritative side of the unit console.
//
// Ownership boundary:
// - live unit registry and the real command table
// - session accept loop: hello -> hello.ack + tree.sync, then suggest/execute
// - mapping execution failures to wire error kinds
//
// Registry-backed suggestion branches only run here. Shells see them
// through suggest.request forwarding.
//
// Controller does not render output. Shells print ExecuteResult as-is.
package controller
