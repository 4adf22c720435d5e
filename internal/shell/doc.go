// Package shell owns the presentation side of the unit console.
//
// Ownership boundary:
// - dialing the controller with retry and backoff
// - mirror console rebuilt from tree.sync descriptors
// - remote source forwarding registry-backed suggestion branches
// - interactive line editing and completion
//
// The shell never sees the live registry. Lines are parsed locally against
// the mirror for early syntax errors, then executed by the controller.
package shell
