// Package args defines the contract every console argument type satisfies.
//
// Ownership boundary:
// - Type: parse, suggest and example surface consumed by the console
// - Source: opaque execution context handed to suggestions and resolution
// - controller gating for suggestions that need the live unit registry
//
// Argument types never touch transport. A Source that cannot see the
// registry may still implement Remote so registry-backed completion is
// forwarded to the controller instead of dropped.
package args
