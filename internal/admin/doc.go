// Package admin owns the controller's HTTP admin surface.
//
// Routes: /health, /ready, /metrics, /units, /commands, /execute.
// /commands serves the structured descriptor documents, which may carry the
// cannot-serialize sentinel and are for inspection only.
package admin
