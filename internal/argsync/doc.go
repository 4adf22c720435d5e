// Package argsync owns argument-type descriptors exchanged between the
// controller and the presentation process.
//
// Ownership boundary:
// - serializer registry keyed by argument kind
// - authoritative binary descriptor codec
// - structured JSON descriptor codec for inspection
//
// Binary layout of one descriptor:
//
//	[kind-len:uvarint][kind:utf8][payload]
//
// Payloads are kind specific. The binary codec refuses argument types it
// has no serializer for. The JSON codec marks such children with Sentinel
// and its decoder refuses documents that carry it.
package argsync
