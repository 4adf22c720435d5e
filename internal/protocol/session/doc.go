// Package session owns the controller<->shell session transport.
//
// Ownership boundary:
// - message shapes and their frame codecs
// - hello -> hello.ack -> tree.sync handshake ordering
// - connection wrapper with deadlines and serialized writes
// - pending request table and reconnect backoff
//
// Every response echoes the request message_id and sets FlagIsResponse.
// tree.sync answers hello together with hello.ack.
package session
