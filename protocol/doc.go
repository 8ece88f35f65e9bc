// Package protocol defines the wire message shapes exchanged with clients
// and the per-connection dispatcher that drives the lobby state machine.
//
// Every frame is a JSON object carrying an "action" discriminator. Inbound
// frames decode through a single tagged-union step: the discriminator selects
// a concrete message type, unknown fields are rejected at the boundary, and
// unknown actions are protocol violations. Outbound messages derive their
// discriminator from the Go type, never from a per-instance field.
//
// The Dispatcher receives decoded messages per connection, validates the
// session phase against the transition table (Unauthenticated ->
// Authenticated <-> InRoom), invokes the registry operations, and answers
// with typed reason codes. Protocol violations drop the connection.
package protocol
