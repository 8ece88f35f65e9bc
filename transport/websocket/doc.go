// Package websocket provides the WebSocket transport for the lobby server.
//
// The websocket package implements:
//   - Accepting and upgrading client connections
//   - Opaque per-connection handles (UUIDs) used as session registry keys
//   - Buffered outbound queues so lobby operations never block on the network
//   - Connection lifecycle callbacks into the protocol dispatcher
//
// Architecture:
//
// Each accepted connection gets a pair of pumps. The read pump delivers
// inbound text frames to the dispatcher one at a time, preserving the
// per-connection ordering the protocol state machine relies on. The write
// pump drains a buffered send channel and keeps the peer alive with pings.
//
// Protocol Boundary:
//
// The transport knows nothing about message contents. It hands raw frames
// to a Handler and sends back whatever bytes the dispatcher queues. Binary
// frames are protocol violations and terminate the connection.
//
// Usage:
//
//	server := websocket.NewServer(dispatcher, logger)
//	router.HandleFunc("/ws", server.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is assigned a handle
// 2. HandleOpen fires (the server requests client metadata)
// 3. Inbound frames flow through HandleMessage in order
// 4. Disconnection or violation fires HandleClose exactly once
package websocket
