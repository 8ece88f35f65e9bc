// Package api exposes the operator-facing read surface of the lobby server.
//
// Everything here is a read-only snapshot of registry state: live sessions
// (name, join time, current room), live rooms (id, owner, member count,
// stage), and a liveness endpoint. The API never mutates lobby state; all
// mutation flows through the WebSocket protocol.
package api
