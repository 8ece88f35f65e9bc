// Package lobby implements the session/room coordination core of the
// multiplayer lobby server.
//
// The lobby package implements:
//   - Per-connection Session state (authentication phase, profile, room reference)
//   - Thread-safe session and room registries
//   - Room lifecycle: creation, membership, ownership transfer, capacity,
//     chart selection, game start, and dissolution
//   - Room broadcasts with membership snapshots taken under the registry lock
//
// Core Types:
//
// SessionRegistry owns the set of live sessions keyed by connection handle.
// RoomRegistry owns the set of live rooms keyed by room identifier and
// serializes all membership mutations. Session and Room are the data model;
// both are created and destroyed exclusively through their registries.
//
// Concurrency:
//
// Transport callbacks for different connections run concurrently. Each
// registry is guarded by its own mutex; room membership mutations
// additionally serialize through the RoomRegistry so that concurrent joins,
// leaves, and ownership transfers on the same room cannot interleave.
// Broadcasts copy the member list under the lock and deliver outside it.
package lobby
