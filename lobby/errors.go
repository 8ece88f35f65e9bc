package lobby

import "errors"

var (
	// ErrDuplicateConnection is returned when a session already exists for a
	// connection handle.
	ErrDuplicateConnection = errors.New("a session is already registered for this connection")

	// ErrInvalidIdentifier is returned when a room identifier violates the
	// 1-32 character alphanumeric rule.
	ErrInvalidIdentifier = errors.New("room identifier must be 1-32 alphanumeric characters")

	// ErrRoomExists is returned when a room identifier is already registered.
	ErrRoomExists = errors.New("room identifier already registered")

	// ErrAlreadyInRoom is returned when a session that is already a room
	// member attempts to create or join a room.
	ErrAlreadyInRoom = errors.New("session is already in a room")

	// ErrRoomNotFound is returned when no live room carries the identifier.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when a join would exceed the room capacity.
	ErrRoomFull = errors.New("room is at capacity")

	// ErrNotInRoom is returned when a room operation requires membership the
	// session does not have.
	ErrNotInRoom = errors.New("session is not a member of the room")

	// ErrNotOwner is returned when an operation requires room ownership.
	ErrNotOwner = errors.New("operation requires room ownership")
)
