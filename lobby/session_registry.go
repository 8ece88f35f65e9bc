package lobby

import (
	"log/slog"
	"sync"
)

// SessionRegistry owns the set of live sessions keyed by connection handle.
// It enforces one session per connection and, on removal, runs the room
// leave protocol for sessions that are still room members.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    *RoomRegistry
	log      *slog.Logger
}

// NewSessionRegistry creates an empty session registry. The room registry is
// needed so that removing an in-room session tears its membership down.
func NewSessionRegistry(rooms *RoomRegistry, log *slog.Logger) *SessionRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		rooms:    rooms,
		log:      log,
	}
}

// AddSession registers an authenticated session for the connection. It fails
// with ErrDuplicateConnection if the connection already has one.
func (sr *SessionRegistry) AddSession(conn Conn, profile Profile) (*Session, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.sessions[conn.ID()]; exists {
		return nil, ErrDuplicateConnection
	}

	session := newSession(conn, profile)
	sr.sessions[conn.ID()] = session

	sr.log.Info("session registered", "connection", conn.ID(), "user", profile.Name, "anonymous", profile.IsAnonymous)
	return session, nil
}

// RemoveSession deletes the session for the handle. A session that is still
// a room member leaves its room first; the returned LeaveResult lets the
// caller notify the remaining members. Removing an absent handle is a no-op.
func (sr *SessionRegistry) RemoveSession(handle string) *LeaveResult {
	sr.mu.Lock()
	session, exists := sr.sessions[handle]
	if exists {
		delete(sr.sessions, handle)
	}
	sr.mu.Unlock()

	if !exists {
		return nil
	}

	var result *LeaveResult
	if room := session.Room(); room != nil {
		// The room may have mutated since the phase check; Leave re-verifies
		// membership under the room registry lock.
		if res, err := sr.rooms.Leave(room, session); err == nil {
			result = res
		}
	}

	sr.log.Info("session removed", "connection", handle, "user", session.Profile().Name)
	return result
}

// Get looks up the session for a connection handle.
func (sr *SessionRegistry) Get(handle string) (*Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	session, exists := sr.sessions[handle]
	return session, exists
}

// Contains reports whether a session exists for the handle.
func (sr *SessionRegistry) Contains(handle string) bool {
	_, exists := sr.Get(handle)
	return exists
}

// List snapshots every live session for the operator surface.
func (sr *SessionRegistry) List() []SessionInfo {
	sr.mu.RLock()
	sessions := make([]*Session, 0, len(sr.sessions))
	for _, session := range sr.sessions {
		sessions = append(sessions, session)
	}
	sr.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

// Count returns the number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}
