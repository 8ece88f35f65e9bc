package lobby

import (
	"sync"
	"time"
)

// Phase is the lifecycle phase of a connection's session.
type Phase int

const (
	// PhaseUnauthenticated is the implicit phase of a connection that has not
	// completed the handshake. Such connections have no registered Session.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticated means the handshake succeeded and the session may
	// create or join rooms.
	PhaseAuthenticated
	// PhaseInRoom means the session is a member of exactly one room.
	PhaseInRoom
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseInRoom:
		return "inRoom"
	default:
		return "unknown"
	}
}

// FeatureSupport carries the capability flags a client advertises during the
// handshake. The server stores and reports them; room chat is the only core
// behavior gated on one of them.
type FeatureSupport struct {
	RealTimeUpload      bool `json:"realTimeUpload"`
	VotingSelection     bool `json:"votingSelection"`
	RealTimeLeaderboard bool `json:"realTimeLeaderboard"`
	RealTimeChat        bool `json:"realTimeChat"`
}

// Profile is the client identity established at handshake time. It is
// populated exactly once and never mutated afterwards.
type Profile struct {
	Name        string
	IsAnonymous bool
	IsSpectator bool
	IsDebugger  bool
	AvatarURL   string
	Features    FeatureSupport
}

// Conn is the transport-facing side of a client connection. The websocket
// adapter implements it; tests substitute fakes.
type Conn interface {
	// ID returns the opaque connection handle, stable for the connection's
	// lifetime.
	ID() string
	// Send queues an encoded frame for delivery. It must not block on
	// network I/O.
	Send(data []byte) error
	// Close tears the connection down. The transport reports the closure
	// through its usual close callback.
	Close() error
}

// Session is the server-side state for one authenticated connection.
//
// The immutable identity fields are set at registration. The phase and room
// fields are mutated only by the registries while they hold their own locks;
// the session mutex makes those fields safe to read from the operator
// surface and from other connections' handlers.
type Session struct {
	conn     Conn
	profile  Profile
	joinedAt time.Time

	mu    sync.RWMutex
	phase Phase
	room  *Room
}

func newSession(conn Conn, profile Profile) *Session {
	return &Session{
		conn:     conn,
		profile:  profile,
		joinedAt: time.Now(),
		phase:    PhaseAuthenticated,
	}
}

// Handle returns the connection handle the session is registered under.
func (s *Session) Handle() string { return s.conn.ID() }

// Profile returns the profile established at handshake time.
func (s *Session) Profile() Profile { return s.profile }

// JoinedAt returns the time the session became authenticated.
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Room returns the room the session is a member of, or nil.
func (s *Session) Room() *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Send queues an encoded frame for delivery to this session's client.
func (s *Session) Send(data []byte) error { return s.conn.Send(data) }

// Close drops the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// setRoom moves the session in or out of a room. Callers hold the room
// registry lock, which serializes all phase transitions past Authenticated.
func (s *Session) setRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
	if r != nil {
		s.phase = PhaseInRoom
	} else {
		s.phase = PhaseAuthenticated
	}
}

// SessionInfo is a read-only snapshot of a session for the operator surface.
type SessionInfo struct {
	Name      string    `json:"name"`
	Anonymous bool      `json:"anonymous"`
	Spectator bool      `json:"spectator"`
	Debugger  bool      `json:"debugger"`
	JoinedAt  time.Time `json:"joinedAt"`
	RoomID    string    `json:"roomId,omitempty"`
}

// Info captures a snapshot of the session.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		Name:      s.profile.Name,
		Anonymous: s.profile.IsAnonymous,
		Spectator: s.profile.IsSpectator,
		Debugger:  s.profile.IsDebugger,
		JoinedAt:  s.joinedAt,
	}
	if r := s.Room(); r != nil {
		info.RoomID = r.ID()
	}
	return info
}
