package lobby

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// roomIDPattern is the validity rule for client-supplied room identifiers.
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

const (
	// DefaultRoomCapacity applies when the creator does not request a limit.
	DefaultRoomCapacity = 8

	// generatedRoomIDLength is the length of server-generated identifiers.
	generatedRoomIDLength = 16

	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// RoomRegistry owns the set of live rooms keyed by identifier. Every
// membership mutation (create, join, leave, dissolve, ownership transfer)
// serializes through the registry mutex, so check-then-act sequences like
// "room exists, join it" cannot interleave across connections.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *slog.Logger
}

// NewRoomRegistry creates an empty room registry.
func NewRoomRegistry(log *slog.Logger) *RoomRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &RoomRegistry{
		rooms: make(map[string]*Room),
		log:   log,
	}
}

// ValidRoomID reports whether id satisfies the 1-32 alphanumeric rule.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// CreateRoom registers a new room with owner as its sole member. An empty
// roomID asks the registry to generate a 16-character alphanumeric one.
// A maxCapacity below 1 falls back to DefaultRoomCapacity.
func (rr *RoomRegistry) CreateRoom(owner *Session, roomID string, maxCapacity int) (*Room, error) {
	if maxCapacity < 1 {
		maxCapacity = DefaultRoomCapacity
	}
	if roomID != "" && !ValidRoomID(roomID) {
		return nil, ErrInvalidIdentifier
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	if roomID == "" {
		id, err := rr.generateRoomID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate room identifier: %w", err)
		}
		roomID = id
	} else if _, exists := rr.rooms[roomID]; exists {
		return nil, ErrRoomExists
	}

	if owner.Phase() == PhaseInRoom {
		return nil, ErrAlreadyInRoom
	}

	room := &Room{
		id:          roomID,
		maxCapacity: maxCapacity,
		owner:       owner,
		members:     []*Session{owner},
		stage:       StageOpen,
	}
	rr.rooms[roomID] = room
	owner.setRoom(room)

	rr.log.Info("room created", "room", roomID, "owner", owner.Profile().Name, "capacity", maxCapacity)
	return room, nil
}

// GetRoom looks up a live room by identifier.
func (rr *RoomRegistry) GetRoom(roomID string) (*Room, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, exists := rr.rooms[roomID]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Join appends session to the room's member list, preserving join order.
func (rr *RoomRegistry) Join(room *Room, session *Session) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	// The room may have dissolved between lookup and join.
	if _, exists := rr.rooms[room.id]; !exists {
		return ErrRoomNotFound
	}
	if session.Phase() == PhaseInRoom {
		return ErrAlreadyInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if len(room.members) >= room.maxCapacity {
		return ErrRoomFull
	}
	room.members = append(room.members, session)
	session.setRoom(room)

	rr.log.Info("user joined room", "room", room.id, "user", session.Profile().Name, "members", len(room.members))
	return nil
}

// LeaveResult describes what a leave did to the room, so the caller can
// notify the remaining members.
type LeaveResult struct {
	Room *Room
	// Dissolved is true when the leaver was the last member and the room was
	// deleted from the registry.
	Dissolved bool
	// NewOwner is non-nil when ownership transferred to the earliest-joined
	// remaining member.
	NewOwner *Session
	// Remaining is a snapshot of the members left after the departure.
	Remaining []*Session
}

// Leave removes session from the room. The last member leaving dissolves the
// room; the owner leaving a non-empty room hands ownership to the
// earliest-joined remaining member.
func (rr *RoomRegistry) Leave(room *Room, session *Session) (*LeaveResult, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room.mu.Lock()
	defer room.mu.Unlock()

	idx := room.memberIndex(session)
	if idx < 0 {
		return nil, ErrNotInRoom
	}

	room.members = append(room.members[:idx], room.members[idx+1:]...)
	session.setRoom(nil)

	result := &LeaveResult{Room: room}
	if len(room.members) == 0 {
		delete(rr.rooms, room.id)
		result.Dissolved = true
		rr.log.Info("room dissolved", "room", room.id)
		return result, nil
	}

	if room.owner == session {
		// Members are kept in join order with no reordering on removal, so
		// the head of the list is the earliest-joined survivor.
		room.owner = room.members[0]
		result.NewOwner = room.owner
		rr.log.Info("room ownership transferred", "room", room.id, "owner", room.owner.Profile().Name)
	}

	result.Remaining = make([]*Session, len(room.members))
	copy(result.Remaining, room.members)

	rr.log.Info("user left room", "room", room.id, "user", session.Profile().Name, "members", len(room.members))
	return result, nil
}

// SelectChart records the owner's chart selection and moves the room to the
// chart-selected stage. Non-owners get ErrNotOwner.
func (rr *RoomRegistry) SelectChart(room *Room, requester *Session, hash, url string) error {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.owner != requester {
		return ErrNotOwner
	}
	room.chart = &Chart{Hash: hash, URL: url}
	room.stage = StageChartSelected

	rr.log.Info("chart selected", "room", room.id, "chart", hash)
	return nil
}

// StartGame moves the room to the in-game stage. It reports false, with no
// error, unless the requester owns the room and a chart is selected: the
// client UI is expected to pre-validate, so invalid attempts are ignored
// rather than answered.
func (rr *RoomRegistry) StartGame(room *Room, requester *Session) bool {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.owner != requester || room.chart == nil {
		return false
	}
	room.stage = StageInGame

	rr.log.Info("game started", "room", room.id, "members", len(room.members))
	return true
}

// List snapshots every live room for the operator surface.
func (rr *RoomRegistry) List() []RoomInfo {
	rr.mu.RLock()
	rooms := make([]*Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	rr.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	return infos
}

// Count returns the number of live rooms.
func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

// generateRoomID produces an unused identifier under the registry lock.
// Bytes outside the largest multiple of the alphabet size are rejected so
// every character is equally likely.
func (rr *RoomRegistry) generateRoomID() (string, error) {
	const limit = 256 - 256%len(roomIDAlphabet)
	buf := make([]byte, 2*generatedRoomIDLength)
	for {
		id := make([]byte, 0, generatedRoomIDLength)
		for len(id) < generatedRoomIDLength {
			if _, err := rand.Read(buf); err != nil {
				return "", err
			}
			for _, b := range buf {
				if int(b) >= limit {
					continue
				}
				id = append(id, roomIDAlphabet[int(b)%len(roomIDAlphabet)])
				if len(id) == generatedRoomIDLength {
					break
				}
			}
		}
		if _, exists := rr.rooms[string(id)]; !exists {
			return string(id), nil
		}
	}
}
