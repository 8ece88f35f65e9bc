package lobby

import "sync"

// Stage is the activity stage of a room.
type Stage int

const (
	// StageOpen means the room accepts members and no chart is selected.
	StageOpen Stage = iota
	// StageChartSelected means the owner has picked a chart.
	StageChartSelected
	// StageInGame means the owner has signalled game start.
	StageInGame
)

func (s Stage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageChartSelected:
		return "chartSelected"
	case StageInGame:
		return "inGame"
	default:
		return "unknown"
	}
}

// Chart identifies the chart the room owner selected.
type Chart struct {
	Hash string
	URL  string
}

// Room is a lobby grouping sessions around chart selection and a
// synchronized game start.
//
// Rooms are owned exclusively by the RoomRegistry: all membership mutation
// goes through registry operations, which hold the registry lock. The room's
// own mutex guards reads that race with those mutations (operator snapshots,
// broadcast member copies).
type Room struct {
	id          string
	maxCapacity int

	mu      sync.RWMutex
	owner   *Session
	members []*Session
	chart   *Chart
	stage   Stage
}

// ID returns the immutable room identifier.
func (r *Room) ID() string { return r.id }

// MaxCapacity returns the member limit fixed at creation.
func (r *Room) MaxCapacity() int { return r.maxCapacity }

// Owner returns the session that currently controls the room.
func (r *Room) Owner() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// Members returns a copy of the member list in join order.
func (r *Room) Members() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, len(r.members))
	copy(out, r.members)
	return out
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Chart returns the selected chart, or nil while the room is open.
func (r *Room) Chart() *Chart {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chart
}

// Stage returns the room's activity stage.
func (r *Room) Stage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stage
}

// Broadcast delivers an encoded frame to every member except exclude.
// Pass a nil exclude to reach everyone. The member list is copied under the
// room lock and delivery happens outside it, so a send can never stall a
// concurrent join or leave.
func (r *Room) Broadcast(data []byte, exclude *Session) {
	for _, member := range r.Members() {
		if member == exclude {
			continue
		}
		// Send failures are the transport's problem: its close callback
		// tears the member down through the normal disconnect path.
		_ = member.Send(data)
	}
}

// memberIndex returns the join-order index of the session, or -1.
// Callers hold r.mu.
func (r *Room) memberIndex(s *Session) int {
	for i, member := range r.members {
		if member == s {
			return i
		}
	}
	return -1
}

// RoomInfo is a read-only snapshot of a room for the operator surface.
type RoomInfo struct {
	RoomID      string `json:"roomId"`
	Owner       string `json:"owner"`
	MemberCount int    `json:"memberCount"`
	MaxCapacity int    `json:"maxCapacity"`
	Stage       string `json:"stage"`
}

// Info captures a snapshot of the room.
func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := RoomInfo{
		RoomID:      r.id,
		MemberCount: len(r.members),
		MaxCapacity: r.maxCapacity,
		Stage:       r.stage.String(),
	}
	if r.owner != nil {
		info.Owner = r.owner.Profile().Name
	}
	return info
}
