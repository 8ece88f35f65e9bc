package protocol

import (
	"errors"
	"log/slog"

	"github.com/phi-mgus/mgus-server/lobby"
)

// Options carries the server policy the dispatcher enforces during the
// handshake and for room chat.
type Options struct {
	// Private gates the handshake behind Password.
	Private bool
	// Password is the private-mode password. Private mode with an empty
	// password admits everyone; the server warns about that at startup.
	Password string
	// RoomChat enables relaying roomChat messages between room members.
	RoomChat bool
}

// Dispatcher is the per-connection protocol state machine. The transport
// calls HandleOpen, HandleMessage, and HandleClose; callbacks for one
// connection arrive sequentially, callbacks for different connections
// concurrently.
type Dispatcher struct {
	opts     Options
	sessions *lobby.SessionRegistry
	rooms    *lobby.RoomRegistry
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registries.
func NewDispatcher(opts Options, sessions *lobby.SessionRegistry, rooms *lobby.RoomRegistry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		opts:     opts,
		sessions: sessions,
		rooms:    rooms,
		log:      log,
	}
}

// HandleOpen greets a fresh connection with the metadata request.
func (d *Dispatcher) HandleOpen(conn lobby.Conn) {
	d.send(conn, GetData{NeedPassword: d.opts.Private})
}

// HandleMessage decodes one inbound frame and runs the matching transition.
// Malformed frames, unknown actions, and messages sent before the handshake
// are protocol violations: the frame is dropped without a response and the
// connection is terminated. Session/room teardown then happens through
// HandleClose, the same path as a normal disconnect.
func (d *Dispatcher) HandleMessage(conn lobby.Conn, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		d.log.Warn("protocol violation, dropping connection", "connection", conn.ID(), "error", err)
		conn.Close()
		return
	}

	session, authenticated := d.sessions.Get(conn.ID())

	if meta, ok := msg.(*ClientMetaData); ok {
		d.handleHandshake(conn, session, meta)
		return
	}

	if !authenticated {
		d.log.Warn("message before handshake, dropping connection", "connection", conn.ID(), "action", actionOf(msg))
		conn.Close()
		return
	}

	switch m := msg.(type) {
	case *NewRoom:
		d.handleNewRoom(session, m)
	case *JoinRoom:
		d.handleJoinRoom(session, m)
	case *LeaveRoom:
		d.handleLeaveRoom(session)
	case *SelectChart:
		d.handleSelectChart(session, m)
	case *GameStart:
		d.handleGameStart(session)
	case *RoomChat:
		d.handleRoomChat(session, m)
	}
}

// HandleClose tears down whatever state the connection accumulated. Abrupt
// transport errors funnel through here as well, so an implicit room leave
// and session removal happen regardless of the cause.
func (d *Dispatcher) HandleClose(conn lobby.Conn) {
	session, ok := d.sessions.Get(conn.ID())
	if !ok {
		return
	}
	result := d.sessions.RemoveSession(conn.ID())
	d.notifyLeave(session, result)
}

func (d *Dispatcher) handleHandshake(conn lobby.Conn, existing *lobby.Session, m *ClientMetaData) {
	// A second handshake from an authenticated connection is a protocol
	// violation, not a recoverable failure: answer and drop the connection.
	if existing != nil {
		d.log.Warn("repeated handshake, dropping connection", "connection", conn.ID(), "user", existing.Profile().Name)
		d.send(conn, JoinFailed{Reason: ReasonDuplicateConnection})
		conn.Close()
		return
	}

	if m.ClientName == "" || m.ClientVersion <= 0 {
		d.send(conn, JoinFailed{Reason: ReasonInvalidParameter})
		conn.Close()
		return
	}

	if d.opts.Private && d.opts.Password != "" {
		switch m.Password {
		case d.opts.Password:
		case "":
			d.send(conn, JoinFailed{Reason: ReasonAuthFailedByPwdNull})
			conn.Close()
			return
		default:
			d.send(conn, JoinFailed{Reason: ReasonAuthFailedByPwdIncorrect})
			conn.Close()
			return
		}
	}

	profile := lobby.Profile{
		Name:        m.UserName,
		IsAnonymous: m.UserName == "",
		IsSpectator: m.IsSpectator,
		IsDebugger:  m.IsDebugger,
		AvatarURL:   m.AvatarURL,
		Features:    m.Features,
	}
	if profile.IsAnonymous {
		profile.Name = "anonymous"
	}

	if _, err := d.sessions.AddSession(conn, profile); err != nil {
		d.send(conn, JoinFailed{Reason: ReasonDuplicateConnection})
		conn.Close()
		return
	}
	d.send(conn, JoinSuccess{})
}

func (d *Dispatcher) handleNewRoom(session *lobby.Session, m *NewRoom) {
	room, err := d.rooms.CreateRoom(session, m.RoomID, m.MaxUser)
	if err != nil {
		reason, known := createReason(err)
		if !known {
			d.log.Error("room creation failed", "connection", session.Handle(), "error", err)
			return
		}
		d.send(session, NewRoomFailed{Reason: reason})
		return
	}
	d.send(session, NewRoomSuccess{RoomID: room.ID()})
}

func (d *Dispatcher) handleJoinRoom(session *lobby.Session, m *JoinRoom) {
	room, err := d.rooms.GetRoom(m.RoomID)
	if err != nil {
		d.send(session, JoinRoomFailed{Reason: ReasonRoomNotFound})
		return
	}
	if err := d.rooms.Join(room, session); err != nil {
		d.send(session, JoinRoomFailed{Reason: joinReason(err)})
		return
	}

	snapshot := JoinRoomSuccess{RoomID: room.ID()}
	for _, member := range room.Members() {
		p := member.Profile()
		snapshot.Members = append(snapshot.Members, RoomMember{
			UserName:    p.Name,
			IsSpectator: p.IsSpectator,
			AvatarURL:   p.AvatarURL,
		})
	}
	if chart := room.Chart(); chart != nil {
		snapshot.ChartHash = chart.Hash
		snapshot.ChartURL = chart.URL
	}
	if owner := room.Owner(); owner != nil {
		snapshot.Owner = owner.Profile().Name
	}
	d.send(session, snapshot)

	p := session.Profile()
	room.Broadcast(mustEncode(NewUserJoinRoom{
		UserName:    p.Name,
		IsSpectator: p.IsSpectator,
		AvatarURL:   p.AvatarURL,
		RoomID:      room.ID(),
	}), session)
}

func (d *Dispatcher) handleLeaveRoom(session *lobby.Session) {
	room := session.Room()
	if room == nil {
		d.send(session, LeaveRoomFailed{Reason: ReasonNotInRoom})
		return
	}
	result, err := d.rooms.Leave(room, session)
	if err != nil {
		d.send(session, LeaveRoomFailed{Reason: ReasonNotInRoom})
		return
	}
	d.send(session, LeaveRoomSuccess{})
	d.notifyLeave(session, result)
}

func (d *Dispatcher) handleSelectChart(session *lobby.Session, m *SelectChart) {
	room := session.Room()
	if room == nil {
		d.send(session, SelectChartFailed{Reason: ReasonNotInRoom})
		return
	}
	if err := d.rooms.SelectChart(room, session, m.ChartHash, m.ChartURL); err != nil {
		d.send(session, SelectChartFailed{Reason: ReasonInsufficientPermissions})
		return
	}
	room.Broadcast(mustEncode(ChartSelected{
		ChartHash: m.ChartHash,
		ChartURL:  m.ChartURL,
		RoomID:    room.ID(),
	}), session)
}

// handleGameStart intentionally answers nothing on precondition failure:
// the client UI is expected to only offer the start button to an owner with
// a selected chart.
func (d *Dispatcher) handleGameStart(session *lobby.Session) {
	room := session.Room()
	if room == nil {
		return
	}
	if !d.rooms.StartGame(room, session) {
		return
	}
	room.Broadcast(mustEncode(GameStarted{RoomID: room.ID()}), nil)
}

// handleRoomChat relays a chat line to the rest of the room. Chat is dropped
// silently when disabled server-side, when the sender is not in a room, or
// when the sender never advertised the realTimeChat capability.
func (d *Dispatcher) handleRoomChat(session *lobby.Session, m *RoomChat) {
	if !d.opts.RoomChat || m.Content == "" {
		return
	}
	if !session.Profile().Features.RealTimeChat {
		return
	}
	room := session.Room()
	if room == nil {
		return
	}
	room.Broadcast(mustEncode(ChatRelay{
		UserName: session.Profile().Name,
		Content:  m.Content,
		RoomID:   room.ID(),
	}), session)
}

// notifyLeave tells the remaining members who left and who owns the room
// now. A dissolved room has nobody left to notify.
func (d *Dispatcher) notifyLeave(leaver *lobby.Session, result *lobby.LeaveResult) {
	if result == nil || result.Dissolved || len(result.Remaining) == 0 {
		return
	}
	owner := ""
	if o := result.Room.Owner(); o != nil {
		owner = o.Profile().Name
	}
	data := mustEncode(UserLeaveRoom{
		UserName: leaver.Profile().Name,
		RoomID:   result.Room.ID(),
		Owner:    owner,
	})
	for _, member := range result.Remaining {
		_ = member.Send(data)
	}
}

// sender is satisfied by both lobby.Conn and *lobby.Session.
type sender interface {
	Send(data []byte) error
}

func (d *Dispatcher) send(to sender, m ServerMessage) {
	data, err := Encode(m)
	if err != nil {
		d.log.Error("failed to encode message", "action", m.Action(), "error", err)
		return
	}
	if err := to.Send(data); err != nil {
		d.log.Debug("failed to queue message", "action", m.Action(), "error", err)
	}
}

func actionOf(m ClientMessage) string { return m.clientAction() }

// createReason maps room creation errors onto the closed reason set.
func createReason(err error) (string, bool) {
	switch {
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return ReasonAlreadyInRoom, true
	case errors.Is(err, lobby.ErrInvalidIdentifier):
		return ReasonRoomIdentifierInvalid, true
	case errors.Is(err, lobby.ErrRoomExists):
		return ReasonRoomAlreadyExists, true
	default:
		return "", false
	}
}

// joinReason maps room join errors onto the closed reason set.
func joinReason(err error) string {
	switch {
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return ReasonAlreadyInRoom
	case errors.Is(err, lobby.ErrRoomFull):
		return ReasonRoomIsFull
	default:
		return ReasonRoomNotFound
	}
}
