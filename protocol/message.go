package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phi-mgus/mgus-server/lobby"
)

// Action discriminator values. Client and server actions share one namespace.
const (
	// Server to client.
	ActionGetData         = "getData"
	ActionJoinSuccess     = "joinSuccess"
	ActionJoinFailed      = "joinFailed"
	ActionNewRoomSuccess  = "newRoomSuccess"
	ActionNewRoomFailed   = "newRoomFailed"
	ActionJoinRoomSuccess = "joinRoomSuccess"
	ActionJoinRoomFailed  = "joinRoomFailed"
	ActionLeaveRoomOK     = "leaveRoomSuccess"
	ActionLeaveRoomFailed = "leaveRoomFailed"
	ActionSelectChartFail = "selectChartFailed"
	ActionNewUserJoinRoom = "newUserJoinRoom"
	ActionUserLeaveRoom   = "userLeaveRoom"

	// Client to server. selectChart, gameStart and roomChat are also
	// relayed server to client on success.
	ActionClientMetaData = "clientMetaData"
	ActionNewRoom        = "newRoom"
	ActionJoinRoom       = "joinRoom"
	ActionLeaveRoom      = "leaveRoom"
	ActionSelectChart    = "selectChart"
	ActionGameStart      = "gameStart"
	ActionRoomChat       = "roomChat"
)

// Reason codes are closed enumerations per failure family. They are the only
// failure detail a client ever sees.
const (
	ReasonAuthFailedByPwdNull      = "AuthFailedByPwdNull"
	ReasonAuthFailedByPwdIncorrect = "AuthFailedByPwdIncorrect"
	ReasonInvalidParameter         = "InvalidParameter"
	ReasonDuplicateConnection      = "DuplicateConnection"

	ReasonRoomAlreadyExists       = "RoomAlreadyExists"
	ReasonRoomIdentifierInvalid   = "RoomIdentifierInvalid"
	ReasonAlreadyInRoom           = "AlreadyInRoom"
	ReasonRoomNotFound            = "RoomNotFound"
	ReasonRoomIsFull              = "RoomIsFull"
	ReasonNotInRoom               = "NotInRoom"
	ReasonInsufficientPermissions = "InsufficientPermissions"
)

var (
	// ErrMalformedFrame is returned for frames that are not valid JSON
	// objects or that carry unexpected fields.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownAction is returned when the discriminator names no known
	// client message kind.
	ErrUnknownAction = errors.New("unknown action")
)

// ServerMessage is a message the server sends to a client. The action
// discriminator is derived from the concrete type by Encode.
type ServerMessage interface {
	Action() string
}

// GetData asks a freshly connected client for its metadata and tells it
// whether the server is password protected.
type GetData struct {
	NeedPassword bool `json:"needPassword"`
}

func (GetData) Action() string { return ActionGetData }

// JoinSuccess acknowledges a completed handshake.
type JoinSuccess struct{}

func (JoinSuccess) Action() string { return ActionJoinSuccess }

// JoinFailed rejects a handshake with a typed reason.
type JoinFailed struct {
	Reason string `json:"reason"`
}

func (JoinFailed) Action() string { return ActionJoinFailed }

// NewRoomSuccess acknowledges room creation and echoes the identifier,
// which the server may have generated.
type NewRoomSuccess struct {
	RoomID string `json:"roomId"`
}

func (NewRoomSuccess) Action() string { return ActionNewRoomSuccess }

// NewRoomFailed rejects a room creation with a typed reason.
type NewRoomFailed struct {
	Reason string `json:"reason"`
}

func (NewRoomFailed) Action() string { return ActionNewRoomFailed }

// RoomMember describes one member inside a JoinRoomSuccess snapshot.
type RoomMember struct {
	UserName    string `json:"userName"`
	IsSpectator bool   `json:"isSpectator"`
	AvatarURL   string `json:"avatarUrl"`
}

// JoinRoomSuccess acknowledges a join and carries a snapshot of the room.
type JoinRoomSuccess struct {
	RoomID    string       `json:"roomId"`
	Members   []RoomMember `json:"members"`
	ChartHash string       `json:"chartHash"`
	ChartURL  string       `json:"chartUrl"`
	Owner     string       `json:"owner"`
}

func (JoinRoomSuccess) Action() string { return ActionJoinRoomSuccess }

// JoinRoomFailed rejects a join with a typed reason.
type JoinRoomFailed struct {
	Reason string `json:"reason"`
}

func (JoinRoomFailed) Action() string { return ActionJoinRoomFailed }

// LeaveRoomSuccess acknowledges a leave.
type LeaveRoomSuccess struct{}

func (LeaveRoomSuccess) Action() string { return ActionLeaveRoomOK }

// LeaveRoomFailed rejects a leave with a typed reason.
type LeaveRoomFailed struct {
	Reason string `json:"reason"`
}

func (LeaveRoomFailed) Action() string { return ActionLeaveRoomFailed }

// SelectChartFailed rejects a chart selection with a typed reason.
type SelectChartFailed struct {
	Reason string `json:"reason"`
}

func (SelectChartFailed) Action() string { return ActionSelectChartFail }

// NewUserJoinRoom tells existing members that someone joined.
type NewUserJoinRoom struct {
	UserName    string `json:"userName"`
	IsSpectator bool   `json:"isSpectator"`
	AvatarURL   string `json:"avatarUrl"`
	RoomID      string `json:"roomId"`
}

func (NewUserJoinRoom) Action() string { return ActionNewUserJoinRoom }

// UserLeaveRoom tells remaining members that someone left and who owns the
// room now.
type UserLeaveRoom struct {
	UserName string `json:"userName"`
	RoomID   string `json:"roomId"`
	Owner    string `json:"owner"`
}

func (UserLeaveRoom) Action() string { return ActionUserLeaveRoom }

// ChartSelected relays the owner's chart selection to the other members.
type ChartSelected struct {
	ChartHash string `json:"chartHash"`
	ChartURL  string `json:"chartUrl"`
	RoomID    string `json:"roomId"`
}

func (ChartSelected) Action() string { return ActionSelectChart }

// GameStarted signals the synchronized game start to every member.
type GameStarted struct {
	RoomID string `json:"roomId"`
}

func (GameStarted) Action() string { return ActionGameStart }

// ChatRelay carries a room chat line to the other members.
type ChatRelay struct {
	UserName string `json:"userName"`
	Content  string `json:"content"`
	RoomID   string `json:"roomId"`
}

func (ChatRelay) Action() string { return ActionRoomChat }

// Encode marshals a server message, splicing in the action discriminator
// derived from its type.
func Encode(m ServerMessage) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Action(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Action(), err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	action, _ := json.Marshal(m.Action())
	fields["action"] = action
	return json.Marshal(fields)
}

// mustEncode is for messages built entirely from server-controlled values,
// where a marshal failure is a programming error.
func mustEncode(m ServerMessage) []byte {
	data, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return data
}

// ClientMessage is a decoded client-to-server message.
type ClientMessage interface {
	clientAction() string
}

// ClientMetaData is the handshake message carrying the client's identity,
// capabilities, and the password when the server runs in private mode.
type ClientMetaData struct {
	ActionField   string               `json:"action"`
	Features      lobby.FeatureSupport `json:"features"`
	ClientName    string               `json:"clientName"`
	ClientVersion int                  `json:"clientVersion"`
	UserName      string               `json:"userName,omitempty"`
	Password      string               `json:"password,omitempty"`
	AvatarURL     string               `json:"avatarUrl,omitempty"`
	IsDebugger    bool                 `json:"isDebugger"`
	IsSpectator   bool                 `json:"isSpectator"`
}

func (ClientMetaData) clientAction() string { return ActionClientMetaData }

// NewRoom requests room creation. An empty roomId asks the server to
// generate one; a zero maxUser falls back to the default capacity.
type NewRoom struct {
	ActionField string `json:"action"`
	RoomID      string `json:"roomId,omitempty"`
	MaxUser     int    `json:"maxUser,omitempty"`
}

func (NewRoom) clientAction() string { return ActionNewRoom }

// JoinRoom requests membership in a named room.
type JoinRoom struct {
	ActionField string `json:"action"`
	RoomID      string `json:"roomId"`
}

func (JoinRoom) clientAction() string { return ActionJoinRoom }

// LeaveRoom requests leaving the current room.
type LeaveRoom struct {
	ActionField string `json:"action"`
}

func (LeaveRoom) clientAction() string { return ActionLeaveRoom }

// SelectChart is the owner's chart selection.
type SelectChart struct {
	ActionField string `json:"action"`
	ChartHash   string `json:"chartHash"`
	ChartURL    string `json:"chartUrl"`
}

func (SelectChart) clientAction() string { return ActionSelectChart }

// GameStart is the owner's request to start the game.
type GameStart struct {
	ActionField string `json:"action"`
}

func (GameStart) clientAction() string { return ActionGameStart }

// RoomChat is a chat line addressed to the sender's current room.
type RoomChat struct {
	ActionField string `json:"action"`
	Content     string `json:"content"`
}

func (RoomChat) clientAction() string { return ActionRoomChat }

// Decode turns a raw inbound frame into a concrete client message. The
// action discriminator selects the type; unknown fields and unknown actions
// are rejected here so handlers only ever see validated shapes.
func Decode(data []byte) (ClientMessage, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var msg ClientMessage
	switch envelope.Action {
	case ActionClientMetaData:
		msg = &ClientMetaData{}
	case ActionNewRoom:
		msg = &NewRoom{}
	case ActionJoinRoom:
		msg = &JoinRoom{}
	case ActionLeaveRoom:
		msg = &LeaveRoom{}
	case ActionSelectChart:
		msg = &SelectChart{}
	case ActionGameStart:
		msg = &GameStart{}
	case ActionRoomChat:
		msg = &RoomChat{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, envelope.Action)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return msg, nil
}
