package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phi-mgus/mgus-server/lobby"
	"github.com/phi-mgus/mgus-server/protocol"
)

func newTestStack(t *testing.T) (*httptest.Server, *lobby.SessionRegistry) {
	return newTestStackWith(t, protocol.Options{})
}

func newTestStackWith(t *testing.T, opts protocol.Options) (*httptest.Server, *lobby.SessionRegistry) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := lobby.NewRoomRegistry(log)
	sessions := lobby.NewSessionRegistry(rooms, log)
	dispatcher := protocol.NewDispatcher(opts, sessions, rooms, log)
	server := NewServer(dispatcher, log)

	ts := httptest.NewServer(http.HandlerFunc(server.ServeWS))
	t.Cleanup(ts.Close)
	return ts, sessions
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForSessions(t *testing.T, sessions *lobby.SessionRegistry, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sessions.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d sessions, have %d", want, sessions.Count())
}

func TestHandshakeOverWebSocket(t *testing.T) {
	ts, sessions := newTestStack(t)
	ws := dial(t, ts)

	// The server speaks first.
	greeting := readMessage(t, ws)
	assert.Equal(t, "getData", greeting["action"])
	assert.Equal(t, false, greeting["needPassword"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{
		"action": "clientMetaData",
		"features": {"realTimeUpload": false, "votingSelection": false, "realTimeLeaderboard": false, "realTimeChat": false},
		"clientName": "phi-client",
		"clientVersion": 3,
		"userName": "alice",
		"isDebugger": false,
		"isSpectator": false
	}`)))

	reply := readMessage(t, ws)
	assert.Equal(t, "joinSuccess", reply["action"])
	waitForSessions(t, sessions, 1)
}

func TestDisconnectRemovesSession(t *testing.T) {
	ts, sessions := newTestStack(t)
	ws := dial(t, ts)

	readMessage(t, ws) // getData
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{
		"action": "clientMetaData",
		"features": {"realTimeUpload": false, "votingSelection": false, "realTimeLeaderboard": false, "realTimeChat": false},
		"clientName": "phi-client",
		"clientVersion": 3
	}`)))
	readMessage(t, ws) // joinSuccess
	waitForSessions(t, sessions, 1)

	ws.Close()
	waitForSessions(t, sessions, 0)
}

func TestBinaryFrameDropsConnection(t *testing.T) {
	ts, _ := newTestStack(t)
	ws := dial(t, ts)

	readMessage(t, ws) // getData
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	// The server terminates without a response.
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestMalformedFrameDropsConnection(t *testing.T) {
	ts, _ := newTestStack(t)
	ws := dial(t, ts)

	readMessage(t, ws) // getData
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{{{`)))

	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

// Rejected handshakes must still deliver the typed failure before the
// connection goes down: the reply is queued ahead of the close, and the
// write pump drains the queue before emitting the close frame.
func TestHandshakeFailureDeliversReason(t *testing.T) {
	t.Run("missing password", func(t *testing.T) {
		ts, sessions := newTestStackWith(t, protocol.Options{Private: true, Password: "secret"})
		ws := dial(t, ts)

		greeting := readMessage(t, ws)
		assert.Equal(t, true, greeting["needPassword"])

		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{
			"action": "clientMetaData",
			"features": {"realTimeUpload": false, "votingSelection": false, "realTimeLeaderboard": false, "realTimeChat": false},
			"clientName": "phi-client",
			"clientVersion": 3,
			"userName": "alice"
		}`)))

		reply := readMessage(t, ws)
		assert.Equal(t, "joinFailed", reply["action"])
		assert.Equal(t, "AuthFailedByPwdNull", reply["reason"])

		// The close frame arrives after the reply, never instead of it.
		_, _, err := ws.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "expected close frame, got %v", err)
		assert.Equal(t, 0, sessions.Count())
	})

	t.Run("repeated handshake", func(t *testing.T) {
		ts, sessions := newTestStack(t)
		ws := dial(t, ts)

		readMessage(t, ws) // getData
		meta := []byte(`{
			"action": "clientMetaData",
			"features": {"realTimeUpload": false, "votingSelection": false, "realTimeLeaderboard": false, "realTimeChat": false},
			"clientName": "phi-client",
			"clientVersion": 3,
			"userName": "alice"
		}`)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, meta))
		readMessage(t, ws) // joinSuccess
		waitForSessions(t, sessions, 1)

		require.NoError(t, ws.WriteMessage(websocket.TextMessage, meta))
		reply := readMessage(t, ws)
		assert.Equal(t, "joinFailed", reply["action"])
		assert.Equal(t, "DuplicateConnection", reply["reason"])

		_, _, err := ws.ReadMessage()
		assert.Error(t, err)
		waitForSessions(t, sessions, 0)
	})
}

func TestSendQueueFull(t *testing.T) {
	c := &Conn{send: make(chan []byte, 1)}
	require.NoError(t, c.Send([]byte("one")))
	assert.ErrorIs(t, c.Send([]byte("two")), ErrSendQueueFull)
}

func TestSendAfterClose(t *testing.T) {
	c := &Conn{send: make(chan []byte, 1)}
	require.NoError(t, c.Send([]byte("one")))
	require.NoError(t, c.Close())

	// Close is idempotent and later sends fail instead of panicking.
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte("two")), ErrConnClosed)

	// The frame queued before Close is still there for the pump to drain.
	data, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, []byte("one"), data)
	_, ok = <-c.send
	assert.False(t, ok)
}
