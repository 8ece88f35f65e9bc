package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phi-mgus/mgus-server/lobby"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) Send([]byte) error { return nil }
func (c *fakeConn) Close() error      { return nil }

func newTestServer(t *testing.T) (*Server, *lobby.SessionRegistry, *lobby.RoomRegistry) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := lobby.NewRoomRegistry(log)
	sessions := lobby.NewSessionRegistry(rooms, log)
	return NewServer(sessions, rooms), sessions, rooms
}

func get(t *testing.T, s *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestListSessionsEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	var infos []lobby.SessionInfo
	rec := get(t, s, "/api/sessions", &infos)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, infos)
}

func TestListSessionsAndRooms(t *testing.T) {
	s, sessions, rooms := newTestServer(t)

	owner, err := sessions.AddSession(&fakeConn{id: "c1"}, lobby.Profile{Name: "alice"})
	require.NoError(t, err)
	_, err = sessions.AddSession(&fakeConn{id: "c2"}, lobby.Profile{Name: "bob", IsSpectator: true})
	require.NoError(t, err)
	_, err = rooms.CreateRoom(owner, "ABCD", 0)
	require.NoError(t, err)

	var infos []lobby.SessionInfo
	get(t, s, "/api/sessions", &infos)
	require.Len(t, infos, 2)

	byName := map[string]lobby.SessionInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "ABCD", byName["alice"].RoomID)
	assert.Empty(t, byName["bob"].RoomID)
	assert.True(t, byName["bob"].Spectator)

	var roomInfos []lobby.RoomInfo
	get(t, s, "/api/rooms", &roomInfos)
	require.Len(t, roomInfos, 1)
	assert.Equal(t, "ABCD", roomInfos[0].RoomID)
	assert.Equal(t, "alice", roomInfos[0].Owner)
	assert.Equal(t, 1, roomInfos[0].MemberCount)
	assert.Equal(t, "open", roomInfos[0].Stage)
}

func TestHealth(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	_, err := sessions.AddSession(&fakeConn{id: "c1"}, lobby.Profile{Name: "alice"})
	require.NoError(t, err)

	var health map[string]any
	rec := get(t, s, "/health", &health)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["sessions"])
	assert.Equal(t, float64(0), health["rooms"])
}

func TestReadOnlySurface(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
