package websocket

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/phi-mgus/mgus-server/lobby"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Desktop rhythm-game clients connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler receives connection lifecycle events. The protocol dispatcher
// implements it.
type Handler interface {
	HandleOpen(conn lobby.Conn)
	HandleMessage(conn lobby.Conn, data []byte)
	HandleClose(conn lobby.Conn)
}

// Server upgrades HTTP requests to lobby connections.
type Server struct {
	handler Handler
	log     *slog.Logger
}

// NewServer creates a websocket server that feeds the given handler.
func NewServer(handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{handler: handler, log: log}
}

// ServeWS handles a websocket upgrade request.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(uuid.New().String(), ws, s.handler, s.log)
	s.log.Info("client connected", "connection", conn.ID(), "remote", r.RemoteAddr)
	conn.start()
}
