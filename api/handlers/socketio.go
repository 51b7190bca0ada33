package handlers

import (
	"encoding/json"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/realtime"
)

// rootNamespace is joined by every client as soon as the transport opens,
// whichever namespace it asked for
const rootNamespace = "/"

// NewSocketServer builds the Socket.IO server and binds the department chat
// ("/dept") and support chat ("/support") namespaces to hub
func NewSocketServer(hub *realtime.Hub) *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			polling.Default,
			websocket.Default,
		},
	})

	// runs before the connection's writer starts, so it must not emit
	server.OnConnect(rootNamespace, func(s socketio.Conn) error {
		zap.S().Debugw("socket.io transport opened", "id", s.ID())
		return nil
	})
	server.OnError(rootNamespace, func(s socketio.Conn, e error) {
		zap.S().Debugw("socket.io transport error", "error", e)
	})

	for _, ns := range []realtime.Namespace{realtime.NamespaceMain, realtime.NamespaceSupport} {
		bindNamespace(server, hub, ns)
	}
	return server
}

func bindNamespace(server *socketio.Server, hub *realtime.Hub, ns realtime.Namespace) {
	name := string(ns)

	server.OnConnect(name, func(s socketio.Conn) error {
		u := s.URL()
		hub.Accept(ns, s)
		err := hub.Connect(s, handshakeFor(ns, s))
		if err != nil {
			zap.S().Infow("socket.io client rejected",
				"namespace", name,
				"id", s.ID(),
				"path", u.Path,
				"error", err)
			// the hub already queued the error event and the close; returning
			// an error here would drop the whole transport without telling the client
			return nil
		}
		zap.S().Debugw("socket.io client connected",
			"namespace", name,
			"id", s.ID())
		return nil
	})

	server.OnEvent(name, realtime.EventChatMessage, func(s socketio.Conn, msg interface{}) {
		payload, err := json.Marshal(msg)
		if err != nil {
			zap.S().Warnw("unreadable chat message",
				"namespace", name,
				"id", s.ID(),
				"error", err)
			return
		}
		if err := hub.Message(ns, s, payload); err != nil {
			zap.S().Debugw("chat message refused",
				"namespace", name,
				"id", s.ID(),
				"error", err)
		}
	})

	server.OnError(name, func(s socketio.Conn, e error) {
		if s == nil {
			zap.S().Warnw("socket.io error", "namespace", name, "error", e)
			return
		}
		zap.S().Warnw("socket.io error",
			"namespace", name,
			"id", s.ID(),
			"error", e)
	})

	server.OnDisconnect(name, func(s socketio.Conn, reason string) {
		hub.Disconnect(ns, s)
		zap.S().Debugw("socket.io client disconnected",
			"namespace", name,
			"id", s.ID(),
			"reason", reason)
	})
}

// handshakeFor reads the session cookie and the dept query parameter the
// browser sent when opening the connection
func handshakeFor(ns realtime.Namespace, s socketio.Conn) realtime.Handshake {
	u := s.URL()
	return realtime.Handshake{
		Namespace:  ns,
		SessionRef: api.SessionRefFromHeader(s.RemoteHeader()),
		Department: u.Query().Get("dept"),
	}
}
