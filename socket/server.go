package socket

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	socketio "github.com/googollee/go-socket.io"
)

// ActorHeader carries the verified actor id set by the auth gateway
const ActorHeader = "X-Actor-ID"

var errNoActor = errors.New("missing actor id")

// NewServer wires socket.io connection lifecycle and inbound events into hub
func NewServer(hub *Hub) *socketio.Server {
	server := socketio.NewServer(nil)
	hub.Broadcaster = server

	server.OnConnect(Namespace, func(s socketio.Conn) error {
		actorID := actorFromConn(s)
		if actorID == "" {
			hubLog().Warn().Str("conn", s.ID()).Msg("rejecting connection without actor id")
			return errNoActor
		}
		s.SetContext(actorID)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Connect(ctx, s, actorID)
		return nil
	})

	for _, event := range InboundEvents {
		server.OnEvent(Namespace, event, func(s socketio.Conn, raw json.RawMessage) {
			hub.Dispatch(s.ID(), event, raw)
		})
	}

	server.OnError(Namespace, func(s socketio.Conn, err error) {
		l := hubLog().Warn().Err(err)
		if s != nil {
			l = l.Str("conn", s.ID())
		}
		l.Msg("socket error")
	})

	server.OnDisconnect(Namespace, func(s socketio.Conn, reason string) {
		hubLog().Debug().Str("conn", s.ID()).Str("reason", reason).Msg("socket closed")
		hub.Disconnect(s.ID())
	})

	return server
}

// actorFromConn reads the actor id from the gateway header, falling back to
// the actorId query parameter for clients that cannot set headers
func actorFromConn(s socketio.Conn) string {
	if id := strings.TrimSpace(s.RemoteHeader().Get(ActorHeader)); id != "" {
		return id
	}
	u := s.URL()
	return strings.TrimSpace(u.Query().Get("actorId"))
}
