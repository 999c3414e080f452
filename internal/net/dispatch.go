package net

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/predict"
)

// Closer is implemented by connections the dispatcher may need to reject.
type Closer interface {
	Close() error
}

// ServerDispatcher feeds drained inbox messages into a prediction server.
type ServerDispatcher struct {
	Server *predict.Server
	// OnConnect runs after a connection was accepted, e.g. to spawn its avatar.
	OnConnect func(conn predict.Connection, scene string)
	// OnDisconnect runs after a connection was removed.
	OnDisconnect func(conn predict.Connection)
	Logger       zerolog.Logger
}

// Dispatch handles msgs in order.
func (d *ServerDispatcher) Dispatch(ctx context.Context, msgs []Message) {
	for _, msg := range msgs {
		switch msg.Kind {
		case KindConnect:
			if err := d.Server.Connect(msg.Conn, msg.Scene); err != nil {
				d.Logger.Warn().Err(err).Str("conn", msg.Conn.ID()).Str("scene", msg.Scene).Msg("rejecting connection")
				closeConn(msg.Conn)
				continue
			}
			if d.OnConnect != nil {
				d.OnConnect(msg.Conn, msg.Scene)
			}
		case KindDisconnect:
			if d.Server.Disconnect(ctx, msg.Conn, msg.Reason) && d.OnDisconnect != nil {
				d.OnDisconnect(msg.Conn)
			}
		case KindFrame:
			id, payload, err := proto.Parse(msg.Frame)
			if err != nil {
				d.Logger.Debug().Err(err).Str("conn", msg.Conn.ID()).Msg("discarding frame")
				continue
			}
			if id != proto.MsgInput {
				d.Logger.Debug().Str("conn", msg.Conn.ID()).Stringer("message", id).Msg("unexpected message from client")
				continue
			}
			err = d.Server.OnInputMessage(ctx, msg.Conn, payload)
			if eris.Is(err, predict.ErrUnknownConnection) {
				d.Logger.Debug().Err(err).Msg("input from unregistered connection")
			}
		}
	}
}

// ClientDispatcher feeds drained inbox messages into a prediction client.
type ClientDispatcher struct {
	Client *predict.Client
	// OnDisconnect runs when the server connection ends.
	OnDisconnect func(reason string)
	Logger       zerolog.Logger
}

// Dispatch handles msgs in order.
func (d *ClientDispatcher) Dispatch(ctx context.Context, msgs []Message) {
	for _, msg := range msgs {
		switch msg.Kind {
		case KindDisconnect:
			if d.OnDisconnect != nil {
				d.OnDisconnect(msg.Reason)
			}
		case KindFrame:
			id, payload, err := proto.Parse(msg.Frame)
			if err != nil {
				d.Logger.Debug().Err(err).Msg("discarding frame")
				continue
			}
			if id != proto.MsgState {
				d.Logger.Debug().Stringer("message", id).Msg("unexpected message from server")
				continue
			}
			// Failures are already published as protocol error events.
			_ = d.Client.OnStateMessage(ctx, payload)
		}
	}
}

func closeConn(conn predict.Connection) {
	if c, ok := conn.(Closer); ok {
		_ = c.Close()
	}
}
