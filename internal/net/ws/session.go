package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	cspnet "netcode-csp/internal/net"
	"netcode-csp/internal/net/proto"
)

// ReasonOverflow is the disconnect reason of a session whose frames no
// longer fit the inbox.
const ReasonOverflow = "inbox overflow"

const (
	defaultWriteWait = 5 * time.Second
	maxMessageSize   = 1 << 20
)

// Session is one websocket peer. It implements predict.Connection: every
// Send writes a single binary frame under a write deadline.
type Session struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, conn *websocket.Conn, writeWait time.Duration) *Session {
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	conn.SetReadLimit(maxMessageSize)
	return &Session{id: id, conn: conn, writeWait: writeWait, done: make(chan struct{})}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Send(msg proto.MessageID, payload []byte) error {
	frame := proto.Frame(msg, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Close sends a close frame and tears the socket down. It is idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(s.writeWait))
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the read side of the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// readLoop forwards every binary frame to inbox until the socket fails or the
// inbox overflows, then queues a disconnect notice.
func (s *Session) readLoop(inbox *cspnet.Inbox, logger zerolog.Logger) {
	defer close(s.done)
	reason := "closed"
	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			break
		}
		if kind != websocket.BinaryMessage {
			logger.Debug().Str("conn", s.id).Msg("ignoring non-binary message")
			continue
		}
		if !inbox.Push(cspnet.Message{Kind: cspnet.KindFrame, Conn: s, Frame: payload}) {
			// Frames are never dropped: the session ends instead.
			logger.Warn().Str("conn", s.id).Msg("inbox full, closing session")
			reason = ReasonOverflow
			break
		}
	}
	inbox.Push(cspnet.Message{Kind: cspnet.KindDisconnect, Conn: s, Reason: reason})
	_ = s.Close()
}
