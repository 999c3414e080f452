package ws

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	cspnet "netcode-csp/internal/net"
)

type HandlerConfig struct {
	// DefaultScene is used when the client does not name one.
	DefaultScene string
	WriteWait    time.Duration
	Logger       zerolog.Logger
}

// Handler upgrades HTTP requests and feeds the sessions into an inbox.
type Handler struct {
	inbox    *cspnet.Inbox
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandler(inbox *cspnet.Inbox, cfg HandlerConfig) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{inbox: inbox, cfg: cfg, upgrader: upgrader}
}

// ServeHTTP accepts ?id=<player>&scene=<name>. A missing id is replaced by a
// random one.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	id := query.Get("id")
	if id == "" {
		id = uuid.NewString()
	}
	sceneName := query.Get("scene")
	if sceneName == "" {
		sceneName = h.cfg.DefaultScene
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Logger.Warn().Err(err).Str("conn", id).Msg("upgrade failed")
		return
	}

	session := newSession(id, conn, h.cfg.WriteWait)
	h.inbox.Push(cspnet.Message{Kind: cspnet.KindConnect, Conn: session, Scene: sceneName})
	h.cfg.Logger.Info().Str("conn", id).Str("scene", sceneName).Msg("session opened")
	session.readLoop(h.inbox, h.cfg.Logger)
	h.cfg.Logger.Info().Str("conn", id).Msg("session closed")
}

// DialConfig describes a client connection.
type DialConfig struct {
	URL       string
	PlayerID  string
	Scene     string
	WriteWait time.Duration
	Logger    zerolog.Logger
}

// Dial connects to a server and forwards its frames into inbox from a
// background goroutine.
func Dial(ctx context.Context, cfg DialConfig, inbox *cspnet.Inbox) (*Session, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse server url %q", cfg.URL)
	}
	id := cfg.PlayerID
	if id == "" {
		id = uuid.NewString()
	}
	query := target.Query()
	query.Set("id", id)
	if cfg.Scene != "" {
		query.Set("scene", cfg.Scene)
	}
	target.RawQuery = query.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dial %s", target.Redacted())
	}
	session := newSession(id, conn, cfg.WriteWait)
	go session.readLoop(inbox, cfg.Logger)
	return session, nil
}
