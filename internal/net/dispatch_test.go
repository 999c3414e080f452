package net

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode-csp/internal/codec"
	"netcode-csp/internal/demo"
	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
)

func newDispatchServer(t *testing.T) (*ServerDispatcher, *scene.Scene, *[]string) {
	t.Helper()
	sc := scene.New("arena")
	srv := predict.NewServer(predict.ServerConfig{TickRate: 10}, demo.Avatars{Scene: sc}, nil, nil, predict.Deps{})
	require.NoError(t, srv.AddScene(sc))
	var log []string
	d := &ServerDispatcher{
		Server: srv,
		OnConnect: func(conn predict.Connection, sceneName string) {
			log = append(log, "connect "+conn.ID()+" "+sceneName)
			avatar := demo.SpawnAvatar(sc, conn.ID(), scene.Replicated)
			require.NoError(t, srv.AddEntity(sceneName, avatar))
		},
		OnDisconnect: func(conn predict.Connection) {
			log = append(log, "disconnect "+conn.ID())
		},
		Logger: zerolog.Nop(),
	}
	return d, sc, &log
}

func inputFrame(id input.ID, buttons uint32) []byte {
	return proto.Frame(proto.MsgInput, codec.EncodeInput(nil, input.NewCommand(buttons, 0, 0).WithID(id)))
}

func TestServerDispatcherLifecycle(t *testing.T) {
	d, sc, log := newDispatchServer(t)
	ctx := context.Background()
	conn := &stubConn{id: "p1"}

	d.Dispatch(ctx, []Message{
		{Kind: KindConnect, Conn: conn, Scene: "arena"},
		{Kind: KindFrame, Conn: conn, Frame: inputFrame(1, input.ButtonForward)},
		{Kind: KindFrame, Conn: conn, Frame: []byte{}},
		{Kind: KindFrame, Conn: conn, Frame: proto.Frame(proto.MsgState, nil)},
		{Kind: KindFrame, Conn: conn, Frame: []byte{99}},
	})
	assert.InDelta(t, 0.4, demo.Position(demo.FindAvatar(sc, "p1")).Z(), 1e-9)

	d.Server.OnTick(ctx, 1)
	assert.Equal(t, []proto.MessageID{proto.MsgState}, conn.sent)

	d.Dispatch(ctx, []Message{{Kind: KindDisconnect, Conn: conn, Reason: "closed"}})
	assert.Equal(t, []string{"connect p1 arena", "disconnect p1"}, *log)
	_, ok := d.Server.Connection("p1")
	assert.False(t, ok)
}

func TestServerDispatcherRejectsDuplicates(t *testing.T) {
	d, _, log := newDispatchServer(t)
	ctx := context.Background()
	first := &stubConn{id: "p1"}
	second := &stubConn{id: "p1"}

	d.Dispatch(ctx, []Message{
		{Kind: KindConnect, Conn: first, Scene: "arena"},
		{Kind: KindConnect, Conn: second, Scene: "arena"},
		{Kind: KindConnect, Conn: &stubConn{id: "p2"}, Scene: "lobby"},
		{Kind: KindDisconnect, Conn: second, Reason: "closed"},
	})

	assert.False(t, first.closed)
	assert.True(t, second.closed)
	assert.Equal(t, []string{"connect p1 arena"}, *log)
	got, ok := d.Server.Connection("p1")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestClientDispatcher(t *testing.T) {
	sc := scene.New("arena")
	registry := scene.NewRegistry()
	demo.RegisterComponents(registry)
	client := predict.NewClient(sc, nil, demo.LocalAvatar{Scene: sc, Owner: "p1"},
		predict.ClientConfig{TickRate: 10, RebuildOnDesync: true}, predict.ClientHooks{}, predict.Deps{Registry: registry})

	authority := scene.New("arena")
	demo.SpawnAvatar(authority, "p1", scene.Replicated)

	var reasons []string
	d := &ClientDispatcher{
		Client:       client,
		OnDisconnect: func(reason string) { reasons = append(reasons, reason) },
		Logger:       zerolog.Nop(),
	}
	d.Dispatch(context.Background(), []Message{
		{Kind: KindFrame, Frame: inputFrame(1, 0)},
		{Kind: KindFrame, Frame: proto.Frame(proto.MsgState, codec.EncodeScene(nil, 0, authority))},
		{Kind: KindFrame, Frame: proto.Frame(proto.MsgState, []byte{1})},
		{Kind: KindDisconnect, Reason: "server gone"},
	})

	assert.NotNil(t, demo.FindAvatar(sc, "p1"))
	_, ok := client.ServerID()
	assert.True(t, ok)
	assert.Equal(t, []string{"server gone"}, reasons)
}
