package predict_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode-csp/internal/codec"
	"netcode-csp/internal/demo"
	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/snapshot"
	predictlog "netcode-csp/logging/prediction"
)

type failingStore struct{}

func (failingStore) Put(context.Context, string, uint64, []byte) error {
	return eris.New("store offline")
}

func (failingStore) Latest(context.Context, string) (snapshot.Record, error) {
	return snapshot.Record{}, snapshot.ErrNotFound
}

func TestServerAppliesInputAndAcknowledges(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, avatar := w.join(t, "p1")
	ctx := context.Background()

	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(1, input.ButtonForward)))
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(2, input.ButtonForward)))
	assert.InDelta(t, 0.8, demo.Position(avatar).Z(), 1e-9)

	res := w.server.OnTick(ctx, 1)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Failed)

	frames := conn.take()
	require.Len(t, frames, 1)
	assert.Equal(t, proto.MsgState, frames[0].id)
	state, err := codec.DecodeState(frames[0].payload)
	require.NoError(t, err)
	assert.Equal(t, input.ID(2), state.LastInputID)
	require.Len(t, state.Entities, 1)
	assert.Equal(t, avatar.ID(), state.Entities[0].ID)
}

func TestServerIgnoresResentInput(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, avatar := w.join(t, "p1")
	ctx := context.Background()

	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(3, input.ButtonForward)))
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(3, input.ButtonForward)))
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(2, input.ButtonForward)))

	assert.InDelta(t, 0.4, demo.Position(avatar).Z(), 1e-9)
	assert.Len(t, w.events.ofType(predictlog.EventInputIgnored), 2)
	assert.EqualValues(t, 1, w.counters.Get("csp_server_inputs_applied_total"))
}

func TestServerRateLimitsInput(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{InputRate: 0.001, InputBurst: 1}, nil)
	conn, avatar := w.join(t, "p1")
	ctx := context.Background()

	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(1, input.ButtonForward)))
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(2, input.ButtonForward)))

	assert.InDelta(t, 0.4, demo.Position(avatar).Z(), 1e-9)
	assert.Len(t, w.events.ofType(predictlog.EventInputRateLimited), 1)
	stats := w.server.Stats()
	require.Len(t, stats.Connections, 1)
	assert.Equal(t, input.ID(1), stats.Connections[0].LastInputID, "a limited input is not acknowledged")
}

func TestServerRejectsMalformedInput(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, _ := w.join(t, "p1")

	err := w.server.OnInputMessage(context.Background(), conn, []byte{1, 2, 3})
	assert.True(t, eris.Is(err, codec.ErrMalformed))
	assert.Len(t, w.events.ofType(predictlog.EventProtocolError), 1)
	assert.False(t, w.server.Stats().Connections[0].HasInput)
}

func TestServerConnectionIdentity(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, _ := w.join(t, "p1")
	ctx := context.Background()

	impostor := &recordingConn{id: "p1"}
	err := w.server.Connect(impostor, "arena")
	assert.True(t, eris.Is(err, predict.ErrDuplicateConnection))
	err = w.server.OnInputMessage(ctx, impostor, inputPayload(1, 0))
	assert.True(t, eris.Is(err, predict.ErrUnknownConnection))
	assert.False(t, w.server.Disconnect(ctx, impostor, "duplicate"))

	got, ok := w.server.Connection("p1")
	require.True(t, ok)
	assert.Same(t, conn, got)

	assert.True(t, w.server.Disconnect(ctx, conn, "closed"))
	dropped := w.events.ofType(predictlog.EventConnectionDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, predictlog.ConnectionPayload{Scene: "arena", Reason: "closed"}, dropped[0].Payload)

	err = w.server.OnInputMessage(ctx, conn, inputPayload(1, 0))
	assert.True(t, eris.Is(err, predict.ErrUnknownConnection))
}

func TestServerRegistrationErrors(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)

	assert.True(t, eris.Is(w.server.AddScene(w.scene), predict.ErrDuplicateScene))
	assert.True(t, eris.Is(w.server.Connect(&recordingConn{id: "x"}, "lobby"), predict.ErrUnknownScene))

	other := scene.New("other")
	foreign := other.CreateEntity(scene.Replicated)
	assert.True(t, eris.Is(w.server.AddEntity("arena", foreign), predict.ErrForeignEntity))
	assert.True(t, eris.Is(w.server.AddEntity("lobby", foreign), predict.ErrUnknownScene))
}

func TestServerInterceptsPredictedEntities(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	_, avatar := w.join(t, "p1")
	motion := avatar.ComponentOfType(demo.TypeMotion)

	assert.True(t, avatar.Predicted())
	assert.False(t, avatar.Attrs.Replicate(demo.AttrPosition, scene.Vec3(mgl64.Vec3{1, 0, 0})))
	assert.False(t, motion.Attrs.Replicate(demo.AttrSpeed, scene.Float(9)))
	assert.True(t, avatar.Attrs.Set(demo.AttrPosition, scene.Vec3(mgl64.Vec3{1, 0, 0})))

	require.True(t, w.server.RemoveEntity("arena", avatar.ID()))
	assert.False(t, avatar.Predicted())
	assert.True(t, avatar.Attrs.Replicate(demo.AttrPosition, scene.Vec3(mgl64.Vec3{2, 0, 0})))
	assert.NotNil(t, w.scene.Entity(avatar.ID()), "the entity stays in its scene")
}

func TestServerSnapshotsOnlyPredictedEntities(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, avatar := w.join(t, "p1")
	w.scene.CreateEntity(scene.Replicated)

	w.server.OnTick(context.Background(), 1)
	payload := conn.take()[0].payload
	state, err := codec.DecodeState(payload)
	require.NoError(t, err)
	require.Len(t, state.Entities, 1)
	assert.Equal(t, avatar.ID(), state.Entities[0].ID)

	stats := w.server.Stats()
	require.Len(t, stats.Scenes, 1)
	assert.Equal(t, "arena", stats.Scenes[0].Name)
	assert.Equal(t, 2, stats.Scenes[0].Entities)
	assert.Equal(t, 1, stats.Scenes[0].Predicted)
	assert.Equal(t, len(payload)-4, stats.Scenes[0].BodyBytes)
	assert.Equal(t, uint64(1), stats.Tick)
}

func TestServerIdleTicksProduceIdenticalSnapshots(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	conn, _ := w.join(t, "p1")
	ctx := context.Background()
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(1, input.ButtonLeft)))

	w.server.OnTick(ctx, 1)
	w.server.OnTick(ctx, 2)
	frames := conn.take()
	require.Len(t, frames, 2)
	assert.Equal(t, frames[0].payload, frames[1].payload)
}

func TestServerReportsFailedSends(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	good, _ := w.join(t, "a")
	bad, _ := w.join(t, "b")
	bad.err = eris.New("broken pipe")

	res := w.server.OnTick(context.Background(), 1)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Failed, 1)
	assert.Same(t, bad, res.Failed[0])
	assert.Len(t, good.take(), 1)
	assert.EqualValues(t, 1, w.counters.Get("csp_server_send_failures_total"))
}

func TestServerStepsBeforeBroadcast(t *testing.T) {
	sc := scene.New("arena")
	avatar := demo.SpawnAvatar(sc, "p1", scene.Replicated)
	rise := predict.StepperFunc(func(dt time.Duration) {
		pos := demo.Position(avatar)
		avatar.Attrs.Set(demo.AttrPosition, scene.Vec3(pos.Add(mgl64.Vec3{0, dt.Seconds(), 0})))
	})
	srv := predict.NewServer(predict.ServerConfig{TickRate: testRate}, nil, rise, nil, predict.Deps{})
	require.NoError(t, srv.AddScene(sc))
	require.NoError(t, srv.AddEntity("arena", avatar))
	conn := &recordingConn{id: "p1"}
	require.NoError(t, srv.Connect(conn, "arena"))

	srv.OnTick(context.Background(), 1)
	state, err := codec.DecodeState(conn.take()[0].payload)
	require.NoError(t, err)
	position := state.Entities[0].Attrs[0]
	assert.Equal(t, demo.AttrPosition, position.Name)
	assert.InDelta(t, 0.1, position.Value.AsVec3().Y(), 1e-9)
}

func TestServerStoreFailureIsReported(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, failingStore{})
	w.join(t, "p1")

	res := w.server.OnTick(context.Background(), 1)
	assert.Equal(t, 1, res.Sent, "broadcast continues without persistence")
	require.Len(t, w.events.ofType(predictlog.EventStoreFailed), 1)
}

func TestServerRestoreFromStore(t *testing.T) {
	store := snapshot.NewMemory()
	ctx := context.Background()

	w := newWorld(t, predict.ServerConfig{}, store)
	conn, avatar := w.join(t, "p1")
	require.NoError(t, w.server.OnInputMessage(ctx, conn, inputPayload(1, input.ButtonForward)))
	w.server.OnTick(ctx, 7)

	restarted := newWorld(t, predict.ServerConfig{}, nil)
	n, err := restarted.server.Restore(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored := restarted.scene.Entity(avatar.ID())
	require.NotNil(t, restored)
	assert.True(t, restored.Predicted())
	assert.Equal(t, demo.Position(avatar), demo.Position(restored))
	assert.NotNil(t, restored.ComponentOfType(demo.TypeMotion))
	assert.Equal(t, uint64(7), restarted.server.Stats().Tick)

	fresh := restarted.scene.CreateEntity(scene.Replicated)
	assert.Greater(t, fresh.ID(), avatar.ID(), "minting continues past restored ids")
}

func TestServerRestoreWithoutSnapshot(t *testing.T) {
	w := newWorld(t, predict.ServerConfig{}, nil)
	n, err := w.server.Restore(context.Background(), snapshot.NewMemory())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, w.scene.Len())
}
