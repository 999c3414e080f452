package predict_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"netcode-csp/internal/codec"
	"netcode-csp/internal/demo"
	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/snapshot"
	"netcode-csp/internal/telemetry"
	"netcode-csp/logging"
)

const testRate = 10

type frame struct {
	id      proto.MessageID
	payload []byte
}

// recordingConn keeps a copy of every frame sent through it.
type recordingConn struct {
	id     string
	frames []frame
	err    error
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(id proto.MessageID, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, frame{id: id, payload: bytes.Clone(payload)})
	return nil
}

func (c *recordingConn) take() []frame {
	out := c.frames
	c.frames = nil
	return out
}

type eventLog struct {
	events []logging.Event
}

func (l *eventLog) Publish(_ context.Context, event logging.Event) {
	l.events = append(l.events, event)
}

func (l *eventLog) ofType(typ logging.EventType) []logging.Event {
	var out []logging.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func newRegistry() *scene.Registry {
	r := scene.NewRegistry()
	demo.RegisterComponents(r)
	return r
}

// world is an authoritative server with one scene.
type world struct {
	scene    *scene.Scene
	server   *predict.Server
	events   *eventLog
	counters *telemetry.Counters
}

func newWorld(t *testing.T, cfg predict.ServerConfig, store snapshot.Store) *world {
	t.Helper()
	if cfg.TickRate == 0 {
		cfg.TickRate = testRate
	}
	sc := scene.New("arena")
	w := &world{scene: sc, events: &eventLog{}, counters: telemetry.NewCounters()}
	w.server = predict.NewServer(cfg, demo.Avatars{Scene: sc}, nil, store, predict.Deps{
		Publisher: w.events,
		Metrics:   w.counters,
		Registry:  newRegistry(),
	})
	require.NoError(t, w.server.AddScene(sc))
	return w
}

// join spawns a predicted avatar for id and connects it.
func (w *world) join(t *testing.T, id string) (*recordingConn, *scene.Entity) {
	t.Helper()
	conn := &recordingConn{id: id}
	avatar := demo.SpawnAvatar(w.scene, id, scene.Replicated)
	require.NoError(t, w.server.AddEntity("arena", avatar))
	require.NoError(t, w.server.Connect(conn, "arena"))
	return conn, avatar
}

// feed hands every input frame the player sent to the server.
func (w *world) feed(t *testing.T, conn predict.Connection, frames []frame) {
	t.Helper()
	for _, f := range frames {
		require.Equal(t, proto.MsgInput, f.id)
		require.NoError(t, w.server.OnInputMessage(context.Background(), conn, f.payload))
	}
}

// player is a predicting client whose avatar is owned by its id.
type player struct {
	id         string
	scene      *scene.Scene
	client     *predict.Client
	conn       *recordingConn
	events     *eventLog
	counters   *telemetry.Counters
	reconciled []predict.ReconcileResult
	desyncs    []predict.DesyncReport
}

func newPlayer(t *testing.T, id string, rebuild bool) *player {
	t.Helper()
	p := &player{
		id:       id,
		scene:    scene.New("arena"),
		conn:     &recordingConn{id: id},
		events:   &eventLog{},
		counters: telemetry.NewCounters(),
	}
	p.client = predict.NewClient(p.scene, p.conn, demo.LocalAvatar{Scene: p.scene, Owner: id},
		predict.ClientConfig{TickRate: testRate, RebuildOnDesync: rebuild},
		predict.ClientHooks{
			OnReconciled: func(r predict.ReconcileResult) { p.reconciled = append(p.reconciled, r) },
			OnDesync:     func(r predict.DesyncReport) { p.desyncs = append(p.desyncs, r) },
		},
		predict.Deps{Publisher: p.events, Metrics: p.counters, Registry: newRegistry()},
	)
	return p
}

func (p *player) avatar() *scene.Entity {
	return demo.FindAvatar(p.scene, p.id)
}

// receive applies every state frame sent through from.
func (p *player) receive(t *testing.T, from *recordingConn) {
	t.Helper()
	for _, f := range from.take() {
		require.Equal(t, proto.MsgState, f.id)
		require.NoError(t, p.client.OnStateMessage(context.Background(), f.payload))
	}
}

func (p *player) press(t *testing.T, buttons uint32, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := p.client.AddInput(input.NewCommand(buttons, 0, 0))
		require.NoError(t, err)
	}
}

func pendingIDs(c *predict.Client) []input.ID {
	var out []input.ID
	for _, cmd := range c.Pending() {
		out = append(out, cmd.ID)
	}
	return out
}

func inputPayload(id input.ID, buttons uint32) []byte {
	return codec.EncodeInput(nil, input.NewCommand(buttons, 0, 0).WithID(id))
}
