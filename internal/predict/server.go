package predict

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"netcode-csp/internal/codec"
	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/snapshot"
	"netcode-csp/internal/tick"
	"netcode-csp/logging"
	predictlog "netcode-csp/logging/prediction"
)

const (
	metricServerInputs         = "csp_server_inputs_applied_total"
	metricServerIgnored        = "csp_server_inputs_ignored_total"
	metricServerRateLimited    = "csp_server_inputs_rate_limited_total"
	metricServerProtocolErrors = "csp_server_protocol_errors_total"
	metricServerSnapshotsSent  = "csp_server_snapshots_sent_total"
	metricServerSendFailures   = "csp_server_send_failures_total"
	metricServerStoreFailures  = "csp_server_store_failures_total"
	metricServerBodyBytes      = "csp_server_snapshot_body_bytes"
	metricServerConnections    = "csp_server_connections"
)

// ServerConfig tunes a Server.
type ServerConfig struct {
	// TickRate is the simulation rate shared with clients.
	TickRate int
	// InputRate caps accepted input messages per second per connection.
	// Zero disables the cap.
	InputRate float64
	// InputBurst is the token bucket size for InputRate.
	InputBurst int
}

type sceneState struct {
	scene    *scene.Scene
	entities map[scene.ID]*scene.Entity
	body     []byte
	message  []byte

	// population is the scene size at the last tick. Stats reads it instead
	// of the scene, which hosts mutate outside the server lock.
	population int
}

// registered returns the predicted entities still attached to the scene, in
// id order. Entities removed from the scene are unregistered on the way.
func (st *sceneState) registered() []*scene.Entity {
	out := make([]*scene.Entity, 0, len(st.entities))
	for id, e := range st.entities {
		if e.Scene() != st.scene {
			delete(st.entities, id)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

type connState struct {
	conn    Connection
	scene   string
	limiter *rate.Limiter
}

// Server applies remote input as it arrives and broadcasts one snapshot per
// scene per tick. All methods are safe for concurrent use; appliers and the
// stepper are called with the server lock held.
type Server struct {
	mu       sync.Mutex
	cfg      ServerConfig
	deps     Deps
	applier  ConnectionApplier
	stepper  Stepper
	store    snapshot.Store
	timestep time.Duration

	scenes  map[string]*sceneState
	conns   map[string]*connState
	tracker *input.Tracker
	tick    uint64
}

// NewServer builds a server. stepper and store may be nil.
func NewServer(cfg ServerConfig, applier ConnectionApplier, stepper Stepper, store snapshot.Store, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		deps:     deps.withDefaults(),
		applier:  applier,
		stepper:  stepper,
		store:    store,
		timestep: tick.Timestep(cfg.TickRate),
		scenes:   make(map[string]*sceneState),
		conns:    make(map[string]*connState),
		tracker:  input.NewTracker(),
	}
}

// Timestep is the fixed step passed to the applier and stepper.
func (s *Server) Timestep() time.Duration {
	return s.timestep
}

// AddScene registers a scene for broadcasting.
func (s *Server) AddScene(sc *scene.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scenes[sc.Name()]; exists {
		return eris.Wrapf(ErrDuplicateScene, "scene %q", sc.Name())
	}
	s.scenes[sc.Name()] = &sceneState{scene: sc, entities: make(map[scene.ID]*scene.Entity)}
	return nil
}

// AddEntity puts e under prediction: it is included in every snapshot of its
// scene and default replication of its network attributes is intercepted.
func (s *Server) AddEntity(sceneName string, e *scene.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scenes[sceneName]
	if !ok {
		return eris.Wrapf(ErrUnknownScene, "scene %q", sceneName)
	}
	if e.Scene() != st.scene {
		return eris.Wrapf(ErrForeignEntity, "entity %s, scene %q", e.ID(), sceneName)
	}
	s.register(st, e)
	return nil
}

func (s *Server) register(st *sceneState, e *scene.Entity) {
	e.SetPredicted(true)
	st.entities[e.ID()] = e
}

// RemoveEntity stops predicting the entity and lifts interception. The entity
// stays in its scene.
func (s *Server) RemoveEntity(sceneName string, id scene.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scenes[sceneName]
	if !ok {
		return false
	}
	e, ok := st.entities[id]
	if !ok {
		return false
	}
	e.SetPredicted(false)
	delete(st.entities, id)
	return true
}

// Connect attaches a connection to a scene. It receives that scene's
// snapshots from the next tick on.
func (s *Server) Connect(conn Connection, sceneName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenes[sceneName]; !ok {
		return eris.Wrapf(ErrUnknownScene, "scene %q", sceneName)
	}
	if _, exists := s.conns[conn.ID()]; exists {
		return eris.Wrapf(ErrDuplicateConnection, "connection %q", conn.ID())
	}
	cs := &connState{conn: conn, scene: sceneName}
	if s.cfg.InputRate > 0 {
		burst := s.cfg.InputBurst
		if burst < 1 {
			burst = max(1, int(s.cfg.InputRate))
		}
		cs.limiter = rate.NewLimiter(rate.Limit(s.cfg.InputRate), burst)
	}
	s.conns[conn.ID()] = cs
	s.deps.Metrics.Store(metricServerConnections, uint64(len(s.conns)))
	return nil
}

// Disconnect forgets a connection and its last applied input id. Only the
// registered instance is removed, so a rejected duplicate cannot evict the
// connection that holds the id.
func (s *Server) Disconnect(ctx context.Context, conn Connection, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.conns[conn.ID()]
	if !ok || cs.conn != conn {
		return false
	}
	delete(s.conns, conn.ID())
	s.tracker.Forget(conn.ID())
	s.deps.Metrics.Store(metricServerConnections, uint64(len(s.conns)))
	predictlog.ConnectionDropped(ctx, s.deps.Publisher, s.tick, connSubject(conn.ID()), predictlog.ConnectionPayload{
		Scene:  cs.scene,
		Reason: reason,
	}, nil)
	return true
}

// Connection returns the registered connection with the given id.
func (s *Server) Connection(id string) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.conns[id]
	if !ok {
		return nil, false
	}
	return cs.conn, true
}

// OnInputMessage applies one input message from a connection. Ids at or
// below the connection's last applied id are ignored, which makes resends
// harmless. Malformed messages are reported and dropped.
func (s *Server) OnInputMessage(ctx context.Context, conn Connection, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	connID := conn.ID()
	cs, ok := s.conns[connID]
	if !ok || cs.conn != conn {
		return eris.Wrapf(ErrUnknownConnection, "connection %q", connID)
	}
	cmd, err := codec.DecodeInput(payload)
	if err != nil {
		s.deps.Metrics.Add(metricServerProtocolErrors, 1)
		predictlog.ProtocolError(ctx, s.deps.Publisher, s.tick, connSubject(connID), predictlog.ProtocolErrorPayload{
			Message: proto.MsgInput.String(),
			Size:    len(payload),
			Reason:  err.Error(),
		}, nil)
		return err
	}

	last, seen := s.tracker.Last(connID)
	if seen && cmd.ID <= last {
		s.deps.Metrics.Add(metricServerIgnored, 1)
		predictlog.InputIgnored(ctx, s.deps.Publisher, s.tick, connSubject(connID), predictlog.InputPayload{
			Last:     uint32(last),
			Received: uint32(cmd.ID),
		}, nil)
		return nil
	}
	if cs.limiter != nil && !cs.limiter.Allow() {
		s.deps.Metrics.Add(metricServerRateLimited, 1)
		predictlog.InputRateLimited(ctx, s.deps.Publisher, s.tick, connSubject(connID), predictlog.InputPayload{
			Last:     uint32(last),
			Received: uint32(cmd.ID),
		}, nil)
		return nil
	}

	if s.applier != nil {
		s.applier.ApplyConnection(cmd, s.timestep, cs.conn)
	}
	s.tracker.Observe(connID, cmd.ID)
	s.deps.Metrics.Add(metricServerInputs, 1)
	return nil
}

// TickResult summarizes one broadcast.
type TickResult struct {
	Tick   uint64
	Sent   int
	Failed []Connection
}

// OnTick steps the simulation, encodes one body per scene and sends every
// connection its scene's state prefixed with its own last applied id.
// Connections whose send failed are listed in the result; the caller decides
// whether to drop them.
func (s *Server) OnTick(ctx context.Context, tick uint64) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = tick
	if s.stepper != nil {
		s.stepper.Step(s.timestep)
	}

	for _, name := range s.sceneNames() {
		st := s.scenes[name]
		st.population = st.scene.Len()
		st.body = codec.AppendEntities(st.body[:0], st.registered())
		s.deps.Metrics.Store(metricServerBodyBytes+"."+name, uint64(len(st.body)))
		if s.store == nil {
			continue
		}
		if err := s.store.Put(ctx, name, tick, st.body); err != nil {
			s.deps.Metrics.Add(metricServerStoreFailures, 1)
			predictlog.StoreFailed(ctx, s.deps.Publisher, tick, logging.SubjectRef{ID: name, Kind: logging.SubjectScene}, err)
		}
	}

	result := TickResult{Tick: tick}
	for _, id := range s.connIDs() {
		cs := s.conns[id]
		st := s.scenes[cs.scene]
		last, _ := s.tracker.Last(id)
		st.message = codec.AppendState(st.message[:0], last, st.body)
		if err := cs.conn.Send(proto.MsgState, st.message); err != nil {
			s.deps.Metrics.Add(metricServerSendFailures, 1)
			result.Failed = append(result.Failed, cs.conn)
			continue
		}
		result.Sent++
	}
	s.deps.Metrics.Add(metricServerSnapshotsSent, uint64(result.Sent))
	return result
}

// Restore loads the latest stored body of every scene and applies it with
// the create policy, registering every entity it carries for prediction.
// Scenes without a stored snapshot are left alone.
func (s *Server) Restore(ctx context.Context, store snapshot.Store) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, name := range s.sceneNames() {
		rec, err := store.Latest(ctx, name)
		if eris.Is(err, snapshot.ErrNotFound) {
			continue
		}
		if err != nil {
			return restored, err
		}
		state, err := codec.DecodeState(codec.AppendState(nil, 0, rec.Body))
		if err != nil {
			return restored, eris.Wrapf(err, "decode stored snapshot of scene %q", name)
		}
		st := s.scenes[name]
		applied, err := codec.Apply(st.scene, state, codec.CreateMissing, s.deps.Registry)
		if err != nil {
			return restored, eris.Wrapf(err, "apply stored snapshot of scene %q", name)
		}
		for id := range applied.Seen.All() {
			if e := st.scene.Entity(id); e != nil {
				s.register(st, e)
			}
		}
		if rec.Tick > s.tick {
			s.tick = rec.Tick
		}
		restored++
	}
	return restored, nil
}

// SceneStats describes one scene.
type SceneStats struct {
	Name      string `json:"name"`
	Entities  int    `json:"entities"`
	Predicted int    `json:"predicted"`
	BodyBytes int    `json:"bodyBytes"`
}

// ConnectionStats describes one connection.
type ConnectionStats struct {
	ID          string   `json:"id"`
	Scene       string   `json:"scene"`
	LastInputID input.ID `json:"lastInputId"`
	HasInput    bool     `json:"hasInput"`
}

// ServerStats is a point in time view for diagnostics.
type ServerStats struct {
	Tick        uint64            `json:"tick"`
	Scenes      []SceneStats      `json:"scenes"`
	Connections []ConnectionStats `json:"connections"`
}

func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := ServerStats{Tick: s.tick}
	for _, name := range s.sceneNames() {
		st := s.scenes[name]
		stats.Scenes = append(stats.Scenes, SceneStats{
			Name:      name,
			Entities:  st.population,
			Predicted: len(st.entities),
			BodyBytes: len(st.body),
		})
	}
	for _, id := range s.connIDs() {
		last, ok := s.tracker.Last(id)
		stats.Connections = append(stats.Connections, ConnectionStats{
			ID:          id,
			Scene:       s.conns[id].scene,
			LastInputID: last,
			HasInput:    ok,
		})
	}
	return stats
}

func (s *Server) sceneNames() []string {
	names := make([]string, 0, len(s.scenes))
	for name := range s.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) connIDs() []string {
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func connSubject(id string) logging.SubjectRef {
	return logging.SubjectRef{ID: id, Kind: logging.SubjectConnection}
}
