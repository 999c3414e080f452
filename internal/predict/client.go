package predict

import (
	"context"
	"time"

	"github.com/ErikKalkoken/go-set"
	"github.com/rotisserie/eris"

	"netcode-csp/internal/codec"
	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/tick"
	"netcode-csp/logging"
	predictlog "netcode-csp/logging/prediction"
)

const (
	metricClientSnapshots      = "csp_client_snapshots_total"
	metricClientStale          = "csp_client_snapshots_stale_total"
	metricClientProtocolErrors = "csp_client_protocol_errors_total"
	metricClientReplayed       = "csp_client_replayed_total"
	metricClientDesyncs        = "csp_client_desyncs_total"
	metricClientServerID       = "csp_client_server_id"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	// TickRate is the simulation rate shared with the server.
	TickRate int
	// BufferCapacity is the initial size of the unacknowledged input history.
	BufferCapacity int
	// RebuildOnDesync re-applies a snapshot that names unknown objects with
	// the create policy, rebuilding the local scene from the server's view.
	RebuildOnDesync bool
}

// ReconcileResult summarizes one accepted snapshot.
type ReconcileResult struct {
	ServerID input.ID
	Dropped  int
	Replayed int
	Removed  int
	// Detached counts server-assigned components dropped from entities the
	// snapshot still carries.
	Detached int
	Created  int
}

// DesyncReport lists snapshot objects that had no local counterpart.
type DesyncReport struct {
	ServerID input.ID
	Missing  []codec.Missing
	Rebuilt  bool
}

// ClientHooks observe reconciliation. Both run on the caller's goroutine.
type ClientHooks struct {
	OnReconciled func(ReconcileResult)
	OnDesync     func(DesyncReport)
}

// Client records local input, predicts its effect immediately and reconciles
// against authoritative snapshots. It is driven from a single goroutine.
type Client struct {
	scene    *scene.Scene
	conn     Connection
	applier  LocalApplier
	hooks    ClientHooks
	deps     Deps
	cfg      ClientConfig
	timestep time.Duration

	nextID      input.ID
	serverID    input.ID
	hasServerID bool
	buffer      *input.Buffer
	tracked     set.Set[scene.ID]
	tick        uint64
	scratch     []byte
}

// NewClient builds a client predicting into sc and talking to the server over conn.
func NewClient(sc *scene.Scene, conn Connection, applier LocalApplier, cfg ClientConfig, hooks ClientHooks, deps Deps) *Client {
	deps = deps.withDefaults()
	return &Client{
		scene:    sc,
		conn:     conn,
		applier:  applier,
		hooks:    hooks,
		deps:     deps,
		cfg:      cfg,
		timestep: tick.Timestep(cfg.TickRate),
		nextID:   1,
		buffer:   input.NewBuffer(cfg.BufferCapacity, deps.Metrics),
	}
}

// AddInput tags cmd with the next id, records it, applies it locally and
// sends it to the server. The tagged command is returned even when sending
// fails; it stays in the history and is replayed like any other.
func (c *Client) AddInput(cmd input.Command) (input.Command, error) {
	tagged := cmd.WithID(c.nextID)
	if err := c.buffer.Push(tagged); err != nil {
		return input.Command{}, err
	}
	c.nextID++

	if c.applier != nil {
		c.applier.ApplyLocal(tagged, c.timestep)
	}

	c.scratch = codec.EncodeInput(c.scratch[:0], tagged)
	if c.conn == nil {
		return tagged, nil
	}
	if err := c.conn.Send(proto.MsgInput, c.scratch); err != nil {
		return tagged, eris.Wrapf(err, "send input %d", tagged.ID)
	}
	return tagged, nil
}

// OnStateMessage processes one snapshot. Malformed or mismatching snapshots
// are reported and discarded without touching the scene. Snapshots that do
// not acknowledge a newer input than the last processed one are ignored.
func (c *Client) OnStateMessage(ctx context.Context, payload []byte) error {
	state, err := codec.DecodeState(payload)
	if err != nil {
		c.protocolError(ctx, len(payload), err)
		return err
	}
	if c.hasServerID && state.LastInputID <= c.serverID {
		c.deps.Metrics.Add(metricClientStale, 1)
		predictlog.StaleSnapshot(ctx, c.deps.Publisher, c.tick, c.subject(), predictlog.StaleSnapshotPayload{
			ServerID: uint32(c.serverID),
			Received: uint32(state.LastInputID),
		}, nil)
		return nil
	}

	// The policy is fixed before the first write; Apply commits all of the
	// snapshot or none of it.
	check, err := codec.Validate(c.scene, state, codec.MatchExisting, c.deps.Registry)
	if err != nil {
		c.protocolError(ctx, len(payload), err)
		return err
	}
	policy := codec.MatchExisting
	if len(check.Missing) > 0 && c.cfg.RebuildOnDesync {
		policy = codec.CreateMissing
	}

	// Rollback: overwrite every known object with its authoritative value.
	applied, err := codec.Apply(c.scene, state, policy, c.deps.Registry)
	if err != nil {
		c.protocolError(ctx, len(payload), err)
		return err
	}
	if len(check.Missing) > 0 {
		c.desync(ctx, DesyncReport{
			ServerID: state.LastInputID,
			Missing:  check.Missing,
			Rebuilt:  policy == codec.CreateMissing,
		})
	}

	removed := c.teardown(applied.Seen)
	detached := c.detachUnseen(state)

	c.serverID = state.LastInputID
	c.hasServerID = true
	dropped := c.buffer.DropThrough(state.LastInputID)

	// Replay: everything the server has not seen yet, oldest first.
	replayed := 0
	c.buffer.Each(func(cmd input.Command) {
		if c.applier != nil {
			c.applier.ApplyLocal(cmd, c.timestep)
		}
		replayed++
	})

	result := ReconcileResult{
		ServerID: c.serverID,
		Dropped:  dropped,
		Replayed: replayed,
		Removed:  removed,
		Detached: detached,
		Created:  len(applied.Created),
	}
	c.deps.Metrics.Add(metricClientSnapshots, 1)
	c.deps.Metrics.Add(metricClientReplayed, uint64(replayed))
	c.deps.Metrics.Store(metricClientServerID, uint64(c.serverID))
	predictlog.Reconciled(ctx, c.deps.Publisher, c.tick, c.subject(), predictlog.ReconciledPayload{
		ServerID: uint32(result.ServerID),
		Dropped:  result.Dropped,
		Replayed: result.Replayed,
		Removed:  result.Removed,
	}, nil)
	if c.hooks.OnReconciled != nil {
		c.hooks.OnReconciled(result)
	}
	return nil
}

// teardown removes entities that an earlier snapshot carried and this one
// does not, then remembers which snapshot entities exist locally.
func (c *Client) teardown(seen set.Set[scene.ID]) int {
	removed := 0
	for id := range c.tracked.All() {
		if !seen.Contains(id) && c.scene.RemoveEntity(id) {
			removed++
		}
	}
	var next set.Set[scene.ID]
	for id := range seen.All() {
		if c.scene.Entity(id) != nil {
			next.Add(id)
		}
	}
	c.tracked = next
	return removed
}

// detachUnseen removes server-assigned components that the snapshot no longer
// lists on their entity. Locally minted components are left alone.
func (c *Client) detachUnseen(state codec.State) int {
	detached := 0
	for _, es := range state.Entities {
		e := c.scene.Entity(es.ID)
		if e == nil {
			continue
		}
		var listed set.Set[scene.ID]
		for _, cs := range es.Components {
			listed.Add(cs.ID)
		}
		for _, comp := range e.Components() {
			if !comp.ID().IsLocal() && !listed.Contains(comp.ID()) && e.RemoveComponent(comp.ID()) {
				detached++
			}
		}
	}
	return detached
}

func (c *Client) desync(ctx context.Context, report DesyncReport) {
	c.deps.Metrics.Add(metricClientDesyncs, 1)
	payload := predictlog.DesyncPayload{ServerID: uint32(report.ServerID), Rebuilt: report.Rebuilt}
	for _, m := range report.Missing {
		if m.Component == 0 {
			payload.MissingEntities = append(payload.MissingEntities, uint32(m.Entity))
		} else {
			payload.MissingComponents = append(payload.MissingComponents, uint32(m.Component))
		}
	}
	predictlog.Desync(ctx, c.deps.Publisher, c.tick, c.subject(), payload, nil)
	if c.hooks.OnDesync != nil {
		c.hooks.OnDesync(report)
	}
}

func (c *Client) protocolError(ctx context.Context, size int, err error) {
	c.deps.Metrics.Add(metricClientProtocolErrors, 1)
	predictlog.ProtocolError(ctx, c.deps.Publisher, c.tick, c.subject(), predictlog.ProtocolErrorPayload{
		Message: proto.MsgState.String(),
		Size:    size,
		Reason:  err.Error(),
	}, nil)
}

func (c *Client) subject() logging.SubjectRef {
	return logging.SubjectRef{ID: c.scene.Name(), Kind: logging.SubjectClient}
}

// OnTick records the current tick for event correlation. Hosts sample input
// and call AddInput from their own tick hook.
func (c *Client) OnTick(tick uint64) {
	c.tick = tick
}

// Pending lists the commands not yet acknowledged, oldest first.
func (c *Client) Pending() []input.Command {
	return c.buffer.Commands()
}

// ServerID returns the newest acknowledged input id and whether any snapshot
// was accepted yet.
func (c *Client) ServerID() (input.ID, bool) {
	return c.serverID, c.hasServerID
}

// NextID is the id the next recorded command will carry.
func (c *Client) NextID() input.ID {
	return c.nextID
}

// Timestep is the fixed step passed to the applier.
func (c *Client) Timestep() time.Duration {
	return c.timestep
}

// Scene returns the predicted scene.
func (c *Client) Scene() *scene.Scene {
	return c.scene
}
