package codec

import (
	"github.com/ErikKalkoken/go-set"
	"github.com/rotisserie/eris"

	"netcode-csp/internal/scene"
)

// Policy decides what happens to snapshot ids that have no local object.
type Policy uint8

const (
	// MatchExisting updates objects in place and never creates new ones.
	// Unmatched ids are reported as missing. Clients read with this policy.
	MatchExisting Policy = iota
	// CreateMissing creates absent entities and components with the
	// snapshot's ids. Servers and explicit rebuilds read with this policy.
	CreateMissing
)

func (p Policy) String() string {
	if p == CreateMissing {
		return "create"
	}
	return "match"
}

// Missing identifies a snapshot object without a local counterpart. Component
// is zero when the whole entity is missing.
type Missing struct {
	Entity    scene.ID
	Component scene.ID
	Type      string
}

// ApplyResult summarizes one application.
type ApplyResult struct {
	Updated int
	Created []scene.ID
	Missing []Missing
	// Seen holds every entity id carried by the snapshot. Callers use it to
	// tear down entities that disappeared from the authoritative state.
	Seen set.Set[scene.ID]
}

type componentPlan struct {
	state  ComponentState
	target *scene.Component
}

type entityPlan struct {
	state      EntityState
	target     *scene.Entity
	components []componentPlan
}

// Validate resolves every snapshot object against sc under policy and checks
// the local schema without writing anything. The result reports Seen and
// Missing exactly as Apply would.
func Validate(sc *scene.Scene, state State, policy Policy, registry *scene.Registry) (ApplyResult, error) {
	res, _, err := resolve(sc, state, policy, registry)
	return res, err
}

// Apply writes a decoded state into sc. Every target is resolved and checked
// against the local schema before the first write, so an ErrSchemaMismatch
// leaves sc untouched. Writes bypass attribute interception.
func Apply(sc *scene.Scene, state State, policy Policy, registry *scene.Registry) (ApplyResult, error) {
	res, plans, err := resolve(sc, state, policy, registry)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, plan := range plans {
		target := plan.target
		if target == nil {
			created, err := sc.CreateEntityWithID(plan.state.ID)
			if err != nil {
				// Ids were checked against the scene above and decoding rejects duplicates.
				return res, eris.Wrap(err, "create entity")
			}
			target = created
			res.Created = append(res.Created, created.ID())
		} else {
			res.Updated++
		}
		writeAttributes(target.Attrs, plan.state.Attrs)
		target.Vars = plan.state.Vars.Clone()
		if target.Vars == nil {
			target.Vars = make(scene.Variables)
		}
		for _, cp := range plan.components {
			c := cp.target
			if c == nil {
				c = registry.NewComponent(cp.state.Type, cp.state.ID)
				if err := target.AddComponent(c); err != nil {
					return res, eris.Wrap(err, "attach component")
				}
			}
			writeAttributes(c.Attrs, cp.state.Attrs)
		}
	}
	return res, nil
}

func resolve(sc *scene.Scene, state State, policy Policy, registry *scene.Registry) (ApplyResult, []entityPlan, error) {
	var res ApplyResult
	plans := make([]entityPlan, 0, len(state.Entities))
	for _, es := range state.Entities {
		res.Seen.Add(es.ID)
		plan := entityPlan{state: es, target: sc.Entity(es.ID)}
		if plan.target == nil {
			if policy != CreateMissing {
				res.Missing = append(res.Missing, Missing{Entity: es.ID})
				continue
			}
			if es.ID == 0 {
				return ApplyResult{}, nil, eris.Wrap(ErrMalformed, "entity id zero")
			}
		} else if err := checkAttributes(plan.target.Attrs, es.Attrs); err != nil {
			return ApplyResult{}, nil, eris.Wrapf(err, "entity %s", es.ID)
		}
		for _, cs := range es.Components {
			cp := componentPlan{state: cs}
			if plan.target != nil {
				cp.target = plan.target.Component(cs.ID)
			}
			if cp.target == nil {
				if policy != CreateMissing {
					res.Missing = append(res.Missing, Missing{Entity: es.ID, Component: cs.ID, Type: cs.Type})
					continue
				}
				if err := checkAttributes(registry.NewComponent(cs.Type, cs.ID).Attrs, cs.Attrs); err != nil {
					return ApplyResult{}, nil, eris.Wrapf(err, "new component %s of type %q", cs.ID, cs.Type)
				}
			} else {
				if cp.target.Type() != cs.Type {
					return ApplyResult{}, nil, eris.Wrapf(ErrSchemaMismatch, "component %s is %q locally, %q in snapshot", cs.ID, cp.target.Type(), cs.Type)
				}
				if err := checkAttributes(cp.target.Attrs, cs.Attrs); err != nil {
					return ApplyResult{}, nil, eris.Wrapf(err, "component %s", cs.ID)
				}
			}
			plan.components = append(plan.components, cp)
		}
		plans = append(plans, plan)
	}
	return res, plans, nil
}

func checkAttributes(local *scene.AttributeSet, incoming []AttrState) error {
	for _, attr := range incoming {
		existing, ok := local.Lookup(attr.Name)
		if !ok || existing.Value.IsZero() {
			continue
		}
		if existing.Value.Kind() != attr.Value.Kind() {
			return eris.Wrapf(ErrSchemaMismatch, "attribute %q is %s locally, %s in snapshot", attr.Name, existing.Value.Kind(), attr.Value.Kind())
		}
	}
	return nil
}

// writeAttributes assigns snapshot values. Attributes unknown locally are
// defined as network attributes so created objects mirror the sender.
func writeAttributes(local *scene.AttributeSet, incoming []AttrState) {
	for _, attr := range incoming {
		if !local.Set(attr.Name, attr.Value) {
			local.Define(attr.Name, scene.ModeNet, attr.Value)
		}
	}
}
