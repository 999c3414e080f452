package codec

import (
	"netcode-csp/internal/input"
	"netcode-csp/internal/scene"
)

/*
State layout, little endian:

	last input id      u32
	entity count       uvarint
	per entity
	  id               u32 (covers server and locally minted ids)
	  attributes       count, then (name, kind, value)
	  user variables   count, then (key, kind, value)
	  component count  uvarint
	  per component
	    id             u32
	    type           string
	    attributes     count, then (name, kind, value)
*/

// AttrState is one decoded attribute.
type AttrState struct {
	Name  string
	Value scene.Value
}

// ComponentState is one decoded component.
type ComponentState struct {
	ID    scene.ID
	Type  string
	Attrs []AttrState
}

// EntityState is one decoded entity.
type EntityState struct {
	ID         scene.ID
	Attrs      []AttrState
	Vars       scene.Variables
	Components []ComponentState
}

// State is a fully decoded snapshot. Decoding never touches a scene; the
// result is applied separately so a corrupt payload cannot leave a scene
// half updated.
type State struct {
	LastInputID input.ID
	Entities    []EntityState
}

// AppendEntities writes the scene body (entity count and entities) for the
// given entities. Servers prepare the body once per tick and prefix each
// connection's last input id with AppendState.
func AppendEntities(dst []byte, entities []*scene.Entity) []byte {
	dst = appendCount(dst, len(entities))
	for _, e := range entities {
		dst = appendEntity(dst, e)
	}
	return dst
}

// AppendState writes a complete state message from a prepared body.
func AppendState(dst []byte, last input.ID, body []byte) []byte {
	dst = appendU32(dst, uint32(last))
	return append(dst, body...)
}

// EncodeScene writes every entity of sc as a state message.
func EncodeScene(dst []byte, last input.ID, sc *scene.Scene) []byte {
	dst = appendU32(dst, uint32(last))
	return AppendEntities(dst, sc.Entities())
}

func appendEntity(dst []byte, e *scene.Entity) []byte {
	dst = appendU32(dst, uint32(e.ID()))
	dst = appendAttributes(dst, e.Attrs)
	dst = appendVariables(dst, e.Vars)
	components := e.Components()
	dst = appendCount(dst, len(components))
	for _, c := range components {
		dst = appendComponent(dst, c)
	}
	return dst
}

func appendComponent(dst []byte, c *scene.Component) []byte {
	dst = appendU32(dst, uint32(c.ID()))
	dst = appendString(dst, c.Type())
	return appendAttributes(dst, c.Attrs)
}

func appendAttributes(dst []byte, attrs *scene.AttributeSet) []byte {
	network := attrs.Network()
	dst = appendCount(dst, len(network))
	for _, attr := range network {
		dst = appendString(dst, attr.Name)
		dst = appendValue(dst, attr.Value)
	}
	return dst
}

func appendVariables(dst []byte, vars scene.Variables) []byte {
	keys := vars.Keys()
	dst = appendCount(dst, len(keys))
	for _, k := range keys {
		dst = appendString(dst, k)
		dst = appendValue(dst, vars[k])
	}
	return dst
}

// DecodeState parses a complete state message. Any truncation, unknown
// value kind, duplicate id or trailing data fails with ErrMalformed.
func DecodeState(payload []byte) (State, error) {
	r := newReader(payload)
	state := State{LastInputID: input.ID(r.u32("last input id"))}
	n := r.count("entity")
	if n > 0 {
		state.Entities = make([]EntityState, 0, n)
	}
	seen := make(map[scene.ID]struct{}, n)
	for i := 0; i < n && r.err == nil; i++ {
		es := readEntity(r)
		if r.err != nil {
			break
		}
		if _, dup := seen[es.ID]; dup {
			r.fail("duplicate entity id %s", es.ID)
			break
		}
		seen[es.ID] = struct{}{}
		state.Entities = append(state.Entities, es)
	}
	if err := r.finish(); err != nil {
		return State{}, err
	}
	return state, nil
}

func readEntity(r *reader) EntityState {
	es := EntityState{ID: scene.ID(r.u32("entity id"))}
	es.Attrs = readAttributes(r, "entity attribute")
	es.Vars = readVariables(r)
	n := r.count("component")
	if n > 0 {
		es.Components = make([]ComponentState, 0, n)
	}
	for i := 0; i < n && r.err == nil; i++ {
		cs := ComponentState{ID: scene.ID(r.u32("component id"))}
		cs.Type = r.str("component type")
		cs.Attrs = readAttributes(r, "component attribute")
		if r.err != nil {
			break
		}
		if cs.ID == 0 {
			r.fail("component id zero on entity %s", es.ID)
			break
		}
		for _, prior := range es.Components {
			if prior.ID == cs.ID {
				r.fail("duplicate component id %s on entity %s", cs.ID, es.ID)
				break
			}
		}
		es.Components = append(es.Components, cs)
	}
	return es
}

func readAttributes(r *reader, what string) []AttrState {
	n := r.count(what)
	if n == 0 {
		return nil
	}
	attrs := make([]AttrState, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name := r.str(what + " name")
		value := r.value(what + " " + name)
		attrs = append(attrs, AttrState{Name: name, Value: value})
	}
	return attrs
}

func readVariables(r *reader) scene.Variables {
	n := r.count("user variable")
	vars := make(scene.Variables, n)
	for i := 0; i < n && r.err == nil; i++ {
		key := r.str("user variable name")
		vars[key] = r.value("user variable " + key)
	}
	return vars
}
