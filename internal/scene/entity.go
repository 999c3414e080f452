package scene

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ID identifies entities and components. Bit 31 separates locally minted
// ids from server-assigned ones so both spaces can coexist in one scene.
type ID uint32

// LocalBit is set on every locally minted id.
const LocalBit ID = 1 << 31

// IsLocal reports whether the id was minted locally.
func (id ID) IsLocal() bool {
	return id&LocalBit != 0
}

func (id ID) String() string {
	if id.IsLocal() {
		return fmt.Sprintf("L%d", uint32(id&^LocalBit))
	}
	return fmt.Sprintf("%d", uint32(id))
}

// IDMode selects which id space a new object is minted in.
type IDMode uint8

const (
	Replicated IDMode = iota
	Local
)

// Component is a typed attribute bag attached to exactly one entity.
type Component struct {
	id    ID
	typ   string
	owner *Entity
	Attrs *AttributeSet
}

// NewComponent builds a detached component.
func NewComponent(id ID, typ string) *Component {
	return &Component{id: id, typ: typ, Attrs: NewAttributeSet()}
}

func (c *Component) ID() ID { return c.id }
func (c *Component) Type() string { return c.typ }
func (c *Component) Entity() *Entity { return c.owner }

// Entity is a simulation object carried by a scene.
type Entity struct {
	id         ID
	scene      *Scene
	predicted  bool
	Attrs      *AttributeSet
	Vars       Variables
	components []*Component
}

// NewEntity builds a detached entity.
func NewEntity(id ID) *Entity {
	return &Entity{id: id, Attrs: NewAttributeSet(), Vars: make(Variables)}
}

func (e *Entity) ID() ID { return e.id }

// Scene returns the owning scene, nil once the entity was removed.
func (e *Entity) Scene() *Scene { return e.scene }

// Predicted reports whether the entity is under prediction.
func (e *Entity) Predicted() bool { return e.predicted }

// SetPredicted flags the entity as managed by the prediction subsystem and
// toggles interception of its network attributes and those of its components.
func (e *Entity) SetPredicted(enabled bool) {
	e.predicted = enabled
	e.Attrs.InterceptAll(enabled)
	for _, c := range e.components {
		c.Attrs.InterceptAll(enabled)
	}
}

// AddComponent attaches c. A component already owned by another entity, or a
// duplicate id, is rejected.
func (e *Entity) AddComponent(c *Component) error {
	if c == nil {
		return eris.New("nil component")
	}
	if c.owner != nil && c.owner != e {
		return eris.Errorf("component %s already attached to entity %s", c.id, c.owner.id)
	}
	if e.Component(c.id) != nil {
		return eris.Errorf("entity %s already has component %s", e.id, c.id)
	}
	c.owner = e
	if e.predicted {
		c.Attrs.InterceptAll(true)
	}
	e.components = append(e.components, c)
	if e.scene != nil {
		e.scene.observeID(c.id)
	}
	return nil
}

// CreateComponent mints an id from the owning scene and attaches a new component.
func (e *Entity) CreateComponent(typ string, mode IDMode) *Component {
	var id ID
	if e.scene != nil {
		id = e.scene.mint(mode)
	} else {
		id = ID(len(e.components) + 1)
	}
	c := NewComponent(id, typ)
	_ = e.AddComponent(c)
	return c
}

// Component returns the attached component with the given id.
func (e *Entity) Component(id ID) *Component {
	for _, c := range e.components {
		if c.id == id {
			return c
		}
	}
	return nil
}

// ComponentOfType returns the first component carrying the type tag.
func (e *Entity) ComponentOfType(typ string) *Component {
	for _, c := range e.components {
		if c.typ == typ {
			return c
		}
	}
	return nil
}

// Components returns the attached components in attachment order.
func (e *Entity) Components() []*Component {
	return append([]*Component(nil), e.components...)
}

// RemoveComponent detaches the component with the given id.
func (e *Entity) RemoveComponent(id ID) bool {
	for i, c := range e.components {
		if c.id == id {
			c.owner = nil
			e.components = append(e.components[:i], e.components[i+1:]...)
			return true
		}
	}
	return false
}
