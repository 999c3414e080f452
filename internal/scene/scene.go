package scene

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Scene is the ownership root for a set of entities.
type Scene struct {
	name      string
	entities  map[ID]*Entity
	nextRepl  ID
	nextLocal ID
}

// New returns an empty scene.
func New(name string) *Scene {
	return &Scene{
		name:      name,
		entities:  make(map[ID]*Entity),
		nextRepl:  1,
		nextLocal: LocalBit | 1,
	}
}

// Name returns the scene name.
func (s *Scene) Name() string {
	return s.name
}

func (s *Scene) mint(mode IDMode) ID {
	if mode == Local {
		id := s.nextLocal
		s.nextLocal++
		return id
	}
	id := s.nextRepl
	s.nextRepl++
	return id
}

// observeID keeps the minting counters ahead of ids that were supplied
// externally, e.g. by a snapshot.
func (s *Scene) observeID(id ID) {
	if id.IsLocal() {
		if id >= s.nextLocal {
			s.nextLocal = id + 1
		}
		return
	}
	if id >= s.nextRepl {
		s.nextRepl = id + 1
	}
}

// CreateEntity mints an id in the requested space and adds a new entity.
func (s *Scene) CreateEntity(mode IDMode) *Entity {
	id := s.mint(mode)
	for s.entities[id] != nil {
		id = s.mint(mode)
	}
	e := NewEntity(id)
	e.scene = s
	s.entities[id] = e
	return e
}

// CreateEntityWithID adds a new entity with a caller supplied id.
func (s *Scene) CreateEntityWithID(id ID) (*Entity, error) {
	if id == 0 {
		return nil, eris.New("entity id must not be zero")
	}
	if _, exists := s.entities[id]; exists {
		return nil, eris.Errorf("entity %s already exists in scene %s", id, s.name)
	}
	e := NewEntity(id)
	e.scene = s
	s.entities[id] = e
	s.observeID(id)
	return e, nil
}

// Entity looks up an entity by id.
func (s *Scene) Entity(id ID) *Entity {
	return s.entities[id]
}

// RemoveEntity tears the entity down. It reports whether it existed.
func (s *Scene) RemoveEntity(id ID) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	delete(s.entities, id)
	e.scene = nil
	return true
}

// Entities returns every entity ordered by id.
func (s *Scene) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len reports the number of entities.
func (s *Scene) Len() int {
	return len(s.entities)
}
