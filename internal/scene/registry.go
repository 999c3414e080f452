package scene

import "sync"

// ComponentFactory defines the attributes of a freshly created component.
type ComponentFactory func(c *Component)

// Registry maps component type tags to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ComponentFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ComponentFactory)}
}

// Register installs a factory for the type tag, replacing any previous one.
func (r *Registry) Register(typ string, factory ComponentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// Known reports whether a factory exists for typ.
func (r *Registry) Known(typ string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// NewComponent builds a detached component of type typ. Unregistered types
// yield a bare component whose attributes come from the caller.
func (r *Registry) NewComponent(typ string, id ID) *Component {
	c := NewComponent(id, typ)
	if r == nil {
		return c
	}
	r.mu.RLock()
	factory := r.factories[typ]
	r.mu.RUnlock()
	if factory != nil {
		factory(c)
	}
	return c
}
