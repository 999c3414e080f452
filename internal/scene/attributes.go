package scene

import (
	"sort"
)

// Mode flags describe how an attribute participates in replication.
type Mode uint8

const (
	// ModeNet marks an attribute as network relevant. Only these attributes
	// are written into snapshots.
	ModeNet Mode = 1 << iota
	// ModeLocal marks an attribute that never leaves the process.
	ModeLocal
)

// Attribute is one named, typed slot of an AttributeSet.
type Attribute struct {
	Name      string
	Mode      Mode
	Value     Value
	intercept bool
}

// Intercepted reports whether default replication writes are suppressed.
func (a Attribute) Intercepted() bool {
	return a.intercept
}

// AttributeSet is the reflection surface of an entity or component: an
// ordered list of named attributes that can be enumerated, read and written.
type AttributeSet struct {
	attrs []Attribute
	index map[string]int
}

// NewAttributeSet returns an empty attribute set.
func NewAttributeSet() *AttributeSet {
	return &AttributeSet{index: make(map[string]int)}
}

// Define adds an attribute or replaces the mode and value of an existing one.
func (s *AttributeSet) Define(name string, mode Mode, value Value) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.attrs[i].Mode = mode
		s.attrs[i].Value = value
		return
	}
	s.index[name] = len(s.attrs)
	s.attrs = append(s.attrs, Attribute{Name: name, Mode: mode, Value: value})
}

// Has reports whether the attribute is defined.
func (s *AttributeSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Get returns the attribute value. The zero Value is returned for unknown names.
func (s *AttributeSet) Get(name string) Value {
	if s == nil {
		return Value{}
	}
	i, ok := s.index[name]
	if !ok {
		return Value{}
	}
	return s.attrs[i].Value
}

// Lookup returns the attribute with the given name.
func (s *AttributeSet) Lookup(name string) (Attribute, bool) {
	if s == nil {
		return Attribute{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// Set writes an attribute value, bypassing interception. It is the write
// path used by simulation code and by the prediction engine. Unknown names
// and kind changes are rejected.
func (s *AttributeSet) Set(name string, value Value) bool {
	if s == nil {
		return false
	}
	i, ok := s.index[name]
	if !ok {
		return false
	}
	if !s.attrs[i].Value.IsZero() && !s.attrs[i].Value.Compatible(value) {
		return false
	}
	s.attrs[i].Value = value
	return true
}

// Replicate is the default replication write path. It refuses writes to
// intercepted attributes so they cannot race with snapshot application.
func (s *AttributeSet) Replicate(name string, value Value) bool {
	if s == nil {
		return false
	}
	i, ok := s.index[name]
	if !ok || s.attrs[i].intercept {
		return false
	}
	return s.Set(name, value)
}

// SetIntercept toggles interception on a single attribute.
func (s *AttributeSet) SetIntercept(name string, enabled bool) bool {
	if s == nil {
		return false
	}
	i, ok := s.index[name]
	if !ok {
		return false
	}
	s.attrs[i].intercept = enabled
	return true
}

// InterceptAll toggles interception on every network attribute.
func (s *AttributeSet) InterceptAll(enabled bool) {
	if s == nil {
		return
	}
	for i := range s.attrs {
		if s.attrs[i].Mode&ModeNet != 0 {
			s.attrs[i].intercept = enabled
		}
	}
}

// Network returns the network relevant attributes in definition order.
func (s *AttributeSet) Network() []Attribute {
	if s == nil {
		return nil
	}
	out := make([]Attribute, 0, len(s.attrs))
	for _, attr := range s.attrs {
		if attr.Mode&ModeNet != 0 {
			out = append(out, attr)
		}
	}
	return out
}

// All returns every attribute in definition order.
func (s *AttributeSet) All() []Attribute {
	if s == nil {
		return nil
	}
	return append([]Attribute(nil), s.attrs...)
}

// Len reports the number of defined attributes.
func (s *AttributeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.attrs)
}

// Clone deep-copies the set including interception flags.
func (s *AttributeSet) Clone() *AttributeSet {
	cloned := NewAttributeSet()
	if s == nil {
		return cloned
	}
	cloned.attrs = make([]Attribute, len(s.attrs))
	copy(cloned.attrs, s.attrs)
	for k, v := range s.index {
		cloned.index[k] = v
	}
	return cloned
}

// Variables holds user-defined key/value pairs attached to an entity.
type Variables map[string]Value

// Keys returns the variable names in sorted order so encoders are stable.
func (v Variables) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone copies the map. Byte values are shared; Value never exposes them mutably.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	cloned := make(Variables, len(v))
	for k, val := range v {
		cloned[k] = val
	}
	return cloned
}

// Equal compares two variable sets.
func (v Variables) Equal(o Variables) bool {
	if len(v) != len(o) {
		return false
	}
	for k, val := range v {
		other, ok := o[k]
		if !ok || !val.Equal(other) {
			return false
		}
	}
	return true
}
