package scene

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind identifies the concrete type carried by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindVec3
	KindQuat
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindVec3:
		return "vec3"
	case KindQuat:
		return "quat"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k > KindNone && k <= KindBytes
}

// Value is an attribute or user variable value. The zero Value has KindNone.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	v    mgl64.Vec3
	q    mgl64.Quat
	raw  []byte
}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int constructs an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float constructs a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Vec3 constructs a vector value.
func Vec3(v mgl64.Vec3) Value { return Value{kind: KindVec3, v: v} }

// Quat constructs a rotation value.
func Quat(q mgl64.Quat) Value { return Value{kind: KindQuat, q: q} }

// Bytes constructs a raw buffer value. The input is copied.
func Bytes(raw []byte) Value { return Value{kind: KindBytes, raw: bytes.Clone(raw)} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsZero() bool { return v.kind == KindNone }
func (v Value) AsBool() bool { return v.b }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsVec3() mgl64.Vec3 { return v.v }
func (v Value) AsQuat() mgl64.Quat { return v.q }
func (v Value) AsBytes() []byte { return bytes.Clone(v.raw) }

// RawBytes exposes the byte payload without copying. Callers must not modify it.
func (v Value) RawBytes() []byte { return v.raw }

// Compatible reports whether o may replace v without changing its kind.
func (v Value) Compatible(o Value) bool { return v.kind == o.kind }

// Equal compares kind and payload exactly.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindVec3:
		return v.v == o.v
	case KindQuat:
		return v.q == o.q
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindInt:
		return fmt.Sprintf("int(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.f)
	case KindString:
		return fmt.Sprintf("string(%q)", v.s)
	case KindVec3:
		return fmt.Sprintf("vec3(%g, %g, %g)", v.v[0], v.v[1], v.v[2])
	case KindQuat:
		return fmt.Sprintf("quat(%g, %g, %g, %g)", v.q.W, v.q.V[0], v.q.V[1], v.q.V[2])
	case KindBytes:
		return fmt.Sprintf("bytes(%x)", v.raw)
	default:
		return "none"
	}
}
