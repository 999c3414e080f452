package codec

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"

	"netcode-csp/internal/scene"
)

// Every multi-byte field is little endian. Counts and string lengths are
// unsigned varints.

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

func appendF64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}

func appendCount(dst []byte, n int) []byte {
	return binary.AppendUvarint(dst, uint64(n))
}

func appendString(dst []byte, s string) []byte {
	dst = appendCount(dst, len(s))
	return append(dst, s...)
}

func appendValue(dst []byte, v scene.Value) []byte {
	dst = append(dst, byte(v.Kind()))
	switch v.Kind() {
	case scene.KindBool:
		if v.AsBool() {
			return append(dst, 1)
		}
		return append(dst, 0)
	case scene.KindInt:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.AsInt()))
	case scene.KindFloat:
		return appendF64(dst, v.AsFloat())
	case scene.KindString:
		return appendString(dst, v.AsString())
	case scene.KindVec3:
		vec := v.AsVec3()
		for _, c := range vec {
			dst = appendF64(dst, c)
		}
		return dst
	case scene.KindQuat:
		q := v.AsQuat()
		dst = appendF64(dst, q.W)
		for _, c := range q.V {
			dst = appendF64(dst, c)
		}
		return dst
	case scene.KindBytes:
		raw := v.RawBytes()
		dst = appendCount(dst, len(raw))
		return append(dst, raw...)
	}
	return dst
}

// reader consumes a buffer with a sticky error: after the first failure every
// read returns zero values and finish reports the cause.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = eris.Wrapf(ErrMalformed, format, args...)
	}
}

func (r *reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.fail("truncated %s at offset %d: need %d bytes, have %d", what, r.off, n, len(r.buf)-r.off)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8(what string) uint8 {
	b := r.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32(what string) uint32 {
	b := r.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64(what string) uint64 {
	b := r.take(8, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) f32(what string) float32 {
	return math.Float32frombits(r.u32(what))
}

func (r *reader) f64(what string) float64 {
	return math.Float64frombits(r.u64(what))
}

// count reads a length prefix. Every counted element occupies at least one
// byte, so a count larger than the remaining input is rejected before any
// allocation happens.
func (r *reader) count(what string) int {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		r.fail("invalid %s count at offset %d", what, r.off)
		return 0
	}
	r.off += n
	if v > uint64(len(r.buf)-r.off) {
		r.fail("%s count %d exceeds remaining %d bytes", what, v, len(r.buf)-r.off)
		return 0
	}
	return int(v)
}

func (r *reader) str(what string) string {
	n := r.count(what)
	b := r.take(n, what)
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *reader) value(what string) scene.Value {
	kind := scene.Kind(r.u8(what))
	if r.err != nil {
		return scene.Value{}
	}
	switch kind {
	case scene.KindNone:
		return scene.Value{}
	case scene.KindBool:
		switch r.u8(what) {
		case 0:
			return scene.Bool(false)
		case 1:
			return scene.Bool(true)
		default:
			r.fail("invalid bool encoding for %s", what)
			return scene.Value{}
		}
	case scene.KindInt:
		return scene.Int(int64(r.u64(what)))
	case scene.KindFloat:
		return scene.Float(r.f64(what))
	case scene.KindString:
		return scene.String(r.str(what))
	case scene.KindVec3:
		return scene.Vec3(mgl64.Vec3{r.f64(what), r.f64(what), r.f64(what)})
	case scene.KindQuat:
		w := r.f64(what)
		v := mgl64.Vec3{r.f64(what), r.f64(what), r.f64(what)}
		return scene.Quat(mgl64.Quat{W: w, V: v})
	case scene.KindBytes:
		n := r.count(what)
		return scene.Bytes(r.take(n, what))
	default:
		r.fail("unknown value kind %d for %s", uint8(kind), what)
		return scene.Value{}
	}
}

// finish fails the read when input remains after the last field.
func (r *reader) finish() error {
	if r.err == nil && r.off != len(r.buf) {
		r.fail("%d trailing bytes", len(r.buf)-r.off)
	}
	return r.err
}
