package protocol

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// object is a decoded CBOR map. The accessors are lenient in the same way the
// server's other clients are: integers stand in for floats and numbers for bools.
// A wrong type reads as absent.
type object map[any]any

func asObject(v any) (object, bool) {
	switch m := v.(type) {
	case map[any]any:
		return object(m), true
	case map[string]any:
		o := make(object, len(m))
		for k, val := range m {
			o[k] = val
		}
		return o, true
	default:
		return nil, false
	}
}

func (o object) get(key string) (any, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (o object) has(key string) bool {
	_, ok := o.get(key)
	return ok
}

func (o object) id(key string) (ID, bool) {
	v, ok := o.get(key)
	if !ok {
		return NullID, false
	}
	return idFromValue(v), true
}

func (o object) str(key string) (string, bool) {
	v, ok := o.get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (o object) strOr(key, def string) string {
	if s, ok := o.str(key); ok {
		return s
	}
	return def
}

func (o object) int64(key string) (int64, bool) {
	v, ok := o.get(key)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

func (o object) uint64(key string) (uint64, bool) {
	v, ok := o.get(key)
	if !ok {
		return 0, false
	}
	return toUint64(v)
}

func (o object) uint64Or(key string, def uint64) uint64 {
	if n, ok := o.uint64(key); ok {
		return n
	}
	return def
}

func (o object) float(key string) (float32, bool) {
	v, ok := o.get(key)
	if !ok {
		return 0, false
	}
	return toFloat32(v)
}

func (o object) floatOr(key string, def float32) float32 {
	if f, ok := o.float(key); ok {
		return f
	}
	return def
}

func (o object) boolean(key string) (bool, bool) {
	v, ok := o.get(key)
	if !ok {
		return false, false
	}
	return toBool(v)
}

func (o object) bytes(key string) ([]byte, bool) {
	v, ok := o.get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (o object) list(key string) ([]any, bool) {
	v, ok := o.get(key)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

func (o object) obj(key string) (object, bool) {
	v, ok := o.get(key)
	if !ok {
		return nil, false
	}
	return asObject(v)
}

// ids returns nil when the key is absent and a non-nil slice otherwise, so callers
// can tell "absent" from "present and empty".
func (o object) ids(key string) []ID {
	l, ok := o.list(key)
	if !ok {
		return nil
	}
	out := make([]ID, 0, len(l))
	for _, v := range l {
		out = append(out, idFromValue(v))
	}
	return out
}

func (o object) strs(key string) []string {
	l, ok := o.list(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (o object) floats(key string) []float32 {
	l, ok := o.list(key)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(l))
	for _, v := range l {
		if f, ok := toFloat32(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func (o object) vec3(key string) (mgl32.Vec3, bool) {
	f := o.floats(key)
	if len(f) < 3 {
		return mgl32.Vec3{}, false
	}
	return mgl32.Vec3{f[0], f[1], f[2]}, true
}

// color reads an RGB or RGBA array; alpha defaults to 1.
func (o object) color(key string) (mgl32.Vec4, bool) {
	f := o.floats(key)
	switch {
	case len(f) >= 4:
		return mgl32.Vec4{f[0], f[1], f[2], f[3]}, true
	case len(f) == 3:
		return mgl32.Vec4{f[0], f[1], f[2], 1}, true
	default:
		return mgl32.Vec4{}, false
	}
}

func (o object) mat3(key string) (mgl32.Mat3, bool) {
	f := o.floats(key)
	if len(f) < 9 {
		return mgl32.Mat3{}, false
	}
	var m mgl32.Mat3
	copy(m[:], f[:9])
	return m, true
}

func (o object) mat4(key string) (mgl32.Mat4, bool) {
	f := o.floats(key)
	if len(f) < 16 {
		return mgl32.Mat4{}, false
	}
	var m mgl32.Mat4
	copy(m[:], f[:16])
	return m, true
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint32:
		return uint64(n), true
	default:
		return 0, false
	}
}

func toUint32(v any) (uint32, bool) {
	n, ok := toUint64(v)
	if !ok || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case uint64:
		return float32(n), true
	case int64:
		return float32(n), true
	case int:
		return float32(n), true
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case uint64:
		return b != 0, true
	case int64:
		return b != 0, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}
