package values

import (
	"fmt"
	"math/big"
)

// Vec is the payload of a VVec value: an ordered, mutable sequence.
type Vec struct {
	Items []*Value
}

// NewVec builds a vec value owning the given items (no extra iref: the
// caller transfers ownership of each element, matching BUILD_VEC popping
// N owned operand-stack values).
func NewVec(items []*Value) *Value {
	return New(VVec, TypeIDVec, &Vec{Items: items}, Provenance{})
}

func (vec *Vec) Push(v *Value) {
	vec.Items = append(vec.Items, v)
}

// Pop removes and returns the last element; ownership transfers to the
// caller (mirrors a vec.push(x); vec.pop() == x round-trip).
func (vec *Vec) Pop() (*Value, bool) {
	n := len(vec.Items)
	if n == 0 {
		return nil, false
	}
	v := vec.Items[n-1]
	vec.Items = vec.Items[:n-1]
	return v, true
}

func (vec *Vec) Len() int { return len(vec.Items) }

// At returns the element at idx without changing ownership, or an error
// for an out-of-range subscript.
func (vec *Vec) At(idx int) (*Value, error) {
	if idx < 0 || idx >= len(vec.Items) {
		return nil, fmt.Errorf("vec index out of range: %d", idx)
	}
	return vec.Items[idx], nil
}

// Map is the payload of a VMap value: an insertion-ordered string->value
// mapping.
type Map struct {
	keys []string
	vals map[string]*Value
}

func NewMapPayload() *Map {
	return &Map{vals: make(map[string]*Value)}
}

// NewMap builds a map value from an already-built Map payload.
func NewMap(m *Map) *Value {
	return New(VMap, TypeIDMap, m, Provenance{})
}

// Set inserts or overwrites a key, preserving original insertion order on
// overwrite and appending on first insertion. The caller owns v (no
// implicit iref); an overwritten previous value is the caller's
// responsibility to Dref if they fetched it first via Get.
func (m *Map) Set(key string, v *Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *Map) Get(key string) (*Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) Delete(key string) (*Value, bool) {
	v, ok := m.vals[key]
	if !ok {
		return nil, false
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return v, true
}

func (m *Map) Keys() []string { return m.keys }
func (m *Map) Len() int       { return len(m.keys) }

// Equal implements structural equality for containers: container
// comparison is structural, not identity-based.
func Equal(a, b *Value) bool {
	if a.Variant != b.Variant {
		return false
	}
	switch a.Variant {
	case VNil:
		return true
	case VBool:
		return a.Payload.(bool) == b.Payload.(bool)
	case VInt:
		return a.Payload.(*big.Int).Cmp(b.Payload.(*big.Int)) == 0
	case VFlt:
		return *a.Payload.(*float64) == *b.Payload.(*float64)
	case VStr:
		return string(*a.Payload.(*[]byte)) == string(*b.Payload.(*[]byte))
	case VVec:
		va, vb := a.Payload.(*Vec), b.Payload.(*Vec)
		if len(va.Items) != len(vb.Items) {
			return false
		}
		for i := range va.Items {
			if !Equal(va.Items[i], vb.Items[i]) {
				return false
			}
		}
		return true
	case VMap:
		ma, mb := a.Payload.(*Map), b.Payload.(*Map)
		if ma.Len() != mb.Len() {
			return false
		}
		for _, k := range ma.keys {
			bv, ok := mb.Get(k)
			if !ok || !Equal(ma.vals[k], bv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
