// Package values implements Feral's tagged, reference-counted value
// model. A Value is a small struct carrying a type tag, provenance for
// error reporting, a strong reference count, and a payload whose
// concrete shape depends on the variant. Containers, structs and
// function values are built on top of this file in container.go,
// struct.go and function.go.
package values

import (
	"fmt"
	"math/big"
	"sync/atomic"
)

// Variant is the closed set of concrete value kinds.
type Variant byte

const (
	VNil Variant = iota
	VBool
	VInt
	VFlt
	VStr
	VVec
	VMap
	VStruct
	VFn
	VNative // opaque native type: src, file, bytebuffer, mproc, dbconn, ...
)

func (v Variant) String() string {
	switch v {
	case VNil:
		return "nil"
	case VBool:
		return "bool"
	case VInt:
		return "int"
	case VFlt:
		return "flt"
	case VStr:
		return "str"
	case VVec:
		return "vec"
	case VMap:
		return "map"
	case VStruct:
		return "struct"
	case VFn:
		return "fn"
	case VNative:
		return "native"
	default:
		return "unknown"
	}
}

// Process-stable type ids for the built-in variants: type_id is a
// process-stable identifier for its concrete variant. Struct and native
// types are assigned ids at or above typeIDFloor.
const (
	TypeIDNil uint64 = iota + 1
	TypeIDBool
	TypeIDInt
	TypeIDFlt
	TypeIDStr
	TypeIDVec
	TypeIDMap
	TypeIDStruct // base id for "struct" generically; instances refine via StructType
	TypeIDFn
	TypeIDAll // sentinel: methods applying to every value

	typeIDFloor uint64 = 1000
)

var typeIDCounter = int64(typeIDFloor)

// NewTypeID allocates a fresh process-stable type id, used when a script
// declares a struct type or a native module registers an opaque type.
func NewTypeID() uint64 {
	return uint64(atomic.AddInt64(&typeIDCounter, 1))
}

// Provenance is (src_id, idx): the source file id and byte offset a
// value originated at, used for error reporting.
type Provenance struct {
	SrcID uint32
	Idx   uint32
}

// AttrBearer is implemented by native payloads (source units, native
// resource handles) that participate in attribute-based dispatch without
// living inside the `values` package itself. Struct values carry their
// own attribute table directly (see struct.go) and don't need this
// indirection.
type AttrBearer interface {
	AttrExists(name string) bool
	AttrGet(name string) (*Value, bool)
	AttrSet(name string, v *Value, iref bool)
}

// Value is a heap-allocated, reference-counted tagged value. Every Value
// in the system is referenced through *Value; copies of the struct itself
// are never made once ref_count >= 1, so pointer identity is ownership
// identity.
type Value struct {
	Variant Variant
	TypeID  uint64
	Prov    Provenance

	refCount int32

	// Callable marks whether this value may appear as a CALL target.
	// Only VFn values set this.
	Callable bool
	// AttrBased marks whether method dispatch should first consult this
	// value's own attribute table before the type-function table.
	// Structs and attribute-bearing natives set this.
	AttrBased bool

	Payload interface{}
}

// singletons owned by the VM for its lifetime.
var (
	Nil   = &Value{Variant: VNil, TypeID: TypeIDNil, refCount: 1}
	True  = &Value{Variant: VBool, TypeID: TypeIDBool, Payload: true, refCount: 1}
	False = &Value{Variant: VBool, TypeID: TypeIDBool, Payload: false, refCount: 1}
)

// Bool returns the shared True/False singleton for b.
func Bool(b bool) *Value {
	if b {
		return True
	}
	return False
}

// NewInt builds an arbitrary-precision integer value from an int64.
func NewInt(i int64) *Value {
	return &Value{Variant: VInt, TypeID: TypeIDInt, Payload: big.NewInt(i), refCount: 1}
}

// NewBigInt adopts an existing *big.Int as the payload.
func NewBigInt(i *big.Int) *Value {
	return &Value{Variant: VInt, TypeID: TypeIDInt, Payload: i, refCount: 1}
}

// NewFlt builds a double-precision float value.
func NewFlt(f float64) *Value {
	v := f
	return &Value{Variant: VFlt, TypeID: TypeIDFlt, Payload: &v, refCount: 1}
}

// NewStr builds a byte-string value.
func NewStr(s string) *Value {
	b := []byte(s)
	return &Value{Variant: VStr, TypeID: TypeIDStr, Payload: &b, refCount: 1}
}

func isNew(prov ...Provenance) Provenance {
	if len(prov) > 0 {
		return prov[0]
	}
	return Provenance{}
}

// New is a generic constructor matching `new(variant, payload,
// provenance) -> value`, for callers building containers/functions/
// native values that have their own typed constructors but still want a
// single entry point for provenance handling.
func New(variant Variant, typeID uint64, payload interface{}, prov Provenance) *Value {
	return &Value{Variant: variant, TypeID: typeID, Payload: payload, Prov: prov, refCount: 1}
}

// Iref increments the strong reference count.
func Iref(v *Value) {
	if v == nil {
		return
	}
	atomic.AddInt32(&v.refCount, 1)
}

// Dref decrements the strong reference count and destroys the value's
// payload (cascading dref to owned sub-values) when it reaches zero.
// nil/true/false are never destroyed: destroy leaves the three
// singletons intact whatever their count reaches.
func Dref(v *Value) {
	if v == nil {
		return
	}
	if atomic.AddInt32(&v.refCount, -1) > 0 {
		return
	}
	destroy(v)
}

// RefCount reports the current strong count, for tests and diagnostics.
func RefCount(v *Value) int32 {
	if v == nil {
		return 0
	}
	return atomic.LoadInt32(&v.refCount)
}

func destroy(v *Value) {
	if v == Nil || v == True || v == False {
		return
	}
	switch v.Variant {
	case VVec:
		vec := v.Payload.(*Vec)
		for _, e := range vec.Items {
			Dref(e)
		}
	case VMap:
		m := v.Payload.(*Map)
		for _, k := range m.keys {
			Dref(m.vals[k])
		}
	case VStruct:
		s := v.Payload.(*Struct)
		for _, name := range s.Attrs.Names() {
			val, _ := s.Attrs.Get(name)
			Dref(val)
		}
	case VNative:
		if d, ok := v.Payload.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
	v.Payload = nil
}

// Copy performs a shallow copy: containers get a new outer value
// referencing the same elements (each element is iref'd); scalars get a
// value carrying an independent payload.
func Copy(v *Value, prov Provenance) *Value {
	switch v.Variant {
	case VNil:
		return Nil
	case VBool:
		return v // singleton, copy is identity
	case VInt:
		n := new(big.Int).Set(v.Payload.(*big.Int))
		return New(VInt, TypeIDInt, n, prov)
	case VFlt:
		f := *v.Payload.(*float64)
		return New(VFlt, TypeIDFlt, &f, prov)
	case VStr:
		b := append([]byte(nil), *v.Payload.(*[]byte)...)
		return New(VStr, TypeIDStr, &b, prov)
	case VVec:
		src := v.Payload.(*Vec)
		items := make([]*Value, len(src.Items))
		for i, e := range src.Items {
			Iref(e)
			items[i] = e
		}
		return New(VVec, TypeIDVec, &Vec{Items: items}, prov)
	case VMap:
		src := v.Payload.(*Map)
		dst := NewMapPayload()
		for _, k := range src.keys {
			e := src.vals[k]
			Iref(e)
			dst.Set(k, e)
		}
		return New(VMap, TypeIDMap, dst, prov)
	case VStruct:
		src := v.Payload.(*Struct)
		dst := &Struct{TypeName: src.TypeName, Attrs: NewAttrTable()}
		for _, name := range src.Attrs.Names() {
			val, _ := src.Attrs.Get(name)
			Iref(val)
			dst.Attrs.Set(name, val, false)
		}
		nv := New(VStruct, v.TypeID, dst, prov)
		nv.AttrBased = true
		return nv
	default:
		// fn, native: no new handle is made; copy returns v itself with
		// its count incremented, so both holders share the same
		// function or resource.
		Iref(v)
		return v
	}
}

// Set implements in-place assignment semantics, `set(dst, src)`: dst
// adopts src's payload and type identity. This is the mechanism backing
// reference-binding parameters (the `&` marker): when BindArgs binds a
// VAReference parameter to the caller's own *Value, a Set against that
// parameter inside the callee makes dst literally become the caller's
// value. After Set, src is left inert (Nil payload, VNil variant) so a
// caller that subsequently Drefs the src handle does not double-free the
// payload it just donated to dst.
func Set(dst, src *Value) error {
	if dst == nil || src == nil {
		return fmt.Errorf("set: nil value")
	}
	if dst == src {
		return nil
	}
	destroy(dst)
	dst.Variant = src.Variant
	dst.TypeID = src.TypeID
	dst.Payload = src.Payload
	dst.Callable = src.Callable
	dst.AttrBased = src.AttrBased

	src.Variant = VNil
	src.TypeID = TypeIDNil
	src.Payload = nil
	src.Callable = false
	src.AttrBased = false
	return nil
}

// ToBool implements truthiness, `to_bool`.
func ToBool(v *Value) bool {
	switch v.Variant {
	case VNil:
		return false
	case VBool:
		return v.Payload.(bool)
	case VInt:
		return v.Payload.(*big.Int).Sign() != 0
	case VFlt:
		return *v.Payload.(*float64) != 0
	case VStr:
		return len(*v.Payload.(*[]byte)) > 0
	case VVec:
		return len(v.Payload.(*Vec).Items) > 0
	case VMap:
		return len(v.Payload.(*Map).keys) > 0
	default:
		return true
	}
}

// ToStr implements display conversion, `to_str`.
func ToStr(v *Value) string {
	switch v.Variant {
	case VNil:
		return "nil"
	case VBool:
		if v.Payload.(bool) {
			return "true"
		}
		return "false"
	case VInt:
		return v.Payload.(*big.Int).String()
	case VFlt:
		return fmt.Sprintf("%g", *v.Payload.(*float64))
	case VStr:
		return string(*v.Payload.(*[]byte))
	case VVec:
		vec := v.Payload.(*Vec)
		s := "["
		for i, e := range vec.Items {
			if i > 0 {
				s += ", "
			}
			s += ToStr(e)
		}
		return s + "]"
	case VMap:
		m := v.Payload.(*Map)
		s := "{"
		for i, k := range m.keys {
			if i > 0 {
				s += ", "
			}
			s += k + ": " + ToStr(m.vals[k])
		}
		return s + "}"
	case VStruct:
		return fmt.Sprintf("<struct %s>", v.Payload.(*Struct).TypeName)
	case VFn:
		return "<fn>"
	case VNative:
		if s, ok := v.Payload.(fmt.Stringer); ok {
			return s.String()
		}
		return "<native>"
	default:
		return "<unknown>"
	}
}

// AttrExists/AttrGet/AttrSet implement attribute access, dispatched
// across struct's built-in table and natives' AttrBearer implementations.
func (v *Value) AttrExists(name string) bool {
	switch p := v.Payload.(type) {
	case *Struct:
		return p.Attrs.Exists(name)
	case AttrBearer:
		return p.AttrExists(name)
	}
	return false
}

func (v *Value) AttrGet(name string) (*Value, bool) {
	switch p := v.Payload.(type) {
	case *Struct:
		return p.Attrs.Get(name)
	case AttrBearer:
		return p.AttrGet(name)
	}
	return nil, false
}

func (v *Value) AttrSet(name string, val *Value, iref bool) error {
	switch p := v.Payload.(type) {
	case *Struct:
		p.Attrs.Set(name, val, iref)
		return nil
	case AttrBearer:
		p.AttrSet(name, val, iref)
		return nil
	}
	return fmt.Errorf("%s: %w", v.Variant, ErrImmutable)
}

// ErrImmutable is returned by mutating operations on variants that don't
// support them: mutating an immutable value fails with BadOperation.
var ErrImmutable = fmt.Errorf("bad operation: value does not support attributes")
