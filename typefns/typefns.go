// Package typefns implements the type-function table: a mapping from
// type_id to a name->function frame, with a distinguished "all"
// sentinel holding methods that apply to every value, and the
// precedence rule for resolving value.name(...).
package typefns

import (
	"fmt"
	"sync"

	"github.com/rnshah9/feral/values"
)

// Frame is one type's name->function table.
type Frame struct {
	fns map[string]*values.Value
}

func newFrame() *Frame {
	return &Frame{fns: make(map[string]*values.Value)}
}

// Table is the VM-wide type-function table: holds strong refs to native
// function values. A thread fork gets its own Table from Clone, holding
// the same function values.
type Table struct {
	mu    sync.RWMutex
	types map[uint64]*Frame
	names map[uint64]string
}

func New() *Table {
	t := &Table{types: make(map[uint64]*Frame), names: make(map[uint64]string)}
	t.types[values.TypeIDAll] = newFrame()
	t.names[values.TypeIDAll] = "all"
	return t
}

// SetTypeName records a human-readable name for a type id, returned by
// TypeName and used in Add's duplicate-registration error.
func (t *Table) SetTypeName(typeID uint64, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[typeID] = name
}

func (t *Table) TypeName(typeID uint64) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.names[typeID]; ok {
		return n
	}
	return fmt.Sprintf("typeid<%d>", typeID)
}

// Add registers fn under name for typeID, failing if the name is already
// bound for that type, mirroring VM.cpp's add_typefn: duplicate
// registration is a programmer error.
func (t *Table) Add(typeID uint64, name string, fn *values.Value, iref bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.types[typeID]
	if !ok {
		f = newFrame()
		t.types[typeID] = f
	}
	if _, exists := f.fns[name]; exists {
		return fmt.Errorf("function %q for type %q already exists", name, t.names[typeID])
	}
	if iref {
		values.Iref(fn)
	}
	f.fns[name] = fn
	return nil
}

// Resolve implements method-lookup precedence:
//  1. attr-based value with the attribute present -> use it
//  2. type_id frame has the name -> use it
//  3. fall back to the "all" frame
//  4. otherwise dispatch fails
func (t *Table) Resolve(v *values.Value, name string) (*values.Value, bool) {
	if v.AttrBased {
		if fn, ok := v.AttrGet(name); ok {
			return fn, true
		}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if f, ok := t.types[v.TypeID]; ok {
		if fn, ok := f.fns[name]; ok {
			return fn, true
		}
	}
	if fn, ok := t.types[values.TypeIDAll].fns[name]; ok {
		return fn, true
	}
	return nil, false
}

// Clone produces a shallow copy sharing every registered function
// value: the new table holds the same function values, but a method added
// to either table after the clone is not visible in the other. A fork's
// teardown does not destroy the shared function values.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := &Table{types: make(map[uint64]*Frame, len(t.types)), names: make(map[uint64]string, len(t.names))}
	for id, f := range t.types {
		nf := newFrame()
		for n, fn := range f.fns {
			nf.fns[n] = fn
		}
		out.types[id] = nf
	}
	for id, n := range t.names {
		out.names[id] = n
	}
	return out
}
