// Package source implements the source registry and source unit:
// canonical path -> compiled bytecode + module-level vars frame,
// registered once per registry so a second import of the same path
// shares the existing unit.
package source

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vars"
)

// Unit groups everything one loaded source file owns: canonical path,
// numeric id, directory, raw code, compiled bytecode, and a vars frame
// holding module-level bindings.
type Unit struct {
	Path         string
	ID           uint32
	Dir          string
	Code         string
	Instructions []opcodes.Instruction
	Constants    []*values.Value
	// FnTemplates holds the compiled shape (params/defaults/body offset)
	// of every function literal declared in this unit; MAKE_FN
	// instantiates a VFn value by index into this slice.
	FnTemplates []*values.Fn
	Vars        *vars.Vars

	// isThreadCopy marks a unit produced by thread_copy: its
	// Instructions/Constants/Code are shared read-only with the
	// originating VM's unit; only Vars is independent.
	isThreadCopy bool
}

var _ values.AttrBearer = (*Unit)(nil)

// AttrExists/AttrGet/AttrSet implement attribute-based dispatch onto a
// source's module-level bindings, grounded on src/VM/Vars/Src.cpp's
// var_src_t::attr_*, enabling `import "m"; m.g`.
func (u *Unit) AttrExists(name string) bool { return u.Vars.ModuleExists(name) }

func (u *Unit) AttrGet(name string) (*values.Value, bool) { return u.Vars.ModuleGet(name) }

func (u *Unit) AttrSet(name string, v *values.Value, iref bool) { u.Vars.ModuleSet(name, v, iref) }

func (u *Unit) Destroy() {}

// AddNativeFn registers a native function into this unit's module-level
// set, the Go form of `current_source().add_native_fn`, grounded on
// src/VM/Vars/Src.cpp `var_src_t::add_native_fn`.
func (u *Unit) AddNativeFn(name string, argsCount int, isVA bool, handler values.NativeHandler) {
	fn := values.NewNativeFn(name, argsCount, isVA, handler)
	_ = u.Vars.AddModuleLevel(name, fn, false)
}

// AddNativeVar registers a native value into this unit, either scoped to
// the innermost frame or, when moduleLevel is true, surviving block
// exits, the Go form of `add_native_var`.
func (u *Unit) AddNativeVar(name string, val *values.Value, iref bool, moduleLevel bool) {
	if moduleLevel {
		_ = u.Vars.AddModuleLevel(name, val, iref)
		return
	}
	_ = u.Vars.Add(name, val, iref)
}

// ThreadCopy produces an independent unit sharing this unit's compiled
// code/bytecode read-only but with a deep-cloned vars frame.
func (u *Unit) ThreadCopy(prov values.Provenance) *Unit {
	return &Unit{
		Path: u.Path, ID: u.ID, Dir: u.Dir, Code: u.Code,
		Instructions: u.Instructions, Constants: u.Constants,
		FnTemplates: u.FnTemplates,
		Vars:        u.Vars.Clone(prov), isThreadCopy: true,
	}
}

// Registry maps loaded source files -> source unit, keyed by canonical
// path. Each VM, a thread fork included, holds its own Registry: a unit
// is shared by path within one VM, not across VMs.
type Registry struct {
	mu     sync.RWMutex
	units  map[string]*Unit
	nextID uint32
}

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// Lookup returns the already-registered unit for path, if any.
func (r *Registry) Lookup(path string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[path]
	return u, ok
}

// Register records a newly loaded unit, or returns the already-registered
// one if a second caller raced to load the same path first: a second
// instance by the same path shares the same unit.
func (r *Registry) Register(path, dir, code string) *Unit {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.units[path]; ok {
		return u
	}
	id := atomic.AddUint32(&r.nextID, 1)
	u := &Unit{Path: path, ID: id, Dir: dir, Code: code, Vars: vars.New()}
	r.units[path] = u
	return u
}

// Put installs an already-built unit (used by vm.ThreadCopy to populate
// a forked VM's own registry with cloned units sharing the same paths
// as the original; the underlying source unit is shared read-only).
func (r *Registry) Put(u *Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.Path] = u
	if u.ID >= r.nextID {
		r.nextID = u.ID
	}
}

// All returns every registered unit, used by VM teardown to dref module
// state and by thread_copy to clone every known unit up front.
func (r *Registry) All() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}
