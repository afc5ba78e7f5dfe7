// Package vars implements the scope stack: a stack of lexical frames
// plus a flat module-level binding set, shared by every source unit and
// call frame.
package vars

import (
	"fmt"

	"github.com/rnshah9/feral/values"
)

// Frame is one lexical scope layer: an unordered name->value mapping.
type Frame struct {
	names map[string]*values.Value
}

func newFrame() *Frame {
	return &Frame{names: make(map[string]*values.Value)}
}

// Vars is the stack of frames plus the module-level set. Lookup walks
// the frame stack from top to bottom; a distinguished level 0 holds the
// module-level set.
type Vars struct {
	moduleLevel *Frame
	frames      []*Frame
	// stashed holds values reserved for function-argument handoff at
	// call sites.
	stashed map[string]*values.Value
}

// New builds an empty scope stack with just the module-level frame.
func New() *Vars {
	return &Vars{moduleLevel: newFrame(), stashed: make(map[string]*values.Value)}
}

// Push enters a new lexical block, mirroring the PUSH_BLOCK opcode.
func (v *Vars) Push() {
	v.frames = append(v.frames, newFrame())
}

// Pop leaves the innermost lexical block, mirroring the POP_BLOCK
// opcode, drefing every binding it owned.
func (v *Vars) Pop() {
	n := len(v.frames)
	if n == 0 {
		return
	}
	top := v.frames[n-1]
	for _, val := range top.names {
		values.Dref(val)
	}
	v.frames = v.frames[:n-1]
}

// Depth reports how many block frames are currently pushed (used by
// PUSH_BLOCK/POP_BLOCK's truncation marker).
func (v *Vars) Depth() int { return len(v.frames) }

// TruncateTo pops frames down to the given depth marker, used to unwind
// on BREAK/CONTINUE/RETURN crossing multiple blocks at once.
func (v *Vars) TruncateTo(depth int) {
	for len(v.frames) > depth {
		v.Pop()
	}
}

// Add inserts a binding into the innermost frame, rejecting a name that
// already exists there (let is not a redeclaration).
func (v *Vars) Add(name string, val *values.Value, iref bool) error {
	var f *Frame
	if len(v.frames) == 0 {
		f = v.moduleLevel
	} else {
		f = v.frames[len(v.frames)-1]
	}
	if _, exists := f.names[name]; exists {
		return fmt.Errorf("name already bound in this scope: %s", name)
	}
	if iref {
		values.Iref(val)
	}
	f.names[name] = val
	return nil
}

// AddModuleLevel inserts a binding into the module-level set, surviving
// block exits.
func (v *Vars) AddModuleLevel(name string, val *values.Value, iref bool) error {
	if _, exists := v.moduleLevel.names[name]; exists {
		return fmt.Errorf("name already bound at module level: %s", name)
	}
	if iref {
		values.Iref(val)
	}
	v.moduleLevel.names[name] = val
	return nil
}

// Get searches the frame stack top->bottom, then the module-level set.
func (v *Vars) Get(name string) (*values.Value, bool) {
	for i := len(v.frames) - 1; i >= 0; i-- {
		if val, ok := v.frames[i].names[name]; ok {
			return val, true
		}
	}
	if val, ok := v.moduleLevel.names[name]; ok {
		return val, true
	}
	return nil, false
}

// Exists reports whether name is bound anywhere visible.
func (v *Vars) Exists(name string) bool {
	_, ok := v.Get(name)
	return ok
}

// Stash reserves a value under name for function-argument handoff at
// call sites: the callee's fresh frame picks these up by name when
// binding parameters.
func (v *Vars) Stash(name string, val *values.Value) {
	v.stashed[name] = val
}

// TakeStash removes and returns a previously stashed value.
func (v *Vars) TakeStash(name string) (*values.Value, bool) {
	val, ok := v.stashed[name]
	if ok {
		delete(v.stashed, name)
	}
	return val, ok
}

// ModuleNames lists module-level binding names, used by attribute-based
// dispatch onto an imported source's vars frame (`import "m"; m.g`).
func (v *Vars) ModuleNames() []string {
	names := make([]string, 0, len(v.moduleLevel.names))
	for n := range v.moduleLevel.names {
		names = append(names, n)
	}
	return names
}

// ModuleGet/ModuleExists/ModuleSet expose the module-level frame
// directly, used by source.Unit to implement attribute-based dispatch:
// a src value exposes its module-level bindings as attributes.
func (v *Vars) ModuleGet(name string) (*values.Value, bool) {
	val, ok := v.moduleLevel.names[name]
	return val, ok
}

func (v *Vars) ModuleExists(name string) bool {
	_, ok := v.moduleLevel.names[name]
	return ok
}

func (v *Vars) ModuleSet(name string, val *values.Value, iref bool) {
	if iref {
		values.Iref(val)
	}
	if old, ok := v.moduleLevel.names[name]; ok {
		values.Dref(old)
	}
	v.moduleLevel.names[name] = val
}

// Clone deep-clones this Vars for a thread fork: a thread-local copy
// whose vars are deeply cloned. Every bound value is shallow-copied
// (values.Copy), not shared, so mutation in one VM never leaks to the
// other.
func (v *Vars) Clone(prov values.Provenance) *Vars {
	out := New()
	for name, val := range v.moduleLevel.names {
		out.moduleLevel.names[name] = values.Copy(val, prov)
	}
	for _, f := range v.frames {
		nf := newFrame()
		for name, val := range f.names {
			nf.names[name] = values.Copy(val, prov)
		}
		out.frames = append(out.frames, nf)
	}
	return out
}
