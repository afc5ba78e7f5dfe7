package vm

import (
	"os"

	"github.com/google/uuid"

	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/values"
)

// ThreadCopy implements `thread_copy(src_id, idx)`: produces a new VM
// whose operand stack, fails stack, call frames, and every source
// unit's scope are independent, and which shares the native-library
// handle (Loader) with the original. The type-function table is cloned:
// the fork gets its own table holding the same function values and type
// names, so a method registered on either VM after the fork is not seen
// by the other. The program argument vector is a new vec holding the
// same argument values. Globals are snapshot-copied, not live-synced
// (decided in DESIGN.md): subsequent updates in either VM do not
// propagate to the other.
func (vm *VM) ThreadCopy(srcID, idx uint32) *VM {
	prov := values.Provenance{SrcID: srcID, Idx: idx}

	forked := &VM{
		ID:           uuid.New(),
		Registry:     source.NewRegistry(),
		TypeFns:      vm.TypeFns.Clone(),
		ExecStackMax: vm.ExecStackMax,
		SelfBin:      vm.SelfBin,
		SelfBase:     vm.SelfBase,
		loader:       vm.loader,
		threadCopy:   true,
		Output:       os.Stdout,
	}

	forked.Globals = make(map[string]*values.Value, len(vm.Globals))
	for name, g := range vm.Globals {
		forked.Globals[name] = values.Copy(g, prov)
	}

	forked.SrcArgs = values.Copy(vm.SrcArgs, prov)

	// Each unit's vars are deep-cloned; Instructions/Constants/FnTemplates
	// remain shared read-only with the originating VM's unit.
	for _, u := range vm.Registry.All() {
		forked.Registry.Put(u.ThreadCopy(prov))
	}

	// Mirror the source stack by path so the forked VM resumes executing
	// the same logical units the original had open, each now pointing at
	// its own cloned scope.
	for _, u := range vm.SrcStack {
		if cloned, ok := forked.Registry.Lookup(u.Path); ok {
			forked.PushSrc(cloned)
		}
	}

	return forked
}
