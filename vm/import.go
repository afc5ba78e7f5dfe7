package vm

import (
	"path/filepath"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/values"
)

// Loader resolves an import expression's module name into a value the
// IMPORT opcode can push, covering both script modules and native
// plugin modules. It is implemented by package module; vm cannot import
// module directly without a cycle (module.Load takes a *vm.VM), so VM
// holds it behind this interface and the driver wires a concrete Loader
// in before running any script (cmd/feral's main, grounded on the
// teacher's compiler bootstrap wiring its own VM before exec).
type Loader interface {
	Load(vm *VM, name string, srcID, idx uint32) (*values.Value, error)
}

// SetLoader installs the Loader (the driver passes package module's
// *module.Loader); the loader is nil only in tests that construct a bare
// VM and never execute IMPORT.
func (vm *VM) SetLoader(l Loader) { vm.loader = l }

// Import implements the IMPORT opcode: resolve name to either an
// already-registered source unit (shared, no re-execution) or a newly
// loaded one (script or native), returning a value an `import`
// expression binds.
func (vm *VM) Import(name string, srcID, idx uint32) (*values.Value, error) {
	if vm.loader == nil {
		return nil, ferrors.New(ferrors.LoadError, srcID, idx, "no module loader configured for import %q", name)
	}
	return vm.loader.Load(vm, name, srcID, idx)
}

// canonicalDir joins rel onto base, returning rel unchanged when it is
// already absolute.
func canonicalDir(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}
