//go:build !linux && !freebsd

package module

import (
	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vm"
)

// loadNative is unavailable on platforms Go's plugin package doesn't
// support (darwin, windows): native-module dynamic-linker loading has
// no portable Go equivalent there.
func (l *Loader) loadNative(vmi *vm.VM, leaf string, srcID, idx uint32) (*values.Value, error) {
	return nil, ferrors.New(ferrors.LoadError, srcID, idx, "native modules are unsupported on this platform")
}
