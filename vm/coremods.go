package vm

import (
	"github.com/rnshah9/feral/modules/core"
	"github.com/rnshah9/feral/modules/utils"
	"github.com/rnshah9/feral/source"
)

// LoadCoreMods installs the two modules every source unit gets without
// an explicit import: core (println, type, len, push/pop, str_width) and
// utils (general-purpose helpers: env access, timing, assert, exit).
// The driver calls this once per loaded unit instead of registering
// each module ad hoc at every entry point.
func (vm *VM) LoadCoreMods(u *source.Unit) error {
	if err := core.Register(u); err != nil {
		return err
	}
	return utils.Register(u)
}
