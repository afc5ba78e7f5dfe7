// Command libferalcore builds the "core" native module as a Go plugin
// exporting Init_core(vm, src_id, idx) -> bool. Build with:
//
//	go build -buildmode=plugin -o libferalcore.so ./cmd/libferalcore
package main

import (
	"github.com/rnshah9/feral/modules/core"
	"github.com/rnshah9/feral/vm"
)

// Init_core is looked up by name (module.InitSymbol("core")) after the
// plugin is opened, and invoked with the importing VM, source id and
// instruction index.
func Init_core(vmi *vm.VM, srcID, idx uint32) bool {
	u := vmi.CurrentSrc()
	if u == nil {
		return false
	}
	return core.Register(u) == nil
}

// Deinit_core has nothing to release; core registers no OS resources.
func Deinit_core() {}
