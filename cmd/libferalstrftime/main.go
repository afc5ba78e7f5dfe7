// Command libferalstrftime builds the "strftime" native module as a Go
// plugin. Build with:
//
//	go build -buildmode=plugin -o libferalstrftime.so ./cmd/libferalstrftime
package main

import (
	"github.com/rnshah9/feral/modules/strftime"
	"github.com/rnshah9/feral/vm"
)

func Init_strftime(vmi *vm.VM, srcID, idx uint32) bool {
	u := vmi.CurrentSrc()
	if u == nil {
		return false
	}
	return strftime.Register(u) == nil
}

func Deinit_strftime() {}
