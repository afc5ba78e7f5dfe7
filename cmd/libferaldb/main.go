// Command libferaldb builds the "db" native module as a Go plugin.
// Build with:
//
//	go build -buildmode=plugin -o libferaldb.so ./cmd/libferaldb
package main

import (
	"github.com/rnshah9/feral/modules/db"
	"github.com/rnshah9/feral/vm"
)

func Init_db(vmi *vm.VM, srcID, idx uint32) bool {
	u := vmi.CurrentSrc()
	if u == nil {
		return false
	}
	return db.Register(u) == nil
}

func Deinit_db() {}
