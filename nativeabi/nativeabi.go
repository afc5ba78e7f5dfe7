// Package nativeabi gives native modules a versioned way to describe the
// functions they register, replacing a bare (name, arity, varargs, handler)
// argument list with a struct carrying its own ABI version. A module built
// against an older or newer version than the core expects is rejected at
// registration time instead of producing a confusing signature mismatch
// further down the line once the ABI grows new fields.
package nativeabi

import (
	"fmt"

	"github.com/rnshah9/feral/values"
)

// Version is the native-function descriptor ABI this core implements.
// Bump it whenever FuncDesc's shape changes in a way that would break an
// already-compiled plugin.
const Version = 1

// FuncDesc describes one native function a module wants to register,
// stamped with the ABI version it was built against.
type FuncDesc struct {
	ABIVersion int
	Name       string
	Arity      int
	Variadic   bool
	Handler    values.NativeHandler
}

// Fn builds a FuncDesc stamped with the current ABI version.
func Fn(name string, arity int, variadic bool, handler values.NativeHandler) FuncDesc {
	return FuncDesc{ABIVersion: Version, Name: name, Arity: arity, Variadic: variadic, Handler: handler}
}

// Registrar is the subset of source.Unit a module needs to install
// function descriptors into.
type Registrar interface {
	AddNativeFn(name string, argsCount int, isVA bool, handler values.NativeHandler)
}

// Register installs every descriptor in descs into dst. It checks every
// descriptor's ABI version before registering any of them, so a stale
// plugin fails its whole init rather than registering half its surface.
func Register(dst Registrar, descs ...FuncDesc) error {
	for _, d := range descs {
		if d.ABIVersion != Version {
			return fmt.Errorf("nativeabi: %q built against ABI version %d, core is %d", d.Name, d.ABIVersion, Version)
		}
	}
	for _, d := range descs {
		dst.AddNativeFn(d.Name, d.Arity, d.Variadic, d.Handler)
	}
	return nil
}
