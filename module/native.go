//go:build linux || freebsd

package module

import (
	"path/filepath"
	"plugin"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vm"
)

// InitSymbol/DeinitSymbol build the exported Go identifiers a native
// module plugin must define: `init_<name>(vm, src_id, idx) -> bool`,
// with an optional `deinit_<name>() -> void`. Go plugin symbols must
// themselves be exported Go identifiers, so the prefix is capitalized
// while the leaf keeps its case: a module built as `libferalcore.so`
// exports `Init_core`/`Deinit_core`.
func InitSymbol(leaf string) string   { return "Init_" + leaf }
func DeinitSymbol(leaf string) string { return "Deinit_" + leaf }

// InitFunc/DeinitFunc are the concrete signatures plugin.Lookup expects
// to assert a found symbol against.
type InitFunc func(vmi *vm.VM, srcID, idx uint32) bool
type DeinitFunc func()

// loadNative resolves `libferal<leaf>.so` on the native search path,
// dlopens it via Go's plugin package, looks up and invokes Init_<leaf>,
// and records Deinit_<leaf> (if present) for VM teardown.
func (l *Loader) loadNative(vmi *vm.VM, leaf string, srcID, idx uint32) (*values.Value, error) {
	leaf = strings.TrimSuffix(filepath.Base(leaf), nativeExt())

	dir := l.NativeDir
	if dir == "" {
		paths := SearchPaths(l.SelfBase, false, l.ExtraSearchPaths...)
		for _, p := range paths {
			if fileExists(NativePath(p, leaf)) {
				dir = p
				break
			}
		}
		if dir == "" && len(paths) > 0 {
			dir = paths[0]
		}
	}
	path := NativePath(dir, leaf)

	if err := unix.Access(path, unix.X_OK); err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, srcID, idx, err, "native module %q not accessible at %s", leaf, path)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, srcID, idx, err, "opening native module %q", leaf)
	}

	initSym, err := p.Lookup(InitSymbol(leaf))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.LoadError, srcID, idx, err, "native module %q missing %s", leaf, InitSymbol(leaf))
	}
	initFn, ok := initSym.(func(*vm.VM, uint32, uint32) bool)
	if !ok {
		return nil, ferrors.New(ferrors.LoadError, srcID, idx, "native module %q: %s has the wrong signature", leaf, InitSymbol(leaf))
	}

	if ok := initFn(vmi, srcID, idx); !ok {
		return nil, ferrors.New(ferrors.LoadError, srcID, idx, "native module %q: %s returned false", leaf, InitSymbol(leaf))
	}

	if deinitSym, derr := p.Lookup(DeinitSymbol(leaf)); derr == nil {
		if deinitFn, ok := deinitSym.(func()); ok {
			vmi.DeinitFns = append(vmi.DeinitFns, deinitFn)
		}
	}

	return values.Bool(true), nil
}
