package module_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/module"
	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vm"
)

func TestResolveRelativeToTopDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.fer"), []byte("x"), 0o644))

	abs, resolvedDir, err := module.Resolve("./util", dir, false, nil)
	require.NoError(t, err)
	require.Equal(t, dir, resolvedDir)
	require.Equal(t, filepath.Join(dir, "util.fer"), abs)
}

func TestResolveSearchPathOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "m.fer"), []byte("x"), 0o644))

	_, resolvedDir, err := module.Resolve("m", "", false, []string{first, second})
	require.NoError(t, err)
	require.Equal(t, second, resolvedDir)
}

func TestResolveNotFound(t *testing.T) {
	_, _, err := module.Resolve("nope", "", false, []string{t.TempDir()})
	require.Error(t, err)
}

// pushTopSrc registers and pushes a stand-in "main" unit onto vmi's
// source stack so relative ("./x") imports have a directory to resolve
// against, matching how a real driver pushes the entry script before
// executing it.
func pushTopSrc(vmi *vm.VM, dir string) {
	top := vmi.Registry.Register(filepath.Join(dir, "main.fer"), dir, "")
	vmi.PushSrc(top)
}

func TestLoaderSharesAlreadyRegisteredUnit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.fer")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	abs, _ := filepath.Abs(path)
	m := vm.New("/bin/feral", dir, nil)
	pushTopSrc(m, dir)
	u := m.Registry.Register(abs, dir, "x")
	u.Instructions = []opcodes.Instruction{{Op: opcodes.OpReturn}}

	l := &module.Loader{SelfBase: dir}
	v, err := l.Load(m, "./shared", 0, 0)
	require.NoError(t, err)
	require.Equal(t, values.VNative, v.Variant)
	require.False(t, v.AttrExists("nonexistent"))
}

func TestLoaderFailsWithoutCompiler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nocompile.fer"), []byte("x"), 0o644))

	m := vm.New("/bin/feral", dir, nil)
	pushTopSrc(m, dir)
	l := &module.Loader{SelfBase: dir}
	_, err := l.Load(m, "./nocompile", 0, 0)
	require.Error(t, err)
}

func TestLoaderRunsScriptOnFirstImportOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "once.fer")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m := vm.New("/bin/feral", dir, nil)
	pushTopSrc(m, dir)
	compileCalls := 0
	l := module.NewLoader(dir, false, func(path, dir, code string) (*module.Compiled, error) {
		compileCalls++
		return &module.Compiled{
			Instructions: []opcodes.Instruction{{Op: opcodes.OpReturn}},
		}, nil
	})

	_, err := l.Load(m, "./once", 0, 0)
	require.NoError(t, err)
	_, err = l.Load(m, "./once", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, compileCalls)
}
