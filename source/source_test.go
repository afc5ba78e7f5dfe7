package source_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/values"
)

func TestRegisterSharesUnitByPath(t *testing.T) {
	reg := source.NewRegistry()
	a := reg.Register("/tmp/m.fer", "/tmp", "let g = 1;")
	b := reg.Register("/tmp/m.fer", "/tmp", "let g = 1;")
	require.Same(t, a, b, "second registration of the same path must share the unit")
}

func TestRegisterAssignsMonotonicIDs(t *testing.T) {
	reg := source.NewRegistry()
	a := reg.Register("/tmp/a.fer", "/tmp", "")
	b := reg.Register("/tmp/b.fer", "/tmp", "")
	require.Less(t, a.ID, b.ID)
}

func TestUnitAttrDispatchOntoModuleVars(t *testing.T) {
	reg := source.NewRegistry()
	u := reg.Register("/tmp/m.fer", "/tmp", "")
	require.NoError(t, u.Vars.AddModuleLevel("g", values.NewInt(10), false))

	require.True(t, u.AttrExists("g"))
	v, ok := u.AttrGet("g")
	require.True(t, ok)
	require.Equal(t, "10", values.ToStr(v))
}

func TestAddNativeFnRegistersCallable(t *testing.T) {
	reg := source.NewRegistry()
	u := reg.Register("/tmp/core.fer", "/tmp", "")
	u.AddNativeFn("double", 1, false, func(fd *values.FnData) (*values.Value, error) {
		return values.NewInt(2), nil
	})

	fn, ok := u.Vars.ModuleGet("double")
	require.True(t, ok)
	require.True(t, fn.Callable)
}

func TestThreadCopyClonesVarsIndependently(t *testing.T) {
	reg := source.NewRegistry()
	u := reg.Register("/tmp/m.fer", "/tmp", "")
	require.NoError(t, u.Vars.AddModuleLevel("g", values.NewInt(1), false))

	copy := u.ThreadCopy(values.Provenance{})
	cv, _ := copy.Vars.ModuleGet("g")
	values.Set(cv, values.NewInt(2))

	ov, _ := u.Vars.ModuleGet("g")
	require.Equal(t, "1", values.ToStr(ov))
}
