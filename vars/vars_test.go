package vars_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vars"
)

func TestAddGetAcrossFrames(t *testing.T) {
	v := vars.New()
	require.NoError(t, v.AddModuleLevel("g", values.NewInt(10), false))

	v.Push()
	require.NoError(t, v.Add("local", values.NewInt(1), false))

	val, ok := v.Get("local")
	require.True(t, ok)
	require.Equal(t, "1", values.ToStr(val))

	val, ok = v.Get("g")
	require.True(t, ok)
	require.Equal(t, "10", values.ToStr(val))

	v.Pop()
	_, ok = v.Get("local")
	require.False(t, ok, "local should not survive its block exit")

	_, ok = v.Get("g")
	require.True(t, ok, "module-level bindings survive block exit")
}

func TestAddRejectsRedeclaration(t *testing.T) {
	v := vars.New()
	require.NoError(t, v.Add("x", values.NewInt(1), false))
	require.Error(t, v.Add("x", values.NewInt(2), false))
}

func TestCallFrameHidesOuterLocals(t *testing.T) {
	// Simulates call entry: a dedicated frame at depth 0 should still see
	// module-level globals but nothing pushed in an outer (non-module)
	// frame before the call — modeled here by truncating to 0 and
	// starting a fresh frame (vm.Call itself gives a callee a brand-new
	// vars.Vars and reaches module-level names through the defining unit).
	v := vars.New()
	require.NoError(t, v.AddModuleLevel("g", values.NewInt(1), false))
	v.Push()
	require.NoError(t, v.Add("outer", values.NewInt(2), false))

	v.TruncateTo(0)
	v.Push()
	_, ok := v.Get("outer")
	require.False(t, ok)
	_, ok = v.Get("g")
	require.True(t, ok)
}

func TestStashRoundTrip(t *testing.T) {
	v := vars.New()
	arg := values.NewStr("x")
	v.Stash("arg0", arg)

	got, ok := v.TakeStash("arg0")
	require.True(t, ok)
	require.Same(t, arg, got)

	_, ok = v.TakeStash("arg0")
	require.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	v := vars.New()
	require.NoError(t, v.AddModuleLevel("g", values.NewInt(5), false))

	clone := v.Clone(values.Provenance{})
	cv, _ := clone.Get("g")
	values.Set(cv, values.NewInt(99))

	orig, _ := v.Get("g")
	require.Equal(t, "5", values.ToStr(orig))
}
