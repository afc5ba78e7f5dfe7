package values_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/values"
)

func TestRefCountLifecycle(t *testing.T) {
	v := values.NewInt(42)
	require.EqualValues(t, 1, values.RefCount(v))

	values.Iref(v)
	require.EqualValues(t, 2, values.RefCount(v))

	values.Dref(v)
	require.EqualValues(t, 1, values.RefCount(v))

	values.Dref(v)
	require.EqualValues(t, 0, values.RefCount(v))
}

func TestVecPushPopRoundTrip(t *testing.T) {
	vec := values.NewVec(nil)
	x := values.NewStr("hello")
	vec.Payload.(*values.Vec).Push(x)

	popped, ok := vec.Payload.(*values.Vec).Pop()
	require.True(t, ok)
	require.Same(t, x, popped)
	require.Equal(t, 0, vec.Payload.(*values.Vec).Len())
}

func TestCopyIsShallowForContainers(t *testing.T) {
	inner := values.NewInt(7)
	outer := values.NewVec([]*values.Value{inner})

	cp := values.Copy(outer, values.Provenance{})
	require.EqualValues(t, 2, values.RefCount(inner), "copy should iref shared elements")

	cpVec := cp.Payload.(*values.Vec)
	require.Same(t, inner, cpVec.Items[0])
}

func TestSetAdoptsPayloadAndInertsSource(t *testing.T) {
	dst := values.NewInt(1)
	src := values.NewStr("adopted")

	require.NoError(t, values.Set(dst, src))
	require.Equal(t, values.VStr, dst.Variant)
	require.Equal(t, "adopted", values.ToStr(dst))

	require.Equal(t, values.VNil, src.Variant)
}

func TestMixedArithWidensToFloat(t *testing.T) {
	i := values.NewInt(3)
	f := values.NewFlt(0.5)

	r, err := values.Arith(values.OpAdd, i, f)
	require.NoError(t, err)
	require.Equal(t, values.VFlt, r.Variant)
	require.Equal(t, "3.5", values.ToStr(r))
}

func TestDivisionByZero(t *testing.T) {
	_, err := values.Arith(values.OpDiv, values.NewInt(1), values.NewInt(0))
	require.Error(t, err)
}

func TestStructAttrDispatchOrder(t *testing.T) {
	s := values.NewStruct("Point", 0, values.Provenance{})
	require.True(t, s.AttrBased)

	x := values.NewInt(10)
	require.NoError(t, s.AttrSet("x", x, false))

	got, ok := s.AttrGet("x")
	require.True(t, ok)
	require.Same(t, x, got)
}

func TestMapInsertionOrderPreserved(t *testing.T) {
	m := values.NewMapPayload()
	m.Set("b", values.NewInt(2))
	m.Set("a", values.NewInt(1))
	m.Set("b", values.NewInt(22))

	require.Equal(t, []string{"b", "a"}, m.Keys())
}

func TestImmutableMutationFails(t *testing.T) {
	n := values.NewInt(1)
	err := n.AttrSet("x", values.NewInt(2), false)
	require.ErrorIs(t, err, values.ErrImmutable)
}
