package typefns_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/typefns"
	"github.com/rnshah9/feral/values"
)

func nativeFn(ret int64) *values.Value {
	return values.NewNativeFn("f", 0, false, func(fd *values.FnData) (*values.Value, error) {
		return values.NewInt(ret), nil
	})
}

func TestResolveFallsBackToAll(t *testing.T) {
	table := typefns.New()
	require.NoError(t, table.Add(values.TypeIDAll, "to_s", nativeFn(1), false))

	v := values.NewInt(5)
	fn, ok := table.Resolve(v, "to_s")
	require.True(t, ok)
	require.NotNil(t, fn)
}

func TestResolveTypeSpecificBeatsAll(t *testing.T) {
	table := typefns.New()
	require.NoError(t, table.Add(values.TypeIDAll, "describe", nativeFn(1), false))
	require.NoError(t, table.Add(values.TypeIDInt, "describe", nativeFn(2), false))

	v := values.NewInt(5)
	fn, ok := table.Resolve(v, "describe")
	require.True(t, ok)
	fd := &values.FnData{}
	r, err := fn.Payload.(*values.Fn).Native(fd)
	require.NoError(t, err)
	require.Equal(t, "2", values.ToStr(r))
}

func TestResolveAttrBeatsTypeID(t *testing.T) {
	table := typefns.New()
	require.NoError(t, table.Add(values.TypeIDAll, "greet", nativeFn(1), false))

	s := values.NewStruct("Greeter", 0, values.Provenance{})
	require.NoError(t, table.Add(s.TypeID, "greet", nativeFn(2), false))
	require.NoError(t, s.AttrSet("greet", nativeFn(42), false))

	fn, ok := table.Resolve(s, "greet")
	require.True(t, ok)
	fd := &values.FnData{}
	r, _ := fn.Payload.(*values.Fn).Native(fd)
	require.Equal(t, "42", values.ToStr(r))
}

func TestResolveFailsWhenAbsentEverywhere(t *testing.T) {
	table := typefns.New()
	_, ok := table.Resolve(values.NewInt(1), "nope")
	require.False(t, ok)
}

func TestAddRejectsDuplicate(t *testing.T) {
	table := typefns.New()
	require.NoError(t, table.Add(values.TypeIDInt, "x", nativeFn(1), false))
	require.Error(t, table.Add(values.TypeIDInt, "x", nativeFn(2), false))
}
