package nativeabi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/nativeabi"
	"github.com/rnshah9/feral/values"
)

type fakeRegistrar struct {
	names []string
}

func (f *fakeRegistrar) AddNativeFn(name string, argsCount int, isVA bool, handler values.NativeHandler) {
	f.names = append(f.names, name)
}

func noopHandler(fd *values.FnData) (*values.Value, error) { return values.Nil, nil }

func TestRegisterInstallsEveryDescriptor(t *testing.T) {
	dst := &fakeRegistrar{}
	err := nativeabi.Register(dst,
		nativeabi.Fn("a", 0, false, noopHandler),
		nativeabi.Fn("b", 1, true, noopHandler),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, dst.names)
}

func TestRegisterRejectsVersionMismatchBeforeRegisteringAny(t *testing.T) {
	dst := &fakeRegistrar{}
	stale := nativeabi.Fn("a", 0, false, noopHandler)
	stale.ABIVersion = nativeabi.Version + 1

	err := nativeabi.Register(dst, nativeabi.Fn("ok", 0, false, noopHandler), stale)
	require.Error(t, err)
	require.Empty(t, dst.names)
}
