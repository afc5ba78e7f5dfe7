// Package utils implements Feral's built-in "utils" native module: a
// small set of general-purpose helpers (environment access, timing,
// assertions, process exit) loaded alongside modules/core by the
// driver's load-core-modules step. Kept as its own package, rather than
// folded into core, so the two-module split documented for
// load_core_mods stays meaningful even though both reuse the same
// nativeabi registration surface.
package utils

import (
	"os"
	"time"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/nativeabi"
	"github.com/rnshah9/feral/values"
)

// Register installs every utils function into dst.
func Register(dst nativeabi.Registrar) error {
	return nativeabi.Register(dst,
		nativeabi.Fn("env_get", 1, false, fnEnvGet),
		nativeabi.Fn("env_set", 2, false, fnEnvSet),
		nativeabi.Fn("sleep_ms", 1, false, fnSleepMs),
		nativeabi.Fn("time_ms", 0, false, fnTimeMs),
		nativeabi.Fn("assert", 1, true, fnAssert),
		nativeabi.Fn("exit", 1, false, fnExit),
	)
}

func fnEnvGet(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 || fd.Args[0].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "env_get(name) expects a string name")
	}
	name := values.ToStr(fd.Args[0])
	v, ok := os.LookupEnv(name)
	if !ok {
		return values.Nil, nil
	}
	return values.NewStr(v), nil
}

func fnEnvSet(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 2 || fd.Args[0].Variant != values.VStr || fd.Args[1].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "env_set(name, value) expects two strings")
	}
	name, val := values.ToStr(fd.Args[0]), values.ToStr(fd.Args[1])
	if err := os.Setenv(name, val); err != nil {
		return nil, ferrors.Wrap(ferrors.ResourceError, fd.SrcID, fd.Idx, err, "env_set %q", name)
	}
	return values.Nil, nil
}

func intArg(v *values.Value) (int64, bool) {
	n, ok := v.Payload.(interface{ Int64() int64 })
	if !ok {
		return 0, false
	}
	return n.Int64(), true
}

func fnSleepMs(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 || fd.Args[0].Variant != values.VInt {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "sleep_ms(n) expects an int")
	}
	n, _ := intArg(fd.Args[0])
	if n < 0 {
		n = 0
	}
	time.Sleep(time.Duration(n) * time.Millisecond)
	return values.Nil, nil
}

func fnTimeMs(fd *values.FnData) (*values.Value, error) {
	return values.NewInt(time.Now().UnixMilli()), nil
}

// fnAssert raises a failure (message from the optional second argument,
// or a generic one) when the first argument is falsy. Extra varargs
// slots beyond the message are accepted but ignored.
func fnAssert(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) == 0 {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "assert(cond, ...) requires at least one argument")
	}
	if values.ToBool(fd.Args[0]) {
		return values.Nil, nil
	}
	msg := "assertion failed"
	if len(fd.Args) > 1 && fd.Args[1].Variant == values.VStr {
		msg = values.ToStr(fd.Args[1])
	}
	fd.VM.Failf(fd.SrcID, fd.Idx, "%s", msg)
	return nil, nil
}

func fnExit(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 || fd.Args[0].Variant != values.VInt {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "exit(code) expects an int")
	}
	n, _ := intArg(fd.Args[0])
	fd.VM.Exit(int(n))
	return values.Nil, nil
}
