// Package core implements Feral's built-in "core" native module: the
// handful of functions every script gets without an explicit import
// (println, type, len, the push/pop vec helpers, and str_width). Loaded together with
// modules/utils by the driver's load-core-modules step. This package is
// consumed two ways: directly, by a host that links it in statically,
// and as the body of the `libferalcore.so` plugin built from
// cmd/libferalcore.
package core

import (
	"fmt"

	"golang.org/x/text/width"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/nativeabi"
	"github.com/rnshah9/feral/values"
)

// Register installs every core function into dst.
func Register(dst nativeabi.Registrar) error {
	return nativeabi.Register(dst,
		nativeabi.Fn("println", 0, true, fnPrintln),
		nativeabi.Fn("type", 1, false, fnType),
		nativeabi.Fn("len", 1, false, fnLen),
		nativeabi.Fn("push", 2, false, fnPush),
		nativeabi.Fn("pop", 1, false, fnPop),
		nativeabi.Fn("str_width", 1, false, fnStrWidth),
	)
}

func fnPrintln(fd *values.FnData) (*values.Value, error) {
	parts := make([]interface{}, len(fd.Args))
	for i, a := range fd.Args {
		parts[i] = values.ToStr(a)
	}
	fmt.Println(parts...)
	return values.Nil, nil
}

func fnType(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "type() takes exactly one argument")
	}
	return values.NewStr(fd.Args[0].Variant.String()), nil
}

func fnLen(fd *values.FnData) (*values.Value, error) {
	v := fd.Args[0]
	switch v.Variant {
	case values.VStr:
		return values.NewInt(int64(len(values.ToStr(v)))), nil
	case values.VVec:
		vec := v.Payload.(*values.Vec)
		return values.NewInt(int64(vec.Len())), nil
	case values.VMap:
		m := v.Payload.(*values.Map)
		return values.NewInt(int64(m.Len())), nil
	default:
		return nil, ferrors.New(ferrors.DomainError, fd.SrcID, fd.Idx, "len() unsupported for %s", v.Variant)
	}
}

func fnPush(fd *values.FnData) (*values.Value, error) {
	vecVal := fd.Args[0]
	if vecVal.Variant != values.VVec {
		return nil, ferrors.New(ferrors.DomainError, fd.SrcID, fd.Idx, "push() target must be vec")
	}
	vec := vecVal.Payload.(*values.Vec)
	values.Iref(fd.Args[1])
	vec.Push(fd.Args[1])
	return values.Nil, nil
}

func fnPop(fd *values.FnData) (*values.Value, error) {
	vecVal := fd.Args[0]
	if vecVal.Variant != values.VVec {
		return nil, ferrors.New(ferrors.DomainError, fd.SrcID, fd.Idx, "pop() target must be vec")
	}
	vec := vecVal.Payload.(*values.Vec)
	v, ok := vec.Pop()
	if !ok {
		return values.Nil, nil
	}
	return v, nil
}

// fnStrWidth reports the display width of a string (East Asian Wide/
// Fullwidth characters count as 2 columns), distinct from its byte
// length reported by len().
func fnStrWidth(fd *values.FnData) (*values.Value, error) {
	s := values.ToStr(fd.Args[0])
	total := 0
	for _, r := range s {
		p := width.LookupRune(r)
		switch p.Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}
	return values.NewInt(int64(total)), nil
}
