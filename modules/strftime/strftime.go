// Package strftime implements Feral's "strftime" native module: a
// pair of time-formatting helpers demonstrating a second loadable
// native module besides core/db, built on ncruces/go-strftime.
package strftime

import (
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/nativeabi"
	"github.com/rnshah9/feral/values"
)

// Register installs strftime_format/strftime_now into dst.
func Register(dst nativeabi.Registrar) error {
	return nativeabi.Register(dst,
		nativeabi.Fn("strftime_format", 2, false, fnFormat),
		nativeabi.Fn("strftime_now", 1, false, fnNow),
	)
}

func fnFormat(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 2 || fd.Args[0].Variant != values.VStr || fd.Args[1].Variant != values.VInt {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "strftime_format(layout, unix_seconds) expects (str, int)")
	}
	layout := values.ToStr(fd.Args[0])
	sec := fd.Args[1].Payload.(interface{ Int64() int64 })
	t := time.Unix(sec.Int64(), 0).UTC()
	out, err := strftime.Format(layout, t)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DomainError, fd.SrcID, fd.Idx, err, "strftime_format %q", layout)
	}
	return values.NewStr(out), nil
}

func fnNow(fd *values.FnData) (*values.Value, error) {
	if len(fd.Args) != 1 || fd.Args[0].Variant != values.VStr {
		return nil, ferrors.New(ferrors.DispatchError, fd.SrcID, fd.Idx, "strftime_now(layout) expects a string layout")
	}
	layout := values.ToStr(fd.Args[0])
	out, err := strftime.Format(layout, time.Now().UTC())
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DomainError, fd.SrcID, fd.Idx, err, "strftime_now %q", layout)
	}
	return values.NewStr(out), nil
}
