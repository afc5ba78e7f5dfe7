package values

// FnKind distinguishes script-bodied functions from native ones.
type FnKind byte

const (
	FnScript FnKind = iota
	FnNative
)

// VAMarker is the trailing-parameter marker on a function's last
// parameter: none, "." for varargs, or "&" for a reference parameter.
type VAMarker byte

const (
	VANone VAMarker = iota
	VAVariadic
	// VAReference marks a function's last parameter as bound by reference:
	// the callee receives the caller's own *Value rather than a copy, so a
	// Set(dst, src) on it inside the callee is visible to the caller after
	// the call returns. Only the last parameter may carry this marker.
	VAReference
)

// Param is one entry of a function's ordered parameter list, with an
// optional default expressed as a pre-compiled bytecode fragment (opaque
// here — the codegen component owns the instruction encoding). The VM's
// arity check lets a caller omit a parameter that has a default, but the
// VM never evaluates DefaultIP: an omitted parameter is left unbound.
type Param struct {
	Name       string
	HasDefault bool
	DefaultIP  int // instruction offset of the default-value expression, valid when HasDefault
}

// Fn is the payload of a VFn value.
type Fn struct {
	SrcPath    string // canonical path of the defining source; empty for free native functions
	Kind       FnKind
	VAMarker   VAMarker
	Params     []Param
	IsMember   bool // first positional is the implicit receiver
	BodyIP     int  // script body: instruction offset
	Native     NativeHandler
	NativeName string // diagnostic name for native functions
}

// NewScriptFn builds a script function value bound to bodyIP.
func NewScriptFn(srcPath string, params []Param, va VAMarker, isMember bool, bodyIP int, prov Provenance) *Value {
	v := New(VFn, TypeIDFn, &Fn{
		SrcPath: srcPath, Kind: FnScript, VAMarker: va, Params: params,
		IsMember: isMember, BodyIP: bodyIP,
	}, prov)
	v.Callable = true
	return v
}

// NewNativeFn builds a native function value wrapping a Go handler, the
// shape native modules register through add_native_fn.
func NewNativeFn(name string, argsCount int, isVA bool, handler NativeHandler) *Value {
	va := VANone
	if isVA {
		va = VAVariadic
	}
	params := make([]Param, argsCount)
	v := New(VFn, TypeIDFn, &Fn{
		Kind: FnNative, VAMarker: va, Params: params, Native: handler, NativeName: name,
	}, Provenance{})
	v.Callable = true
	return v
}

// FnData is the view native functions receive at call time: the calling
// VM (through the minimal NativeVM surface), the call-site provenance,
// and the argument array (positional 0 is the receiver for member calls).
type FnData struct {
	VM    NativeVM
	SrcID uint32
	Idx   uint32
	Args  []*Value
}

// NativeVM is the minimal set of host services a native function body
// needs. Kept as an interface here, rather than depending on the vm
// package directly, so values has no dependency on vm: the vm package
// implements this interface on its VM type.
type NativeVM interface {
	// Raise queues or prints a user-raised failure value, mirroring
	// vm_state_t::fail(src_id, idx, val, iref).
	Raise(srcID, idx uint32, v *Value, iref bool)
	// Failf raises a formatted diagnostic (vm_state_t::fail varargs form).
	Failf(srcID, idx uint32, format string, args ...interface{})
	// Global looks up a VM-global binding added via gadd.
	Global(name string) (*Value, bool)
	// IsThreadCopy reports whether this VM instance is a thread fork.
	IsThreadCopy() bool
	// Exit records the requested exit code and stops the dispatch loop
	// after the current instruction, mirroring a host's exit() builtin.
	Exit(code int)
}

// NativeHandler is a native function body. Returning (nil, nil) signals
// failure with no value attached; the VM then checks the fails stack and
// either propagates the pending failure or raises a generic one.
type NativeHandler func(fd *FnData) (*Value, error)
