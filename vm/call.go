package vm

import (
	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vars"
)

// Call invokes callee with the given positional arguments. For script
// functions, it arranges a fresh frame and returns the instruction offset
// the dispatch loop should jump to; the caller (exec.go) is responsible
// for actually transferring control. For native functions it invokes the
// Go handler immediately and returns its result.
//
// For CALL_MEMBER, the dispatch loop (exec.go) has already prepended the
// receiver to args as the implicit receiver when fn.IsMember.
func (vm *VM) Call(fn *values.Value, args []*values.Value, srcID, idx uint32) (*values.Value, int, error) {
	if !fn.Callable {
		return nil, 0, ferrors.New(ferrors.DispatchError, srcID, idx, "value is not callable")
	}
	f := fn.Payload.(*values.Fn)

	if err := vm.checkArity(f, len(args), srcID, idx); err != nil {
		return nil, 0, err
	}

	if vm.ExecStackCount >= vm.ExecStackMax {
		vm.ExecStackCountExceeded = true
		return nil, 0, ferrors.StackExceeded(srcID, idx, vm.ExecStackCount, vm.ExecStackMax)
	}
	vm.ExecStackCount++

	if f.Kind == values.FnNative {
		defer func() { vm.ExecStackCount-- }()
		fd := &values.FnData{VM: vm, SrcID: srcID, Idx: idx, Args: args}
		res, err := f.Native(fd)
		if err != nil {
			return nil, 0, ferrors.Wrap(ferrors.DispatchError, srcID, idx, err, "native function %q failed", f.NativeName)
		}
		if res == nil {
			// native signaled failure without an error value; surface
			// the fails stack. Relaying it as a raiseUnwind lets the
			// calling bytecode's own innermost PUSH_FAIL region
			// (exec.go catchOrPropagate) catch it exactly like a
			// script-level RAISE would.
			if v, ok := vm.PopFailOr(); ok {
				return nil, 0, &raiseUnwind{val: v, srcID: srcID, idx: idx}
			}
			return nil, 0, ferrors.New(ferrors.DispatchError, srcID, idx, "native function %q returned no value", f.NativeName)
		}
		return res, 0, nil
	}

	calleeVars := vars.New()
	BindArgs(f, args, func(name string, v *values.Value, iref bool) {
		_ = calleeVars.Add(name, v, iref)
	})

	var defining *source.Unit
	if u, ok := vm.Registry.Lookup(f.SrcPath); ok {
		defining = u
	}

	frame := CallFrame{
		ReturnSrcID:  srcID,
		BlockMarker:  0,
		Fn:           f,
		Vars:         calleeVars,
		DefiningUnit: defining,
	}
	vm.Frames = append(vm.Frames, frame)
	return nil, f.BodyIP, nil
}

// checkArity verifies positional argument count, accounting for
// defaults and varargs.
func (vm *VM) checkArity(f *values.Fn, nargs int, srcID, idx uint32) error {
	min := 0
	for _, p := range f.Params {
		if !p.HasDefault {
			min++
		}
	}
	max := len(f.Params)
	if f.VAMarker == values.VAVariadic {
		if nargs < min {
			return ferrors.New(ferrors.DispatchError, srcID, idx,
				"too few arguments: got %d, need at least %d", nargs, min)
		}
		return nil
	}
	if nargs < min || nargs > max {
		return ferrors.New(ferrors.DispatchError, srcID, idx,
			"wrong number of arguments: got %d, expected %d..%d", nargs, min, max)
	}
	return nil
}

// BindArgs arranges arguments into a fresh vars frame for a script call.
// Plain parameters each get an independent values.Copy of the caller's
// argument, so mutating a parameter inside the callee never touches the
// caller's value. The trailing parameter, when marked, is handled
// differently: VAVariadic collects remaining positionals into a fresh
// vec bound to the last parameter, while VAReference binds the caller's
// own *values.Value directly (iref'd, not copied) so a Set(dst, src)
// against it inside the callee is visible to the caller once the call
// returns. A parameter with no matching argument is left unbound;
// defaults are not evaluated.
func BindArgs(f *values.Fn, args []*values.Value, bindFn func(name string, v *values.Value, iref bool)) {
	fixed := len(f.Params)
	isVA := f.VAMarker == values.VAVariadic
	isRef := f.VAMarker == values.VAReference
	if isVA || isRef {
		fixed--
	}
	for i := 0; i < fixed && i < len(f.Params); i++ {
		p := f.Params[i]
		if i < len(args) {
			bindFn(p.Name, values.Copy(args[i], values.Provenance{}), false)
		}
	}
	if (!isVA && !isRef) || fixed < 0 || fixed >= len(f.Params) {
		return
	}
	if isVA {
		rest := []*values.Value{}
		if len(args) > fixed {
			rest = append(rest, args[fixed:]...)
			for _, v := range rest {
				values.Iref(v)
			}
		}
		bindFn(f.Params[fixed].Name, values.NewVec(rest), false)
		return
	}
	if fixed < len(args) {
		bindFn(f.Params[fixed].Name, args[fixed], true)
	}
}

// PopFailOr pops the most recent value off the fails stack and reports
// whether one was there. Call uses it to relay a failure that a native
// function queued through Raise/Failf.
func (vm *VM) PopFailOr() (*values.Value, bool) {
	n := len(vm.Fails)
	if n == 0 {
		return nil, false
	}
	v := vm.Fails[n-1]
	vm.Fails = vm.Fails[:n-1]
	return v, true
}
