package vm

import (
	"fmt"

	"github.com/rnshah9/feral/ferrors"
	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vars"
)

// LoopMark is an open loop region, opened by PUSH_LOOP and closed by
// POP_LOOP: the instruction offsets BREAK/CONTINUE jump to, and the
// scope/frame depths a jump must unwind to.
type LoopMark struct {
	ContinueIP int
	BreakIP    int
	BlockDepth int
}

// execState is per-Exec mutable state scoped to one instruction-stream
// traversal (one script's top-level run, or one function body's run).
type execState struct {
	loops []LoopMark
}

// raiseUnwind threads a RAISE up through nested runScriptCall/Call
// invocations until an enclosing PUSH_FAIL region opened at a matching
// call-frame depth claims it (see tryCatchLocal), or it reaches Exec
// uncaught and unwinds all the way to the driver.
type raiseUnwind struct {
	val   *values.Value
	srcID uint32
	idx   uint32
}

func (r *raiseUnwind) Error() string {
	return fmt.Sprintf("error (src %d @ %d): %s", r.srcID, r.idx, values.ToStr(r.val))
}

// Exec runs the instruction stream of the current top-of-source-stack
// unit starting at ip until it falls off the end or ExitCalled is set:
// the VM pushes the unit on the source stack, executes its top-level
// instruction stream, and returns an exit code. It owns no call frame:
// a RETURN reached here ends the run without touching vm.Frames,
// mirroring a script's implicit top-level return.
func (vm *VM) Exec(ip int) (int, error) {
	u := vm.CurrentSrc()
	if u == nil {
		return 0, ferrors.New(ferrors.DispatchError, 0, 0, "exec: no current source")
	}
	return vm.run(u, ip, false)
}

// runScriptCall executes a just-pushed call frame's body to completion
// in its defining unit, popping that frame and decrementing the
// recursion counter exactly once regardless of how the body finishes -
// an explicit RETURN, falling off the body's end, or an uncaught raise
// unwinding through it. Control returns to the instruction right after
// CALL once this finishes successfully.
func (vm *VM) runScriptCall(bodyIP int) (*values.Value, error) {
	n := len(vm.Frames)
	if n == 0 {
		return nil, ferrors.New(ferrors.DispatchError, 0, 0, "runScriptCall: no active call frame")
	}
	frame := vm.Frames[n-1]
	u := frame.DefiningUnit
	if u == nil {
		return nil, ferrors.New(ferrors.DispatchError, 0, 0, "runScriptCall: function has no defining unit")
	}
	defer func() {
		if m := len(vm.Frames); m > 0 {
			vm.Frames = vm.Frames[:m-1]
		}
		vm.ExecStackCount--
	}()
	if _, err := vm.run(u, bodyIP, true); err != nil {
		return nil, err
	}
	return vm.Pop()
}

// catchOrPropagate checks whether err is a raise that the innermost open
// fail region, opened at u's current call-frame depth, can catch. When
// it can, tryCatchLocal binds the raised value under the region's name
// and execution resumes at the region's catch offset; the value is not
// pushed onto vm.Fails. ok reports whether it was caught locally; when
// false the caller should return err from run() to keep propagating the
// unwind outward.
func (vm *VM) catchOrPropagate(u *source.Unit, err error) (catchIP int, ok bool) {
	ru, isRaise := err.(*raiseUnwind)
	if !isRaise {
		return 0, false
	}
	return vm.tryCatchLocal(u, ru.val)
}

// tryCatchLocal claims the innermost FailRegion if it was opened at the
// exact call-frame depth currently active - i.e. within the same
// function activation doing the raising, not an ancestor still
// unwinding through intervening calls. On a match it truncates the
// scope stack back to the region's depth, binds the caught value under
// the region's name (if any), and reports the catch offset to resume at.
func (vm *VM) tryCatchLocal(u *source.Unit, v *values.Value) (int, bool) {
	n := len(vm.FailRegions)
	if n == 0 {
		return 0, false
	}
	region := vm.FailRegions[n-1]
	if region.FrameDepth != len(vm.Frames) {
		return 0, false
	}
	vm.FailRegions = vm.FailRegions[:n-1]
	vm.currentVars(u).TruncateTo(region.BlockDepth)
	if region.BoundName != "" {
		_ = vm.currentVars(u).Add(region.BoundName, v, false)
	} else {
		values.Dref(v)
	}
	return region.CatchIP, true
}

// run is the instruction dispatch loop shared by Exec and runScriptCall.
// When isCall is true, this invocation is executing a function body on
// behalf of the call frame Call() just pushed: falling off the body's
// end without an explicit RETURN leaves an implicit nil result on the
// operand stack for runScriptCall to pop.
func (vm *VM) run(u *source.Unit, ip int, isCall bool) (int, error) {
	st := &execState{}

	for ip < len(u.Instructions) {
		if vm.ExitCalled {
			return vm.ExitCode, nil
		}
		inst := u.Instructions[ip]
		next := ip + 1

		switch inst.Op {
		case opcodes.OpNop:

		case opcodes.OpLoadConst:
			vm.Push(values.Copy(u.Constants[inst.A], values.Provenance{SrcID: u.ID, Idx: uint32(ip)}))

		case opcodes.OpLoadName:
			v, ok := vm.resolveName(u, inst.Name)
			if !ok {
				return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "unknown name: %s", inst.Name)
			}
			values.Iref(v)
			vm.Push(v)

		case opcodes.OpBind:
			val, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			if err := vm.currentVars(u).Add(inst.Name, val, false); err != nil {
				return 0, ferrors.Wrap(ferrors.DispatchError, u.ID, uint32(ip), err, "bind failed")
			}

		case opcodes.OpAssign:
			rhs, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			target, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			if err := values.Set(target, rhs); err != nil {
				return 0, ferrors.Wrap(ferrors.DispatchError, u.ID, uint32(ip), err, "assign failed")
			}
			values.Dref(rhs)
			values.Dref(target)

		case opcodes.OpPushBlock:
			vm.currentVars(u).Push()

		case opcodes.OpPopBlock:
			vm.currentVars(u).Pop()

		case opcodes.OpPushLoop:
			st.loops = append(st.loops, LoopMark{
				ContinueIP: int(inst.A), BreakIP: int(inst.B),
				BlockDepth: vm.currentVars(u).Depth(),
			})

		case opcodes.OpPopLoop:
			if n := len(st.loops); n > 0 {
				st.loops = st.loops[:n-1]
			}

		case opcodes.OpContinue:
			if len(st.loops) == 0 {
				return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "continue outside loop")
			}
			lm := st.loops[len(st.loops)-1]
			vm.currentVars(u).TruncateTo(lm.BlockDepth)
			next = lm.ContinueIP

		case opcodes.OpBreak:
			if len(st.loops) == 0 {
				return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "break outside loop")
			}
			lm := st.loops[len(st.loops)-1]
			vm.currentVars(u).TruncateTo(lm.BlockDepth)
			st.loops = st.loops[:len(st.loops)-1]
			next = lm.BreakIP

		case opcodes.OpJump:
			next = int(inst.A)

		case opcodes.OpJumpTrue:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			cond := values.ToBool(v)
			values.Dref(v)
			if cond {
				next = int(inst.A)
			}

		case opcodes.OpJumpFalse:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			cond := values.ToBool(v)
			values.Dref(v)
			if !cond {
				next = int(inst.A)
			}

		case opcodes.OpBuildVec:
			n := int(inst.A)
			items := make([]*values.Value, n)
			for i := n - 1; i >= 0; i-- {
				v, err := vm.Pop()
				if err != nil {
					return 0, err
				}
				items[i] = v
			}
			vm.Push(values.NewVec(items))

		case opcodes.OpBuildMap:
			n := int(inst.A)
			m := values.NewMapPayload()
			for i := 0; i < n; i++ {
				val, err := vm.Pop()
				if err != nil {
					return 0, err
				}
				key, err := vm.Pop()
				if err != nil {
					return 0, err
				}
				m.Set(values.ToStr(key), val)
				values.Dref(key)
			}
			vm.Push(values.NewMap(m))

		case opcodes.OpAttrGet:
			recv, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			v, ok := recv.AttrGet(inst.Name)
			if !ok {
				return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "no such attribute: %s", inst.Name)
			}
			values.Iref(v)
			vm.Push(v)
			values.Dref(recv)

		case opcodes.OpAttrSet:
			val, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			recv, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			if err := recv.AttrSet(inst.Name, val, false); err != nil {
				return 0, ferrors.Wrap(ferrors.DispatchError, u.ID, uint32(ip), err, "attr set failed")
			}
			values.Dref(recv)

		case opcodes.OpMakeFn:
			tmpl := u.FnTemplates[inst.A]
			fv := values.New(values.VFn, values.TypeIDFn, tmpl, values.Provenance{SrcID: u.ID, Idx: uint32(ip)})
			fv.Callable = true
			vm.Push(fv)

		case opcodes.OpCall:
			n := int(inst.A)
			args := make([]*values.Value, n)
			for i := n - 1; i >= 0; i-- {
				v, err := vm.Pop()
				if err != nil {
					return 0, err
				}
				args[i] = v
			}
			callee, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			res, bodyIP, callErr := vm.Call(callee, args, u.ID, uint32(ip))
			values.Dref(callee)
			if callErr != nil {
				if catchIP, ok := vm.catchOrPropagate(u, callErr); ok {
					next = catchIP
				} else {
					return 0, callErr
				}
			} else if res != nil {
				vm.Push(res)
			} else {
				ret, rerr := vm.runScriptCall(bodyIP)
				if rerr != nil {
					if catchIP, ok := vm.catchOrPropagate(u, rerr); ok {
						next = catchIP
					} else {
						return 0, rerr
					}
				} else {
					vm.Push(ret)
				}
			}

		case opcodes.OpCallMember:
			n := int(inst.A)
			args := make([]*values.Value, n)
			for i := n - 1; i >= 0; i-- {
				v, err := vm.Pop()
				if err != nil {
					return 0, err
				}
				args[i] = v
			}
			recv, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			fn, ok := vm.TypeFns.Resolve(recv, inst.Name)
			if !ok {
				values.Dref(recv)
				return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "unknown method: %s", inst.Name)
			}
			f := fn.Payload.(*values.Fn)
			callArgs := args
			if f.IsMember {
				callArgs = append([]*values.Value{recv}, args...)
			} else {
				values.Dref(recv)
			}
			res, bodyIP, callErr := vm.Call(fn, callArgs, u.ID, uint32(ip))
			if callErr != nil {
				if catchIP, ok := vm.catchOrPropagate(u, callErr); ok {
					next = catchIP
				} else {
					return 0, callErr
				}
			} else if res != nil {
				vm.Push(res)
			} else {
				ret, rerr := vm.runScriptCall(bodyIP)
				if rerr != nil {
					if catchIP, ok := vm.catchOrPropagate(u, rerr); ok {
						next = catchIP
					} else {
						return 0, rerr
					}
				} else {
					vm.Push(ret)
				}
			}

		case opcodes.OpReturn:
			var ret *values.Value
			if len(vm.Stack) > 0 {
				ret, _ = vm.Pop()
			}
			if ret == nil {
				ret = values.Nil
				values.Iref(ret)
			}
			vm.Push(ret)
			return 0, nil

		case opcodes.OpImport:
			v, err := vm.Import(inst.Name, u.ID, uint32(ip))
			if err != nil {
				return 0, err
			}
			vm.Push(v)

		case opcodes.OpRaise:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			if catchIP, ok := vm.tryCatchLocal(u, v); ok {
				next = catchIP
			} else {
				return 0, &raiseUnwind{val: v, srcID: u.ID, idx: uint32(ip)}
			}

		case opcodes.OpPushFail:
			vm.FailRegions = append(vm.FailRegions, FailRegion{
				CatchIP: int(inst.A), BoundName: inst.Name,
				FrameDepth: len(vm.Frames), BlockDepth: vm.currentVars(u).Depth(),
			})

		case opcodes.OpPopFail:
			if n := len(vm.FailRegions); n > 0 {
				vm.FailRegions = vm.FailRegions[:n-1]
			}

		case opcodes.OpAdd, opcodes.OpSub, opcodes.OpMul, opcodes.OpDiv, opcodes.OpMod:
			if err := vm.execArith(inst, u, ip); err != nil {
				return 0, err
			}

		case opcodes.OpNeg:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			r, err := values.Arith(values.OpSub, values.NewInt(0), v)
			values.Dref(v)
			if err != nil {
				return 0, ferrors.Wrap(ferrors.DomainError, u.ID, uint32(ip), err, "negation failed")
			}
			vm.Push(r)

		case opcodes.OpNot:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			r := values.Bool(!values.ToBool(v))
			values.Dref(v)
			vm.Push(r)

		case opcodes.OpEq, opcodes.OpNeq:
			b, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			a, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			eq := values.Equal(a, b)
			if inst.Op == opcodes.OpNeq {
				eq = !eq
			}
			values.Dref(a)
			values.Dref(b)
			vm.Push(values.Bool(eq))

		case opcodes.OpLt, opcodes.OpLte, opcodes.OpGt, opcodes.OpGte:
			if err := vm.execCompare(inst, u, ip); err != nil {
				return 0, err
			}

		case opcodes.OpPop:
			v, err := vm.Pop()
			if err != nil {
				return 0, err
			}
			values.Dref(v)

		case opcodes.OpDup:
			v, err := vm.Top()
			if err != nil {
				return 0, err
			}
			values.Iref(v)
			vm.Push(v)

		default:
			return 0, ferrors.New(ferrors.DispatchError, u.ID, uint32(ip), "unhandled opcode: %s", inst.Op)
		}

		ip = next
	}

	// Fell off the end of the instruction stream without an explicit
	// RETURN: a function body implicitly returns nil; a top-level
	// script simply finishes.
	if isCall {
		values.Iref(values.Nil)
		vm.Push(values.Nil)
	}
	return 0, nil
}

func (vm *VM) execArith(inst opcodes.Instruction, u *source.Unit, ip int) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	var op values.BinOp
	switch inst.Op {
	case opcodes.OpAdd:
		op = values.OpAdd
	case opcodes.OpSub:
		op = values.OpSub
	case opcodes.OpMul:
		op = values.OpMul
	case opcodes.OpDiv:
		op = values.OpDiv
	case opcodes.OpMod:
		op = values.OpMod
	}
	r, err := values.Arith(op, a, b)
	values.Dref(a)
	values.Dref(b)
	if err != nil {
		return ferrors.Wrap(ferrors.DomainError, u.ID, uint32(ip), err, "arithmetic failed")
	}
	vm.Push(r)
	return nil
}

func (vm *VM) execCompare(inst opcodes.Instruction, u *source.Unit, ip int) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	c, err := values.Compare(a, b)
	values.Dref(a)
	values.Dref(b)
	if err != nil {
		return ferrors.Wrap(ferrors.DomainError, u.ID, uint32(ip), err, "comparison failed")
	}
	var result bool
	switch inst.Op {
	case opcodes.OpLt:
		result = c < 0
	case opcodes.OpLte:
		result = c <= 0
	case opcodes.OpGt:
		result = c > 0
	case opcodes.OpGte:
		result = c >= 0
	}
	vm.Push(values.Bool(result))
	return nil
}

// currentVars returns the scope stack that LOAD_NAME/CREATE_BINDING/
// PUSH_BLOCK/POP_BLOCK should act on: the innermost call frame's own
// vars if a call is active, otherwise the current source unit's vars.
func (vm *VM) currentVars(u *source.Unit) *vars.Vars {
	if n := len(vm.Frames); n > 0 {
		return vm.Frames[n-1].Vars
	}
	return u.Vars
}

// resolveName implements name lookup: call-local frames first, then
// (inside a call) the defining source's module-level set, then VM
// globals.
func (vm *VM) resolveName(u *source.Unit, name string) (*values.Value, bool) {
	cv := vm.currentVars(u)
	if v, ok := cv.Get(name); ok {
		return v, true
	}
	if n := len(vm.Frames); n > 0 {
		if du := vm.Frames[n-1].DefiningUnit; du != nil {
			if v, ok := du.Vars.ModuleGet(name); ok {
				return v, true
			}
		}
	}
	return vm.Global(name)
}
