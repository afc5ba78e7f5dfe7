// Package vm implements Feral's stack-based bytecode virtual machine:
// the operand stack, the source stack, the call-frame stack, the fails
// stack, and the instruction dispatch loop. Shaped after an
// ExecutionContext/CallFrame/Exception split and the original C++
// vm_state_t (src/VM/VM.cpp), generalized from PHP's concrete semantics
// to Feral's ref-counted, attribute-dispatched value model.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/source"
	"github.com/rnshah9/feral/typefns"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vars"
)

// ExecStackMaxDefault bounds runaway recursion; overridable via config.
const ExecStackMaxDefault = 2048

// CallFrame is one entry of the call-frame stack: the return address, a
// block-depth marker truncating the scope stack on return, a loops
// marker for break/continue, and the callee's own vars.
type CallFrame struct {
	ReturnIP    int
	ReturnSrcID uint32
	BlockMarker int
	LoopMarker  int
	Fn          *values.Fn

	// Vars is the callee's own scope stack: call entry pushes a
	// dedicated function frame that hides outer frames.
	Vars *vars.Vars
	// DefiningUnit is the source that declared Fn, consulted for
	// module-level name fallback (globals and module-level names
	// remain visible to a call even across source boundaries).
	DefiningUnit *source.Unit
}

// FailRegion is an open PUSH_FAIL catch region.
type FailRegion struct {
	CatchIP    int
	BoundName  string
	FrameDepth int
	BlockDepth int
}

// VM is one Feral virtual machine instance. A VM produced by ThreadCopy
// shares its Loader with the original; TypeFns (with its type names) and
// SrcArgs are copies holding the same function and argument values, and
// every other field below is independent.
type VM struct {
	ID uuid.UUID

	Stack []*values.Value

	SrcStack []*source.Unit
	Registry *source.Registry

	Frames []CallFrame
	Fails  []*values.Value
	FailRegions []FailRegion

	Globals map[string]*values.Value
	TypeFns *typefns.Table

	ExitCalled bool
	ExitCode   int

	ExecStackCount        int
	ExecStackMax          int
	ExecStackCountExceeded bool

	SelfBin  string
	SelfBase string
	SrcArgs  *values.Value

	threadCopy bool

	// loader resolves IMPORT opcodes; set via SetLoader by package module
	// before the driver runs any script (see import.go).
	loader Loader

	Output io.Writer

	// DeinitFns holds native-module deinit callbacks to run at teardown.
	// An optional deinit_<leaf> symbol is recorded here for invocation at
	// VM teardown. Populated by the module package's native loader
	// (module/native.go), which appends to it directly since module owns
	// the plugin loading.
	DeinitFns []func()
}

// New constructs a fresh, non-thread-copy VM: self-binary path, base
// path, and script arguments, matching what a driver's entry point has
// on hand before it loads anything.
func New(selfBin, selfBase string, args []string) *VM {
	argVals := make([]*values.Value, len(args))
	for i, a := range args {
		argVals[i] = values.NewStr(a)
	}
	vm := &VM{
		ID:            uuid.New(),
		Registry:      source.NewRegistry(),
		Globals:       make(map[string]*values.Value),
		TypeFns:       typefns.New(),
		ExecStackMax:  ExecStackMaxDefault,
		SelfBin:       selfBin,
		SelfBase:      selfBase,
		SrcArgs:       values.NewVec(argVals),
		Output:        os.Stdout,
	}
	registerBuiltinTypeNames(vm.TypeFns)
	return vm
}

func registerBuiltinTypeNames(t *typefns.Table) {
	t.SetTypeName(values.TypeIDNil, "nil")
	t.SetTypeName(values.TypeIDBool, "bool")
	t.SetTypeName(values.TypeIDInt, "int")
	t.SetTypeName(values.TypeIDFlt, "flt")
	t.SetTypeName(values.TypeIDStr, "str")
	t.SetTypeName(values.TypeIDVec, "vec")
	t.SetTypeName(values.TypeIDMap, "map")
	t.SetTypeName(values.TypeIDStruct, "struct")
	t.SetTypeName(values.TypeIDFn, "fn")
	t.SetTypeName(values.TypeIDAll, "all")
}

// --- operand stack ---------------------------------------------------

func (vm *VM) Push(v *values.Value) { vm.Stack = append(vm.Stack, v) }

func (vm *VM) Pop() (*values.Value, error) {
	n := len(vm.Stack)
	if n == 0 {
		return nil, fmt.Errorf("operand stack underflow")
	}
	v := vm.Stack[n-1]
	vm.Stack = vm.Stack[:n-1]
	return v, nil
}

func (vm *VM) Top() (*values.Value, error) {
	n := len(vm.Stack)
	if n == 0 {
		return nil, fmt.Errorf("operand stack underflow")
	}
	return vm.Stack[n-1], nil
}

// --- source stack ------------------------------------------------------

// PushSrc pushes a unit already present in the registry onto the source
// stack, taking a strong reference to its var_src wrapper is not modeled
// separately here: Feral represents "current source" purely via
// SrcStack, and the src *value* (for `import` expressions) is built
// separately by the module loader from the same Unit.
func (vm *VM) PushSrc(u *source.Unit) {
	vm.SrcStack = append(vm.SrcStack, u)
}

func (vm *VM) PopSrc() {
	n := len(vm.SrcStack)
	if n == 0 {
		return
	}
	vm.SrcStack = vm.SrcStack[:n-1]
}

func (vm *VM) CurrentSrc() *source.Unit {
	n := len(vm.SrcStack)
	if n == 0 {
		return nil
	}
	return vm.SrcStack[n-1]
}

// --- globals (gadd/gget) ------------------------------------------------

func (vm *VM) GAdd(name string, val *values.Value, iref bool) {
	if _, exists := vm.Globals[name]; exists {
		return
	}
	if iref {
		values.Iref(val)
	}
	vm.Globals[name] = val
}

func (vm *VM) Global(name string) (*values.Value, bool) {
	v, ok := vm.Globals[name]
	return v, ok
}

// --- native ABI: values.NativeVM ---------------------------------------

var _ values.NativeVM = (*VM)(nil)

// Raise implements values.NativeVM, mirroring VM.cpp's fail(src_id, idx,
// val, iref): short-circuits to an immediate print when no PUSH_FAIL
// region is open or once ExitCalled, otherwise queues onto the fails
// stack for the innermost open PUSH_FAIL region.
func (vm *VM) Raise(srcID, idx uint32, v *values.Value, iref bool) {
	if iref {
		values.Iref(v)
	}
	if len(vm.FailRegions) == 0 || vm.ExitCalled {
		vm.printFail(srcID, idx, values.ToStr(v))
		values.Dref(v)
		return
	}
	vm.Fails = append(vm.Fails, v)
}

// Failf implements values.NativeVM (VM.cpp varargs fail()).
func (vm *VM) Failf(srcID, idx uint32, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if len(vm.FailRegions) == 0 || vm.ExitCalled {
		vm.printFail(srcID, idx, msg)
		return
	}
	vm.Fails = append(vm.Fails, values.NewStr(msg))
}

func (vm *VM) printFail(srcID, idx uint32, msg string) {
	fmt.Fprintf(vm.errWriter(), "error (src %d @ %d): %s\n", srcID, idx, msg)
}

func (vm *VM) errWriter() io.Writer {
	return os.Stderr
}

// IsThreadCopy implements values.NativeVM.
func (vm *VM) IsThreadCopy() bool { return vm.threadCopy }

// Exit implements values.NativeVM: records the requested code and marks
// ExitCalled so the dispatch loop in exec.go stops after the current
// instruction and every enclosing Exec/runScriptCall frame unwinds
// carrying this code back to the driver.
func (vm *VM) Exit(code int) {
	vm.ExitCalled = true
	vm.ExitCode = code
}

// Teardown releases VM-owned singletons and runs native-module deinit
// hooks. Source units live until VM teardown, so Dref on Globals/SrcArgs
// here is what finally releases them.
func (vm *VM) Teardown() {
	for _, g := range vm.Globals {
		values.Dref(g)
	}
	if !vm.threadCopy {
		for _, fn := range vm.DeinitFns {
			fn()
		}
	}
	values.Dref(vm.SrcArgs)
}

// opcodes is imported for the Instruction type used by the exec loop in
// exec.go; referenced here only to keep goimports from dropping it when
// this file is read in isolation by tooling.
var _ = opcodes.OpNop
