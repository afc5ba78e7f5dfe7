package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rnshah9/feral/opcodes"
	"github.com/rnshah9/feral/values"
	"github.com/rnshah9/feral/vm"
)

// freshUnit registers and pushes a bare top-level unit with the given
// instructions/constants onto m's source stack, mirroring how a driver
// pushes the entry script before calling Exec.
func freshUnit(m *vm.VM, name string, instructions []opcodes.Instruction, constants []*values.Value) {
	u := m.Registry.Register("/virtual/"+name, "/virtual", "")
	u.Instructions = instructions
	u.Constants = constants
	m.PushSrc(u)
}

func TestExecArithmeticPrecedenceBuiltIntoBytecode(t *testing.T) {
	// 1 + 2 * 3 compiled directly as postfix bytecode: push 1, push 2,
	// push 3, MUL, ADD.
	m := vm.New("feral", "/usr/local", nil)
	consts := []*values.Value{values.NewInt(1), values.NewInt(2), values.NewInt(3)}
	freshUnit(m, "arith", []opcodes.Instruction{
		{Op: opcodes.OpLoadConst, A: 0},
		{Op: opcodes.OpLoadConst, A: 1},
		{Op: opcodes.OpLoadConst, A: 2},
		{Op: opcodes.OpMul},
		{Op: opcodes.OpAdd},
	}, consts)

	_, err := m.Exec(0)
	require.NoError(t, err)

	top, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, "7", values.ToStr(top))
}

func TestExecCallsNativeFunction(t *testing.T) {
	m := vm.New("feral", "/usr/local", nil)
	called := false
	fn := values.NewNativeFn("mark", 0, false, func(fd *values.FnData) (*values.Value, error) {
		called = true
		return values.NewInt(42), nil
	})

	u := m.Registry.Register("/virtual/native_call", "/virtual", "")
	require.NoError(t, u.Vars.AddModuleLevel("mark", fn, false))
	u.Instructions = []opcodes.Instruction{
		{Op: opcodes.OpLoadName, Name: "mark"},
		{Op: opcodes.OpCall, A: 0},
	}
	m.PushSrc(u)

	_, err := m.Exec(0)
	require.NoError(t, err)
	require.True(t, called)

	top, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, "42", values.ToStr(top))
}

func TestExecScriptFunctionCallAndReturn(t *testing.T) {
	// fn double(x) { return x + x }
	// double(5)
	m := vm.New("feral", "/usr/local", nil)
	unitPath := "/virtual/script_call"

	body := []opcodes.Instruction{
		{Op: opcodes.OpLoadName, Name: "x"}, // ip 0
		{Op: opcodes.OpLoadName, Name: "x"}, // ip 1
		{Op: opcodes.OpAdd},                 // ip 2
		{Op: opcodes.OpReturn},              // ip 3
	}
	tmpl := values.NewScriptFn(unitPath, []values.Param{{Name: "x"}}, values.VANone, false, 0, values.Provenance{})

	main := []opcodes.Instruction{
		{Op: opcodes.OpMakeFn, A: 0},    // ip 0: push fn
		{Op: opcodes.OpLoadConst, A: 0}, // ip 1: push 5
		{Op: opcodes.OpCall, A: 1},      // ip 2: call with 1 arg
		{Op: opcodes.OpReturn},          // ip 3: stop, leaving the call's result on the operand stack
	}

	u := m.Registry.Register(unitPath, "/virtual", "")
	u.Instructions = body
	u.FnTemplates = []*values.Fn{tmpl.Payload.(*values.Fn)}
	u.Constants = []*values.Value{values.NewInt(5)}
	_ = main

	// The callee body and caller share the same instruction stream in
	// this hand-built test: MAKE_FN/LOAD_CONST/CALL come first, followed
	// by the callee body at offset len(main). BodyIP in the template must
	// point past the caller's own instructions.
	full := append(append([]opcodes.Instruction{}, main...), body...)
	bodyIP := len(main)
	u.Instructions = full
	u.FnTemplates[0].BodyIP = bodyIP

	m.PushSrc(u)
	_, err := m.Exec(0)
	require.NoError(t, err)

	top, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, "10", values.ToStr(top))
}

func TestExecRaiseWithoutFailRegionIsUncaught(t *testing.T) {
	// With no PUSH_FAIL region open, RAISE unwinds all the way out of
	// Exec, which unwinds to the driver and prints the diagnostic,
	// rather than falling through to the next instruction.
	m := vm.New("feral", "/usr/local", nil)
	freshUnit(m, "raise_uncaught", []opcodes.Instruction{
		{Op: opcodes.OpLoadConst, A: 0},
		{Op: opcodes.OpRaise},
		{Op: opcodes.OpLoadConst, A: 1},
	}, []*values.Value{values.NewStr("boom"), values.NewInt(1)})

	_, err := m.Exec(0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestExecPushFailCatchesRaise(t *testing.T) {
	m := vm.New("feral", "/usr/local", nil)
	// PUSH_FAIL catch=4 bound to "e"; LOAD_CONST "boom"; RAISE jumps
	// straight to the catch offset, binding "e" in the current scope and
	// skipping the unreachable instruction at ip 3.
	freshUnit(m, "raise_caught", []opcodes.Instruction{
		{Op: opcodes.OpPushFail, A: 4, Name: "e"},
		{Op: opcodes.OpLoadConst, A: 0},
		{Op: opcodes.OpRaise},
		{Op: opcodes.OpLoadConst, A: 1},
		{Op: opcodes.OpLoadName, Name: "e"},
	}, []*values.Value{values.NewStr("boom"), values.NewInt(99)})

	_, err := m.Exec(0)
	require.NoError(t, err)
	require.Empty(t, m.Fails)

	top, err := m.Pop()
	require.NoError(t, err)
	require.Equal(t, "boom", values.ToStr(top))
}

func TestExecStackExceededOnDeepRecursion(t *testing.T) {
	m := vm.New("feral", "/usr/local", nil)
	m.ExecStackMax = 4
	unitPath := "/virtual/recurse"

	var body []opcodes.Instruction
	body = append(body,
		opcodes.Instruction{Op: opcodes.OpLoadName, Name: "self"},
		opcodes.Instruction{Op: opcodes.OpCall, A: 0},
		opcodes.Instruction{Op: opcodes.OpReturn},
	)
	tmpl := values.NewScriptFn(unitPath, nil, values.VANone, false, 0, values.Provenance{})

	u := m.Registry.Register(unitPath, "/virtual", "")
	u.FnTemplates = []*values.Fn{tmpl.Payload.(*values.Fn)}
	u.Instructions = append([]opcodes.Instruction{
		{Op: opcodes.OpMakeFn, A: 0},
		{Op: opcodes.OpBind, Name: "self"},
		{Op: opcodes.OpLoadName, Name: "self"},
		{Op: opcodes.OpCall, A: 0},
	}, body...)
	u.FnTemplates[0].BodyIP = 4

	m.PushSrc(u)
	_, err := m.Exec(0)
	require.Error(t, err)
}
