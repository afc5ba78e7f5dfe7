// Package opcodes defines Feral's bytecode instruction set: opcodes are
// named by effect, and instructions are a fixed-width struct of an
// opcode plus up to three operands.
package opcodes

import "fmt"

// Opcode is one instruction in the VM's dispatch table.
type Opcode byte

const (
	OpNop Opcode = iota

	OpLoadConst  // push a literal from the source's constant pool
	OpLoadName   // resolve a name in the active scope and push it
	OpBind       // CREATE_BINDING: pop a value, bind it in the current scope (let)
	OpAssign     // pop value and target, perform dispatch-driven set

	OpPushBlock
	OpPopBlock

	OpJump
	OpJumpTrue
	OpJumpFalse

	OpCall       // invoke callee
	OpCallMember // method call with attribute-dispatched receiver

	OpBuildVec
	OpBuildMap

	OpAttrGet
	OpAttrSet

	OpImport // resolve and load a module; push the resulting src value

	OpMakeFn // construct a function value from a template

	OpReturn

	OpContinue
	OpBreak
	OpPushLoop
	OpPopLoop

	OpRaise
	OpPushFail
	OpPopFail

	// Binary/unary operators the VM dispatches through values.Arith /
	// values.Compare.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	OpPop // discard TOS (used to drop unused expression-statement results)
	OpDup
)

var names = map[Opcode]string{
	OpNop: "NOP", OpLoadConst: "LOAD_CONST", OpLoadName: "LOAD_NAME",
	OpBind: "CREATE_BINDING", OpAssign: "ASSIGN",
	OpPushBlock: "PUSH_BLOCK", OpPopBlock: "POP_BLOCK",
	OpJump: "JUMP", OpJumpTrue: "JUMP_TRUE", OpJumpFalse: "JUMP_FALSE",
	OpCall: "CALL", OpCallMember: "CALL_MEMBER",
	OpBuildVec: "BUILD_VEC", OpBuildMap: "BUILD_MAP",
	OpAttrGet: "ATTR_GET", OpAttrSet: "ATTR_SET",
	OpImport: "IMPORT", OpMakeFn: "MAKE_FN", OpReturn: "RETURN",
	OpContinue: "CONTINUE", OpBreak: "BREAK",
	OpPushLoop: "PUSH_LOOP", OpPopLoop: "POP_LOOP",
	OpRaise: "RAISE", OpPushFail: "PUSH_FAIL", OpPopFail: "POP_FAIL",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD",
	OpNeg: "NEG", OpNot: "NOT",
	OpEq: "EQ", OpNeq: "NEQ", OpLt: "LT", OpLte: "LTE", OpGt: "GT", OpGte: "GTE",
	OpPop: "POP", OpDup: "DUP",
}

func (o Opcode) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("OP<%d>", byte(o))
}

// Instruction is a single bytecode instruction. A/B/C carry
// opcode-specific operands: constant pool indices, name-table indices,
// jump offsets, or argument counts, documented per opcode at each
// construction site since the encoding is intentionally untyped (this
// core does not own the bytecode emitter — compiled units arrive
// pre-encoded from an external front end).
type Instruction struct {
	Op   Opcode
	A, B, C int64
	// Name carries the resolved identifier for name-addressed
	// instructions (LOAD_NAME, CREATE_BINDING, ATTR_GET/SET, IMPORT,
	// CALL_MEMBER), avoiding a second constant-pool indirection for the
	// common case.
	Name string
}
