package ir

import (
	"fmt"

	"github.com/corewind/xc/internal/container"
)

// Opcode enumerates every instruction kind the IR can represent: a
// closed tagged variant applied to operations. A switch over Opcode in
// the verifier, each transform, and every target's lowering is
// expected to be exhaustive, and adding an opcode here means touching
// every such switch.
type Opcode uint16

const (
	OpcodeInvalid Opcode = iota

	// Constants.
	OpcodeIconst // result = sign/zero-extended Imm, typed by Type.
	OpcodeFconst // result = Imm reinterpreted as the bit pattern of Type.

	// Integer arithmetic. Args[0], Args[1] are the operands.
	OpcodeIadd
	OpcodeIsub
	OpcodeImul
	OpcodeUdiv
	OpcodeSdiv
	OpcodeUrem
	OpcodeSrem
	OpcodeBand
	OpcodeBor
	OpcodeBxor
	OpcodeIshl
	OpcodeUshr
	OpcodeSshr
	OpcodeBnot
	OpcodeIneg

	// binary-with-immediate: Args[0] is the operand, Imm is the
	// constant right-hand side. Used by legalization/strength-reduction
	// to fold a constant operand into the instruction itself.
	OpcodeIaddImm
	OpcodeIshlImm

	// Carry-aware ops used by i128-on-64-bit legalization.
	OpcodeIaddCout // result = Args[0]+Args[1] truncated to the result type; the carry-out is not exposed as a Value.
	OpcodeIaddCin  // result = Args[0]+Args[1]+ (carry-in value in Args[2], 0 or 1).

	// Float arithmetic.
	OpcodeFadd
	OpcodeFsub
	OpcodeFmul
	OpcodeFdiv
	OpcodeFneg
	OpcodeFabs
	OpcodeFma // ternary: Args[0]*Args[1]+Args[2].
	OpcodeFcopysign

	// Comparisons. Cond holds the condition code (see IntCmpCond /
	// FloatCmpCond). Result is always i8 (boolean, 0 or 1).
	OpcodeIcmp
	OpcodeFcmp

	// Conversions (unary, result Type differs from operand type).
	OpcodeSextend
	OpcodeUextend
	OpcodeIreduce
	OpcodeFdemote
	OpcodeFpromote
	OpcodeFcvtToSint
	OpcodeFcvtToUint
	OpcodeFcvtFromSint
	OpcodeFcvtFromUint
	OpcodeBitcast

	// Control flow.
	OpcodeSelect // ternary: Args[0] cond, Args[1] then, Args[2] else.
	OpcodeJump   // Blocks[0] is the target.
	OpcodeBranch // Args[0] is the condition; Blocks[0]=then, Blocks[1]=else.
	OpcodeReturn // Args (via VarArgs) are the returned values.
	OpcodeTrap   // Imm is the trap code.
	OpcodeTrapz  // conditional trap: Args[0] condition, Imm trap code, trap iff zero.
	OpcodeTrapnz // conditional trap: Args[0] condition, Imm trap code, trap iff nonzero.

	// Calls.
	OpcodeCall         // FuncRef in Aux, VarArgs are arguments, result(s) via multi-return.
	OpcodeCallIndirect // Args[0] is the callee address, SignatureID in Aux, VarArgs are arguments.
	OpcodeFuncAddr     // result = address of FuncRef in Aux.
	OpcodeGlobalAddr   // result = address of GlobalValue in Aux.

	// Memory.
	OpcodeLoad       // Args[0] is the address, Imm is a byte offset, AtomicOrder in Cond.
	OpcodeStore      // Args[0] is the address, Args[1] is the stored value, Imm is offset.
	OpcodeStackLoad  // Aux is the StackSlot, Imm is a byte offset within it.
	OpcodeStackStore // Aux is the StackSlot, Args[0] is the stored value, Imm is offset.
	OpcodeFence      // memory fence; Cond holds the AtomicOrder.

	// Vectors.
	OpcodeSplat       // result = Args[0] broadcast to every lane of Type.
	OpcodeShuffle     // binary + Imm encodes a lane-permutation mask.
	OpcodeExtractLane // Args[0] vector, Imm lane index, result is a scalar of Type.
	OpcodeInsertLane  // Args[0] vector, Args[1] scalar, Imm lane index, result is a vector.

	opcodeCount
)

// IntCmpCond is the condition code carried by an OpcodeIcmp instruction.
type IntCmpCond uint8

const (
	IntEq IntCmpCond = iota
	IntNe
	IntSlt
	IntSle
	IntSgt
	IntSge
	IntUlt
	IntUle
	IntUgt
	IntUge
)

// FloatCmpCond is the condition code carried by an OpcodeFcmp instruction.
type FloatCmpCond uint8

const (
	FloatEq FloatCmpCond = iota
	FloatNe
	FloatLt
	FloatLe
	FloatGt
	FloatGe
	FloatOrdered
	FloatUnordered
)

// AtomicOrder is the memory ordering kind carried by atomic loads,
// stores and fences: it influences lowering (fence
// placement, load/store-exclusive loops vs. single-instruction atomics)
// but imposes no concurrency requirement on the compiler itself.
type AtomicOrder uint8

const (
	OrderNotAtomic AtomicOrder = iota
	OrderUnordered
	OrderMonotonic
	OrderAcquire
	OrderRelease
	OrderAcqRel
	OrderSeqCst
)

// BlockCall is a (destination Block, argument list) pair used by jump
// and branch terminators to pass values into a Block's parameters:
// this is the mechanism that plays the role of phi nodes.
type BlockCall struct {
	Block Block
	args  container.VarLenHandle
}

// InstructionData is the flattened representation of every instruction
// variant (nullary, unary, unary-with-immediate, unary-with-trap,
// binary, binary-with-immediate, ternary, int-compare, float-compare,
// load, store, stack-load, stack-store, jump, branch, call,
// call-indirect, shuffle, extract-lane, insert-lane, return). Rather
// than one Go type per variant, fields are shared and reinterpreted
// according to Opcode, generalized so every field listed in a
// variant's doc comment above is addressable without a type switch.
// The opcode is the tag; consumers exhaustively switch on it, the "sum
// type" discipline Go has no native support for.
type InstructionData struct {
	Opcode Opcode
	// Type is the result type, meaningful for any opcode that produces
	// a single result. Multi-result opcodes (OpcodeCall) instead use
	// ResultTypes.
	Type Type
	// Args holds up to three fixed Value operands, used positionally
	// per the variant's doc comment above.
	Args [3]Value
	// VarArgs holds the variable-arity operand list: call/call_indirect
	// arguments, or the values returned by OpcodeReturn.
	VarArgs container.VarLenHandle
	// Imm is the immediate payload: iconst/fconst bit pattern, trap
	// code, memory byte offset, shuffle mask, or lane index, depending
	// on Opcode.
	Imm int64
	// Cond multiplexes IntCmpCond, FloatCmpCond, or AtomicOrder
	// depending on Opcode.
	Cond uint8
	// Aux multiplexes StackSlot, FuncRef, GlobalValue, or SignatureID
	// depending on Opcode.
	Aux uint32
	// ResultTypes holds the result type list for multi-result opcodes
	// (OpcodeCall); unused otherwise.
	ResultTypes []Type
	// Blocks holds jump/branch targets: Blocks[0] for OpcodeJump and
	// the "then" edge of OpcodeBranch, Blocks[1] for the "else" edge.
	Blocks [2]BlockCall
	// Pos is the frontend-assigned source position, used by the
	// verifier and diagnostics.
	Pos SourceOffset
}

// IsTerminator reports whether this instruction must be the last in its
// Block.
func (d *InstructionData) IsTerminator() bool {
	switch d.Opcode {
	case OpcodeJump, OpcodeBranch, OpcodeReturn, OpcodeTrap:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether the instruction must be kept live by
// dead-code elimination regardless of whether its result is used.
func (d *InstructionData) HasSideEffects() bool {
	switch d.Opcode {
	case OpcodeStore, OpcodeStackStore, OpcodeCall, OpcodeCallIndirect,
		OpcodeTrap, OpcodeTrapz, OpcodeTrapnz, OpcodeFence,
		OpcodeReturn, OpcodeJump, OpcodeBranch:
		return true
	case OpcodeLoad:
		// A plain load from unwritten memory would be pure, but the
		// core has no alias analysis strong enough to prove that in
		// general, so conservatively every load is treated as
		// effectful unless the frontend has legalized it to a
		// known-pure form upstream.
		return true
	default:
		return false
	}
}

// IsPure reports whether GVN may hash and dedupe this instruction. This
// is the logical negation of HasSideEffects for every opcode except
// that it additionally excludes opcodes with no result to dedupe on.
func (d *InstructionData) IsPure() bool {
	if d.HasSideEffects() {
		return false
	}
	switch d.Opcode {
	case OpcodeInvalid:
		return false
	default:
		return true
	}
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		if n := opcodeNames[o]; n != "" {
			return n
		}
	}
	return fmt.Sprintf("opcode(%d)", o)
}

var opcodeNames = [...]string{
	OpcodeInvalid:      "invalid",
	OpcodeIconst:       "iconst",
	OpcodeFconst:       "fconst",
	OpcodeIadd:         "iadd",
	OpcodeIsub:         "isub",
	OpcodeImul:         "imul",
	OpcodeUdiv:         "udiv",
	OpcodeSdiv:         "sdiv",
	OpcodeUrem:         "urem",
	OpcodeSrem:         "srem",
	OpcodeBand:         "band",
	OpcodeBor:          "bor",
	OpcodeBxor:         "bxor",
	OpcodeIshl:         "ishl",
	OpcodeUshr:         "ushr",
	OpcodeSshr:         "sshr",
	OpcodeBnot:         "bnot",
	OpcodeIneg:         "ineg",
	OpcodeIaddImm:      "iadd_imm",
	OpcodeIshlImm:      "ishl_imm",
	OpcodeIaddCout:     "iadd_cout",
	OpcodeIaddCin:      "iadd_cin",
	OpcodeFadd:         "fadd",
	OpcodeFsub:         "fsub",
	OpcodeFmul:         "fmul",
	OpcodeFdiv:         "fdiv",
	OpcodeFneg:         "fneg",
	OpcodeFabs:         "fabs",
	OpcodeFma:          "fma",
	OpcodeFcopysign:    "fcopysign",
	OpcodeIcmp:         "icmp",
	OpcodeFcmp:         "fcmp",
	OpcodeSextend:      "sextend",
	OpcodeUextend:      "uextend",
	OpcodeIreduce:      "ireduce",
	OpcodeFdemote:      "fdemote",
	OpcodeFpromote:     "fpromote",
	OpcodeFcvtToSint:   "fcvt_to_sint",
	OpcodeFcvtToUint:   "fcvt_to_uint",
	OpcodeFcvtFromSint: "fcvt_from_sint",
	OpcodeFcvtFromUint: "fcvt_from_uint",
	OpcodeBitcast:      "bitcast",
	OpcodeSelect:       "select",
	OpcodeJump:         "jump",
	OpcodeBranch:       "branch",
	OpcodeReturn:       "return",
	OpcodeTrap:         "trap",
	OpcodeTrapz:        "trapz",
	OpcodeTrapnz:       "trapnz",
	OpcodeCall:         "call",
	OpcodeCallIndirect: "call_indirect",
	OpcodeFuncAddr:     "func_addr",
	OpcodeGlobalAddr:   "global_addr",
	OpcodeLoad:         "load",
	OpcodeStore:        "store",
	OpcodeStackLoad:    "stack_load",
	OpcodeStackStore:   "stack_store",
	OpcodeFence:        "fence",
	OpcodeSplat:        "splat",
	OpcodeShuffle:      "shuffle",
	OpcodeExtractLane:  "extractlane",
	OpcodeInsertLane:   "insertlane",
}
