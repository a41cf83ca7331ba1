package ir

import (
	"fmt"

	"github.com/corewind/xc/internal/xerrors"
)

// Builder appends instructions and blocks to a Function while
// maintaining its structural invariants. It is the
// only exported way to construct or mutate an ir.Function from outside
// this package; transforms in package transform mutate Functions
// directly because they run after construction and operate on
// already-built IR.
type Builder struct {
	f   *Function
	cur Block
	pos SourceOffset
}

// NewBuilder returns a Builder appending to f.
func NewBuilder(f *Function) *Builder {
	return &Builder{f: f, cur: BlockInvalid, pos: SourceOffsetUnknown}
}

// SetSourceOffset sets the position attached to every instruction
// emitted from this call onward, until changed again.
func (b *Builder) SetSourceOffset(pos SourceOffset) { b.pos = pos }

// CreateBlock allocates a new Block. The block is not part of the
// layout (and cannot be branched to, jumped to, or inserted into) until
// AppendBlock is called.
func (b *Builder) CreateBlock() Block {
	return b.f.dfg.allocBlock()
}

// AppendBlock appends blk to the end of the function's block order. The
// first block ever appended becomes the entry block: it must have no predecessors and its parameters must
// match the function signature, which the caller establishes by calling
// AppendBlockParam once per signature parameter before branching to it.
func (b *Builder) AppendBlock(blk Block) {
	b.f.layout.AppendBlock(blk)
	if b.f.entry == BlockInvalid {
		b.f.setEntryBlock(blk)
	}
}

// SetInsertionBlock moves the insertion cursor to blk. Subsequent Emit*
// calls append to the tail of blk.
func (b *Builder) SetInsertionBlock(blk Block) { b.cur = blk }

// CurrentBlock returns the block the cursor currently points at.
func (b *Builder) CurrentBlock() Block { return b.cur }

// AppendBlockParam adds a parameter of type t to blk and returns its
// Value. Parameters must be added before any BlockCall targeting blk is
// built, since BlockCall argument arity/type checking reads the target's
// current parameter list.
func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	return b.f.dfg.AppendParam(blk, t)
}

// terminated reports whether blk's last instruction, if any, is already
// a terminator.
func (b *Builder) terminated(blk Block) bool {
	tail := b.f.layout.LastInst(blk)
	if !tail.Valid() {
		return false
	}
	return b.f.dfg.InstData(tail).IsTerminator()
}

// emit is the single low-level insertion point every Emit* /
// convenience constructor funnels through. It rejects inserting a
// non-terminator after a terminator already closed the block and a second terminator in the same block.
func (b *Builder) emit(data InstructionData) (Inst, error) {
	if !b.cur.Valid() {
		return InstInvalid, xerrors.New(xerrors.CategoryVerifier, "", "no current insertion block")
	}
	if b.terminated(b.cur) {
		return InstInvalid, xerrors.New(xerrors.CategoryVerifier, b.cur.String(),
			"cannot insert instruction %s after block is already terminated", data.Opcode)
	}
	data.Pos = b.pos
	inst := b.f.dfg.allocInst(data)
	b.f.layout.AppendInst(b.cur, inst)
	return inst, nil
}

// emitResult emits data and allocates a single result Value of data.Type.
func (b *Builder) emitResult(data InstructionData) Value {
	inst, err := b.emit(data)
	if err != nil {
		panic(err) // programmer error: builder misuse.
	}
	v := b.f.dfg.allocValue(data.Type)
	b.f.dfg.defineInstResult(v, inst, 0)
	return v
}

func (b *Builder) emitVoid(data InstructionData) Inst {
	inst, err := b.emit(data)
	if err != nil {
		panic(err)
	}
	return inst
}

// newBlockCall builds a BlockCall targeting dst with args, checking
// arity and positional type match against dst's current parameter list.
func (b *Builder) newBlockCall(dst Block, args []Value) BlockCall {
	params := b.f.dfg.Params(dst)
	if len(params) != len(args) {
		panic(fmt.Sprintf("block %s expects %d arguments, got %d", dst, len(params), len(args)))
	}
	for i, a := range args {
		if a.Type() != params[i].Type() {
			panic(fmt.Sprintf("block %s argument %d: expected type %s, got %s", dst, i, params[i].Type(), a.Type()))
		}
	}
	return BlockCall{Block: dst, args: b.f.dfg.InternOperands(args)}
}

// BlockCallArgs returns the argument values of a BlockCall.
func (f *Function) BlockCallArgs(bc BlockCall) []Value { return f.dfg.Operands(bc.args) }

// ---- Constants ----

// Iconst emits an integer constant of type t with the given bit pattern
// (sign/zero interpretation is left to the consuming opcode).
func (b *Builder) Iconst(t Type, imm int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeIconst, Type: t, Imm: imm})
}

// Fconst emits a float constant of type t from its IEEE bit pattern.
func (b *Builder) Fconst(t Type, bits int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeFconst, Type: t, Imm: bits})
}

// ---- Arithmetic (binary) ----

func (b *Builder) binary(op Opcode, x, y Value) Value {
	return b.emitResult(InstructionData{Opcode: op, Type: x.Type(), Args: [3]Value{x, y}})
}

func (b *Builder) Iadd(x, y Value) Value { return b.binary(OpcodeIadd, x, y) }
func (b *Builder) Isub(x, y Value) Value { return b.binary(OpcodeIsub, x, y) }
func (b *Builder) Imul(x, y Value) Value { return b.binary(OpcodeImul, x, y) }
func (b *Builder) Udiv(x, y Value) Value { return b.binary(OpcodeUdiv, x, y) }
func (b *Builder) Sdiv(x, y Value) Value { return b.binary(OpcodeSdiv, x, y) }
func (b *Builder) Urem(x, y Value) Value { return b.binary(OpcodeUrem, x, y) }
func (b *Builder) Srem(x, y Value) Value { return b.binary(OpcodeSrem, x, y) }
func (b *Builder) Band(x, y Value) Value { return b.binary(OpcodeBand, x, y) }
func (b *Builder) Bor(x, y Value) Value  { return b.binary(OpcodeBor, x, y) }
func (b *Builder) Bxor(x, y Value) Value { return b.binary(OpcodeBxor, x, y) }
func (b *Builder) Ishl(x, y Value) Value { return b.binary(OpcodeIshl, x, y) }
func (b *Builder) Ushr(x, y Value) Value { return b.binary(OpcodeUshr, x, y) }
func (b *Builder) Sshr(x, y Value) Value { return b.binary(OpcodeSshr, x, y) }

func (b *Builder) Fadd(x, y Value) Value { return b.binary(OpcodeFadd, x, y) }
func (b *Builder) Fsub(x, y Value) Value { return b.binary(OpcodeFsub, x, y) }
func (b *Builder) Fmul(x, y Value) Value { return b.binary(OpcodeFmul, x, y) }
func (b *Builder) Fdiv(x, y Value) Value { return b.binary(OpcodeFdiv, x, y) }

func (b *Builder) unary(op Opcode, x Value) Value {
	return b.emitResult(InstructionData{Opcode: op, Type: x.Type(), Args: [3]Value{x}})
}

func (b *Builder) Bnot(x Value) Value { return b.unary(OpcodeBnot, x) }
func (b *Builder) Ineg(x Value) Value { return b.unary(OpcodeIneg, x) }
func (b *Builder) Fneg(x Value) Value { return b.unary(OpcodeFneg, x) }
func (b *Builder) Fabs(x Value) Value { return b.unary(OpcodeFabs, x) }

// Fma emits a fused multiply-add: x*y+z.
func (b *Builder) Fma(x, y, z Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeFma, Type: x.Type(), Args: [3]Value{x, y, z}})
}

// IaddImm emits a binary-with-immediate add: x + imm.
func (b *Builder) IaddImm(x Value, imm int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeIaddImm, Type: x.Type(), Args: [3]Value{x}, Imm: imm})
}

// IaddCout emits a carry-out add: its single result is the low word of
// x+y. The carry-out is not produced as a Value, so no instruction can
// read it back.
func (b *Builder) IaddCout(x, y Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeIaddCout, Type: x.Type(), Args: [3]Value{x, y}})
}

// IaddCin emits a carry-in add: x + y + carryIn (carryIn must be i8, 0 or 1).
func (b *Builder) IaddCin(x, y, carryIn Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeIaddCin, Type: x.Type(), Args: [3]Value{x, y, carryIn}})
}

// ---- Comparisons ----

func (b *Builder) Icmp(cond IntCmpCond, x, y Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeIcmp, Type: TypeI8, Args: [3]Value{x, y}, Cond: uint8(cond)})
}

func (b *Builder) Fcmp(cond FloatCmpCond, x, y Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeFcmp, Type: TypeI8, Args: [3]Value{x, y}, Cond: uint8(cond)})
}

// ---- Conversions ----

func (b *Builder) conv(op Opcode, result Type, x Value) Value {
	return b.emitResult(InstructionData{Opcode: op, Type: result, Args: [3]Value{x}})
}

func (b *Builder) Sextend(result Type, x Value) Value      { return b.conv(OpcodeSextend, result, x) }
func (b *Builder) Uextend(result Type, x Value) Value      { return b.conv(OpcodeUextend, result, x) }
func (b *Builder) Ireduce(result Type, x Value) Value      { return b.conv(OpcodeIreduce, result, x) }
func (b *Builder) Fdemote(result Type, x Value) Value      { return b.conv(OpcodeFdemote, result, x) }
func (b *Builder) Fpromote(result Type, x Value) Value     { return b.conv(OpcodeFpromote, result, x) }
func (b *Builder) FcvtToSint(result Type, x Value) Value   { return b.conv(OpcodeFcvtToSint, result, x) }
func (b *Builder) FcvtToUint(result Type, x Value) Value   { return b.conv(OpcodeFcvtToUint, result, x) }
func (b *Builder) FcvtFromSint(result Type, x Value) Value { return b.conv(OpcodeFcvtFromSint, result, x) }
func (b *Builder) FcvtFromUint(result Type, x Value) Value { return b.conv(OpcodeFcvtFromUint, result, x) }
func (b *Builder) Bitcast(result Type, x Value) Value      { return b.conv(OpcodeBitcast, result, x) }

// ---- Control flow ----

// Select emits a branch-free conditional move: cond ? t : f. A
// compile-time-constant cond still lowers to a move, not a branch;
// that optimization lives in the AArch64 selector rules, not here.
func (b *Builder) Select(cond, t, f Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeSelect, Type: t.Type(), Args: [3]Value{cond, t, f}})
}

// Jump terminates the current block with an unconditional jump to dst.
func (b *Builder) Jump(dst Block, args []Value) {
	bc := b.newBlockCall(dst, args)
	b.emitVoid(InstructionData{Opcode: OpcodeJump, Blocks: [2]BlockCall{bc, {}}})
}

// Branch terminates the current block: if cond is nonzero, continue at
// thenBlk with thenArgs, else at elseBlk with elseArgs.
func (b *Builder) Branch(cond Value, thenBlk Block, thenArgs []Value, elseBlk Block, elseArgs []Value) {
	t := b.newBlockCall(thenBlk, thenArgs)
	e := b.newBlockCall(elseBlk, elseArgs)
	b.emitVoid(InstructionData{Opcode: OpcodeBranch, Args: [3]Value{cond}, Blocks: [2]BlockCall{t, e}})
}

// Return terminates the current block, returning vals.
func (b *Builder) Return(vals []Value) {
	h := b.f.dfg.InternOperands(vals)
	b.emitVoid(InstructionData{Opcode: OpcodeReturn, VarArgs: h})
}

// Trap terminates the current block unconditionally with trap code code.
func (b *Builder) Trap(code int64) {
	b.emitVoid(InstructionData{Opcode: OpcodeTrap, Imm: code})
}

// Trapz inserts a conditional trap that fires when cond is zero.
// Non-terminating: control falls through if cond is nonzero.
func (b *Builder) Trapz(cond Value, code int64) {
	b.emitVoid(InstructionData{Opcode: OpcodeTrapz, Args: [3]Value{cond}, Imm: code})
}

// Trapnz inserts a conditional trap that fires when cond is nonzero.
func (b *Builder) Trapnz(cond Value, code int64) {
	b.emitVoid(InstructionData{Opcode: OpcodeTrapnz, Args: [3]Value{cond}, Imm: code})
}

// ---- Calls ----

// Call emits a direct call to ref with args, returning the callee's
// result values in order.
func (b *Builder) Call(ref FuncRef, args []Value) []Value {
	sigID := b.f.ResolveFuncRefSignature(ref)
	sig := b.f.ResolveSignature(sigID)
	h := b.f.dfg.InternOperands(args)
	resultTypes := make([]Type, len(sig.Returns))
	for i, r := range sig.Returns {
		resultTypes[i] = r.Type
	}
	data := InstructionData{Opcode: OpcodeCall, VarArgs: h, Aux: uint32(ref), ResultTypes: resultTypes}
	return b.emitMultiResult(data)
}

// CallIndirect emits an indirect call through callee using sig, with args.
func (b *Builder) CallIndirect(sig SignatureID, callee Value, args []Value) []Value {
	s := b.f.ResolveSignature(sig)
	h := b.f.dfg.InternOperands(args)
	resultTypes := make([]Type, len(s.Returns))
	for i, r := range s.Returns {
		resultTypes[i] = r.Type
	}
	data := InstructionData{
		Opcode: OpcodeCallIndirect, Args: [3]Value{callee}, VarArgs: h, Aux: uint32(sig), ResultTypes: resultTypes,
	}
	return b.emitMultiResult(data)
}

func (b *Builder) emitMultiResult(data InstructionData) []Value {
	inst, err := b.emit(data)
	if err != nil {
		panic(err)
	}
	results := make([]Value, len(data.ResultTypes))
	for i, t := range data.ResultTypes {
		v := b.f.dfg.allocValue(t)
		b.f.dfg.defineInstResult(v, inst, i)
		results[i] = v
	}
	return results
}

// FuncAddr emits the address of ref as a pointer-width integer.
func (b *Builder) FuncAddr(ptrType Type, ref FuncRef) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeFuncAddr, Type: ptrType, Aux: uint32(ref)})
}

// GlobalAddr emits the address of gv as a pointer-width integer.
func (b *Builder) GlobalAddr(ptrType Type, gv GlobalValue) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeGlobalAddr, Type: ptrType, Aux: uint32(gv)})
}

// ---- Memory ----

// Load emits a load of type t from addr + offset.
func (b *Builder) Load(t Type, addr Value, offset int64, order AtomicOrder) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeLoad, Type: t, Args: [3]Value{addr}, Imm: offset, Cond: uint8(order)})
}

// Store emits a store of val to addr + offset.
func (b *Builder) Store(addr, val Value, offset int64, order AtomicOrder) {
	b.emitVoid(InstructionData{Opcode: OpcodeStore, Args: [3]Value{addr, val}, Imm: offset, Cond: uint8(order)})
}

// StackLoad emits a load of type t from slot + offset.
func (b *Builder) StackLoad(t Type, slot StackSlot, offset int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeStackLoad, Type: t, Aux: uint32(slot), Imm: offset})
}

// StackStore emits a store of val to slot + offset.
func (b *Builder) StackStore(slot StackSlot, val Value, offset int64) {
	b.emitVoid(InstructionData{Opcode: OpcodeStackStore, Args: [3]Value{val}, Aux: uint32(slot), Imm: offset})
}

// Fence emits a standalone memory fence of the given ordering.
func (b *Builder) Fence(order AtomicOrder) {
	b.emitVoid(InstructionData{Opcode: OpcodeFence, Cond: uint8(order)})
}

// ---- Vectors ----

func (b *Builder) Splat(result Type, x Value) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeSplat, Type: result, Args: [3]Value{x}})
}

func (b *Builder) Shuffle(result Type, x, y Value, mask int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeShuffle, Type: result, Args: [3]Value{x, y}, Imm: mask})
}

func (b *Builder) ExtractLane(result Type, x Value, lane int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeExtractLane, Type: result, Args: [3]Value{x}, Imm: lane})
}

func (b *Builder) InsertLane(x, scalar Value, lane int64) Value {
	return b.emitResult(InstructionData{Opcode: OpcodeInsertLane, Type: x.Type(), Args: [3]Value{x, scalar}, Imm: lane})
}

// ResolveFuncRefSignature is a small helper so Call doesn't need direct
// field access into Function's private funcRefs table.
func (f *Function) ResolveFuncRefSignature(ref FuncRef) SignatureID {
	return f.FuncRefInfo(ref).Signature
}
