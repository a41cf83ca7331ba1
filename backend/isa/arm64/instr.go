package arm64

// op is this target's instruction-kind space, stored in backend.VInstr's
// opaque Opcode field. Grounded on the prior art's instructionKind enum
// (isa/arm64/instr.go), trimmed to what this module's rule set emits.
type op uint16

const (
	opInvalid op = iota
	opALU        // R = Rn <alu> Rm, AluOp in Data.
	opALUImm     // R = Rn <alu> imm12, AluOp in Data.
	opALUShift   // R = Rn <alu> (Rm shifted), AluOp+shift kind in Data.
	opMovZ       // R = imm16 << shift, all other bits cleared.
	opMovK       // R's 16-bit field at shift is replaced with imm16, other bits unchanged.
	opMovReg     // R = Rn (register-register move, no immediate).
	opFpuMovReg  // R(float) = Rn(float) (FMOV Dd, Dn).
	opMadd       // R = Rn*Rm + Ra (used to lower imul, Ra fixed to xzr).
	opNeg        // R = -Rn (alias of SUB Rd, XZR, Rn, used to lower ineg).
	opSDiv
	opUDiv
	opMsub // R = Ra - Rn*Rm (used to synthesize srem/urem from sdiv/udiv).
	opLsl
	opLsr
	opAsr
	opCSel
	opCSet
	opCmp    // flags = Rn - (Rm | imm12), sets flags for a following CSEL/CSET/CondBr.
	opFCmp   // flags = Rn <=> Rm (float).
	opFpuRR  // R = <op>(Rn), FpuOp in Data (fneg, fabs, ...).
	opFpuRRR // R = Rn <op> Rm, FpuOp in Data (fadd, fsub, fmul, fdiv).
	opLoad   // R = *(Rn+offset), LoadStoreInfo in Data.
	opStore  // *(Rn+offset) = R, LoadStoreInfo in Data.
	opExtend // R = extend(Rn), ExtendInfo in Data.
	opRet
	opCall // Call info (symbol or indirect VReg) in Data.
	opCondBr
	opBr
	opAdrLabel // R = PC-relative address of a Label (function/global address).
	opMovFromInt // R(float) = bitcast of Rn(int), used to materialize fconst.
	opDMB        // full system memory barrier, no operands.
	opUDF        // undefined-instruction trap, Imm is the trap code.
)

// AluOp distinguishes the dyadic integer ALU operations sharing opALU /
// opALUImm / opALUShift, mirroring the prior art's aluOp enum
// (isa/arm64/instr2.go's equivalent grouping of ADD/SUB/AND/ORR/EOR).
type AluOp uint8

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOrr
	AluEor
	AluSubS // subtract, set flags, discard result (CMP).
)

// FpuOp distinguishes floating point dyadic/monadic operations.
type FpuOp uint8

const (
	FpuAdd FpuOp = iota
	FpuSub
	FpuMul
	FpuDiv
	FpuNeg
	FpuAbs
)

// AluRegData is the Data payload of an opALU (register-register)
// instruction.
type AluRegData struct {
	Op AluOp
}

// AluImmData is the Data payload of an opALUImm instruction.
type AluImmData struct {
	Op  AluOp
	Imm int64
}

// AluShiftData is the Data payload of an opALUShift instruction: R = Rn
// <Op> (operand2 shifted left/right by Amount).
type AluShiftData struct {
	Op     AluOp
	Amount uint8
}

// FpuData is the Data payload of opFpuRR / opFpuRRR.
type FpuData struct {
	Op FpuOp
}

// ShiftImmData is the Data payload of opLsl/opLsr/opAsr when the shift
// amount is an immediate rather than a register operand.
type ShiftImmData struct {
	Amount uint8
}

// CondData carries the condition code for opCSel, opCSet, and opCondBr.
type CondData struct {
	Cond cond
}

// CmpData distinguishes register-register from register-immediate CMP.
type CmpData struct {
	Imm    int64
	IsImm  bool
	Signed bool
}

// LoadStoreInfo is the Data payload of opLoad / opStore: a base register
// (carried as an Operand, not here) plus a byte offset and transfer
// size/signedness.
type LoadStoreInfo struct {
	Offset int32
	Size   uint8 // 1, 2, 4, or 8 bytes.
	Signed bool
	Float  bool
}

// ExtendInfo is the Data payload of opExtend.
type ExtendInfo struct {
	FromBits uint8
	ToBits   uint8
	Signed   bool
}

// CallData is the Data payload of opCall.
type CallData struct {
	Symbol   string
	Indirect bool // when true, the callee address is Operands[0] (RoleUse).
}

// MovZData is the Data payload of opMovZ: R = Imm16 << (ShiftBy*16).
type MovZData struct {
	Imm16   uint16
	ShiftBy uint8
}
