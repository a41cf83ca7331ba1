package riscv64

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/ir"
)

// op is this target's instruction-kind space, stored in backend.VInstr's
// opaque Opcode field.
type op uint16

const (
	opInvalid op = iota
	opLi         // R = imm64, Data: int64 (single ADDI for 12-bit values, LUI+ADDI otherwise; see DESIGN.md on the 32-bit materialization ceiling).
	opMovRR      // R = Rn (ADDI rd, rs, 0 for int; FSGNJ.D rd, rs, rs for float).
	opALUReg     // R(Def) = Rn <alu> Rm, AluOp in Data.
	opALUImm     // R(Def) = Rn <alu> imm12, AluOp in Data.
	opNeg        // R(Def) = -Rn (SUB rd, x0, rs).
	opNot        // R(Def) = ^Rn (XORI rd, rs, -1).
	opMul        // R(Def) = Rn * Rm.
	opDivRem     // R(Def) = Rn / Rm or Rn % Rm, DivRemData in Data.
	opShift      // R(Def) = Rn << / >> Rm or imm, ShiftData in Data.
	opSlt        // R(Def) = (Rn < Rm) ? 1 : 0, signed per SltData.
	opFpuRRR     // F(Def) = Fn <op> Fm, FpuOp in Data (FADD.D/FSUB.D/FMUL.D/FDIV.D).
	opFpuNeg     // F(Def) = -Fn (FSGNJN.D rd, rs, rs).
	opFpuAbs     // F(Def) = |Fn| (FSGNJX.D rd, rs, rs).
	opFcmp       // R(Def) = (Fn <cmp> Fm) ? 1 : 0, FcmpKind in Data (FEQ.D/FLT.D/FLE.D).
	opFmvToInt   // R = bitcast(F) (FMV.X.D).
	opFmvToFloat // F = bitcast(R) (FMV.D.X).
	opLoad       // R = *(Rn+offset), LoadStoreInfo in Data.
	opStore      // *(Rn+offset) = R, LoadStoreInfo in Data.
	opLea        // R = Rn + offset / symbol address, used for stack slots and globals.
	opExtend     // R = extend(Rn), ExtendInfo in Data.
	opBranch     // conditional branch, branchData in Data.
	opJump       // unconditional jump to an ir.Block.
	opCall
	opRet
	opEbreak // trap.
)

// AluOp distinguishes the dyadic integer ALU operations sharing opALUReg
// and opALUImm (ADD/AND/OR/XOR; SUB is register-only since there is no
// SUBI, so isub always lowers to opALUReg).
type AluOp uint8

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOr
	AluXor
)

// ShiftKind distinguishes SLL/SRL/SRA.
type ShiftKind uint8

const (
	ShiftLeft ShiftKind = iota
	ShiftRightLogical
	ShiftRightArith
)

// FpuOp distinguishes the RV64D scalar-double dyadic operations.
type FpuOp uint8

const (
	FpuAdd FpuOp = iota
	FpuSub
	FpuMul
	FpuDiv
)

// FcmpKind distinguishes FEQ.D/FLT.D/FLE.D.
type FcmpKind uint8

const (
	FcmpEq FcmpKind = iota
	FcmpLt
	FcmpLe
)

type AluRegData struct{ Op AluOp }
type AluImmData struct {
	Op  AluOp
	Imm int32
}
type DivRemData struct {
	Signed bool
	Rem    bool
}
type ShiftData struct {
	Kind  ShiftKind
	ByReg bool
	Imm   uint8
}
type SltData struct{ Signed bool }
type FpuData struct{ Op FpuOp }
type FcmpData struct{ Kind FcmpKind }

// LoadStoreInfo is the Data payload of opLoad / opStore with a register
// base (the base is carried as an Operand).
type LoadStoreInfo struct {
	Offset int32
	Size   uint8
	Signed bool
	Float  bool
}

// stackSlotData is the Data payload for opLoad/opStore/opLea forms whose
// base is a stack slot, resolved to an fp-relative offset after
// register allocation.
type stackSlotData struct {
	Slot   ir.StackSlot
	Offset int32
	Size   uint8
	Float  bool
}

// spillSlotData is the Data payload for opLoad/opStore forms register
// allocation synthesizes to reload or save a spilled VReg, resolved to a
// frame offset the same way as stackSlotData once package frame has laid
// out the spill area.
type spillSlotData struct {
	VReg  backend.VRegID
	Size  uint8
	Float bool
}

type symbolData struct{ Symbol string }

// ExtendInfo is the Data payload of opExtend.
type ExtendInfo struct {
	FromBits uint8
	ToBits   uint8
	Signed   bool
}

// CallData is the Data payload of opCall.
type CallData struct {
	Symbol   string
	Indirect bool
}

// branchData is the Data payload of opBranch; opJump's Data is a bare
// ir.Block, mirroring arm64's opBr and amd64's opJmp.
type branchData struct {
	Kind   branchKind
	Target ir.Block
	Else   ir.Block
}
