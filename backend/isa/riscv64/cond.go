package riscv64

import "github.com/corewind/xc/ir"

// branchKind is the comparison a conditional branch performs directly
// on two registers -- RISC-V has no flags register, so, unlike arm64's
// CMP+B.cond or amd64's CMP+Jcc, a comparison and its branch are always
// the same instruction (BEQ/BNE/BLT/BGE/BLTU/BGEU).
type branchKind uint8

const (
	brEq branchKind = iota
	brNe
	brLt
	brGe
	brLtu
	brGeu
)

func (b branchKind) invert() branchKind {
	switch b {
	case brEq:
		return brNe
	case brNe:
		return brEq
	case brLt:
		return brGe
	case brGe:
		return brLt
	case brLtu:
		return brGeu
	default:
		return brLtu
	}
}

// sltKind selects SLT/SLTU, the only comparison primitive RV64I offers
// for materializing a boolean result into a register (icmp lowering
// synthesizes every other relation from these two, see machine.go).
type sltKind uint8

const (
	sltSigned sltKind = iota
	sltUnsigned
)

func branchForIntCmp(c ir.IntCmpCond) (branchKind, bool) {
	switch c {
	case ir.IntEq:
		return brEq, false
	case ir.IntNe:
		return brNe, false
	case ir.IntSlt:
		return brLt, false
	case ir.IntSge:
		return brGe, false
	case ir.IntUlt:
		return brLtu, false
	case ir.IntUge:
		return brGeu, false
	case ir.IntSgt:
		return brLt, true // swap operands: a > b  <=>  b < a
	case ir.IntSle:
		return brGe, true // a <= b  <=>  b >= a
	case ir.IntUgt:
		return brLtu, true
	case ir.IntUle:
		return brGeu, true
	default:
		panic("unknown integer comparison condition")
	}
}
