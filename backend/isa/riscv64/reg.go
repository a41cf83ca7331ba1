// Package riscv64 lowers VCode to a reduced RV64GC instruction subset:
// integer and double-precision float arithmetic, loads/stores, branches,
// and calls, hand-lowered the way amd64 is rather than through
// selectordsl (see DESIGN.md). It exists to demonstrate this module's
// retargetability rather than to cover every RV64GC extension.
package riscv64

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/regalloc"
)

// Integer and floating-point registers, numbered to match the RVI/RVF
// 5-bit hardware encoding. Grounded on the public RISC-V calling
// convention register aliases (x0-x31, f0-f31), also echoed by the
// other_examples/ riscv.go reference retrieved for this module (see
// DESIGN.md).
const (
	x0 backend.RealReg = iota
	x1
	x2
	x3
	x4
	x5
	x6
	x7
	x8
	x9
	x10
	x11
	x12
	x13
	x14
	x15
	x16
	x17
	x18
	x19
	x20
	x21
	x22
	x23
	x24
	x25
	x26
	x27
	x28
	x29
	x30
	x31

	numIntRegs
)

const (
	zero = x0
	ra   = x1
	sp   = x2
	fp   = x8
)

const (
	f0 backend.RealReg = iota
	f1
	f2
	f3
	f4
	f5
	f6
	f7
	f8
	f9
	f10
	f11
	f12
	f13
	f14
	f15
	f16
	f17
	f18
	f19
	f20
	f21
	f22
	f23
	f24
	f25
	f26
	f27
	f28
	f29
	f30
	f31

	numFloatRegs
)

var intRegNames = [...]string{
	x0: "zero", x1: "ra", x2: "sp", x3: "gp", x4: "tp",
	x5: "t0", x6: "t1", x7: "t2", x8: "s0", x9: "s1",
	x10: "a0", x11: "a1", x12: "a2", x13: "a3", x14: "a4", x15: "a5", x16: "a6", x17: "a7",
	x18: "s2", x19: "s3", x20: "s4", x21: "s5", x22: "s6", x23: "s7", x24: "s8", x25: "s9", x26: "s10", x27: "s11",
	x28: "t3", x29: "t4", x30: "t5", x31: "t6",
}

func regName(r backend.RealReg, class backend.RegClass) string {
	if class == backend.RegClassFloat {
		return "f" + itoa(int(r))
	}
	if int(r) < len(intRegNames) {
		return intRegNames[r]
	}
	return "x?"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [4]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

// intArgRegs and floatArgRegs are the RISC-V calling convention's
// argument/return registers (a0-a7, fa0-fa7); RV64 reuses the same
// registers for both arguments and the first two return values, as
// AAPCS64 does, so no separate result-register set is needed here the
// way amd64's System V target requires one (see DESIGN.md).
var intArgRegs = []backend.RealReg{x10, x11, x12, x13, x14, x15, x16, x17}
var floatArgRegs = []backend.RealReg{f10, f11, f12, f13, f14, f15, f16, f17}

// calleeSavedInt/calleeSavedFloat are the RISC-V "saved" register sets
// (s1-s11 int, fs0-fs11 float); s0 doubles as the frame pointer and is
// handled separately by ABI.FramePointer.
var calleeSavedInt = []backend.RealReg{x9, x18, x19, x20, x21, x22, x23, x24, x25, x26, x27}
var calleeSavedFloat = []backend.RealReg{f8, f9, f18, f19, f20, f21, f22, f23, f24, f25, f26, f27}

// allocatableInt excludes zero, ra, sp, gp, tp, fp (s0), and scratchInt below;
// allocatableFloat excludes scratchFloat.
var allocatableInt = []backend.RealReg{
	x5, x6, x7, x9, x10, x11, x12, x13, x14, x15, x16, x17,
	x18, x19, x20, x21, x22, x23, x24, x25, x26, x27, x28,
}
var allocatableFloat = []backend.RealReg{
	f0, f1, f2, f3, f4, f5, f6, f7, f8, f9, f10, f11, f12, f13, f14, f15,
	f16, f17, f18, f19, f20, f21, f22, f23, f24, f25, f26, f27, f28,
}

// scratchInt and scratchFloat are register allocation's own working
// registers for landing a spilled operand for one instruction and for
// breaking cycles among parallel block-parameter moves: t4-t6 and
// ft9-ft11, the RISC-V temporary registers left over once intArgRegs/
// floatArgRegs and the rest of allocatableInt/allocatableFloat have
// claimed their share -- caller-saved, so none of this needs clobbered-
// set tracking.
var scratchInt = []backend.RealReg{x29, x30, x31}
var scratchFloat = []backend.RealReg{f29, f30, f31}

// RegallocConfig returns the allocatable register sets package xc's
// Compile passes to regalloc.NewAllocator for an RV64 compile.
func RegallocConfig() regalloc.Config {
	return regalloc.Config{
		IntRegs:      allocatableInt,
		FloatRegs:    allocatableFloat,
		ScratchInt:   scratchInt,
		ScratchFloat: scratchFloat,
	}
}
