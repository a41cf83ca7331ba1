// Package arm64 lowers VCode to AArch64 machine instructions: register
// definitions, instruction selection (via selectordsl over rules.lisp),
// the ABI, and final binary encoding.
package arm64

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/regalloc"
)

// AArch64 integer and vector/floating-point registers, numbered densely
// so they can serve directly as backend.RealReg values. Grounded on the prior art's isa/arm64/reg.go constant block and naming, but corrected:
// the prior art's retrieved file declares only the w/x (32- and 64-bit
// integer views of the same 31 registers) under a "Vectors registers"
// comment that doesn't match its contents, and never declares v0-v31 at
// all. This module gives the vector/float class its own register
// numbers (see DESIGN.md) since this module's float opcodes (Fadd, Fmul,
// ...) need somewhere to live.
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
	fp // x29, frame pointer
	lr // x30, link register
	xzr
	sp

	numIntRegs
)

const (
	v0 backend.RealReg = iota
	v1
	v2
	v3
	v4
	v5
	v6
	v7
	v8
	v9
	v10
	v11
	v12
	v13
	v14
	v15
	v16
	v17
	v18
	v19
	v20
	v21
	v22
	v23
	v24
	v25
	v26
	v27
	v28
	v29
	v30
	v31

	numFloatRegs
)

var intRegNames = [...]string{
	x0: "x0", x1: "x1", x2: "x2", x3: "x3", x4: "x4", x5: "x5", x6: "x6", x7: "x7",
	x8: "x8", x9: "x9", x10: "x10", x11: "x11", x12: "x12", x13: "x13", x14: "x14", x15: "x15",
	x16: "x16", x17: "x17", x18: "x18", x19: "x19", x20: "x20", x21: "x21", x22: "x22", x23: "x23",
	x24: "x24", x25: "x25", x26: "x26", x27: "x27", x28: "x28", fp: "x29", lr: "x30", xzr: "xzr", sp: "sp",
}

var floatRegNames = [...]string{
	v0: "v0", v1: "v1", v2: "v2", v3: "v3", v4: "v4", v5: "v5", v6: "v6", v7: "v7",
	v8: "v8", v9: "v9", v10: "v10", v11: "v11", v12: "v12", v13: "v13", v14: "v14", v15: "v15",
	v16: "v16", v17: "v17", v18: "v18", v19: "v19", v20: "v20", v21: "v21", v22: "v22", v23: "v23",
	v24: "v24", v25: "v25", v26: "v26", v27: "v27", v28: "v28", v29: "v29", v30: "v30", v31: "v31",
}

// regName renders r according to class for disassembly-ish debugging.
func regName(r backend.RealReg, class backend.RegClass) string {
	if class == backend.RegClassFloat {
		if int(r) < len(floatRegNames) {
			return floatRegNames[r]
		}
		return "v?"
	}
	if int(r) < len(intRegNames) {
		return intRegNames[r]
	}
	return "x?"
}

// intArgRegs and floatArgRegs are the AAPCS64 argument-passing registers,
// in order. x8 is reserved for indirect-result addresses and excluded
// from allocatableInt below.
var intArgRegs = []backend.RealReg{x0, x1, x2, x3, x4, x5, x6, x7}
var floatArgRegs = []backend.RealReg{v0, v1, v2, v3, v4, v5, v6, v7}

// calleeSavedInt and calleeSavedFloat are AAPCS64's callee-saved
// registers this module's frame layout may need to spill (x19-x28,
// v8-v15). Only the lower 64 bits of v8-v15 are callee-saved, and the
// prologue/epilogue save and restore exactly those bits in 8-byte slots
// (see ABI.SlotSize).
var calleeSavedInt = []backend.RealReg{x19, x20, x21, x22, x23, x24, x25, x26, x27, x28}
var calleeSavedFloat = []backend.RealReg{v8, v9, v10, v11, v12, v13, v14, v15}

// allocatableInt and allocatableFloat are the registers register
// allocation may assign, excluding fp, lr, xzr, sp, x18, x8 (indirect
// result register, kept reserved the way the prior art reserves its own
// scratch registers for frame/ABI bookkeeping), and scratchInt/
// scratchFloat below.
var allocatableInt = []backend.RealReg{
	x0, x1, x2, x3, x4, x5, x6, x7, x12, x13, x14, x15,
	x16, x17, x19, x20, x21, x22, x23, x24, x25, x26, x27, x28,
}
var allocatableFloat = []backend.RealReg{
	v0, v1, v2, v3, v4, v5, v6, v7, v8, v9, v10, v11, v12, v13, v14, v15,
	v16, v17, v18, v19, v20, v21, v22, v23, v24, v25, v26, v27, v28,
}

// scratchInt and scratchFloat are carved out of the caller-saved pool
// (never callee-saved, so register allocation's clobbered-set tracking
// does not need to know about them) for register allocation's own use:
// landing a spilled operand in a register for one instruction, and
// breaking a cycle among parallel block-parameter moves.
var scratchInt = []backend.RealReg{x9, x10, x11}
var scratchFloat = []backend.RealReg{v29, v30, v31}

// RegallocConfig returns the allocatable register sets package xc's
// Compile passes to regalloc.NewAllocator for an AArch64 compile.
func RegallocConfig() regalloc.Config {
	return regalloc.Config{
		IntRegs:      allocatableInt,
		FloatRegs:    allocatableFloat,
		ScratchInt:   scratchInt,
		ScratchFloat: scratchFloat,
	}
}
