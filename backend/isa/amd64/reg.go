// Package amd64 lowers VCode to x86-64 machine instructions: register
// definitions, a hand-lowered instruction selector (no selectordsl rule
// table -- see DESIGN.md), the System V ABI, and binary encoding.
package amd64

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/regalloc"
)

// General-purpose and XMM registers, numbered to match their hardware
// encoding (the 4-bit ModRM/SIB/REX.B register field) so encode.go can
// use a RealReg directly as that field's value. The retrieved pack's
// amd64 material (other_examples/fe000123_..._isa-amd64-machine.go.go)
// covers instruction selection, not bit-level encoding, so the register
// numbering and REX/ModRM shapes here are grounded on the public x86-64
// System V convention instead (see DESIGN.md).
const (
	rax backend.RealReg = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15

	numIntRegs
)

const (
	xmm0 backend.RealReg = iota
	xmm1
	xmm2
	xmm3
	xmm4
	xmm5
	xmm6
	xmm7
	xmm8
	xmm9
	xmm10
	xmm11
	xmm12
	xmm13
	xmm14
	xmm15

	numFloatRegs
)

var intRegNames = [...]string{
	rax: "rax", rcx: "rcx", rdx: "rdx", rbx: "rbx", rsp: "rsp", rbp: "rbp", rsi: "rsi", rdi: "rdi",
	r8: "r8", r9: "r9", r10: "r10", r11: "r11", r12: "r12", r13: "r13", r14: "r14", r15: "r15",
}

var floatRegNames = [...]string{
	xmm0: "xmm0", xmm1: "xmm1", xmm2: "xmm2", xmm3: "xmm3", xmm4: "xmm4", xmm5: "xmm5", xmm6: "xmm6", xmm7: "xmm7",
	xmm8: "xmm8", xmm9: "xmm9", xmm10: "xmm10", xmm11: "xmm11", xmm12: "xmm12", xmm13: "xmm13", xmm14: "xmm14", xmm15: "xmm15",
}

func regName(r backend.RealReg, class backend.RegClass) string {
	if class == backend.RegClassFloat {
		if int(r) < len(floatRegNames) {
			return floatRegNames[r]
		}
		return "xmm?"
	}
	if int(r) < len(intRegNames) {
		return intRegNames[r]
	}
	return "r?"
}

// intArgRegs and floatArgRegs are the System V AMD64 argument-passing
// registers, in order.
var intArgRegs = []backend.RealReg{rdi, rsi, rdx, rcx, r8, r9}
var floatArgRegs = []backend.RealReg{xmm0, xmm1, xmm2, xmm3, xmm4, xmm5, xmm6, xmm7}

// intResultRegs and floatResultRegs are the System V return-value
// registers, distinct from the argument registers (rax/rdx, not
// rdi/rsi) -- a Call lowering or Return that reused intArgRegs here
// would put single results in the right place by coincidence on
// arm64 (whose x0 return register is also its first argument
// register) but silently miscompile amd64.
var intResultRegs = []backend.RealReg{rax, rdx}
var floatResultRegs = []backend.RealReg{xmm0, xmm1}

// calleeSavedInt is System V's callee-saved integer set; all XMM
// registers are caller-saved so calleeSavedFloat is empty.
var calleeSavedInt = []backend.RealReg{rbx, r12, r13, r14, r15}
var calleeSavedFloat = []backend.RealReg{}

// allocatableInt excludes rsp (stack pointer), rbp (frame pointer, fixed
// per this module's frame layout), and scratchInt below from the pool;
// rdx is still allocatable but gets evicted by the fixed-register
// reservation any div/mod live range requests.
var allocatableInt = []backend.RealReg{
	rcx, rdx, rbx, rsi, rdi, r8, r9, r12, r13, r14, r15,
}
var allocatableFloat = []backend.RealReg{
	xmm0, xmm1, xmm2, xmm3, xmm4, xmm5, xmm6, xmm7,
	xmm8, xmm9, xmm10, xmm11, xmm12,
}

// scratchInt and scratchFloat are register allocation's own working
// registers for landing a spilled operand for one instruction and for
// breaking cycles among parallel block-parameter moves. rax, r10, r11
// are caller-saved and excluded from intArgRegs, so carving them out
// here never touches a register the allocator's clobbered-set tracking
// would otherwise need to account for; xmm13-xmm15 are caller-saved
// (System V saves no XMM register) and excluded from floatArgRegs for
// the same reason.
var scratchInt = []backend.RealReg{rax, r10, r11}
var scratchFloat = []backend.RealReg{xmm13, xmm14, xmm15}

// RegallocConfig returns the allocatable register sets package xc's
// Compile passes to regalloc.NewAllocator for an x86-64 compile.
func RegallocConfig() regalloc.Config {
	return regalloc.Config{
		IntRegs:      allocatableInt,
		FloatRegs:    allocatableFloat,
		ScratchInt:   scratchInt,
		ScratchFloat: scratchFloat,
	}
}
