package arm64

import "github.com/corewind/xc/backend"

// ABI implements frame.ABI for AAPCS64: 16-byte stack alignment, x29/x30
// as the frame-pointer/link-register pair, and the callee-saved sets
// reg.go declares. Grounded on the prior art's frame.go prologue/epilogue
// sequence (isa/arm64/abi.go, lower to MOV/STR/LDR rather than the prior art's STP/LDP pairs -- documented in DESIGN.md as a simplification
// that costs one extra instruction per saved register pair but keeps
// this module's opLoad/opStore single-register shape uniform).
type ABI struct{}

func (ABI) CalleeSaved(class backend.RegClass) []backend.RealReg {
	if class == backend.RegClassFloat {
		return calleeSavedFloat
	}
	return calleeSavedInt
}

func (ABI) FramePointer() backend.RealReg { return fp }
func (ABI) LinkRegister() backend.RealReg { return lr }
func (ABI) StackAlignment() int32         { return 16 }

func (ABI) SlotSize(class backend.RegClass) int32 {
	if class == backend.RegClassFloat {
		return 8 // lower 64 bits only, see reg.go's calleeSavedFloat doc.
	}
	return 8
}

// fixedOperand builds an Operand referring directly to a physical
// register with no backing VReg, the shape frame/prologue code uses
// since these instructions run after register allocation and are never
// seen by regalloc.Allocator.
func fixedOperand(r backend.RealReg, role backend.OperandRole) backend.Operand {
	return backend.Operand{Reg: backend.VRegInvalid.WithRealReg(r), Role: role, Fixed: r}
}

func (ABI) EmitSaveRestore(vb *backend.VBlock, reg backend.RealReg, class backend.RegClass, off int32, isSave bool, prepend bool) {
	instr := &backend.VInstr{
		Data: LoadStoreInfo{Offset: off, Size: 8, Float: class == backend.RegClassFloat},
	}
	if isSave {
		instr.Opcode = uint16(opStore)
		instr.Operands = []backend.Operand{
			fixedOperand(reg, backend.RoleFixedUse),
			fixedOperand(sp, backend.RoleFixedUse),
		}
	} else {
		instr.Opcode = uint16(opLoad)
		instr.Operands = []backend.Operand{
			fixedOperand(reg, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		}
	}
	if prepend {
		vb.Prepend(instr)
	} else {
		vb.Append(instr)
	}
}

// EmitSpillLoad inserts, immediately before before, a reload of the
// spill slot belonging to spilled into dst.
func (ABI) EmitSpillLoad(vb *backend.VBlock, before *backend.VInstr, dst backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
	instr := &backend.VInstr{
		Opcode:   uint16(opLoad),
		Operands: []backend.Operand{fixedOperand(dst, backend.RoleFixedDef)},
		Data:     spillSlotData{VReg: spilled, Size: 8, Float: class == backend.RegClassFloat},
	}
	vb.InsertBefore(before, instr)
}

// EmitSpillStore inserts, immediately after after, a save of src into the
// spill slot belonging to spilled.
func (ABI) EmitSpillStore(vb *backend.VBlock, after *backend.VInstr, src backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
	instr := &backend.VInstr{
		Opcode:   uint16(opStore),
		Operands: []backend.Operand{fixedOperand(src, backend.RoleFixedUse)},
		Data:     spillSlotData{VReg: spilled, Size: 8, Float: class == backend.RegClassFloat},
	}
	vb.InsertAfter(after, instr)
}

// EmitMove inserts, immediately before before, a register-register move
// from src to dst of the given class. Used by register allocation to
// land block-parameter values in their destination registers and to
// break cycles found while resolving a block's move group.
func (ABI) EmitMove(vb *backend.VBlock, before *backend.VInstr, dst, src backend.RealReg, class backend.RegClass) {
	opcode := opMovReg
	if class == backend.RegClassFloat {
		opcode = opFpuMovReg
	}
	instr := &backend.VInstr{
		Opcode: uint16(opcode),
		IsCopy: true,
		Operands: []backend.Operand{
			fixedOperand(dst, backend.RoleFixedDef),
			fixedOperand(src, backend.RoleFixedUse),
		},
	}
	vb.InsertBefore(before, instr)
}

// EmitFrameSetup lowers to:
//
//	sub sp, sp, #frameSize
//	str x29, [sp, #0]
//	str x30, [sp, #8]
//	add x29, sp, #0
func (a ABI) EmitFrameSetup(vb *backend.VBlock, frameSize int32) {
	subSP := &backend.VInstr{
		Opcode: uint16(opALUImm),
		Data:   AluImmData{Op: AluSub, Imm: int64(frameSize)},
		Operands: []backend.Operand{
			fixedOperand(sp, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	saveFP := &backend.VInstr{
		Opcode: uint16(opStore),
		Data:   LoadStoreInfo{Offset: 0, Size: 8},
		Operands: []backend.Operand{
			fixedOperand(fp, backend.RoleFixedUse),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	saveLR := &backend.VInstr{
		Opcode: uint16(opStore),
		Data:   LoadStoreInfo{Offset: 8, Size: 8},
		Operands: []backend.Operand{
			fixedOperand(lr, backend.RoleFixedUse),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	setFP := &backend.VInstr{
		Opcode: uint16(opALUImm),
		Data:   AluImmData{Op: AluAdd, Imm: 0},
		Operands: []backend.Operand{
			fixedOperand(fp, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	vb.Append(subSP)
	vb.Append(saveFP)
	vb.Append(saveLR)
	vb.Append(setFP)
}

// EmitFrameTeardown lowers to the mirror sequence, spliced immediately
// before before:
//
//	ldr x29, [sp, #0]
//	ldr x30, [sp, #8]
//	add sp, sp, #frameSize
func (a ABI) EmitFrameTeardown(vb *backend.VBlock, frameSize int32, before *backend.VInstr) {
	restoreFP := &backend.VInstr{
		Opcode: uint16(opLoad),
		Data:   LoadStoreInfo{Offset: 0, Size: 8},
		Operands: []backend.Operand{
			fixedOperand(fp, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	restoreLR := &backend.VInstr{
		Opcode: uint16(opLoad),
		Data:   LoadStoreInfo{Offset: 8, Size: 8},
		Operands: []backend.Operand{
			fixedOperand(lr, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	addSP := &backend.VInstr{
		Opcode: uint16(opALUImm),
		Data:   AluImmData{Op: AluAdd, Imm: int64(frameSize)},
		Operands: []backend.Operand{
			fixedOperand(sp, backend.RoleFixedDef),
			fixedOperand(sp, backend.RoleFixedUse),
		},
	}
	vb.InsertBefore(before, restoreFP)
	vb.InsertBefore(before, restoreLR)
	vb.InsertBefore(before, addSP)
}
