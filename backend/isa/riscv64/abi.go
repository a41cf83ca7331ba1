package riscv64

import "github.com/corewind/xc/backend"

// ABI implements frame.ABI for the RISC-V calling convention: 16-byte
// stack alignment, s0 (fp) as the frame pointer, ra as the link
// register, and the callee-saved set reg.go declares.
type ABI struct{}

func (ABI) CalleeSaved(class backend.RegClass) []backend.RealReg {
	if class == backend.RegClassFloat {
		return calleeSavedFloat
	}
	return calleeSavedInt
}

func (ABI) FramePointer() backend.RealReg   { return fp }
func (ABI) LinkRegister() backend.RealReg   { return ra }
func (ABI) StackAlignment() int32           { return 16 }
func (ABI) SlotSize(backend.RegClass) int32 { return 8 }

func fixedOperand(r backend.RealReg, role backend.OperandRole) backend.Operand {
	return backend.Operand{Reg: backend.VRegInvalid.WithRealReg(r), Role: role, Fixed: r}
}

// fixedOperandClass is fixedOperand plus an explicit register class,
// needed wherever encode.go branches on Operands[i].Reg.Class() (opMovRR
// picks ADDI vs FSGNJ.D that way) rather than reading a Data field --
// VRegInvalid carries RegClassInt, which would otherwise misencode a
// post-allocation float move built from a bare RealReg.
func fixedOperandClass(r backend.RealReg, role backend.OperandRole, class backend.RegClass) backend.Operand {
	reg := backend.VRegInvalid.WithRealReg(r) | backend.VReg(class)<<48
	return backend.Operand{Reg: reg, Role: role, Fixed: r}
}

func (ABI) EmitSaveRestore(vb *backend.VBlock, reg backend.RealReg, class backend.RegClass, off int32, isSave bool, prepend bool) {
	instr := &backend.VInstr{Data: LoadStoreInfo{Offset: off, Size: 8, Float: class == backend.RegClassFloat}}
	if isSave {
		instr.Opcode = uint16(opStore)
		instr.Operands = []backend.Operand{fixedOperand(reg, backend.RoleFixedUse), fixedOperand(fp, backend.RoleFixedUse)}
	} else {
		instr.Opcode = uint16(opLoad)
		instr.Operands = []backend.Operand{fixedOperand(reg, backend.RoleFixedDef), fixedOperand(fp, backend.RoleFixedUse)}
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
// from src to dst of the given class (ADDI rd, rs, 0 for int, FSGNJ.D
// rd, rs, rs for float, same as opMovRR's ordinary lowering).
func (ABI) EmitMove(vb *backend.VBlock, before *backend.VInstr, dst, src backend.RealReg, class backend.RegClass) {
	instr := &backend.VInstr{
		Opcode: uint16(opMovRR),
		IsCopy: true,
		Operands: []backend.Operand{
			fixedOperandClass(dst, backend.RoleFixedDef, class),
			fixedOperandClass(src, backend.RoleFixedUse, class),
		},
	}
	vb.InsertBefore(before, instr)
}

// EmitFrameSetup lowers to:
//
//	addi sp, sp, -(frameSize+16)
//	sd   ra, frameSize+8(sp)
//	sd   fp, frameSize(sp)
//	addi fp, sp, frameSize
//
// The extra 16 bytes hold the saved ra/fp pair below the callee's own
// frame slots, mirroring the standard RISC-V prologue shape.
func (a ABI) EmitFrameSetup(vb *backend.VBlock, frameSize int32) {
	total := frameSize + 16
	subSP := &backend.VInstr{
		Opcode:   uint16(opALUImm),
		Data:     AluImmData{Op: AluAdd, Imm: -total},
		Operands: []backend.Operand{fixedOperand(sp, backend.RoleFixedDef), fixedOperand(sp, backend.RoleFixedUse)},
	}
	saveRA := &backend.VInstr{
		Opcode:   uint16(opStore),
		Data:     LoadStoreInfo{Offset: frameSize + 8, Size: 8},
		Operands: []backend.Operand{fixedOperand(ra, backend.RoleFixedUse), fixedOperand(sp, backend.RoleFixedUse)},
	}
	saveFP := &backend.VInstr{
		Opcode:   uint16(opStore),
		Data:     LoadStoreInfo{Offset: frameSize, Size: 8},
		Operands: []backend.Operand{fixedOperand(fp, backend.RoleFixedUse), fixedOperand(sp, backend.RoleFixedUse)},
	}
	setFP := &backend.VInstr{
		Opcode:   uint16(opALUImm),
		Data:     AluImmData{Op: AluAdd, Imm: frameSize},
		Operands: []backend.Operand{fixedOperand(fp, backend.RoleFixedDef), fixedOperand(sp, backend.RoleFixedUse)},
	}
	vb.Append(subSP)
	vb.Append(saveRA)
	vb.Append(saveFP)
	vb.Append(setFP)
}

// EmitFrameTeardown lowers to the mirror sequence, spliced immediately
// before before.
func (a ABI) EmitFrameTeardown(vb *backend.VBlock, frameSize int32, before *backend.VInstr) {
	total := frameSize + 16
	loadRA := &backend.VInstr{
		Opcode:   uint16(opLoad),
		Data:     LoadStoreInfo{Offset: frameSize + 8, Size: 8},
		Operands: []backend.Operand{fixedOperand(ra, backend.RoleFixedDef), fixedOperand(sp, backend.RoleFixedUse)},
	}
	loadFP := &backend.VInstr{
		Opcode:   uint16(opLoad),
		Data:     LoadStoreInfo{Offset: frameSize, Size: 8},
		Operands: []backend.Operand{fixedOperand(fp, backend.RoleFixedDef), fixedOperand(sp, backend.RoleFixedUse)},
	}
	addSP := &backend.VInstr{
		Opcode:   uint16(opALUImm),
		Data:     AluImmData{Op: AluAdd, Imm: total},
		Operands: []backend.Operand{fixedOperand(sp, backend.RoleFixedDef), fixedOperand(sp, backend.RoleFixedUse)},
	}
	vb.InsertBefore(before, loadRA)
	vb.InsertBefore(before, loadFP)
	vb.InsertBefore(before, addSP)
}
