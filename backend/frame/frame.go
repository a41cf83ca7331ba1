// Package frame computes the ABI-independent parts of a function's
// stack frame and synthesizes its prologue and epilogue: a layout of
// saved-registers / explicit-slots / spill / outgoing-args areas,
// 16-byte aligned, and register/VCode naming conventions carried over
// from the isa/arm64 package, generalized across targets via the ABI
// interface below instead of being written once per ISA.
package frame

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/ir"
)

// ABI names the target-specific knobs frame layout needs: which
// RealRegs are callee-saved (and therefore need prologue/epilogue
// spill/reload if the allocator clobbers them), the frame/link register
// pair, and the stack pointer's required alignment.
type ABI interface {
	CalleeSaved(class backend.RegClass) []backend.RealReg
	FramePointer() backend.RealReg
	LinkRegister() backend.RealReg
	StackAlignment() int32
	// SlotSize returns the number of bytes one spill slot or explicit
	// StackSlot of the given class occupies before alignment padding.
	SlotSize(class backend.RegClass) int32

	// EmitSaveRestore appends the VInstrs that save (isSave true) or
	// restore a callee-saved register to/from the frame at byte offset
	// off relative to the frame pointer.
	EmitSaveRestore(vb *backend.VBlock, reg backend.RealReg, class backend.RegClass, off int32, isSave bool, prepend bool)
	// EmitFrameSetup appends the stack-pointer adjustment and
	// frame/link-register save sequence establishing a frame of size
	// frameSize.
	EmitFrameSetup(vb *backend.VBlock, frameSize int32)
	// EmitFrameTeardown appends the frame/link-register restore and
	// stack-pointer adjustment sequence undoing EmitFrameSetup, inserted
	// immediately before a return instruction.
	EmitFrameTeardown(vb *backend.VBlock, frameSize int32, before *backend.VInstr)

	// EmitSpillLoad inserts, immediately before before, a reload of the
	// spill slot belonging to spilled into dst. Used by register
	// allocation to rematerialize a spilled value ahead of a use.
	EmitSpillLoad(vb *backend.VBlock, before *backend.VInstr, dst backend.RealReg, class backend.RegClass, spilled backend.VRegID)
	// EmitSpillStore inserts, immediately after after, a save of src into
	// the spill slot belonging to spilled. Used by register allocation
	// following a def of a spilled value.
	EmitSpillStore(vb *backend.VBlock, after *backend.VInstr, src backend.RealReg, class backend.RegClass, spilled backend.VRegID)

	// EmitMove inserts, immediately before before, a register-register
	// move from src to dst of the given class. Used by register
	// allocation to land block-parameter values in their destination
	// registers and to break cycles while resolving a move group.
	EmitMove(vb *backend.VBlock, before *backend.VInstr, dst, src backend.RealReg, class backend.RegClass)
}

// Layout is the computed byte layout of one function's frame.
type Layout struct {
	SavedRegsBytes   int32
	ExplicitBytes    int32
	SpillBytes       int32
	OutgoingArgBytes int32
	TotalSize        int32

	// StackSlotOffsets maps every ir.StackSlot to its frame-relative
	// byte offset (from the frame pointer, growing toward lower
	// addresses per AArch64/x86-64 convention).
	StackSlotOffsets map[ir.StackSlot]int32
	// SpillOffsets maps each spilled VRegID (see regalloc.Result) to its
	// frame-relative byte offset.
	SpillOffsets map[backend.VRegID]int32
}

func align(n, to int32) int32 {
	if n%to == 0 {
		return n
	}
	return n + (to - n%to)
}

// Compute lays out the frame for a function given its explicit stack
// slots, the clobbered callee-saved registers register allocation
// reported, the spill slots it assigned, and the largest outgoing call
// argument area any Call/CallIndirect in the function needs.
func Compute(f *ir.Function, abi ABI, clobbered []backend.RealReg, spillSlots map[backend.VRegID]int, outgoingArgBytes int32) *Layout {
	l := &Layout{
		StackSlotOffsets: map[ir.StackSlot]int32{},
		SpillOffsets:     map[backend.VRegID]int32{},
	}

	calleeSavedSet := map[backend.RealReg]backend.RegClass{}
	for _, class := range []backend.RegClass{backend.RegClassInt, backend.RegClassFloat} {
		saved := map[backend.RealReg]bool{}
		for _, r := range abi.CalleeSaved(class) {
			saved[r] = true
		}
		for _, r := range clobbered {
			if saved[r] {
				calleeSavedSet[r] = class
			}
		}
	}
	var savedOrder []backend.RealReg
	for r := range calleeSavedSet {
		savedOrder = append(savedOrder, r)
	}
	sortRealRegs(savedOrder)
	for _, r := range savedOrder {
		l.SavedRegsBytes += abi.SlotSize(calleeSavedSet[r])
	}
	savedOffset := l.SavedRegsBytes

	var explicitOrder []ir.StackSlot
	for i := 0; i < f.NumStackSlots(); i++ {
		explicitOrder = append(explicitOrder, ir.StackSlot(i))
	}
	off := savedOffset
	for _, slot := range explicitOrder {
		size, alignment, _ := f.StackSlotInfo(slot)
		off = align(off, int32(alignment))
		l.StackSlotOffsets[slot] = off
		off += int32(size)
	}
	l.ExplicitBytes = off - savedOffset

	spillOff := off
	var spillOrder []backend.VRegID
	for id := range spillSlots {
		spillOrder = append(spillOrder, id)
	}
	sortVRegIDs(spillOrder)
	for _, id := range spillOrder {
		l.SpillOffsets[id] = spillOff
		spillOff += 8 // conservative: every spill slot is one machine word.
	}
	l.SpillBytes = spillOff - off

	l.OutgoingArgBytes = outgoingArgBytes
	total := spillOff + outgoingArgBytes
	l.TotalSize = align(total, abi.StackAlignment())
	return l
}

// EmitPrologueEpilogue prepends abi's frame-setup sequence to entry,
// the callee-saved register spills after it, and the matching teardown
// before every return terminator in the function's VCode.
func EmitPrologueEpilogue(vc *backend.VCode, abi ABI, layout *Layout, clobbered []backend.RealReg) {
	if len(vc.Blocks) == 0 {
		return
	}
	entry := vc.Blocks[0]
	prologue := &backend.VBlock{Source: entry.Source}
	abi.EmitFrameSetup(prologue, layout.TotalSize)

	var off int32
	for _, r := range sortedClobberedByABI(abi, clobbered) {
		class := classOf(abi, r)
		abi.EmitSaveRestore(prologue, r, class, off, true, false)
		off += abi.SlotSize(class)
	}
	entry.Instrs = append(prologue.Instrs, entry.Instrs...)

	for _, vb := range vc.Blocks {
		for _, instr := range vb.Instrs {
			if instr.IsReturn {
				restores := &backend.VBlock{Source: vb.Source}
				var roff int32
				for _, r := range sortedClobberedByABI(abi, clobbered) {
					class := classOf(abi, r)
					abi.EmitSaveRestore(restores, r, class, roff, false, false)
					roff += abi.SlotSize(class)
				}
				for _, ri := range restores.Instrs {
					vb.InsertBefore(instr, ri)
				}
				abi.EmitFrameTeardown(vb, layout.TotalSize, instr)
			}
		}
	}
}

func classOf(abi ABI, r backend.RealReg) backend.RegClass {
	for _, c := range abi.CalleeSaved(backend.RegClassFloat) {
		if c == r {
			return backend.RegClassFloat
		}
	}
	return backend.RegClassInt
}

func sortedClobberedByABI(abi ABI, clobbered []backend.RealReg) []backend.RealReg {
	out := append([]backend.RealReg(nil), clobbered...)
	sortRealRegs(out)
	return out
}

func sortRealRegs(rs []backend.RealReg) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1] > rs[j]; j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}

func sortVRegIDs(ids []backend.VRegID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
