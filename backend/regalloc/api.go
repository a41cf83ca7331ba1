// Package regalloc implements linear-scan register allocation over a
// target-independent Function/Block/Instr abstraction, so the allocator
// itself never imports an isa/* package. Grounded on wazero's vendored
// backend/regalloc/api.go, carried over in interface shape
// (Function/Block/Instr and their method sets) and adapted to this
// module's backend.VReg and its RealReg-based fixed-register model.
package regalloc

import "github.com/corewind/xc/backend"

type (
	// Function is the top-level interface the allocator drives, one per
	// compiled function.
	Function interface {
		// NumBlocks returns the number of blocks, each identified by an
		// index in [0, NumBlocks).
		NumBlocks() int
		// Block returns the block at the given reverse-postorder index.
		Block(i int) Block
		// ClobberedRegisters receives the set of RealRegs this allocation
		// assigned to at least one VReg, so the caller can compute the
		// callee-saved set that needs prologue/epilogue spills.
		ClobberedRegisters([]backend.RealReg)
	}

	// Block is one basic block of Function's CFG.
	Block interface {
		ID() int
		Instrs() []Instr
		Preds() []Block
		Entry() bool
		// InsertSpillLoad splices a reload of the spill slot belonging to
		// spilled into reg immediately before at.
		InsertSpillLoad(at Instr, reg backend.RealReg, class backend.RegClass, spilled backend.VRegID)
		// InsertSpillStore splices a save of reg into the spill slot
		// belonging to spilled immediately after at.
		InsertSpillStore(at Instr, reg backend.RealReg, class backend.RegClass, spilled backend.VRegID)
		// InsertMove splices a register-register move from src to dst
		// immediately before at.
		InsertMove(at Instr, dst, src backend.RealReg, class backend.RegClass)
	}

	// Instr is one instruction, abstracted down to what the allocator
	// needs: its operand list (already role-annotated by the Machine
	// that produced it) and a few shape predicates.
	Instr interface {
		Operands() []backend.Operand
		// AssignOperand rewrites the VReg at index idx to reg, called once
		// allocation has decided the physical register.
		AssignOperand(idx int, reg backend.VReg)
		IsCopy() bool
		IsCall() bool
	}
)

// SpillCodegen is the subset of frame.ABI the allocator needs to
// synthesize reload/spill code around a live range it could not keep in
// a register. Declared structurally here rather than importing package
// frame, so this package keeps its "never imports an isa/* package"
// property (any frame.ABI implementation satisfies this interface
// without referring to it).
type SpillCodegen interface {
	EmitSpillLoad(vb *backend.VBlock, before *backend.VInstr, dst backend.RealReg, class backend.RegClass, spilled backend.VRegID)
	EmitSpillStore(vb *backend.VBlock, after *backend.VInstr, src backend.RealReg, class backend.RegClass, spilled backend.VRegID)
	EmitMove(vb *backend.VBlock, before *backend.VInstr, dst, src backend.RealReg, class backend.RegClass)
}
