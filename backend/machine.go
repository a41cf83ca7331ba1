package backend

import "github.com/corewind/xc/ir"

// Machine is a target-specific lowering backend, grounded on the prior art's Machine interface (backend/machine.go) and generalized from
// its Wasm-frontend-specific StartBlock(ssa.BasicBlock) signature to
// this module's ir.Block/ir.Function types.
type Machine interface {
	// SetCompilationContext is called once before the first compilation
	// this Machine performs, giving it access to VReg assignment and
	// the already-lowered marking the Compiler maintains.
	SetCompilationContext(CompilationContext)

	// StartFunction is called once per function, before any block is lowered.
	StartFunction(f *ir.Function)

	// StartBlock is called when lowering of blk begins.
	StartBlock(blk ir.Block)

	// LowerInstr lowers one instruction. Called in reverse program order
	// within a block (last instruction first), matching the prior art's
	// compiler.lowerBlock traversal, which lets a Machine fold a
	// single-use producer into its consumer by looking backward instead
	// of needing a forward multi-pass scan.
	LowerInstr(inst ir.Inst) error

	// LowerBranches lowers the terminator of the current block. Every
	// block in this IR has exactly one terminator, so unlike the prior
	// art's two-branch fused lowering hook this takes a single
	// instruction.
	LowerBranches(term ir.Inst)

	// EndBlock is called when lowering of the current block is finished.
	EndBlock()

	// EndFunction is called once lowering of every block has finished.
	EndFunction()

	// VCode returns the VCode assembled by this Machine's StartFunction
	// through EndFunction calls.
	VCode() *VCode

	// Reset prepares the Machine for lowering the next function.
	Reset()
}

// CompilationContext is passed to a Machine so it can drive the shared
// parts of lowering (VReg lookup, marking instructions as already
// consumed) without reaching into Compiler internals. Grounded on the prior art's CompilationContext (backend/machine.go).
type CompilationContext interface {
	// MarkLowered marks inst as already folded into another
	// instruction's lowering, so the Compiler's traversal skips emitting
	// it standalone.
	MarkLowered(inst ir.Inst)

	// IsLowered reports whether inst was already marked by MarkLowered.
	IsLowered(inst ir.Inst) bool

	// ValueDefinition returns the SSAValueDefinition for v, including
	// its assigned VReg.
	ValueDefinition(v ir.Value) SSAValueDefinition

	// VRegOf returns the VReg assigned to hold v.
	VRegOf(v ir.Value) VReg

	// Function returns the function currently being compiled.
	Function() *ir.Function
}
