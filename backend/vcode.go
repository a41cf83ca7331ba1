package backend

import "github.com/corewind/xc/ir"

// OperandRole classifies how one machine instruction uses a VReg
// operand, the information register allocation's live-range builder
// needs: a Use is read, a Def is written and its
// previous value is dead on entry, a Mod is read-then-written (the
// value must stay live across the instruction), and Fixed pins the VReg
// to a specific RealReg the ISA's encoding hard-codes (e.g. a shift
// count, or an ABI-mandated return register).
type OperandRole uint8

const (
	RoleUse OperandRole = iota
	RoleDef
	RoleMod
	RoleFixedUse
	RoleFixedDef
)

// Operand is one VReg reference inside a VInstr, annotated with its role.
type Operand struct {
	Reg   VReg
	Role  OperandRole
	Fixed RealReg // valid when Role is RoleFixedUse/RoleFixedDef.
}

// VInstr is one target-specific abstract machine instruction. The
// payload (opcode, immediates, addressing mode) is target-defined and
// carried in Data; VCode and regalloc never interpret it, they only
// read Operands. Grounded on the prior art's per-ISA instruction struct
// shape (isa/arm64/instr.go): "kind + prev/next + u1/u2", generalized
// here into an opaque Data slot plus a uniform Operands list so
// regalloc.Allocator can stay target-independent.
type VInstr struct {
	Block    ir.Block
	Opcode   uint16 // target-defined opcode space, opaque to this package.
	Operands []Operand
	Data     any // target-specific payload (immediate, addressing mode, ...).

	// IsCopy, IsCall, and IsReturn are set by the Machine that emitted
	// this VInstr, since only the target knows which opcode values mean
	// what; regalloc and frame read them without interpreting Data.
	IsCopy   bool
	IsCall   bool
	IsReturn bool
}

// AssignOperand rewrites the VReg of the operand at idx, called by
// register allocation once it has picked a physical register.
func (i *VInstr) AssignOperand(idx int, reg VReg) { i.Operands[idx].Reg = reg }

// VBlock is one lowered block: its VInstr sequence and CFG successor
// edges (carried forward from the ir.Block the Machine lowered it from,
// since VCode's block order need not match the ir.Function's Layout
// order after block-layout optimization -- not implemented by this
// module's Compiler, which preserves Layout order, but VBlock keeps the
// field so a future block-reordering pass has somewhere to put the
// result, same as the prior art's pass_block_layout.go produces a new
// order consumed by the rest of the backend unchanged).
type VBlock struct {
	Source    ir.Block
	Instrs    []*VInstr
	Succs     []ir.Block
	IsEntry   bool
}

// VCode is the complete lowered form of one function: its VBlocks in
// emission order plus the VReg-to-RegClass table register allocation
// needs to pick compatible physical registers.
type VCode struct {
	Blocks     []*VBlock
	regClasses map[VRegID]RegClass
	numVRegs   int
	// FrameSize and spill-slot bookkeeping are filled in by package
	// frame after register allocation.
	StackSlots map[ir.StackSlot]int32      // slot -> frame-relative byte offset.
	SpillSlots map[VRegID]int32            // spilled VReg -> frame-relative byte offset.
	FrameSize  int32

	// Clobbered is filled in by register allocation: every RealReg it
	// assigned to at least one VReg, which package frame uses to compute
	// the callee-saved set the prologue must spill.
	Clobbered []RealReg
}

// NewVCode returns an empty VCode ready to be filled in by a Machine.
func NewVCode() *VCode {
	return &VCode{
		regClasses: map[VRegID]RegClass{},
		StackSlots: map[ir.StackSlot]int32{},
		SpillSlots: map[VRegID]int32{},
	}
}

// NewVReg allocates a fresh virtual register of the given class.
func (c *VCode) NewVReg(class RegClass) VReg {
	id := VRegID(c.numVRegs)
	c.numVRegs++
	v := makeVReg(id, class)
	c.regClasses[id] = class
	return v
}

// NumVRegs returns the number of virtual registers allocated so far.
func (c *VCode) NumVRegs() int { return c.numVRegs }

// ClassOf returns the register class of v.
func (c *VCode) ClassOf(v VReg) RegClass { return c.regClasses[v.ID()] }

// AppendBlock appends a new, empty VBlock for source and returns it.
func (c *VCode) AppendBlock(source ir.Block) *VBlock {
	vb := &VBlock{Source: source}
	c.Blocks = append(c.Blocks, vb)
	return vb
}

// Append appends instr to the end of vb's instruction list.
func (vb *VBlock) Append(instr *VInstr) { vb.Instrs = append(vb.Instrs, instr) }

// Prepend inserts instr at the start of vb's instruction list, used by
// prologue synthesis in package frame.
func (vb *VBlock) Prepend(instr *VInstr) {
	vb.Instrs = append([]*VInstr{instr}, vb.Instrs...)
}

// InsertBefore inserts instr immediately before before in vb's
// instruction list, used by epilogue synthesis in package frame to
// splice a teardown sequence ahead of a return instruction. Panics if
// before is not found in vb, a Machine/frame bug.
func (vb *VBlock) InsertBefore(before, instr *VInstr) {
	for i, cur := range vb.Instrs {
		if cur == before {
			vb.Instrs = append(vb.Instrs[:i:i], append([]*VInstr{instr}, vb.Instrs[i:]...)...)
			return
		}
	}
	panic("InsertBefore: target instruction not found in block")
}

// InsertAfter inserts instr immediately after after in vb's instruction
// list, used by register allocation to splice a spill store following
// the instruction that defines a spilled value. Panics if after is not
// found in vb, a Machine/regalloc bug.
func (vb *VBlock) InsertAfter(after, instr *VInstr) {
	for i, cur := range vb.Instrs {
		if cur == after {
			vb.Instrs = append(vb.Instrs[:i+1:i+1], append([]*VInstr{instr}, vb.Instrs[i+1:]...)...)
			return
		}
	}
	panic("InsertAfter: target instruction not found in block")
}
