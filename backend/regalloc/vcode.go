package regalloc

import (
	"github.com/corewind/xc/analysis"
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/ir"
)

// vcodeFunction adapts a backend.VCode (plus the analysis.CFG of the
// ir.Function it was lowered from) to the Function/Block/Instr
// interfaces, so Allocator never imports package ir or a specific
// isa/* package.
type vcodeFunction struct {
	vc     *backend.VCode
	blocks []*vcodeBlock
}

// NewFunction builds the regalloc view of vc. f must be the same
// ir.Function the Compiler lowered into vc, so predecessor edges can be
// recovered from its CFG (VBlock does not carry predecessor pointers,
// only Source, since the Compiler emits blocks in forward
// reverse-postorder order and never needs them going backward). codegen
// supplies the target-specific spill load/store sequences the allocator
// splices in around a live range it could not keep in a register.
func NewFunction(vc *backend.VCode, f *ir.Function, codegen SpillCodegen) Function {
	cfg := analysis.BuildCFG(f)
	bySource := make(map[ir.Block]*vcodeBlock, len(vc.Blocks))
	fn := &vcodeFunction{vc: vc}
	for i, vb := range vc.Blocks {
		vbb := &vcodeBlock{id: i, vb: vb, entry: vb.Source == f.EntryBlock(), codegen: codegen}
		bySource[vb.Source] = vbb
		fn.blocks = append(fn.blocks, vbb)
	}
	for _, vbb := range fn.blocks {
		for _, p := range cfg.Predecessors(vbb.vb.Source) {
			if pb, ok := bySource[p]; ok {
				vbb.preds = append(vbb.preds, pb)
			}
		}
	}
	return fn
}

func (f *vcodeFunction) NumBlocks() int { return len(f.blocks) }
func (f *vcodeFunction) Block(i int) Block { return f.blocks[i] }
func (f *vcodeFunction) ClobberedRegisters(regs []backend.RealReg) {
	f.vc.Clobbered = append(f.vc.Clobbered[:0], regs...)
}

type vcodeBlock struct {
	id      int
	vb      *backend.VBlock
	preds   []*vcodeBlock
	entry   bool
	instrs  []Instr
	codegen SpillCodegen
}

func (b *vcodeBlock) ID() int    { return b.id }
func (b *vcodeBlock) Entry() bool { return b.entry }
func (b *vcodeBlock) Preds() []Block {
	out := make([]Block, len(b.preds))
	for i, p := range b.preds {
		out[i] = p
	}
	return out
}

func (b *vcodeBlock) Instrs() []Instr {
	if b.instrs == nil {
		b.instrs = make([]Instr, len(b.vb.Instrs))
		for i, vi := range b.vb.Instrs {
			b.instrs[i] = &vcodeInstr{vi: vi}
		}
	}
	return b.instrs
}

// InsertSpillLoad and InsertSpillStore invalidate the cached Instrs
// slice, since they change the underlying VBlock's instruction list;
// the allocator never re-reads Instrs after it starts assigning
// registers, so this only matters for callers outside that one pass.
func (b *vcodeBlock) InsertSpillLoad(at Instr, reg backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
	b.codegen.EmitSpillLoad(b.vb, at.(*vcodeInstr).vi, reg, class, spilled)
	b.instrs = nil
}

func (b *vcodeBlock) InsertSpillStore(at Instr, reg backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
	b.codegen.EmitSpillStore(b.vb, at.(*vcodeInstr).vi, reg, class, spilled)
	b.instrs = nil
}

func (b *vcodeBlock) InsertMove(at Instr, dst, src backend.RealReg, class backend.RegClass) {
	b.codegen.EmitMove(b.vb, at.(*vcodeInstr).vi, dst, src, class)
	b.instrs = nil
}

// vcodeInstr wraps a *backend.VInstr rather than converting it, since
// VInstr's IsCopy/IsCall fields would otherwise collide with this type's
// method names of the same spelling.
type vcodeInstr struct{ vi *backend.VInstr }

func (i *vcodeInstr) Operands() []backend.Operand { return i.vi.Operands }
func (i *vcodeInstr) AssignOperand(idx int, reg backend.VReg) { i.vi.AssignOperand(idx, reg) }
func (i *vcodeInstr) IsCopy() bool { return i.vi.IsCopy }
func (i *vcodeInstr) IsCall() bool { return i.vi.IsCall }
