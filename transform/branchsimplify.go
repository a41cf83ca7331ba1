package transform

import "github.com/corewind/xc/ir"

// BranchSimplification rewrites a Branch into a Jump when either the
// condition resolves to a compile-time constant, or the two targets are
// identical with identical argument lists (a branch that goes the same
// place no matter what). This removes empty if/else shells a frontend
// or earlier pass can introduce (e.g. after Select folding collapses
// both arms to the same value).
type BranchSimplification struct{}

func (BranchSimplification) Name() string { return "branch-simplification" }

func (BranchSimplification) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		last := layout.LastInst(b)
		if !last.Valid() {
			continue
		}
		d := dfg.InstData(last)
		if d.Opcode != ir.OpcodeBranch {
			continue
		}

		if sameTarget(f, d.Blocks[0], d.Blocks[1]) {
			*d = ir.InstructionData{Opcode: ir.OpcodeJump, Blocks: [2]ir.BlockCall{d.Blocks[0], {}}, Pos: d.Pos}
			changed = true
			continue
		}

		cond := dfg.ResolveAlias(d.Args[0])
		def := dfg.DefinitionOf(cond)
		if def.Kind != ir.ValueDefInst {
			continue
		}
		condData := dfg.InstData(def.Inst)
		if condData.Opcode != ir.OpcodeIconst {
			continue
		}
		taken := d.Blocks[1]
		if condData.Imm != 0 {
			taken = d.Blocks[0]
		}
		*d = ir.InstructionData{Opcode: ir.OpcodeJump, Blocks: [2]ir.BlockCall{taken, {}}, Pos: d.Pos}
		changed = true
	}
	return changed, nil
}

func sameTarget(f *ir.Function, a, b ir.BlockCall) bool {
	if a.Block != b.Block {
		return false
	}
	aa, ba := f.BlockCallArgs(a), f.BlockCallArgs(b)
	if len(aa) != len(ba) {
		return false
	}
	for i := range aa {
		if f.DFG().ResolveAlias(aa[i]) != f.DFG().ResolveAlias(ba[i]) {
			return false
		}
	}
	return true
}
