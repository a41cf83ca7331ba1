package transform

import "github.com/corewind/xc/ir"

// CriticalEdgeSplitting rewrites every Branch arm that passes block
// arguments into an unconditional jump through a fresh, single-
// predecessor block: the arm's BlockCall is retargeted to the new block
// with no arguments of its own, and the new block's sole instruction
// jumps on to the original destination carrying the original argument
// list. A Jump's single successor already lets its block-parameter
// moves land directly ahead of the jump with no hazard; this pass
// reduces every Branch arm to that same shape so the backend's lowering
// never has to choose between two destinations needing different moves
// behind one conditional test.
type CriticalEdgeSplitting struct{}

func (CriticalEdgeSplitting) Name() string { return "critical-edge-splitting" }

func (CriticalEdgeSplitting) Run(f *ir.Function) (bool, error) {
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
		for i := range d.Blocks {
			bc := d.Blocks[i]
			if !bc.Block.Valid() || len(f.BlockCallArgs(bc)) == 0 {
				continue
			}
			d.Blocks[i] = splitEdge(f, bc)
			changed = true
		}
	}
	return changed, nil
}

// splitEdge allocates a new block whose only instruction jumps to bc's
// original target carrying bc's original arguments, and returns the
// argument-free BlockCall the caller should substitute for bc.
func splitEdge(f *ir.Function, bc ir.BlockCall) ir.BlockCall {
	dfg := f.DFG()
	layout := f.Layout()

	edge := dfg.NewBlock()
	layout.AppendBlock(edge)
	jump := dfg.NewInst(ir.InstructionData{Opcode: ir.OpcodeJump, Blocks: [2]ir.BlockCall{bc, {}}})
	layout.AppendInst(edge, jump)

	return ir.BlockCall{Block: edge}
}
