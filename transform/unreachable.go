package transform

import "github.com/corewind/xc/ir"

// UnreachableBlockElimination removes blocks no path from the entry
// block reaches, grounded on the prior art's passDeadBlockElimination
// (ssa/opt.go): a reachability DFS from the entry followed by removing
// everything not visited.
type UnreachableBlockElimination struct{}

func (UnreachableBlockElimination) Name() string { return "unreachable-block-elimination" }

func (UnreachableBlockElimination) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	entry := f.EntryBlock()
	if !entry.Valid() {
		return false, nil
	}

	visited := map[ir.Block]bool{entry: true}
	stack := []ir.Block{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		last := layout.LastInst(b)
		if !last.Valid() {
			continue
		}
		d := dfg.InstData(last)
		for _, bc := range d.Blocks {
			if bc.Block.Valid() && !visited[bc.Block] {
				visited[bc.Block] = true
				stack = append(stack, bc.Block)
			}
		}
	}

	changed := false
	var dead []ir.Block
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		if !visited[b] {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		for i := layout.FirstInst(b); i.Valid(); {
			next := layout.NextInst(i)
			layout.RemoveInst(i)
			i = next
		}
		layout.RemoveBlock(b)
		changed = true
	}
	return changed, nil
}
