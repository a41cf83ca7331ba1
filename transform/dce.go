package transform

import "github.com/corewind/xc/ir"

// DeadCodeElimination removes instructions whose result is never used
// and which have no side effects. It computes liveness backward from
// side-effecting instructions and terminators, the standard sweep used
// by every SSA-based backend.
type DeadCodeElimination struct{}

func (DeadCodeElimination) Name() string { return "dead-code-elimination" }

func (DeadCodeElimination) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()

	live := map[ir.Inst]bool{}
	var worklist []ir.Inst

	markValue := func(v ir.Value) {
		if !v.Valid() {
			return
		}
		def := dfg.DefinitionOf(v)
		if def.Kind == ir.ValueDefInst && !live[def.Inst] {
			live[def.Inst] = true
			worklist = append(worklist, def.Inst)
		}
	}

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			if d.HasSideEffects() || d.IsTerminator() {
				if !live[i] {
					live[i] = true
					worklist = append(worklist, i)
				}
			}
		}
	}

	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		d := dfg.InstData(i)
		for _, a := range d.Args {
			markValue(a)
		}
		for _, v := range dfg.Operands(d.VarArgs) {
			markValue(v)
		}
		for _, bc := range d.Blocks {
			if bc.Block.Valid() {
				for _, v := range f.BlockCallArgs(bc) {
					markValue(v)
				}
			}
		}
	}

	changed := false
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); {
			next := layout.NextInst(i)
			if !live[i] {
				layout.RemoveInst(i)
				changed = true
			}
			i = next
		}
	}
	return changed, nil
}
