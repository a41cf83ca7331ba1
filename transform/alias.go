package transform

import "github.com/corewind/xc/ir"

// AliasResolution walks every operand slot in the function, replacing
// each Value with DFG.ResolveAlias(v). It does not maintain def-use chains itself — it
// visits every instruction's Args, VarArgs, and every BlockCall's
// argument list directly, which is sufficient since Values are only
// ever read from those positions.
type AliasResolution struct{}

func (AliasResolution) Name() string { return "alias-resolution" }

func (AliasResolution) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	resolve := func(v ir.Value) ir.Value {
		if !v.Valid() {
			return v
		}
		r := dfg.ResolveAlias(v)
		if r != v {
			changed = true
		}
		return r
	}

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			for n := range d.Args {
				d.Args[n] = resolve(d.Args[n])
			}
			varArgs := dfg.Operands(d.VarArgs)
			for n := range varArgs {
				varArgs[n] = resolve(varArgs[n])
			}
			for n := range d.Blocks {
				bc := &d.Blocks[n]
				if !bc.Block.Valid() {
					continue
				}
				args := f.BlockCallArgs(*bc)
				for k := range args {
					args[k] = resolve(args[k])
				}
			}
		}
	}
	return changed, nil
}
