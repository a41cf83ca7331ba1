package transform

import "github.com/corewind/xc/ir"

// CopyPropagation aliases two kinds of copy to their source value: a
// Select whose two arms resolve to the same value, and a Bitcast to its
// operand's own type. Block parameters and extend/reduce round-trips
// are not folded. It runs after GVN so that two previously
// distinct-looking copies have already been numbered together.
type CopyPropagation struct{}

func (CopyPropagation) Name() string { return "copy-propagation" }

func (CopyPropagation) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			results := dfg.Results(i)
			if len(results) == 0 || !results[0].Valid() {
				continue
			}
			switch d.Opcode {
			case ir.OpcodeSelect:
				t, e := dfg.ResolveAlias(d.Args[1]), dfg.ResolveAlias(d.Args[2])
				if t == e {
					dfg.SetAlias(results[0], t)
					changed = true
				}
			case ir.OpcodeBitcast:
				if d.Type == d.Args[0].Type() {
					dfg.SetAlias(results[0], d.Args[0])
					changed = true
				}
			}
		}
	}
	return changed, nil
}
