package transform

import "github.com/corewind/xc/ir"

// ConstantPhiElimination detects block parameters where every
// predecessor passes the same value (ignoring arguments that
// self-reference the parameter itself, i.e. a loop-carried value that
// never actually changes), and replaces the parameter with an alias to
// that common value. Grounded on the prior art's passRedundantPhiElimination
// (ssa/opt.go), adapted to this IR's alias mechanism instead of
// physically shrinking the parameter/argument lists: a later
// AliasResolution + DeadCodeElimination pass removes the now-dead
// parameter reads, which is simpler than renumbering every predecessor's
// BlockCall argument list in place and produces the same final code.
type ConstantPhiElimination struct{}

func (ConstantPhiElimination) Name() string { return "constant-phi-elimination" }

func (ConstantPhiElimination) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		if b == f.EntryBlock() {
			continue // entry params come from the caller, never redundant.
		}
		params := dfg.Params(b)
		for idx, param := range params {
			common, ok := commonIncomingValue(f, b, param, idx)
			if !ok || common == param {
				continue
			}
			dfg.SetAlias(param, common)
			changed = true
		}
	}
	return changed, nil
}

// commonIncomingValue returns the single non-self-referencing value
// passed to b's idx'th parameter across every predecessor, or ok=false
// if predecessors disagree.
func commonIncomingValue(f *ir.Function, b ir.Block, param ir.Value, idx int) (ir.Value, bool) {
	layout := f.Layout()
	dfg := f.DFG()
	var common ir.Value
	found := false

	for pred := layout.FirstBlock(); pred.Valid(); pred = layout.NextBlock(pred) {
		last := layout.LastInst(pred)
		if !last.Valid() {
			continue
		}
		d := dfg.InstData(last)
		for _, bc := range d.Blocks {
			if bc.Block != b {
				continue
			}
			args := f.BlockCallArgs(bc)
			if idx >= len(args) {
				continue
			}
			v := args[idx]
			if v == param {
				continue // self-reference, ignore.
			}
			if !found {
				common, found = v, true
				continue
			}
			if common != v {
				return ir.ValueInvalid, false
			}
		}
	}
	return common, found
}
