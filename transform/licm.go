package transform

import (
	"github.com/corewind/xc/analysis"
	"github.com/corewind/xc/ir"
)

// LoopInvariantCodeMotion hoists pure instructions whose operands are
// all defined outside a loop to that loop's unique entry predecessor
// (its preheader), so they execute once instead of once per iteration.
// It only fires on loops with a single predecessor outside the loop
// body, which is the common case for structured loops a Builder-driven
// frontend emits; a loop reached by multiple outside edges is left
// alone, and this pass never synthesizes a preheader block.
type LoopInvariantCodeMotion struct{}

func (LoopInvariantCodeMotion) Name() string { return "licm" }

func (LoopInvariantCodeMotion) Run(f *ir.Function) (bool, error) {
	cfg := analysis.BuildCFG(f)
	dom := analysis.BuildDomTree(cfg)
	lf := analysis.BuildLoopForest(cfg, dom)

	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for _, loop := range lf.Loops() {
		preheader, ok := uniqueOutsidePredecessor(cfg, loop)
		if !ok {
			continue
		}
		preheaderTerm := layout.LastInst(preheader)

		for b := range loop.Body {
			for i := layout.FirstInst(b); i.Valid(); {
				next := layout.NextInst(i)
				d := dfg.InstData(i)
				if d.IsPure() && allOperandsOutsideLoop(f, loop, d) {
					layout.RemoveInst(i)
					layout.InsertInstBefore(preheaderTerm, i)
					changed = true
				}
				i = next
			}
		}
	}
	return changed, nil
}

func uniqueOutsidePredecessor(cfg *analysis.CFG, loop *analysis.Loop) (ir.Block, bool) {
	var found ir.Block
	count := 0
	for _, p := range cfg.Predecessors(loop.Header) {
		if loop.Contains(p) {
			continue
		}
		found = p
		count++
	}
	return found, count == 1
}

func allOperandsOutsideLoop(f *ir.Function, loop *analysis.Loop, d *ir.InstructionData) bool {
	layout := f.Layout()
	dfg := f.DFG()
	check := func(v ir.Value) bool {
		if !v.Valid() {
			return true
		}
		def := dfg.DefinitionOf(v)
		switch def.Kind {
		case ir.ValueDefInst:
			return !loop.Contains(layout.BlockOf(def.Inst))
		case ir.ValueDefBlockParam:
			return !loop.Contains(def.Block)
		default:
			return false // unresolved alias: conservative.
		}
	}
	for _, a := range d.Args {
		if !check(a) {
			return false
		}
	}
	for _, v := range dfg.Operands(d.VarArgs) {
		if !check(v) {
			return false
		}
	}
	return true
}
