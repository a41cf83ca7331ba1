// Package verify checks that an ir.Function satisfies the structural
// invariants required before any analysis, transform, or lowering pass
// may run on it: a well-typed, well-terminated, single-definition IR
// graph. Every other package may assume a Function that passed
// verify.Run is well-formed; they do not re-check these invariants
// themselves.
package verify

import (
	"github.com/corewind/xc/internal/xerrors"
	"github.com/corewind/xc/ir"
)

// Run verifies f and returns nil if it is well-formed, or the first
// xerrors.Error (category CategoryVerifier) it finds otherwise. Checks
// run cheapest first: block/terminator shape (catches the most
// structurally broken IR), then per-instruction operand typing, then
// dominance of definitions over uses.
func Run(f *ir.Function) error {
	if err := checkBlocks(f); err != nil {
		return err
	}
	if err := checkInstructions(f); err != nil {
		return err
	}
	if err := checkDefsDominateUses(f); err != nil {
		return err
	}
	return nil
}

// checkBlocks verifies invariant I3 (every block ends in exactly one
// terminator, which is its last instruction) and that the entry block
// (invariant I4) takes no predecessors worth of block-call validation
// beyond what Builder already enforced at construction time.
func checkBlocks(f *ir.Function) error {
	layout := f.Layout()
	dfg := f.DFG()

	if !f.EntryBlock().Valid() {
		return xerrors.New(xerrors.CategoryVerifier, "", "function has no entry block")
	}

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		n := layout.NumInsts(b)
		if n == 0 {
			return xerrors.New(xerrors.CategoryVerifier, b.String(), "block is empty, must end in a terminator")
		}
		last := layout.LastInst(b)
		if !dfg.InstData(last).IsTerminator() {
			return xerrors.New(xerrors.CategoryVerifier, b.String(), "block does not end in a terminator")
		}
		seen := 0
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			if dfg.InstData(i).IsTerminator() {
				seen++
			}
			if i != last && dfg.InstData(i).IsTerminator() {
				return xerrors.New(xerrors.CategoryVerifier, i.String(), "terminator is not the last instruction in its block")
			}
		}
		if seen != 1 {
			return xerrors.New(xerrors.CategoryVerifier, b.String(), "block has %d terminators, want exactly 1", seen)
		}
	}
	return nil
}

// checkInstructions verifies that every fixed and variable-arity operand
// of every instruction has a type compatible with the opcode's
// requirements, and that every BlockCall's argument list matches its
// target block's parameter list in both arity and type.
func checkInstructions(f *ir.Function) error {
	layout := f.Layout()
	dfg := f.DFG()

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			if err := checkBlockCalls(f, i, d); err != nil {
				return err
			}
			if err := checkOperandTypes(i, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkBlockCalls(f *ir.Function, i ir.Inst, d *ir.InstructionData) error {
	check := func(bc ir.BlockCall) error {
		if !bc.Block.Valid() {
			return nil
		}
		args := f.BlockCallArgs(bc)
		params := f.DFG().Params(bc.Block)
		if len(args) != len(params) {
			return xerrors.New(xerrors.CategoryVerifier, i.String(),
				"block call to %s passes %d arguments, block has %d parameters", bc.Block, len(args), len(params))
		}
		for idx, a := range args {
			if a.Type() != params[idx].Type() {
				return xerrors.New(xerrors.CategoryVerifier, i.String(),
					"block call to %s argument %d: type %s does not match parameter type %s",
					bc.Block, idx, a.Type(), params[idx].Type())
			}
		}
		return nil
	}
	if err := check(d.Blocks[0]); err != nil {
		return err
	}
	return check(d.Blocks[1])
}

// checkOperandTypes enforces the handful of opcode families whose
// operand types are constrained beyond "must be Valid": arithmetic
// operands must share the result type, comparisons must compare equal
// types, and Select's branches must match its result type.
func checkOperandTypes(i ir.Inst, d *ir.InstructionData) error {
	for n, a := range d.Args {
		if !argUsed(d.Opcode, n) {
			continue
		}
		if !a.Valid() {
			return xerrors.New(xerrors.CategoryVerifier, i.String(), "operand %d of %s is not a valid value", n, d.Opcode)
		}
	}
	switch d.Opcode {
	case ir.OpcodeIadd, ir.OpcodeIsub, ir.OpcodeImul, ir.OpcodeUdiv, ir.OpcodeSdiv,
		ir.OpcodeUrem, ir.OpcodeSrem, ir.OpcodeBand, ir.OpcodeBor, ir.OpcodeBxor,
		ir.OpcodeFadd, ir.OpcodeFsub, ir.OpcodeFmul, ir.OpcodeFdiv:
		if d.Args[0].Type() != d.Type || d.Args[1].Type() != d.Type {
			return xerrors.New(xerrors.CategoryVerifier, i.String(), "%s operand type mismatch with result type %s", d.Opcode, d.Type)
		}
	case ir.OpcodeIcmp, ir.OpcodeFcmp:
		if d.Args[0].Type() != d.Args[1].Type() {
			return xerrors.New(xerrors.CategoryVerifier, i.String(), "%s operands have mismatched types %s vs %s", d.Opcode, d.Args[0].Type(), d.Args[1].Type())
		}
	case ir.OpcodeSelect:
		if d.Args[1].Type() != d.Type || d.Args[2].Type() != d.Type {
			return xerrors.New(xerrors.CategoryVerifier, i.String(), "select branch type mismatch with result type %s", d.Type)
		}
	}
	return nil
}

// argUsed reports whether the opcode reads Args[n] at all, so that
// unused positional slots (e.g. Args[1] of a unary op) are not flagged
// as invalid operands.
func argUsed(op ir.Opcode, n int) bool {
	arity := map[ir.Opcode]int{
		ir.OpcodeIadd: 2, ir.OpcodeIsub: 2, ir.OpcodeImul: 2, ir.OpcodeUdiv: 2, ir.OpcodeSdiv: 2,
		ir.OpcodeUrem: 2, ir.OpcodeSrem: 2, ir.OpcodeBand: 2, ir.OpcodeBor: 2, ir.OpcodeBxor: 2,
		ir.OpcodeIshl: 2, ir.OpcodeUshr: 2, ir.OpcodeSshr: 2, ir.OpcodeFadd: 2, ir.OpcodeFsub: 2,
		ir.OpcodeFmul: 2, ir.OpcodeFdiv: 2, ir.OpcodeIcmp: 2, ir.OpcodeFcmp: 2,
		ir.OpcodeBnot: 1, ir.OpcodeIneg: 1, ir.OpcodeFneg: 1, ir.OpcodeFabs: 1,
		ir.OpcodeSextend: 1, ir.OpcodeUextend: 1, ir.OpcodeIreduce: 1, ir.OpcodeFdemote: 1,
		ir.OpcodeFpromote: 1, ir.OpcodeFcvtToSint: 1, ir.OpcodeFcvtToUint: 1,
		ir.OpcodeFcvtFromSint: 1, ir.OpcodeFcvtFromUint: 1, ir.OpcodeBitcast: 1,
		ir.OpcodeFma: 3, ir.OpcodeSelect: 3, ir.OpcodeIaddCout: 2, ir.OpcodeIaddCin: 3,
		ir.OpcodeIaddImm: 1, ir.OpcodeBranch: 1, ir.OpcodeLoad: 1, ir.OpcodeStore: 2,
		ir.OpcodeStackStore: 1, ir.OpcodeSplat: 1, ir.OpcodeShuffle: 2,
		ir.OpcodeExtractLane: 1, ir.OpcodeInsertLane: 2, ir.OpcodeTrapz: 1, ir.OpcodeTrapnz: 1,
		ir.OpcodeCallIndirect: 1,
	}
	return n < arity[op]
}

// checkDefsDominateUses verifies invariant I5: every Value
// used by an instruction must be defined by an instruction or block
// parameter that dominates the use. Block-level dominance comes from
// computeQuickDominance (this package does not import analysis); when
// the definition and the use are in the same block, the defining
// instruction must come before the use.
func checkDefsDominateUses(f *ir.Function) error {
	dom, err := computeQuickDominance(f)
	if err != nil {
		return err
	}
	layout := f.Layout()
	dfg := f.DFG()

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		defined := map[ir.Inst]bool{}
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			check := func(v ir.Value) error {
				if !v.Valid() {
					return nil
				}
				def := dfg.DefinitionOf(v)
				var defBlock ir.Block
				switch def.Kind {
				case ir.ValueDefInst:
					defBlock = layout.BlockOf(def.Inst)
				case ir.ValueDefBlockParam:
					defBlock = def.Block
				default:
					return xerrors.New(xerrors.CategoryVerifier, i.String(), "use of unresolved alias value %s", v)
				}
				if !defBlock.Valid() {
					return xerrors.New(xerrors.CategoryVerifier, i.String(), "use of value %s defined in a removed instruction", v)
				}
				if !dom.dominates(defBlock, b) {
					return xerrors.New(xerrors.CategoryVerifier, i.String(), "value %s: definition in %s does not dominate use in %s", v, defBlock, b)
				}
				if def.Kind == ir.ValueDefInst && defBlock == b && !defined[def.Inst] {
					return xerrors.New(xerrors.CategoryVerifier, i.String(), "value %s is used before its definition in %s", v, b)
				}
				return nil
			}
			for _, a := range d.Args {
				if err := check(a); err != nil {
					return err
				}
			}
			for _, v := range dfg.Operands(d.VarArgs) {
				if err := check(v); err != nil {
					return err
				}
			}
			defined[i] = true
		}
	}
	return nil
}

// quickDom is the minimal block-dominance relation verify needs,
// computed independently of package analysis to avoid a layering cycle
// (analysis depends on a verified Function). It uses the standard
// iterative data-flow dominator algorithm (Cooper-Harvey-Kennedy),
// which package analysis later reimplements as its authoritative,
// richer DomTree with idoms and a tree-query API; this copy only
// answers "does A dominate B".
type quickDom struct {
	idom  map[ir.Block]ir.Block
	order map[ir.Block]int
}

func (q quickDom) dominates(a, b ir.Block) bool {
	if a == b {
		return true
	}
	cur, ok := q.idom[b]
	for ok {
		if cur == a {
			return true
		}
		cur, ok = q.idom[cur]
	}
	return false
}

func computeQuickDominance(f *ir.Function) (quickDom, error) {
	layout := f.Layout()
	entry := f.EntryBlock()

	order := map[ir.Block]int{}
	var rpo []ir.Block
	n := 0
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		order[b] = n
		rpo = append(rpo, b)
		n++
	}

	preds := map[ir.Block][]ir.Block{}
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		last := layout.LastInst(b)
		d := f.DFG().InstData(last)
		add := func(bc ir.BlockCall) {
			if bc.Block.Valid() {
				preds[bc.Block] = append(preds[bc.Block], b)
			}
		}
		add(d.Blocks[0])
		add(d.Blocks[1])
	}

	idom := map[ir.Block]ir.Block{entry: entry}
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom ir.Block
			first := true
			for _, p := range preds[b] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if first {
					newIdom = p
					first = false
					continue
				}
				newIdom = intersect(idom, order, newIdom, p)
			}
			if first {
				continue // unreachable block, flagged elsewhere if it matters.
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, entry) // entry has no idom of its own.
	return quickDom{idom: idom, order: order}, nil
}

func intersect(idom map[ir.Block]ir.Block, order map[ir.Block]int, a, b ir.Block) ir.Block {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}
