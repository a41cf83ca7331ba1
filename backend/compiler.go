package backend

import (
	"fmt"

	"github.com/corewind/xc/analysis"
	"github.com/corewind/xc/internal/xerrors"
	"github.com/corewind/xc/ir"
)

// Compiler drives a Machine over a verified ir.Function, grounded on the prior art's compiler struct and NewBackendCompiler/Compile/lowerBlocks/
// lowerBlock (backend/compiler.go), generalized to this module's
// ir.Function and to running over an externally supplied CFG instead of
// ssa.Builder's built-in block iterator.
type Compiler struct {
	f    *ir.Function
	mach Machine
	cfg  *analysis.CFG

	vregs     map[ir.ValueID]VReg
	defs      map[ir.ValueID]SSAValueDefinition
	refCounts map[ir.ValueID]int
	lowered   map[ir.Inst]bool
}

// NewCompiler returns a Compiler that lowers f using mach.
func NewCompiler(f *ir.Function, mach Machine) *Compiler {
	c := &Compiler{
		f:         f,
		mach:      mach,
		cfg:       analysis.BuildCFG(f),
		vregs:     map[ir.ValueID]VReg{},
		defs:      map[ir.ValueID]SSAValueDefinition{},
		refCounts: map[ir.ValueID]int{},
		lowered:   map[ir.Inst]bool{},
	}
	mach.SetCompilationContext(c)
	return c
}

// Compile lowers the function into mach's VCode.
func (c *Compiler) Compile() error {
	c.assignVRegsAndCountRefs()
	c.mach.StartFunction(c.f)
	for _, b := range c.cfg.ReversePostorder() {
		if err := c.lowerBlock(b); err != nil {
			return err
		}
	}
	c.mach.EndFunction()
	return nil
}

// assignVRegsAndCountRefs gives every ir.Value in the function a VReg
// and records its SSAValueDefinition and use count, in one forward pass
// (grounded on the prior art's assignVirtualRegisters, compiler.go).
func (c *Compiler) assignVRegsAndCountRefs() {
	dfg := c.f.DFG()
	layout := c.f.Layout()
	vc := c.mach.VCode()

	classOf := func(t ir.Type) RegClass {
		if t.IsFloat() {
			return RegClassFloat
		}
		return RegClassInt
	}

	assign := func(v ir.Value, inst ir.Inst, isParam bool, resultIdx int) {
		if !v.Valid() {
			return
		}
		id := v.ID()
		if _, ok := c.vregs[id]; ok {
			return
		}
		reg := vc.NewVReg(classOf(v.Type()))
		c.vregs[id] = reg
		c.defs[id] = SSAValueDefinition{Value: v, VReg: reg, Inst: inst, IsBlockParam: isParam, ResultIdx: resultIdx}
	}

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for _, p := range dfg.Params(b) {
			assign(p, ir.InstInvalid, true, 0)
		}
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			for n, v := range dfg.Results(i) {
				assign(v, i, false, n)
			}
		}
	}

	countUse := func(v ir.Value) {
		if v.Valid() {
			c.refCounts[v.ID()]++
		}
	}
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			for _, a := range d.Args {
				countUse(a)
			}
			for _, v := range dfg.Operands(d.VarArgs) {
				countUse(v)
			}
			for _, bc := range d.Blocks {
				if bc.Block.Valid() {
					for _, v := range c.f.BlockCallArgs(bc) {
						countUse(v)
					}
				}
			}
		}
	}
}

// lowerBlock lowers one block's instructions in reverse order (grounded
// on the prior art's lowerBlock: terminator(s) first via LowerBranches,
// then the rest from tail to head so a Machine can fold a single-use
// producer it sees before its consumer).
func (c *Compiler) lowerBlock(b ir.Block) error {
	layout := c.f.Layout()
	dfg := c.f.DFG()

	c.mach.StartBlock(b)

	term := layout.LastInst(b)
	if term.Valid() {
		c.mach.LowerBranches(term)
		c.lowered[term] = true
	}

	cur := layout.PrevInst(term)
	for cur.Valid() {
		prev := layout.PrevInst(cur)
		if !c.lowered[cur] {
			if err := c.mach.LowerInstr(cur); err != nil {
				d := dfg.InstData(cur)
				return xerrors.Wrap(xerrors.CategoryLowering, cur.String(), err,
					"no lowering rule for %s with operand types %s", d.Opcode, operandTypeList(dfg, d))
			}
			c.lowered[cur] = true
		}
		cur = prev
	}

	c.mach.EndBlock()
	return nil
}

func operandTypeList(dfg *ir.DFG, d *ir.InstructionData) string {
	s := ""
	for i, a := range d.Args {
		if !a.Valid() {
			continue
		}
		if i > 0 {
			s += ","
		}
		s += a.Type().String()
	}
	return s
}

// MarkLowered implements CompilationContext.
func (c *Compiler) MarkLowered(inst ir.Inst) { c.lowered[inst] = true }

// IsLowered implements CompilationContext.
func (c *Compiler) IsLowered(inst ir.Inst) bool { return c.lowered[inst] }

// ValueDefinition implements CompilationContext.
func (c *Compiler) ValueDefinition(v ir.Value) SSAValueDefinition {
	def, ok := c.defs[v.ID()]
	if !ok {
		panic(fmt.Sprintf("no definition recorded for %s", v))
	}
	def.RefCount = c.refCounts[v.ID()]
	return def
}

// VRegOf implements CompilationContext.
func (c *Compiler) VRegOf(v ir.Value) VReg {
	reg, ok := c.vregs[v.ID()]
	if !ok {
		panic(fmt.Sprintf("no VReg assigned for %s", v))
	}
	return reg
}

// Function implements CompilationContext.
func (c *Compiler) Function() *ir.Function { return c.f }
