package backend_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/internal/xerrors"
	"github.com/corewind/xc/ir"
)

func sig(params, returns []ir.Type) ir.Signature {
	toParams := func(ts []ir.Type) []ir.Param {
		ps := make([]ir.Param, len(ts))
		for i, t := range ts {
			ps[i] = ir.Param{Type: t}
		}
		return ps
	}
	return ir.Signature{CallConv: ir.CallConvSystemV, Params: toParams(params), Returns: toParams(returns)}
}

// recordingMachine is a minimal Machine fake exercising Compiler's
// driving contract: every instruction gets a VReg-mapped record, and
// LowerInstr can be told to fail on a given opcode to check that the
// Compiler surfaces a CategoryLowering error.
type recordingMachine struct {
	ctx        backend.CompilationContext
	vc         *backend.VCode
	cur        *backend.VBlock
	starts     []ir.Block
	failOpcode ir.Opcode
	failed     bool
}

func newRecordingMachine() *recordingMachine {
	return &recordingMachine{vc: backend.NewVCode()}
}

func (m *recordingMachine) SetCompilationContext(ctx backend.CompilationContext) { m.ctx = ctx }
func (m *recordingMachine) StartFunction(f *ir.Function)                        {}
func (m *recordingMachine) StartBlock(b ir.Block) {
	m.starts = append(m.starts, b)
	m.cur = m.vc.AppendBlock(b)
}

func (m *recordingMachine) LowerInstr(inst ir.Inst) error {
	d := m.ctx.Function().DFG().InstData(inst)
	if m.failOpcode != ir.OpcodeInvalid && d.Opcode == m.failOpcode {
		m.failed = true
		return xerrors.New(xerrors.CategoryDSL, inst.String(), "no rule matches %s in this fake", d.Opcode)
	}
	m.cur.Append(&backend.VInstr{Block: m.cur.Source, Data: d.Opcode})
	return nil
}

func (m *recordingMachine) LowerBranches(term ir.Inst) {
	d := m.ctx.Function().DFG().InstData(term)
	m.cur.Append(&backend.VInstr{Block: m.cur.Source, Data: d.Opcode})
}

func (m *recordingMachine) EndBlock()    {}
func (m *recordingMachine) EndFunction() {}
func (m *recordingMachine) VCode() *backend.VCode { return m.vc }
func (m *recordingMachine) Reset()                { *m = recordingMachine{vc: backend.NewVCode()} }

func buildAddFunc(t *testing.T) *ir.Function {
	t.Helper()
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32, ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	y := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(x, y)
	b.Return([]ir.Value{sum})
	return f
}

func TestCompiler_LowersEveryInstructionInReverseOrder(t *testing.T) {
	f := buildAddFunc(t)
	m := newRecordingMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())

	require.Len(t, m.vc.Blocks, 1)
	vb := m.vc.Blocks[0]
	// Return (the terminator) is lowered first via LowerBranches, then
	// Iadd via LowerInstr -- so the VInstr order is [Return, Iadd],
	// mirroring the prior art's tail-then-reverse-body traversal.
	require.Len(t, vb.Instrs, 2)
	require.Equal(t, ir.OpcodeReturn, vb.Instrs[0].Data)
	require.Equal(t, ir.OpcodeIadd, vb.Instrs[1].Data)
}

func TestCompiler_AssignsDistinctVRegsPerValue(t *testing.T) {
	f := buildAddFunc(t)
	m := newRecordingMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.Equal(t, 3, m.vc.NumVRegs()) // x, y, sum
}

func TestCompiler_SurfacesLoweringFailureAsCategoryLowering(t *testing.T) {
	f := buildAddFunc(t)
	m := newRecordingMachine()
	m.failOpcode = ir.OpcodeIadd
	c := backend.NewCompiler(f, m)
	err := c.Compile()
	require.Error(t, err)
	var xerr *xerrors.Error
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, xerrors.CategoryLowering, xerr.Category)
	require.True(t, m.failed)
}
