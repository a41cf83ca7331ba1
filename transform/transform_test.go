package transform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/ir"
	"github.com/corewind/xc/transform"
	"github.com/corewind/xc/verify"
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

// TestPipeline_ConstantFold builds `func(i32) i32 { return (2+3)*x }`,
// runs the LevelDefault pipeline over it (GVN, copy propagation and
// branch simplification on top of the required passes), and checks the
// result still verifies.
func TestPipeline_ConstantFold(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)

	two := b.Iconst(ir.TypeI32, 2)
	three := b.Iconst(ir.TypeI32, 3)
	five := b.Iadd(two, three)
	result := b.Imul(five, x)
	b.Return([]ir.Value{result})

	require.NoError(t, verify.Run(f))

	pipeline := transform.NewPipeline(transform.LevelDefault)
	require.NoError(t, pipeline.Run(f))
	require.NoError(t, verify.Run(f))
}

func TestUnreachableBlockElimination_RemovesDeadBlock(t *testing.T) {
	f := ir.NewFunction("f", sig(nil, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	dead := b.CreateBlock()
	b.AppendBlock(dead)

	b.SetInsertionBlock(entry)
	zero := b.Iconst(ir.TypeI32, 0)
	b.Return([]ir.Value{zero})

	b.SetInsertionBlock(dead)
	b.Return([]ir.Value{zero})

	require.Equal(t, 2, f.Layout().NumBlocks())
	pass := transform.UnreachableBlockElimination{}
	changed, err := pass.Run(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, f.Layout().NumBlocks())
}

func TestDeadCodeElimination_RemovesUnusedPureInst(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	_ = b.Iadd(x, x) // unused
	b.Return([]ir.Value{x})

	require.Equal(t, 2, f.Layout().NumInsts(entry))
	pass := transform.DeadCodeElimination{}
	changed, err := pass.Run(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, f.Layout().NumInsts(entry))
}

func TestLegalization_WidensI16Arith(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI16, ir.TypeI16}, []ir.Type{ir.TypeI16}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI16)
	y := b.AppendBlockParam(entry, ir.TypeI16)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(x, y)
	b.Return([]ir.Value{sum})

	pass := transform.Legalization{}
	changed, err := pass.Run(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, verify.Run(f))

	// The result instruction is now an Ireduce back to i16.
	last := f.Layout().LastInst(entry)
	prev := f.Layout().PrevInst(last)
	require.Equal(t, ir.OpcodeIreduce, f.DFG().InstData(prev).Opcode)
}

func TestBranchSimplification_ConstantCondition(t *testing.T) {
	f := ir.NewFunction("f", sig(nil, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()

	b.SetInsertionBlock(entry)
	one := b.Iconst(ir.TypeI8, 1)
	b.Branch(one, thenBlk, nil, elseBlk, nil)

	b.AppendBlock(thenBlk)
	b.SetInsertionBlock(thenBlk)
	tv := b.Iconst(ir.TypeI32, 10)
	b.Return([]ir.Value{tv})

	b.AppendBlock(elseBlk)
	b.SetInsertionBlock(elseBlk)
	ev := b.Iconst(ir.TypeI32, 20)
	b.Return([]ir.Value{ev})

	pass := transform.BranchSimplification{}
	changed, err := pass.Run(f)
	require.NoError(t, err)
	require.True(t, changed)

	last := f.Layout().LastInst(entry)
	require.Equal(t, ir.OpcodeJump, f.DFG().InstData(last).Opcode)
}

// TestCriticalEdgeSplitting_InsertsEdgeBlockForBranchArgs builds a
// Branch whose then-arm passes a block argument, the case wazero's own
// lowering panics on ("conditional branch shouldn't have args"), and
// checks the pass retargets that arm through a fresh single-predecessor
// block carrying an argument-passing Jump instead.
func TestCriticalEdgeSplitting_InsertsEdgeBlockForBranchArgs(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()

	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	cond := b.Iconst(ir.TypeI8, 1)
	b.Branch(cond, thenBlk, []ir.Value{x}, elseBlk, nil)

	b.AppendBlock(thenBlk)
	p := b.AppendBlockParam(thenBlk, ir.TypeI32)
	b.SetInsertionBlock(thenBlk)
	b.Return([]ir.Value{p})

	b.AppendBlock(elseBlk)
	b.SetInsertionBlock(elseBlk)
	zero := b.Iconst(ir.TypeI32, 0)
	b.Return([]ir.Value{zero})

	require.NoError(t, verify.Run(f))

	pass := transform.CriticalEdgeSplitting{}
	changed, err := pass.Run(f)
	require.NoError(t, err)
	require.True(t, changed)

	last := f.Layout().LastInst(entry)
	d := f.DFG().InstData(last)
	require.Equal(t, ir.OpcodeBranch, d.Opcode)
	require.Empty(t, f.BlockCallArgs(d.Blocks[0]), "the then-arm must no longer carry args directly")
	require.Empty(t, f.BlockCallArgs(d.Blocks[1]))

	edge := d.Blocks[0].Block
	require.NotEqual(t, thenBlk, edge)
	edgeTerm := f.Layout().LastInst(edge)
	edgeData := f.DFG().InstData(edgeTerm)
	require.Equal(t, ir.OpcodeJump, edgeData.Opcode)
	require.Equal(t, thenBlk, edgeData.Blocks[0].Block)
	require.Equal(t, []ir.Value{x}, f.BlockCallArgs(edgeData.Blocks[0]))

	require.NoError(t, verify.Run(f))
}
