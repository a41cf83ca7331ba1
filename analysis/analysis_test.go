package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/analysis"
	"github.com/corewind/xc/ir"
)

func sig() ir.Signature {
	return ir.Signature{CallConv: ir.CallConvSystemV, Params: []ir.Param{{Type: ir.TypeI32}}, Returns: []ir.Param{{Type: ir.TypeI32}}}
}

// buildDiamond builds entry -> {then, els} -> join, matching the prior art's pass_dom_test.go "diamond" case.
func buildDiamond(t *testing.T) (*ir.Function, ir.Block, ir.Block, ir.Block, ir.Block) {
	t.Helper()
	f := ir.NewFunction("diamond", sig())
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	p := b.AppendBlockParam(entry, ir.TypeI32)

	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	join := b.CreateBlock()
	joinParam := b.AppendBlockParam(join, ir.TypeI32)

	b.SetInsertionBlock(entry)
	b.Branch(p, thenBlk, nil, elseBlk, nil)

	b.AppendBlock(thenBlk)
	b.SetInsertionBlock(thenBlk)
	b.Jump(join, []ir.Value{p})

	b.AppendBlock(elseBlk)
	b.SetInsertionBlock(elseBlk)
	b.Jump(join, []ir.Value{p})

	b.AppendBlock(join)
	b.SetInsertionBlock(join)
	b.Return([]ir.Value{joinParam})

	return f, entry, thenBlk, elseBlk, join
}

func TestDomTree_Diamond(t *testing.T) {
	f, entry, thenBlk, elseBlk, join := buildDiamond(t)

	cfg := analysis.BuildCFG(f)
	dom := analysis.BuildDomTree(cfg)

	require.Equal(t, entry, dom.ImmediateDominator(thenBlk))
	require.Equal(t, entry, dom.ImmediateDominator(elseBlk))
	require.Equal(t, entry, dom.ImmediateDominator(join))
	require.True(t, dom.Dominates(entry, join))
	require.False(t, dom.Dominates(thenBlk, join))
	require.False(t, dom.StrictlyDominates(join, join))
	require.True(t, dom.Dominates(join, join))
}

// buildLoop builds entry -> header -> {body -> header, exit}, a single
// natural loop with header as the loop header and body as the latch.
func buildLoop(t *testing.T) (*ir.Function, ir.Block, ir.Block, ir.Block) {
	t.Helper()
	f := ir.NewFunction("loop", sig())
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	initVal := b.AppendBlockParam(entry, ir.TypeI32)

	header := b.CreateBlock()
	iv := b.AppendBlockParam(header, ir.TypeI32)

	body := b.CreateBlock()
	exit := b.CreateBlock()

	b.SetInsertionBlock(entry)
	b.Jump(header, []ir.Value{initVal})

	b.AppendBlock(header)
	b.SetInsertionBlock(header)
	zero := b.Iconst(ir.TypeI32, 0)
	cond := b.Icmp(ir.IntNe, iv, zero)
	b.Branch(cond, body, nil, exit, nil)

	b.AppendBlock(body)
	b.SetInsertionBlock(body)
	one := b.Iconst(ir.TypeI32, 1)
	next := b.Isub(iv, one)
	b.Jump(header, []ir.Value{next})

	b.AppendBlock(exit)
	b.SetInsertionBlock(exit)
	b.Return([]ir.Value{iv})

	return f, header, body, exit
}

func TestLoopForest_SingleLoop(t *testing.T) {
	f, header, body, exit := buildLoop(t)

	cfg := analysis.BuildCFG(f)
	dom := analysis.BuildDomTree(cfg)
	lf := analysis.BuildLoopForest(cfg, dom)

	require.True(t, lf.IsHeader(header))
	require.False(t, lf.IsHeader(body))
	require.False(t, lf.IsHeader(exit))

	loop := lf.LoopOf(header)
	require.NotNil(t, loop)
	require.Equal(t, body, loop.Latch)
	require.True(t, loop.Contains(header))
	require.True(t, loop.Contains(body))
	require.False(t, loop.Contains(exit))
}
