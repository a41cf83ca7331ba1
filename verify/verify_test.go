package verify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/ir"
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

func TestRun_IdentityAdd(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32, ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	y := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(x, y)
	b.Return([]ir.Value{sum})

	require.NoError(t, verify.Run(f))
}

func TestRun_RejectsMismatchedArithmeticTypes(t *testing.T) {
	f := ir.NewFunction("f", sig([]ir.Type{ir.TypeI32, ir.TypeI64}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	y := b.AppendBlockParam(entry, ir.TypeI64)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(x, y) // i32 + i64: operand types disagree.
	b.Return([]ir.Value{sum})

	require.Error(t, verify.Run(f))
}

func TestRun_DiamondDominance(t *testing.T) {
	f := ir.NewFunction("max", sig([]ir.Type{ir.TypeI32, ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	a := b.AppendBlockParam(entry, ir.TypeI32)
	c := b.AppendBlockParam(entry, ir.TypeI32)

	join := b.CreateBlock()
	result := b.AppendBlockParam(join, ir.TypeI32)

	b.SetInsertionBlock(entry)
	cond := b.Icmp(ir.IntSgt, a, c)
	b.Branch(cond, join, []ir.Value{a}, join, []ir.Value{c})

	b.AppendBlock(join)
	b.SetInsertionBlock(join)
	b.Return([]ir.Value{result})

	require.NoError(t, verify.Run(f))
}
