package riscv64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/backend/isa/riscv64"
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

func TestMachine_LowersAdd(t *testing.T) {
	f := ir.NewFunction("add1", sig([]ir.Type{ir.TypeI64}, []ir.Type{ir.TypeI64}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI64)
	b.SetInsertionBlock(entry)
	one := b.Iconst(ir.TypeI64, 1)
	sum := b.Iadd(x, one)
	b.Return([]ir.Value{sum})

	m := riscv64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.NotEmpty(t, m.VCode().Blocks[0].Instrs)
}

func TestMachine_LowersIcmpAndBranch(t *testing.T) {
	f := ir.NewFunction("cmpbr", sig([]ir.Type{ir.TypeI32, ir.TypeI32}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	b.AppendBlock(entry)
	b.AppendBlock(thenBlk)
	b.AppendBlock(elseBlk)

	x := b.AppendBlockParam(entry, ir.TypeI32)
	y := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	cond := b.Icmp(ir.IntSgt, x, y)
	b.Branch(cond, thenBlk, nil, elseBlk, nil)

	b.SetInsertionBlock(thenBlk)
	b.Return([]ir.Value{x})

	b.SetInsertionBlock(elseBlk)
	b.Return([]ir.Value{y})

	m := riscv64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.Len(t, m.VCode().Blocks, 3)
}

// Select has no hardware conditional-move on RV64GC, so it must lower
// to more than one instruction (the branchless mask-and-blend
// sequence), unlike arm64's single CSEL.
func TestMachine_LowersSelectBranchlessly(t *testing.T) {
	f := ir.NewFunction("sel", sig([]ir.Type{ir.TypeI32, ir.TypeI64, ir.TypeI64}, []ir.Type{ir.TypeI64}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	cond := b.AppendBlockParam(entry, ir.TypeI32)
	x := b.AppendBlockParam(entry, ir.TypeI64)
	y := b.AppendBlockParam(entry, ir.TypeI64)
	b.SetInsertionBlock(entry)
	sel := b.Select(cond, x, y)
	b.Return([]ir.Value{sel})

	m := riscv64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.Greater(t, len(m.VCode().Blocks[0].Instrs), 2)
}

func TestMachine_LowersFabsViaFsgnjx(t *testing.T) {
	f := ir.NewFunction("fabs1", sig([]ir.Type{ir.TypeF64}, []ir.Type{ir.TypeF64}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeF64)
	b.SetInsertionBlock(entry)
	abs := b.Fabs(x)
	b.Return([]ir.Value{abs})

	m := riscv64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.NotEmpty(t, m.VCode().Blocks[0].Instrs)
}

// Every instruction encode.go emits must claim, via Size, exactly the
// byte count Encode actually appends.
func TestEncoder_SizeMatchesEncodeLength(t *testing.T) {
	f := ir.NewFunction("mix", sig([]ir.Type{ir.TypeI32, ir.TypeI32, ir.TypeI8}, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	b.AppendBlock(entry)
	b.AppendBlock(thenBlk)
	b.AppendBlock(elseBlk)
	x := b.AppendBlockParam(entry, ir.TypeI32)
	y := b.AppendBlockParam(entry, ir.TypeI32)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(x, y)
	narrow := b.Ireduce(ir.TypeI8, sum)
	wide := b.Sextend(ir.TypeI64, narrow)
	cond := b.Icmp(ir.IntSgt, sum, x)
	b.Branch(cond, thenBlk, nil, elseBlk, nil)
	b.SetInsertionBlock(thenBlk)
	b.Return([]ir.Value{sum})
	b.SetInsertionBlock(elseBlk)
	_ = wide
	b.Return([]ir.Value{x})

	m := riscv64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())

	enc := riscv64.NewEncoder(m.VCode())
	resolve := func(emit.Label) int64 { return 0 }
	for _, vb := range m.VCode().Blocks {
		for _, instr := range vb.Instrs {
			wantLen := enc.Size(instr, resolve)
			buf, _ := enc.Encode(nil, instr, 0, resolve)
			require.Equal(t, wantLen, len(buf), "opcode %d", instr.Opcode)
		}
	}
}
