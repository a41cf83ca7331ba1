package arm64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/backend/isa/arm64"
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

func countOps(vc *backend.VCode) int {
	n := 0
	for _, vb := range vc.Blocks {
		n += len(vb.Instrs)
	}
	return n
}

func TestMachine_LowersAddWithFoldedImmediate(t *testing.T) {
	f := ir.NewFunction("add1", sig([]ir.Type{ir.TypeI64}, []ir.Type{ir.TypeI64}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI64)
	b.SetInsertionBlock(entry)
	one := b.Iconst(ir.TypeI64, 1)
	sum := b.Iadd(x, one)
	b.Return([]ir.Value{sum})

	m := arm64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())

	vc := m.VCode()
	// The Iconst producing the folded immediate must never surface as
	// its own VInstr: a single addi plus the return is everything this
	// function lowers to.
	require.Equal(t, 2, countOps(vc))
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
	cond := b.Icmp(ir.IntSlt, x, y)
	b.Branch(cond, thenBlk, nil, elseBlk, nil)

	b.SetInsertionBlock(thenBlk)
	b.Return([]ir.Value{x})

	b.SetInsertionBlock(elseBlk)
	b.Return([]ir.Value{y})

	m := arm64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())
	require.Len(t, m.VCode().Blocks, 3)
}

func TestMachine_LowersCallWithDistinctResultRegisters(t *testing.T) {
	f := ir.NewFunction("caller", sig(nil, []ir.Type{ir.TypeI32}))
	calleeSig := sig(nil, []ir.Type{ir.TypeI32})
	sigID := f.DeclareSignature(&calleeSig)
	callee := f.DeclareFuncRef(ir.FuncRefData{Name: "callee", Signature: sigID})
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetInsertionBlock(entry)
	r1 := b.Call(callee, nil)
	r2 := b.Call(callee, nil)
	sum := b.Iadd(r1[0], r2[0])
	b.Return([]ir.Value{sum})

	m := arm64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())

	var calls int
	var results []backend.VReg
	for _, vb := range m.VCode().Blocks {
		for _, instr := range vb.Instrs {
			if instr.IsCall {
				calls++
				require.NotEmpty(t, instr.Operands)
				for _, op := range instr.Operands {
					if op.Role == backend.RoleFixedDef {
						// AAPCS64 returns the i32 result in x0 (register 0).
						require.Equal(t, backend.RealReg(0), op.Fixed)
						results = append(results, op.Reg)
					}
				}
			}
		}
	}
	require.Equal(t, 2, calls)
	// Each call defines its result in its own temporary VReg.
	require.Len(t, results, 2)
	require.NotEqual(t, results[0].ID(), results[1].ID())
}

func TestEncoder_SizesEveryPlainInstructionAsFourBytes(t *testing.T) {
	f := ir.NewFunction("ret0", sig(nil, []ir.Type{ir.TypeI32}))
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetInsertionBlock(entry)
	zero := b.Iconst(ir.TypeI32, 0)
	b.Return([]ir.Value{zero})

	m := arm64.NewMachine()
	c := backend.NewCompiler(f, m)
	require.NoError(t, c.Compile())

	enc := arm64.NewEncoder(m.VCode())
	for _, vb := range m.VCode().Blocks {
		for _, instr := range vb.Instrs {
			require.Equal(t, 4, enc.Size(instr, func(emit.Label) int64 { return 0 }))
		}
	}
}
