package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sig(params, returns []Type) Signature {
	toParams := func(ts []Type) []Param {
		ps := make([]Param, len(ts))
		for i, t := range ts {
			ps[i] = Param{Type: t}
		}
		return ps
	}
	return Signature{CallConv: CallConvSystemV, Params: toParams(params), Returns: toParams(returns)}
}

// buildIdentityAdd builds `func(i32, i32) i32 { return a + b }`.
func buildIdentityAdd(t *testing.T) *Function {
	t.Helper()
	f := NewFunction("identity_add", sig([]Type{TypeI32, TypeI32}, []Type{TypeI32}))
	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	a := b.AppendBlockParam(entry, TypeI32)
	c := b.AppendBlockParam(entry, TypeI32)
	b.SetInsertionBlock(entry)
	sum := b.Iadd(a, c)
	b.Return([]Value{sum})
	return f
}

func TestBuilder_IdentityAdd(t *testing.T) {
	f := buildIdentityAdd(t)

	require.Equal(t, 1, f.Layout().NumBlocks())
	entry := f.EntryBlock()
	require.True(t, entry.Valid())
	require.Equal(t, 2, f.Layout().NumInsts(entry))

	last := f.Layout().LastInst(entry)
	require.Equal(t, OpcodeReturn, f.DFG().InstData(last).Opcode)
	require.True(t, f.DFG().InstData(last).IsTerminator())
}

func TestBuilder_RejectsInsertAfterTerminator(t *testing.T) {
	f := NewFunction("bad", sig(nil, nil))
	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	b.SetInsertionBlock(entry)
	b.Return(nil)

	_, err := b.emit(InstructionData{Opcode: OpcodeIconst, Type: TypeI32, Imm: 1})
	require.Error(t, err)
}

func TestBuilder_BranchBlockCallArity(t *testing.T) {
	f := NewFunction("branchy", sig([]Type{TypeI8}, []Type{TypeI32}))
	b := NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	cond := b.AppendBlockParam(entry, TypeI8)

	thenBlk := b.CreateBlock()
	b.AppendBlock(thenBlk)
	elseBlk := b.CreateBlock()
	b.AppendBlock(elseBlk)

	b.SetInsertionBlock(entry)
	require.Panics(t, func() {
		b.Branch(cond, thenBlk, []Value{cond}, elseBlk, nil)
	})
}

// buildMax builds `func(i32, i32) i32 { if a > b { return a } else {
// return b } }` via a shared join block with a parameter.
func buildMax(t *testing.T) *Function {
	t.Helper()
	f := NewFunction("max", sig([]Type{TypeI32, TypeI32}, []Type{TypeI32}))
	b := NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlock(entry)
	a := b.AppendBlockParam(entry, TypeI32)
	c := b.AppendBlockParam(entry, TypeI32)

	join := b.CreateBlock()
	result := b.AppendBlockParam(join, TypeI32)

	b.SetInsertionBlock(entry)
	cond := b.Icmp(IntSgt, a, c)
	b.Branch(cond, join, []Value{a}, join, []Value{c})

	b.AppendBlock(join)
	b.SetInsertionBlock(join)
	b.Return([]Value{result})

	return f
}

func TestBuilder_Max(t *testing.T) {
	f := buildMax(t)
	require.Equal(t, 2, f.Layout().NumBlocks())
	require.Equal(t, TypeI32, f.DFG().Params(f.Layout().NextBlock(f.EntryBlock()))[0].Type())
}

func TestBuilder_Call(t *testing.T) {
	f := NewFunction("caller", sig([]Type{TypeI32}, []Type{TypeI32}))
	callee := f.DeclareFuncRef(FuncRefData{
		Name:      "callee",
		Signature: f.DeclareSignature(&Signature{CallConv: CallConvSystemV, Params: []Param{{Type: TypeI32}}, Returns: []Param{{Type: TypeI32}}}),
	})

	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	p := b.AppendBlockParam(entry, TypeI32)
	b.SetInsertionBlock(entry)
	results := b.Call(callee, []Value{p})
	require.Len(t, results, 1)
	require.Equal(t, TypeI32, results[0].Type())
	b.Return(results)
}
