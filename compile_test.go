package xc_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	xc "github.com/corewind/xc"
	"github.com/corewind/xc/ir"
)

func addOneFunction() *ir.Function {
	sig := ir.Signature{
		CallConv: ir.CallConvSystemV,
		Params:   []ir.Param{{Type: ir.TypeI64}},
		Returns:  []ir.Param{{Type: ir.TypeI64}},
	}
	f := ir.NewFunction("add_one", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendBlock(entry)
	x := b.AppendBlockParam(entry, ir.TypeI64)
	b.SetInsertionBlock(entry)
	one := b.Iconst(ir.TypeI64, 1)
	sum := b.Iadd(x, one)
	b.Return([]ir.Value{sum})
	return f
}

// Every byte xc.Compile hands back for an AArch64 target must decode as
// a well-formed instruction stream: a byte sequence that disassembles
// cleanly is a much stronger check on the encoder than asserting
// specific opcode bytes, and catches a stray Size()/Encode() length
// mismatch that manual byte assertions would miss.
func TestCompile_ARM64OutputDisassembles(t *testing.T) {
	art, err := xc.Compile(addOneFunction(), xc.TargetDescription{Arch: xc.ArchARM64, ABIVariant: "aapcs64"}, xc.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, art.Bytes)
	require.Zero(t, len(art.Bytes)%4)

	for off := 0; off < len(art.Bytes); off += 4 {
		inst, err := arm64asm.Decode(art.Bytes[off:])
		require.NoErrorf(t, err, "offset %d: %x", off, art.Bytes[off:off+4])
		require.NotEqual(t, arm64asm.Op(0), inst.Op, "offset %d decoded to an unrecognized opcode", off)
	}
}

func TestCompile_AMD64OutputDisassembles(t *testing.T) {
	art, err := xc.Compile(addOneFunction(), xc.TargetDescription{Arch: xc.ArchAMD64, ABIVariant: "systemv"}, xc.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, art.Bytes)

	off := 0
	for off < len(art.Bytes) {
		inst, err := x86asm.Decode(art.Bytes[off:], 64)
		require.NoErrorf(t, err, "offset %d: %x", off, art.Bytes[off:])
		require.NotZero(t, inst.Len)
		off += inst.Len
	}
	require.Equal(t, len(art.Bytes), off)
}
