package ir

import "github.com/corewind/xc/internal/container"

// defKind distinguishes the three ways a Value can be defined: result of an instruction, block parameter, or an alias installed
// by a transform.
type defKind uint8

const (
	defKindInst defKind = iota
	defKindBlockParam
	defKindAlias
)

// valueDef is the DFG's record of how one Value came to exist.
type valueDef struct {
	kind defKind

	// Valid when kind == defKindInst.
	inst   Inst
	result int

	// Valid when kind == defKindBlockParam.
	block Block
	param int

	// Valid when kind == defKindAlias. Forms a chain that must never
	// be cyclic.
	alias Value
}

// blockData is the DFG-owned portion of a Block: its typed parameter
// list. Instruction order belongs to the Layout, not here.
type blockData struct {
	params []Value
}

// DFG stores definitions and use sites but, deliberately, not execution
// order; order is the Layout's job. It owns the
// InstructionData table, the per-Value definition table, and the shared
// variable-length operand pool used for call arguments and BlockCall
// argument lists.
type DFG struct {
	insts  container.Table[InstructionData]
	values container.Table[valueDef]
	blocks container.Table[blockData]

	// operands is the single shared pool backing every variable-arity
	// operand list in the function: call/call_indirect arguments,
	// OpcodeReturn's returned values, and every BlockCall's argument
	// list.
	operands container.VarLengthPool[Value]

	// results maps each Inst to its result Values in order, so that
	// transforms (GVN, DCE) and Function.Format can recover "the value(s)
	// this instruction defines" without a linear scan of the value table.
	results map[Inst][]Value
}

func newDFG() DFG {
	return DFG{
		insts:    container.NewTable[InstructionData](),
		values:   container.NewTable[valueDef](),
		blocks:   container.NewTable[blockData](),
		operands: container.NewVarLengthPool[Value](),
		results:  map[Inst][]Value{},
	}
}

// InstData returns the InstructionData for i.
func (d *DFG) InstData(i Inst) *InstructionData { return d.insts.View(int(i)) }

// NumInsts returns the number of instructions allocated so far
// (including any later removed from the Layout — removal is logical,
// never freeing the slot).
func (d *DFG) NumInsts() int { return d.insts.Len() }

// NumValues returns the number of values allocated so far.
func (d *DFG) NumValues() int { return d.values.Len() }

func (d *DFG) allocInst(data InstructionData) Inst {
	ptr, idx := d.insts.Allocate()
	*ptr = data
	return Inst(idx)
}

func (d *DFG) allocValue(t Type) Value {
	ptr, idx := d.values.Allocate()
	*ptr = valueDef{kind: defKindInst}
	return valueWithType(ValueID(idx), t)
}

// defineInstResult records that result #n of inst is v.
func (d *DFG) defineInstResult(v Value, inst Inst, n int) {
	*d.values.View(int(v.ID())) = valueDef{kind: defKindInst, inst: inst, result: n}
	results := d.results[inst]
	for len(results) <= n {
		results = append(results, ValueInvalid)
	}
	results[n] = v
	d.results[inst] = results
}

// Results returns the result Values defined by inst, in order. Empty
// for instructions with no result (stores, jumps, branches, ...).
func (d *DFG) Results(inst Inst) []Value { return d.results[inst] }

// defineBlockParam records that param #n of block is v.
func (d *DFG) defineBlockParam(v Value, block Block, n int) {
	*d.values.View(int(v.ID())) = valueDef{kind: defKindBlockParam, block: block, param: n}
}

// ValueDefKind identifies a Value's definition kind, exported for
// consumers (the verifier, lowering) that need to branch on it without
// reaching into DFG internals.
type ValueDefKind uint8

const (
	ValueDefInst ValueDefKind = iota
	ValueDefBlockParam
	ValueDefAlias
)

// ValueDefinition describes how a Value is defined.
type ValueDefinition struct {
	Kind ValueDefKind

	Inst       Inst // valid when Kind == ValueDefInst
	ResultIdx  int
	Block      Block // valid when Kind == ValueDefBlockParam
	ParamIdx   int
	AliasValue Value // valid when Kind == ValueDefAlias
}

// DefinitionOf returns how v is defined.
func (d *DFG) DefinitionOf(v Value) ValueDefinition {
	vd := d.values.View(int(v.ID()))
	switch vd.kind {
	case defKindInst:
		return ValueDefinition{Kind: ValueDefInst, Inst: vd.inst, ResultIdx: vd.result}
	case defKindBlockParam:
		return ValueDefinition{Kind: ValueDefBlockParam, Block: vd.block, ParamIdx: vd.param}
	default:
		return ValueDefinition{Kind: ValueDefAlias, AliasValue: vd.alias}
	}
}

// SetAlias rewrites v's definition to be an alias of to. Used only by
// transforms (GVN, constant-phi removal); lowering must never observe
// an alias because alias resolution always runs first.
func (d *DFG) SetAlias(v, to Value) {
	*d.values.View(int(v.ID())) = valueDef{kind: defKindAlias, alias: to}
}

// ResolveAlias follows v's alias chain (if any) to its representative.
// Path is not compressed by this call alone; transform.AliasResolution
// does that in bulk across the whole function.
func (d *DFG) ResolveAlias(v Value) Value {
	for {
		vd := d.values.View(int(v.ID()))
		if vd.kind != defKindAlias {
			return v
		}
		v = vd.alias
	}
}

// Params returns the parameter values of block.
func (d *DFG) Params(block Block) []Value { return d.blocks.View(int(block)).params }

// AppendParam adds a new parameter of type t to block and returns its Value.
func (d *DFG) AppendParam(block Block, t Type) Value {
	bd := d.blocks.View(int(block))
	v := d.allocValue(t)
	n := len(bd.params)
	bd.params = append(bd.params, v)
	d.defineBlockParam(v, block, n)
	return v
}

func (d *DFG) allocBlock() Block {
	_, idx := d.blocks.Allocate()
	return Block(idx)
}

// NewBlock allocates a standalone block not yet attached to any Layout
// position, for passes (critical-edge splitting) that need to introduce
// new control-flow joins after construction; the caller must still call
// Layout.AppendBlock before branching to it.
func (d *DFG) NewBlock() Block { return d.allocBlock() }

// NewInst allocates a standalone instruction not yet attached to any
// Layout position, for passes (legalization) that build a replacement
// sequence and splice it in with Layout.InsertInstBefore.
func (d *DFG) NewInst(data InstructionData) Inst { return d.allocInst(data) }

// NewValue allocates a result Value of type t for an instruction built
// with NewInst, to be bound with DefineResult once the instruction is
// spliced into the Layout.
func (d *DFG) NewValue(t Type) Value { return d.allocValue(t) }

// DefineResult records that result #n of inst is v, for use alongside
// NewInst/NewValue.
func (d *DFG) DefineResult(v Value, inst Inst, n int) { d.defineInstResult(v, inst, n) }

// InternOperands interns a variable-arity Value list into the shared
// operand pool and returns its handle.
func (d *DFG) InternOperands(vs []Value) container.VarLenHandle {
	return d.operands.Intern(vs)
}

// Operands returns the Value slice referenced by h.
func (d *DFG) Operands(h container.VarLenHandle) []Value {
	return d.operands.View(h)
}
