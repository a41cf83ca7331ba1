package selectordsl

// Pattern is one node of a rule's match tree: either a nested opcode
// match against a producer instruction, a variable binding, or a
// literal immediate match.
type Pattern interface{ isPattern() }

// OpPattern matches an instruction whose opcode is Opcode, recursing
// into Args to match its operands.
type OpPattern struct {
	Opcode string
	Args   []Pattern
}

func (OpPattern) isPattern() {}

// VarPattern matches anything and binds it to Name for use in the
// rule's emit form. The same Name used twice within one rule requires
// both occurrences to resolve to the same operand (disjoint-set
// equality over repeated pattern variables).
type VarPattern struct{ Name string }

func (VarPattern) isPattern() {}

// ImmPattern matches only a constant-producing leaf whose immediate
// equals Value exactly.
type ImmPattern struct{ Value int64 }

func (ImmPattern) isPattern() {}

// ImmVarPattern matches a constant-producing leaf and binds its
// immediate value (not the producing instruction) to Name.
type ImmVarPattern struct{ Name string }

func (ImmVarPattern) isPattern() {}

// EmitArg is one argument of a rule's emit form: a reference to a bound
// pattern variable, or a literal immediate.
type EmitArg struct {
	Var   string
	Imm   int64
	IsImm bool
}

// Rule is one compiled (rule ...) form.
type Rule struct {
	Name     string
	Priority int
	Match    OpPattern
	EmitOp   string
	EmitArgs []EmitArg
	Line     int
}
