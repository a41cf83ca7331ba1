package selectordsl

// tryMatch attempts to match pattern p against in, recording variable
// and immediate bindings into b and var occurrences into ds. Returns
// false on any mismatch; b and ds may be partially populated on
// failure, which is fine since the caller discards them.
func tryMatch(p Pattern, in MatchInput, b *Bindings, ds *disjointSet) bool {
	switch v := p.(type) {
	case VarPattern:
		b.vars[v.Name] = in
		ds.record(v.Name, in.Token())
		return true
	case ImmPattern:
		n, ok := in.Imm()
		return ok && n == v.Value
	case ImmVarPattern:
		n, ok := in.Imm()
		if !ok {
			return false
		}
		b.imms[v.Name] = n
		return true
	case OpPattern:
		if in.Opcode() != v.Opcode {
			return false
		}
		if in.NumArgs() < len(v.Args) {
			return false
		}
		for i, sub := range v.Args {
			if !tryMatch(sub, in.Arg(i), b, ds) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// matchRule reports whether r's pattern matches in, returning the
// bindings on success.
func matchRule(r *Rule, in MatchInput) (*Bindings, bool) {
	if in.Opcode() != r.Match.Opcode {
		return nil, false
	}
	b := newBindings()
	ds := newDisjointSet()
	if !tryMatch(r.Match, in, b, ds) {
		return nil, false
	}
	if !ds.consistent() {
		return nil, false
	}
	return b, true
}

// Emitted is the result of a successful Match: the target opcode and
// its resolved arguments, each either a MatchInput (an operand to wire
// through) or a literal immediate.
type Emitted struct {
	Op   string
	Args []EmittedArg
}

// EmittedArg is one resolved emit-form argument.
type EmittedArg struct {
	Value MatchInput
	Imm   int64
	IsImm bool
}

func resolveEmit(r *Rule, b *Bindings) *Emitted {
	e := &Emitted{Op: r.EmitOp}
	for _, a := range r.EmitArgs {
		if a.IsImm {
			e.Args = append(e.Args, EmittedArg{Imm: a.Imm, IsImm: true})
			continue
		}
		if v, ok := b.Var(a.Var); ok {
			e.Args = append(e.Args, EmittedArg{Value: v})
			continue
		}
		if n, ok := b.Imm(a.Var); ok {
			e.Args = append(e.Args, EmittedArg{Imm: n, IsImm: true})
			continue
		}
	}
	return e
}
