package selectordsl

// buildRules interprets the generic parse forms into Rules, enforcing
// the grammar:
//
//	(rule <name> <priority> (<opcode> <pattern>...) (emit <target-op> <arg>...))
//
// where each <pattern> is a bare variable symbol, an integer literal
// (matches that exact immediate), `(imm <name>)` (binds a constant
// operand's immediate value to <name>), or a nested `(<opcode>
// <pattern>...)` matching the producer instruction of that operand.
func buildRules(forms []sexpr) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(forms))
	for _, f := range forms {
		r, err := buildRule(f)
		if err != nil {
			return nil, err
		}
		if err := checkVarsBound(r); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// checkVarsBound rejects an emit form referencing a variable the match
// pattern never binds -- the one unbound-variable class of error the
// DSL's error taxonomy names explicitly.
func checkVarsBound(r *Rule) error {
	bound := map[string]bool{}
	var walk func(Pattern)
	walk = func(p Pattern) {
		switch v := p.(type) {
		case VarPattern:
			bound[v.Name] = true
		case ImmVarPattern:
			bound[v.Name] = true
		case OpPattern:
			for _, a := range v.Args {
				walk(a)
			}
		}
	}
	walk(r.Match)
	for _, a := range r.EmitArgs {
		if !a.IsImm && !bound[a.Var] {
			return newErr(r.Line, "rule %q: emit references unbound variable %q", r.Name, a.Var)
		}
	}
	return nil
}

func buildRule(f sexpr) (*Rule, error) {
	if f.isAtom || len(f.list) != 5 || !f.list[0].isAtom || f.list[0].atom != "rule" {
		return nil, newErr(f.line, "expected (rule name priority (match) (emit)), got malformed form")
	}
	nameForm, prioForm, matchForm, emitForm := f.list[1], f.list[2], f.list[3], f.list[4]
	if !nameForm.isAtom {
		return nil, newErr(nameForm.line, "rule name must be a symbol")
	}
	prio, ok := prioForm.asInt()
	if !ok {
		return nil, newErr(prioForm.line, "rule priority must be an integer literal")
	}
	match, err := buildMatchPattern(matchForm)
	if err != nil {
		return nil, err
	}
	op, ok := match.(OpPattern)
	if !ok {
		return nil, newErr(matchForm.line, "rule's top-level match pattern must be an opcode pattern")
	}
	emitOp, emitArgs, err := buildEmitForm(emitForm)
	if err != nil {
		return nil, err
	}
	return &Rule{Name: nameForm.atom, Priority: int(prio), Match: op, EmitOp: emitOp, EmitArgs: emitArgs, Line: f.line}, nil
}

func buildMatchPattern(f sexpr) (Pattern, error) {
	if f.isAtom {
		if n, ok := f.asInt(); ok {
			return ImmPattern{Value: n}, nil
		}
		return VarPattern{Name: f.atom}, nil
	}
	if len(f.list) == 0 || !f.list[0].isAtom {
		return nil, newErr(f.line, "pattern list must start with an opcode or 'imm'")
	}
	head := f.list[0].atom
	if head == "imm" {
		if len(f.list) != 2 || !f.list[1].isAtom {
			return nil, newErr(f.line, "(imm <name>) takes exactly one variable name")
		}
		return ImmVarPattern{Name: f.list[1].atom}, nil
	}
	args := make([]Pattern, 0, len(f.list)-1)
	for _, sub := range f.list[1:] {
		p, err := buildMatchPattern(sub)
		if err != nil {
			return nil, err
		}
		args = append(args, p)
	}
	return OpPattern{Opcode: head, Args: args}, nil
}

func buildEmitForm(f sexpr) (string, []EmitArg, error) {
	if f.isAtom || len(f.list) < 2 || !f.list[0].isAtom || f.list[0].atom != "emit" {
		return "", nil, newErr(f.line, "expected (emit <target-op> <arg>...)")
	}
	if !f.list[1].isAtom {
		return "", nil, newErr(f.list[1].line, "emit target opcode must be a symbol")
	}
	var args []EmitArg
	for _, sub := range f.list[2:] {
		if !sub.isAtom {
			return "", nil, newErr(sub.line, "emit arguments must be plain symbols or integers")
		}
		if n, ok := sub.asInt(); ok {
			args = append(args, EmitArg{Imm: n, IsImm: true})
			continue
		}
		args = append(args, EmitArg{Var: sub.atom})
	}
	return f.list[1].atom, args, nil
}
