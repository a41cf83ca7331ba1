package selectordsl

// overlapKind is a three-way classification of how two rules'
// match patterns relate: "no" means no input can ever satisfy both (a
// conflicting opcode or immediate appears at some shared position),
// "yes-subset" means every input matching one also matches the other,
// and "yes-disjoint" means both can match the same input but neither
// pattern subsumes the other -- the genuinely ambiguous case.
type overlapKind int

const (
	overlapNo overlapKind = iota
	overlapSubset
	overlapAmbiguous
)

func classifyOverlap(a, b OpPattern) overlapKind {
	if conflicts(a, b) {
		return overlapNo
	}
	if subsumes(a, b) || subsumes(b, a) {
		return overlapSubset
	}
	return overlapAmbiguous
}

// conflicts reports whether no input can ever match both g and s: a
// required opcode or immediate differs at some position both patterns
// constrain.
func conflicts(g, s Pattern) bool {
	switch gv := g.(type) {
	case VarPattern, ImmVarPattern:
		return false // matches anything, never conflicts
	case ImmPattern:
		switch sv := s.(type) {
		case ImmPattern:
			return sv.Value != gv.Value
		case VarPattern, ImmVarPattern:
			return false
		default:
			return true // an opcode pattern can never equal a constant leaf
		}
	case OpPattern:
		sv, ok := s.(OpPattern)
		if !ok {
			if _, isVar := s.(VarPattern); isVar {
				return false
			}
			return true
		}
		if gv.Opcode != sv.Opcode {
			return true
		}
		n := len(gv.Args)
		if len(sv.Args) < n {
			n = len(sv.Args)
		}
		for i := 0; i < n; i++ {
			if conflicts(gv.Args[i], sv.Args[i]) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// subsumes reports whether every input matching s also matches g (g is
// at least as general as s everywhere).
func subsumes(g, s Pattern) bool {
	switch gv := g.(type) {
	case VarPattern, ImmVarPattern:
		return true
	case ImmPattern:
		sv, ok := s.(ImmPattern)
		return ok && sv.Value == gv.Value
	case OpPattern:
		sv, ok := s.(OpPattern)
		if !ok || sv.Opcode != gv.Opcode || len(sv.Args) != len(gv.Args) {
			return false
		}
		for i := range gv.Args {
			if !subsumes(gv.Args[i], sv.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// checkAmbiguity rejects any pair of equal-priority rules whose overlap
// is ambiguous.
func checkAmbiguity(rules []*Rule) error {
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			a, b := rules[i], rules[j]
			if a.Priority != b.Priority {
				continue
			}
			if classifyOverlap(a.Match, b.Match) == overlapAmbiguous {
				return newErr(b.Line, "rules %q and %q have equal priority %d and ambiguously overlapping patterns", a.Name, b.Name, a.Priority)
			}
		}
	}
	return nil
}
