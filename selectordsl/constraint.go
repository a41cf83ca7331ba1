package selectordsl

// Bindings is the result of successfully matching a rule: the operand
// (or nested producer) each pattern variable resolved to, and the
// immediate value each (imm name) leaf resolved to.
type Bindings struct {
	vars map[string]MatchInput
	imms map[string]int64
}

func newBindings() *Bindings {
	return &Bindings{vars: map[string]MatchInput{}, imms: map[string]int64{}}
}

// Var returns the operand bound to name by a VarPattern.
func (b *Bindings) Var(name string) (MatchInput, bool) {
	v, ok := b.vars[name]
	return v, ok
}

// Imm returns the immediate bound to name by an (imm name) pattern.
func (b *Bindings) Imm(name string) (int64, bool) {
	v, ok := b.imms[name]
	return v, ok
}

// disjointSet groups pattern-variable occurrences by name and, once a
// rule has matched, checks that every occurrence of the same name
// resolved to the identical operand -- "disjoint-set equality" over
// repeated pattern variables, e.g. (iadd x x) requiring both
// operands to be the same Value. Implemented as a plain name->tokens
// map rather than a path-compressing union-find structure, since a
// single rule's pattern tree is small enough that the distinction never
// matters in practice.
type disjointSet struct {
	occurrences map[string][]any
}

func newDisjointSet() *disjointSet { return &disjointSet{occurrences: map[string][]any{}} }

func (d *disjointSet) record(name string, token any) {
	d.occurrences[name] = append(d.occurrences[name], token)
}

func (d *disjointSet) consistent() bool {
	for _, tokens := range d.occurrences {
		for i := 1; i < len(tokens); i++ {
			if tokens[i] != tokens[0] {
				return false
			}
		}
	}
	return true
}
