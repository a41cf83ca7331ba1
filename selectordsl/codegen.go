package selectordsl

import "sort"

// Matcher is the compiled form of a rule file: priority-ordered rules
// ready to be tried against instructions at lowering time. "Codegen"
// here means compiling the rule file down to this in-memory dispatch
// structure, not emitting Go source -- see DESIGN.md for why no
// generated-source step is used.
type Matcher struct {
	rules  []*Rule
	binds  *bindingTable
	ids    map[*Rule]BindingID
}

// Compile parses, type-checks, and overlap-checks src (the contents of
// a rule file), returning a Matcher or the first DSLError encountered.
func Compile(src string) (*Matcher, error) {
	forms, err := parseTopLevel(src)
	if err != nil {
		return nil, err
	}
	rules, err := buildRules(forms)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	if err := checkAmbiguity(rules); err != nil {
		return nil, err
	}

	bt := newBindingTable()
	ids := make(map[*Rule]BindingID, len(rules))
	for _, r := range rules {
		ids[r] = bt.fromPattern(r.Match)
	}
	return &Matcher{rules: rules, binds: bt, ids: ids}, nil
}

// Match tries every rule in descending priority order and returns the
// first one matching in, resolved into an Emitted form.
func (m *Matcher) Match(in MatchInput) (*Emitted, *Rule, bool) {
	for _, r := range m.rules {
		if b, ok := matchRule(r, in); ok {
			return resolveEmit(r, b), r, true
		}
	}
	return nil, nil, false
}

// Rules returns the compiled rules in the priority order Match uses,
// for diagnostics and testing.
func (m *Matcher) Rules() []*Rule { return m.rules }
