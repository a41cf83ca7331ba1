package selectordsl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/selectordsl"
)

// leaf is a minimal selectordsl.MatchInput for an operand with no
// producer (a plain VReg-like value).
type leaf struct {
	id  int
	imm int64
	hasImm bool
}

func (l *leaf) Opcode() string    { return "" }
func (l *leaf) NumArgs() int      { return 0 }
func (l *leaf) Arg(int) selectordsl.MatchInput { return nil }
func (l *leaf) Imm() (int64, bool) { return l.imm, l.hasImm }
func (l *leaf) Token() any        { return l.id }

// node is a MatchInput for an instruction with a producer, used to test
// nested pattern matching (folding a constant operand into an
// immediate form).
type node struct {
	opcode string
	args   []selectordsl.MatchInput
	id     int
}

func (n *node) Opcode() string    { return n.opcode }
func (n *node) NumArgs() int      { return len(n.args) }
func (n *node) Arg(i int) selectordsl.MatchInput { return n.args[i] }
func (n *node) Imm() (int64, bool) { return 0, false }
func (n *node) Token() any        { return n.id }

func iconst(v int64) selectordsl.MatchInput { return &leaf{imm: v, hasImm: true} }

const rules = `
(rule add-imm 10
  (iadd x (imm c))
  (emit addi x c))

(rule add-reg 0
  (iadd x y)
  (emit add x y))
`

func TestCompile_PicksHigherPriorityRuleFirst(t *testing.T) {
	m, err := selectordsl.Compile(rules)
	require.NoError(t, err)

	x := &leaf{id: 1}
	in := &node{opcode: "iadd", args: []selectordsl.MatchInput{x, iconst(5)}}
	emitted, r, ok := m.Match(in)
	require.True(t, ok)
	require.Equal(t, "add-imm", r.Name)
	require.Equal(t, "addi", emitted.Op)
	require.Len(t, emitted.Args, 2)
	require.Equal(t, x, emitted.Args[0].Value)
	require.True(t, emitted.Args[1].IsImm)
	require.Equal(t, int64(5), emitted.Args[1].Imm)
}

func TestCompile_FallsBackToLowerPriorityRule(t *testing.T) {
	m, err := selectordsl.Compile(rules)
	require.NoError(t, err)

	x, y := &leaf{id: 1}, &leaf{id: 2}
	in := &node{opcode: "iadd", args: []selectordsl.MatchInput{x, y}}
	emitted, r, ok := m.Match(in)
	require.True(t, ok)
	require.Equal(t, "add-reg", r.Name)
	require.Equal(t, "add", emitted.Op)
}

func TestCompile_RejectsUnboundEmitVariable(t *testing.T) {
	_, err := selectordsl.Compile(`(rule bad 0 (iadd x y) (emit add x z))`)
	require.Error(t, err)
}

func TestCompile_RejectsAmbiguousEqualPriorityOverlap(t *testing.T) {
	// Neither rule subsumes the other (the constant 1 sits in a
	// different argument position in each) yet both can match an input
	// where both operands happen to be the constant 1.
	src := `
(rule a 5 (iadd x 1) (emit f1 x))
(rule b 5 (iadd 1 y) (emit f2 y))
`
	_, err := selectordsl.Compile(src)
	require.Error(t, err)
}

func TestCompile_RepeatedVariableRequiresSameOperand(t *testing.T) {
	m, err := selectordsl.Compile(`(rule dbl 0 (iadd x x) (emit double x))`)
	require.NoError(t, err)

	a, b := &leaf{id: 1}, &leaf{id: 2}
	_, _, ok := m.Match(&node{opcode: "iadd", args: []selectordsl.MatchInput{a, b}})
	require.False(t, ok, "distinct operands must not satisfy a repeated pattern variable")

	_, _, ok = m.Match(&node{opcode: "iadd", args: []selectordsl.MatchInput{a, a}})
	require.True(t, ok)
}
