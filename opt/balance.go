package opt

import (
	"math/bits"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
)

// BalanceExpressions reshapes chains of one associative, commutative
// integer operator into balanced trees, shortening the dependency chain:
//
//	((((a + b) + c) + d) + e)   =>   ((a + b) + c) + (d + e)
//
// The operators are reused and the sources keep their order.
type BalanceExpressions struct {
	cfgPass
	marker ir.Marker
}

// NewBalanceExpressions returns the pass rebalancing the associative
// chains of g.
func NewBalanceExpressions(g *ir.Graph, opts *Options) *BalanceExpressions {
	b := &BalanceExpressions{cfgPass: cfgPass{g: g, opts: opts}}
	b.SetLogger(NopLogger())
	return b
}

// SetLogger sets the logger of the pass.
func (p *BalanceExpressions) SetLogger(l *Logger) {
	p.Logger = l.forModule(color.BlueString("balance"))
}

func (p *BalanceExpressions) PassName() string { return "BalanceExpressions" }
func (p *BalanceExpressions) IsEnable() bool   { return p.opts.Balance }

// Invalidates is empty: the CFG is untouched.
func (p *BalanceExpressions) Invalidates() []ir.AnalysisKind { return nil }
func (p *BalanceExpressions) InvalidateAnalyses()            {}

// RunImpl rebalances every chain of g and returns true if any instruction
// moved.
func (p *BalanceExpressions) RunImpl() bool {
	holder := ir.NewMarkerHolder(p.g)
	defer holder.Release()
	p.marker = holder.Marker()
	changed := false
	for _, b := range p.g.BlocksRPO() {
		for _, i := range b.InstsSafeReverse() {
			if i.IsMarked(p.marker) || !i.IsCommutative() || !i.Opcode().IsBinary() || i.Type().IsFloat() {
				continue
			}
			if p.balance(b, i) {
				changed = true
			}
		}
	}
	return changed
}

// opChain is an operator tree rooted at root, its operators in post-order and
// its sources left to right.
type opChain struct {
	root  *ir.Inst
	ops   []*ir.Inst
	srcs  []*ir.Inst
	depth int
}

func (p *BalanceExpressions) collect(b *ir.Block, root *ir.Inst) *opChain {
	c := &opChain{root: root}
	continues := func(v *ir.Inst) bool {
		return v.Opcode() == root.Opcode() && v.Type() == root.Type() && v.Block() == b &&
			v.HasSingleUser() && !v.IsMarked(p.marker)
	}
	var walk func(v *ir.Inst) int
	walk = func(v *ir.Inst) int {
		depth := 0
		for _, in := range v.Inputs() {
			if !continues(in) {
				c.srcs = append(c.srcs, in)
				continue
			}
			if d := walk(in); d > depth {
				depth = d
			}
		}
		c.ops = append(c.ops, v)
		return depth + 1
	}
	c.depth = walk(root)
	return c
}

// OptimalDepth returns the depth of a balanced tree over n sources.
func OptimalDepth(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func (p *BalanceExpressions) balance(b *ir.Block, root *ir.Inst) bool {
	c := p.collect(b, root)
	for _, op := range c.ops {
		op.SetMarker(p.marker)
	}
	n := len(c.srcs)
	if n <= 3 || c.depth <= OptimalDepth(n) {
		return false
	}
	next := 0
	var build func(lo, hi int) *ir.Inst
	build = func(lo, hi int) *ir.Inst {
		if hi-lo == 1 {
			return c.srcs[lo]
		}
		mid := lo + (hi-lo+1)/2
		left, right := build(lo, mid), build(mid, hi)
		op := c.ops[next]
		next++
		op.SetInput(0, left)
		op.SetInput(1, right)
		return op
	}
	build(0, n)
	for _, op := range c.ops[:len(c.ops)-1] {
		b.RemoveInst(op)
	}
	for _, op := range c.ops[:len(c.ops)-1] {
		b.InsertBefore(op, root)
	}
	p.Debugf("%s %v: %d sources, depth %d -> %d", p.Module(), root, n, c.depth, OptimalDepth(n))
	p.emit(EventBalance, b.Loop(), root.PC(), "sources", n, "depth", c.depth, "balanced_depth", OptimalDepth(n))
	return true
}
