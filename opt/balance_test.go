package opt

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

func balance(g *ir.Graph) {
	RunPass(NewBalanceExpressions(g, DefaultOptions()))
}

// chainOf builds ((p0 op p1) op p2) ... op pn-1 over n parameters of type t.
func chainOf(op ir.Opcode, t ir.Type, n int) func() *ir.Graph {
	return func() *ir.Graph {
		b := irtest.New("chain")
		ps := make([]*ir.Inst, n)
		for k := range ps {
			ps[k] = b.Param(t)
		}
		v := ps[0]
		for _, p := range ps[1:] {
			v = b.Bin(op, t, v, p)
		}
		b.Return(v)
		return b.G
	}
}

// depth returns the height of the tree of op rooted at v.
func depth(v *ir.Inst, op ir.Opcode) int {
	if v.Opcode() != op {
		return 0
	}
	d := 0
	for _, in := range v.Inputs() {
		if x := depth(in, op); x > d {
			d = x
		}
	}
	return d + 1
}

func returned(g *ir.Graph) *ir.Inst {
	for _, b := range g.Blocks() {
		if term := b.Terminator(); term != nil && term.Opcode() == ir.OpReturn {
			return term.Input(0)
		}
	}
	return nil
}

func TestBalanceChain(t *testing.T) {
	for _, tc := range []struct {
		op ir.Opcode
		n  int
	}{
		{ir.OpAdd, 4}, {ir.OpAdd, 5}, {ir.OpAdd, 6}, {ir.OpMul, 8}, {ir.OpXor, 9}, {ir.OpAnd, 16},
	} {
		build := chainOf(tc.op, ir.Int64, tc.n)
		g := build()
		events := new(ir.EventList)
		g.SetEventWriter(events)
		cfg := g.CFGVersion()
		if !RunPass(NewBalanceExpressions(g, DefaultOptions())) {
			t.Fatalf("%s chain of %d should be balanced", tc.op, tc.n)
		}
		check(t, g)
		if want, got := OptimalDepth(tc.n), depth(returned(g), tc.op); want != got {
			t.Errorf("%s chain of %d depth, want: %d\ngot: %d\n%s", tc.op, tc.n, want, got, g)
		}
		if cfg != g.CFGVersion() {
			t.Errorf("balancing should not change the CFG")
		}
		if want, got := 1, events.Count(EventBalance); want != got {
			t.Errorf("events, want: %d\ngot: %d\n", want, got)
		}
		var a1, a2 []int64
		for k := 0; k < tc.n; k++ {
			a1 = append(a1, int64(k+1))
			a2 = append(a2, int64(k)*0x5bd1e995-1<<40)
		}
		equivalent(t, build, balance, a1, a2)
	}
}

func TestBalanceSkips(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func() *ir.Graph
	}{
		{"float", chainOf(ir.OpAdd, ir.Float64, 8)},
		{"three sources", chainOf(ir.OpAdd, ir.Int32, 3)},
		{"not commutative", chainOf(ir.OpSub, ir.Int32, 8)},
	} {
		g := tc.build()
		v := g.InstVersion()
		if RunPass(NewBalanceExpressions(g, DefaultOptions())) || v != g.InstVersion() {
			t.Errorf("%s: chain should be left alone:\n%s", tc.name, g)
		}
	}
}

// Tests that an operator with several users ends the chain.
func TestBalanceSharedOperand(t *testing.T) {
	build := func() *ir.Graph {
		b := irtest.New("shared")
		ps := make([]*ir.Inst, 6)
		for k := range ps {
			ps[k] = b.Param(ir.Int32)
		}
		shared := b.Add(ir.Int32, b.Add(ir.Int32, ps[0], ps[1]), ps[2])
		v := b.Add(ir.Int32, shared, ps[3])
		v = b.Add(ir.Int32, v, ps[4])
		v = b.Add(ir.Int32, v, ps[5])
		b.Return(b.Bin(ir.OpMul, ir.Int32, v, shared))
		return b.G
	}
	g := equivalent(t, build, balance, []int64{1, 2, 3, 4, 5, 6})
	// (shared + p3) + (p4 + p5), shared itself being two additions deep.
	if want, got := 4, depth(returned(g).Input(0), ir.OpAdd); want != got {
		t.Errorf("depth of the chain over the shared sum, want: %d\ngot: %d\n%s", want, got, g)
	}
}

func TestOptimalDepth(t *testing.T) {
	for n, want := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 16: 4, 17: 5} {
		if got := OptimalDepth(n); got != want {
			t.Errorf("OptimalDepth(%d), want: %d\ngot: %d\n", n, want, got)
		}
	}
}
