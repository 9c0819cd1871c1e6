package opt

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
	"github.com/nickng/loopopt/loop"
)

func unroll(opts *Options) func(*ir.Graph) {
	return func(g *ir.Graph) { RunPass(NewLoopUnroll(g, opts)) }
}

// unrollKind unrolls g and returns the kind of the unrolling, or "" if the
// loop was left alone.
func unrollKind(t *testing.T, g *ir.Graph, opts *Options) string {
	t.Helper()
	events := new(ir.EventList)
	g.SetEventWriter(events)
	if !RunPass(NewLoopUnroll(g, opts)) {
		return ""
	}
	if len(events.Events) != 1 {
		t.Fatalf("unroll events, want: 1\ngot: %d\n", len(events.Events))
	}
	args := events.Events[0].Args
	return args[len(args)-1].(string)
}

func TestUnrollCountable(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func() *ir.Graph
		args  [][]int64
	}{
		{"inc", func() *ir.Graph { return guardedLoop(ir.Int32, 0, ir.CCLt, 1) },
			args(-1, 0, 1, 2, 3, 4, 5, 7, 10, 100)},
		{"unsigned", func() *ir.Graph { return guardedLoop(ir.Uint32, 5, ir.CCB, 1) },
			args(0, 5, 6, 7, 8, 9, 40)},
		{"near-min", func() *ir.Graph { return guardedLoop(ir.Int32, -1<<31, ir.CCLt, 1) },
			args(-1<<31, -1<<31+1, -1<<31+2, -1<<31+3, -1<<31+9)},
		{"inc-le", func() *ir.Graph { return guardedConstTest(ir.Int32, ir.CCLe, 2, 11) },
			args(-4, 0, 5, 7, 8, 9, 11, 12)},
		{"dec", func() *ir.Graph { return guardedConstTest(ir.Int64, ir.CCGt, -3, 10) },
			args(-5, 9, 10, 11, 12, 13, 50, 100)},
		{"dec-unsigned", func() *ir.Graph { return guardedConstTest(ir.Uint64, ir.CCA, -1, 3) },
			args(0, 3, 4, 5, 6, 20)},
	} {
		build := tc.build
		opts := DefaultOptions().WithUnrollFactor(3)
		if kind := unrollKind(t, build(), opts); kind != "countable" {
			t.Errorf("%s: unroll kind, want: countable\ngot: %q\n", tc.name, kind)
		}
		g := equivalent(t, build, unroll(opts), tc.args...)
		// The unrolled loop tests its exit once per factor iterations.
		g.RunAnalysis(ir.LoopAnalysis)
		ifs := 0
		for _, b := range g.RootLoop().InnerLoops()[0].Blocks() {
			if term := b.Terminator(); term != nil && term.Opcode() == ir.OpIfImm {
				ifs++
			}
		}
		if ifs != 1 {
			t.Errorf("%s: exit tests in the unrolled loop, want: 1\ngot: %d\n%s", tc.name, ifs, g)
		}
	}
}

// mulLoop builds the loop, not countable, left from its back-edge:
//
//	x := 1; do { x *= 3 } while x < n; return x
func mulLoop() *ir.Graph {
	b := irtest.New("mul")
	n := b.Param(ir.Int64)
	one := b.Const(1, ir.Int64)
	h, exit := b.Block(), b.Block()
	b.Edge(b.G.StartBlock(), h)
	b.Edge(h, h, exit)
	b.At(h)
	x := b.Phi(ir.Int64, one, one)
	upd := b.Bin(ir.OpMul, ir.Int64, x, b.Const(3, ir.Int64))
	b.If(b.Cmp(ir.CCLt, upd, n))
	x.SetInput(1, upd)
	b.At(exit).Return(upd)
	return b.G
}

func TestUnrollSideExits(t *testing.T) {
	opts := DefaultOptions().WithUnrollFactor(4)
	if kind := unrollKind(t, mulLoop(), opts); kind != "side-exits" {
		t.Errorf("unroll kind, want: side-exits\ngot: %q\n", kind)
	}
	equivalent(t, mulLoop, unroll(opts), args(0, 3, 4, 9, 10, 27, 28, 100, 1000000)...)
	// Unguarded countable loops are unrolled with side exits too.
	build := func() *ir.Graph {
		b := irtest.New("unguarded")
		n := b.Param(ir.Int32)
		l := b.DoWhileLoop(ir.Int32, b.Const(0, ir.Int32), n, ir.CCLt, 2)
		b.At(l.Exit).Return(l.Update)
		return b.G
	}
	equivalent(t, build, unroll(opts), args(-3, 0, 1, 2, 3, 8, 9, 21)...)

	if kind := unrollKind(t, mulLoop(), DefaultOptions().WithSideExits(false)); kind != "" {
		t.Errorf("side exits disabled, want no unrolling\ngot: %q\n", kind)
	}
}

func callLoop() *ir.Graph {
	b := irtest.New("calls")
	n := b.Param(ir.Int32)
	l := b.DoWhileLoop(ir.Int32, b.Const(0, ir.Int32), n, ir.CCLt, 1)
	call := b.G.NewCall("f", ir.Int32, 99, l.Index)
	l.Header.InsertBefore(call, l.Compare)
	b.At(l.Exit).ReturnVoid()
	return b.G
}

func TestUnrollCalls(t *testing.T) {
	if kind := unrollKind(t, callLoop(), DefaultOptions()); kind != "" {
		t.Errorf("loop with calls, want no unrolling\ngot: %q\n", kind)
	}
	opts := DefaultOptions().WithUnrollCalls(true).WithUnrollFactor(2)
	if kind := unrollKind(t, callLoop(), opts); kind != "side-exits" {
		t.Errorf("loop with calls allowed, want: side-exits\ngot: %q\n", kind)
	}
	equivalent(t, callLoop, unroll(opts), args(0, 1, 2, 5)...)
}

func TestUnrollFactor(t *testing.T) {
	b := irtest.New("factor")
	l := b.DoWhileLoop(ir.Int32, b.Const(0, ir.Int32), b.Const(10, ir.Int32), ir.CCLt, 1)
	b.At(l.Exit).ReturnVoid()
	b.G.RunAnalysis(ir.LoopAnalysis)
	lp := b.G.RootLoop().InnerLoops()[0]
	for _, tc := range []struct {
		factor, limit int
		want          int
	}{
		{6, 100, 6},
		{6, 10, 3},
		{2, 10, 2},
		{6, 4, 1},
		{6, 3, 1},
	} {
		u := NewLoopUnroll(b.G, DefaultOptions().WithUnrollFactor(tc.factor).WithInstLimit(tc.limit))
		factor, count := u.UnrollFactor(lp)
		if factor != tc.want || count != 4 {
			t.Errorf("factor %d limit %d, want: %d (4 insts)\ngot: %d (%d insts)\n",
				tc.factor, tc.limit, tc.want, factor, count)
		}
	}
}

func TestConditionOverflow(t *testing.T) {
	g := ir.New("overflow")
	info := func(typ ir.Type, test int64, step uint64, inc bool) *loop.CountableLoopInfo {
		c := g.FindOrCreateConstant(test, typ)
		return &loop.CountableLoopInfo{Update: c, Test: c, Step: step, Increment: inc}
	}
	p := g.NewParameter(ir.Int64)
	for _, tc := range []struct {
		name   string
		info   *loop.CountableLoopInfo
		factor int
		want   bool
	}{
		{"i32 min", info(ir.Int32, -1<<31, 1, true), 2, true},
		{"i32 min+1", info(ir.Int32, -1<<31+1, 1, true), 2, false},
		{"i32 min+1 factor 3", info(ir.Int32, -1<<31+1, 1, true), 3, true},
		{"i32 max dec", info(ir.Int32, 1<<31-1, 1, false), 2, true},
		{"i32 max-1 dec", info(ir.Int32, 1<<31-2, 1, false), 2, false},
		{"u32 2", info(ir.Uint32, 2, 1, true), 4, true},
		{"u32 3", info(ir.Uint32, 3, 1, true), 4, false},
		{"u64 max dec", info(ir.Uint64, -1, 1, false), 2, true},
		{"span", info(ir.Int32, 0, 1<<30, true), 3, true},
		{"factor 1", info(ir.Int32, -1<<31, 1, true), 1, false},
		{"param", &loop.CountableLoopInfo{Update: p, Test: p, Step: 1, Increment: true}, 6, false},
	} {
		if got := ConditionOverflow(tc.info, tc.factor); got != tc.want {
			t.Errorf("%s, want: %v\ngot: %v\n", tc.name, tc.want, got)
		}
	}
}

func TestUnrollIdempotent(t *testing.T) {
	g := guardedLoop(ir.Int32, 0, ir.CCLt, 1)
	if !RunPass(NewLoopUnroll(g, DefaultOptions())) {
		t.Fatalf("first run should unroll")
	}
	if RunPass(NewLoopUnroll(g, DefaultOptions())) {
		t.Errorf("unrolled loop should not be unrolled again:\n%s", g)
	}
}
