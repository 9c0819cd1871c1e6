package opt

import (
	"reflect"
	"testing"

	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/interp"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

// check fails the test if g is malformed.
func check(t *testing.T, g *ir.Graph) {
	t.Helper()
	if err := block.Check(g); err != nil {
		t.Fatalf("malformed graph: %v\n%s", err, g)
	}
	if err := block.CheckSSA(g); err != nil {
		t.Fatalf("malformed SSA: %v\n%s", err, g)
	}
}

// equivalent runs transform on a graph from build and checks that it
// computes the same results as a fresh, untransformed graph for every
// argument list.
func equivalent(t *testing.T, build func() *ir.Graph, transform func(*ir.Graph), args ...[]int64) *ir.Graph {
	t.Helper()
	orig, g := build(), build()
	transform(g)
	check(t, g)
	for _, a := range args {
		want, err := interp.New(orig, interp.Config{}).Run(a...)
		if err != nil {
			t.Fatalf("%s%v (original): %v", orig.Name(), a, err)
		}
		got, err := interp.New(g, interp.Config{}).Run(a...)
		if err != nil {
			t.Fatalf("%s%v: %v\n%s", g.Name(), a, err, g)
		}
		if want.Value != got.Value || want.HasValue != got.HasValue {
			t.Errorf("%s%v, want:\n%d\ngot:\n%d\n", g.Name(), a, want.Value, got.Value)
		}
		if !reflect.DeepEqual(want.Memory, got.Memory) {
			t.Errorf("%s%v memory, want:\n%v\ngot:\n%v\n", g.Name(), a, want.Memory, got.Memory)
		}
		if !reflect.DeepEqual(want.Calls, got.Calls) {
			t.Errorf("%s%v calls, want:\n%v\ngot:\n%v\n", g.Name(), a, want.Calls, got.Calls)
		}
	}
	return g
}

func args(ns ...int64) [][]int64 {
	out := make([][]int64, len(ns))
	for k, n := range ns {
		out[k] = []int64{n}
	}
	return out
}

// sumLoop builds the header tested loop
//
//	s := 0; for i := 0; i < n; i++ { s += i }; return s
func sumLoop() *ir.Graph {
	b := irtest.New("sum")
	n := b.Param(ir.Int32)
	zero := b.Const(0, ir.Int32)
	l := b.CountingLoop(ir.Int32, zero, n, ir.CCLt, 1)
	s := b.At(l.Header).Phi(ir.Int32, zero, zero)
	s.SetInput(1, b.At(l.Body).Add(ir.Int32, s, l.Index))
	b.At(l.Exit).Return(s)
	return b.G
}

// guardedLoop builds the do-while loop guarded by its pre-header
//
//	s := 0; i := init
//	if i cc n { do { s += i; i += step } while i cc n }
//	return s
func guardedLoop(t ir.Type, init int64, cc ir.ConditionCode, step int64) *ir.Graph {
	b := irtest.New("guarded")
	n := b.Param(t)
	return guarded(b, t, b.Const(init, t), n, cc, step)
}

// guardedConstTest builds the loop of guardedLoop with init as parameter and
// a constant test.
func guardedConstTest(t ir.Type, cc ir.ConditionCode, step, test int64) *ir.Graph {
	b := irtest.New("guarded-const")
	init := b.Param(t)
	return guarded(b, t, init, b.Const(test, t), cc, step)
}

func guarded(b *irtest.Builder, t ir.Type, i0, n *ir.Inst, cc ir.ConditionCode, step int64) *ir.Graph {
	zero := b.Const(0, t)
	start := b.G.StartBlock()
	h, exit := b.Block(), b.Block()
	b.Edge(start, h, exit)
	b.Edge(h, h, exit)
	b.At(start).If(b.Cmp(cc, i0, n))
	b.At(h)
	i := b.Phi(t, i0, i0)
	s := b.Phi(t, zero, zero)
	s2 := b.Add(t, s, i)
	var upd *ir.Inst
	if step >= 0 {
		upd = b.Add(t, i, b.Const(step, t))
	} else {
		upd = b.Sub(t, i, b.Const(-step, t))
	}
	b.If(b.Cmp(cc, upd, n))
	i.SetInput(1, upd)
	s.SetInput(1, s2)
	b.At(exit).Return(b.Phi(t, zero, s2))
	return b.G
}

// e2eLoop builds
//
//	v1 := 0
//	for v2 := 0; v2 < 100; v2++ { if v2%3 != 0 { v1 += 3 } else { v1 += 2 } }
//	return v1
func e2eLoop() *ir.Graph {
	b := irtest.New("e2e")
	zero := b.Const(0, ir.Int32)
	h, body, then, els, join, exit := b.Block(), b.Block(), b.Block(), b.Block(), b.Block(), b.Block()
	b.Edge(b.G.StartBlock(), h)
	b.Edge(h, body, exit)
	b.Edge(body, then, els)
	b.Edge(then, join)
	b.Edge(els, join)
	b.Edge(join, h)

	b.At(h)
	v2 := b.Phi(ir.Int32, zero, zero)
	v1 := b.Phi(ir.Int32, zero, zero)
	b.If(b.Cmp(ir.CCLt, v2, b.Const(100, ir.Int32)))
	m := b.At(body).Bin(ir.OpMod, ir.Int32, v2, b.Const(3, ir.Int32))
	b.If(b.Cmp(ir.CCNe, m, zero))
	a := b.At(then).Add(ir.Int32, v1, b.Const(3, ir.Int32))
	c := b.At(els).Add(ir.Int32, v1, b.Const(2, ir.Int32))
	b.At(join)
	v1.SetInput(1, b.Phi(ir.Int32, a, c))
	v2.SetInput(1, b.Add(ir.Int32, v2, b.Const(1, ir.Int32)))
	b.At(exit).Return(v1)
	return b.G
}

func TestE2ELoopBuilder(t *testing.T) {
	g := e2eLoop()
	check(t, g)
	res, err := interp.New(g, interp.Config{}).Run()
	if err != nil {
		t.Fatal(err)
	}
	if want, got := int64(34*2+66*3), res.Value; want != got {
		t.Errorf("e2e loop, want: %d\ngot: %d\n", want, got)
	}
}
