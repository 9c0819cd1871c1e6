package interp

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
	"github.com/pkg/errors"
)

// sum builds
//
//	s := 0; for i := 0; i < n; i++ { s += i }; return s
func sum() *ir.Graph {
	b := irtest.New("sum")
	n := b.Param(ir.Int32)
	zero := b.Const(0, ir.Int32)
	l := b.CountingLoop(ir.Int32, zero, n, ir.CCLt, 1)
	s := b.At(l.Header).Phi(ir.Int32, zero, zero)
	next := b.At(l.Body).Add(ir.Int32, s, l.Index)
	s.SetInput(1, next)
	b.At(l.Exit).Return(s)
	return b.G
}

func TestRunLoop(t *testing.T) {
	g := sum()
	for _, tc := range []struct {
		n, want int64
	}{{0, 0}, {1, 0}, {5, 10}, {100, 4950}, {-3, 0}} {
		res, err := New(g, Config{}).Run(tc.n)
		if err != nil {
			t.Fatalf("sum(%d): %v", tc.n, err)
		}
		if !res.HasValue || res.Value != tc.want {
			t.Errorf("sum(%d), want: %d\ngot: %d\n", tc.n, tc.want, res.Value)
		}
	}
}

// Tests that the edge counters of the trace become branch profiles.
func TestProfile(t *testing.T) {
	b := irtest.New("count")
	zero := b.Const(0, ir.Int32)
	l := b.CountingLoop(ir.Int32, zero, b.Const(10, ir.Int32), ir.CCLt, 1)
	b.At(l.Exit).Return(l.Index)
	res, err := New(b.G, Config{Trace: true}).Run()
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != 10 {
		t.Errorf("result, want: 10\ngot: %d\n", res.Value)
	}
	if want, got := 10, res.Trace.EdgeCount(l.Header, l.Body); want != got {
		t.Errorf("loop edge count, want: %d\ngot: %d\n", want, got)
	}
	res.Trace.ApplyProfile(b.G)
	taken, notTaken := l.Header.Terminator().Profile()
	if taken != 10 || notTaken != 1 {
		t.Errorf("profile, want: 10/1\ngot: %d/%d\n", taken, notTaken)
	}
	if want, got := 1+11+10+1, len(res.Trace.Nodes()); want != got {
		t.Errorf("trace length, want: %d\ngot: %d\n", want, got)
	}
}

// Tests that phis of a block read their inputs before any is written.
func TestParallelPhis(t *testing.T) {
	b := irtest.New("swap")
	one, two := b.Const(1, ir.Int64), b.Const(2, ir.Int64)
	l := b.CountingLoop(ir.Int64, b.Const(0, ir.Int64), b.Const(3, ir.Int64), ir.CCLt, 1)
	x := b.At(l.Header).Phi(ir.Int64, one, one)
	y := b.At(l.Header).Phi(ir.Int64, two, two)
	x.SetInput(1, y)
	y.SetInput(1, x)
	ten := b.Const(10, ir.Int64)
	b.At(l.Exit).Return(b.Add(ir.Int64, b.Bin(ir.OpMul, ir.Int64, x, ten), y))
	res, err := New(b.G, Config{}).Run()
	if err != nil {
		t.Fatal(err)
	}
	// Three swaps.
	if want, got := int64(21), res.Value; want != got {
		t.Errorf("swap, want: %d\ngot: %d\n", want, got)
	}
}

func TestStepLimit(t *testing.T) {
	b := irtest.New("forever")
	h := b.Block()
	b.Edge(b.G.StartBlock(), h)
	b.Edge(h, h)
	b.At(h).SafePoint()
	_, err := New(b.G, Config{StepLimit: 100}).Run()
	if errors.Cause(err) != ErrStepLimit {
		t.Errorf("infinite loop, want: %v\ngot: %v\n", ErrStepLimit, err)
	}
}

func TestDivByZero(t *testing.T) {
	b := irtest.New("div")
	x, y := b.Param(ir.Int32), b.Param(ir.Int32)
	b.Return(b.Bin(ir.OpDiv, ir.Int32, x, y))
	_, err := New(b.G, Config{}).Run(1, 0)
	if errors.Cause(err) != ErrDivByZero {
		t.Errorf("division by zero, want: %v\ngot: %v\n", ErrDivByZero, err)
	}
	res, err := New(b.G, Config{}).Run(-7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != -3 {
		t.Errorf("-7/2, want: -3\ngot: %d\n", res.Value)
	}
	if _, err := New(b.G, Config{}).Run(1); errors.Cause(err) != ErrNumArgs {
		t.Errorf("missing argument, want: %v\ngot: %v\n", ErrNumArgs, err)
	}
}

func TestIntegerSemantics(t *testing.T) {
	for _, tc := range []struct {
		op   ir.Opcode
		t    ir.Type
		a, b int64
		want int64
	}{
		{ir.OpAdd, ir.Int32, 1<<31 - 1, 1, -1 << 31},
		{ir.OpAdd, ir.Uint32, 1<<32 - 1, 1, 0},
		{ir.OpSub, ir.Uint32, 0, 1, 1<<32 - 1},
		{ir.OpMul, ir.Int32, 1 << 16, 1 << 16, 0},
		{ir.OpShl, ir.Int32, 1, 33, 2},
		{ir.OpShr, ir.Int32, -8, 1, 1<<31 - 4},
		{ir.OpAShr, ir.Int32, -8, 1, -4},
		{ir.OpShr, ir.Int64, -1, 63, 1},
		{ir.OpDiv, ir.Uint32, 1<<32 - 2, 2, 1<<31 - 1},
		{ir.OpMod, ir.Int64, -7, 3, -1},
		{ir.OpXor, ir.Int64, 5, 3, 6},
	} {
		b := irtest.New("op")
		x, y := b.Param(tc.t), b.Param(tc.t)
		b.Return(b.Bin(tc.op, tc.t, x, y))
		res, err := New(b.G, Config{}).Run(tc.a, tc.b)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.op, tc.t, err)
		}
		if res.Value != tc.want {
			t.Errorf("%s.%s(%d, %d), want: %d\ngot: %d\n", tc.op, tc.t, tc.a, tc.b, tc.want, res.Value)
		}
	}
}

func TestFloat(t *testing.T) {
	b := irtest.New("f")
	x := b.Float(1.5)
	y := b.Float(0.25)
	b.Return(b.Bin(ir.OpMul, ir.Float64, x, y))
	res, err := New(b.G, Config{}).Run()
	if err != nil {
		t.Fatal(err)
	}
	if want, got := 0.375, f64(res.Value); want != got {
		t.Errorf("1.5*0.25, want: %v\ngot: %v\n", want, got)
	}
}

// Tests memory and calls, including a call of another graph sharing memory.
func TestCallsAndMemory(t *testing.T) {
	cb := irtest.New("inc")
	addr := cb.Param(ir.Int64)
	v := cb.Load(ir.Int64, addr)
	cb.Store(addr, cb.Add(ir.Int64, v, cb.Const(1, ir.Int64)))
	cb.Return(v)

	b := irtest.New("main")
	a := b.Const(8, ir.Int64)
	b.Store(a, b.Const(41, ir.Int64))
	old := b.Call("inc", ir.Int64, a)
	ext := b.Call("ext", ir.Int64, old)
	b.Return(b.Add(ir.Int64, ext, b.Load(ir.Int64, a)))

	conf := Config{
		Funcs:  map[string]*ir.Graph{"inc": cb.G},
		Callee: func(name string, args []int64) int64 { return args[0] * 2 },
	}
	res, err := New(b.G, conf).Run()
	if err != nil {
		t.Fatal(err)
	}
	if want, got := int64(82+42), res.Value; want != got {
		t.Errorf("result, want: %d\ngot: %d\n", want, got)
	}
	if want, got := int64(42), res.Memory[8]; want != got {
		t.Errorf("memory, want: %d\ngot: %d\n", want, got)
	}
	if len(res.Calls) != 2 || res.Calls[0].Callee != "inc" || res.Calls[1].Callee != "ext" || res.Calls[1].Args[0] != 41 {
		t.Errorf("calls, got: %+v\n", res.Calls)
	}
}
