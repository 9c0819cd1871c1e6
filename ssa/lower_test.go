package ssa_test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/interp"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/opt"
	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
	gossa "golang.org/x/tools/go/ssa"
)

const numProg = `package main

func sum(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}

func mix(n int32) int32 {
	var v int32
	for i := int32(0); i < n; i++ {
		if i%3 != 0 {
			v += 3
		} else {
			v += 2
		}
	}
	return v
}

func countdown(n uint32) uint32 {
	var k uint32
	for n > 4 {
		n -= 2
		k = k<<1 ^ n&^1
	}
	return k
}

func avg(a, b float64) float64 {
	return (a + b) / 2
}

func narrow(x int64) int64 {
	return int64(int32(x)) + int64(uint32(x)>>4)
}

func neg(b bool, x int) int {
	if !b {
		return -x
	}
	return ^x
}

func twice(n int) int {
	return sum(n) + sum(n)
}

func main() {
	println(sum(3), mix(4), countdown(9), avg(1, 2), narrow(-1), neg(true, 1), twice(2))
}
`

// lower builds numProg and lowers the function name.
func lower(t *testing.T, name string) *ir.Graph {
	t.Helper()
	info := mustBuild(t, numProg)
	f, err := info.FindFunc("main." + name)
	if err != nil {
		t.Fatal(err)
	}
	g, err := ssa.Lower(f)
	if err != nil {
		t.Fatalf("cannot lower %s: %v", name, err)
	}
	if err := block.Check(g); err != nil {
		t.Fatalf("lowered %s is malformed: %v\n%s", name, err, g)
	}
	return g
}

func run(t *testing.T, g *ir.Graph, conf interp.Config, args ...int64) *interp.Result {
	t.Helper()
	res, err := interp.New(g, conf).Run(args...)
	if err != nil {
		t.Fatalf("%s%v: %v", g.Name(), args, err)
	}
	return res
}

func TestLower(t *testing.T) {
	float := func(f float64) int64 { return int64(math.Float64bits(f)) }
	tests := []struct {
		name string
		args []int64
		want int64
	}{
		{"sum", []int64{10}, 45},
		{"sum", []int64{0}, 0},
		{"mix", []int64{100}, 266},
		{"countdown", []int64{9}, 18},
		{"avg", []int64{float(1), float(2)}, float(1.5)},
		{"narrow", []int64{-1}, -1 + 0x0fffffff},
		{"narrow", []int64{1 << 32}, 0},
		{"neg", []int64{0, 5}, -5},
		{"neg", []int64{1, 5}, -6},
	}
	for _, tc := range tests {
		res := run(t, lower(t, tc.name), interp.Config{}, tc.args...)
		if !res.HasValue || res.Value != tc.want {
			t.Errorf("%s%v, want: %d\ngot: %d\n", tc.name, tc.args, tc.want, res.Value)
		}
	}
}

// usesLaterPhi returns true if a block of f uses a phi of a block listed
// after it in f.Blocks.
func usesLaterPhi(f *gossa.Function) bool {
	for n, b := range f.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*gossa.Phi); ok {
				continue
			}
			for _, op := range instr.Operands(nil) {
				if phi, ok := (*op).(*gossa.Phi); ok && phi.Block().Index > n {
					return true
				}
			}
		}
	}
	return false
}

// Tests lowering a for loop whose body block is listed before its header.
func TestLowerLoop(t *testing.T) {
	info := mustBuild(t, numProg)
	f, err := info.FindFunc("main.sum")
	if err != nil {
		t.Fatal(err)
	}
	if !usesLaterPhi(f) {
		t.Fatalf("%s should use a phi defined in a later block", f)
	}
	g := lower(t, "sum")
	g.RunAnalysis(ir.LoopAnalysis)
	if want, got := 1, len(g.RootLoop().InnerLoops()); want != got {
		t.Errorf("loops, want: %d\ngot: %d\n%s", want, got, g)
	}
	if res := run(t, g, interp.Config{}, 4); res.Value != 6 {
		t.Errorf("sum(4), want: 6\ngot: %d\n", res.Value)
	}
}

func countdownRef(n uint32) uint32 {
	var k uint32
	for n > 4 {
		n -= 2
		k = k<<1 ^ n&^1
	}
	return k
}

func TestLowerUnsigned(t *testing.T) {
	g := lower(t, "countdown")
	for _, n := range []uint32{0, 4, 5, 6, 9, 31, 1000} {
		if want, got := int64(countdownRef(n)), run(t, g, interp.Config{}, int64(n)).Value; want != got {
			t.Errorf("countdown(%d), want: %d\ngot: %d\n", n, want, got)
		}
	}
}

func TestLowerCalls(t *testing.T) {
	g := lower(t, "twice")
	funcs := map[string]*ir.Graph{"main.sum": lower(t, "sum")}
	res := run(t, g, interp.Config{Funcs: funcs}, 5)
	if res.Value != 20 {
		t.Errorf("twice(5), want: 20\ngot: %d\n", res.Value)
	}
	want := []interp.Call{{Callee: "main.sum", Args: []int64{5}}, {Callee: "main.sum", Args: []int64{5}}}
	if !reflect.DeepEqual(want, res.Calls) {
		t.Errorf("calls, want: %v\ngot: %v\n", want, res.Calls)
	}
}

// Tests that optimizing lowered functions keeps their results.
func TestLowerOptimize(t *testing.T) {
	tests := map[string][][]int64{
		"sum":       {{-3}, {0}, {1}, {7}, {100}},
		"mix":       {{0}, {1}, {5}, {100}},
		"countdown": {{0}, {5}, {6}, {77}},
		"neg":       {{0, 3}, {1, 3}},
	}
	for name, argss := range tests {
		orig, optimized := lower(t, name), lower(t, name)
		opt.NewPipeline(optimized, opt.DefaultOptions().WithUnrollFactor(3)).Run()
		if err := block.Check(optimized); err != nil {
			t.Fatalf("optimized %s is malformed: %v\n%s", name, err, optimized)
		}
		for _, args := range argss {
			want, got := run(t, orig, interp.Config{}, args...), run(t, optimized, interp.Config{}, args...)
			if want.Value != got.Value {
				t.Errorf("%s%v, want: %d\ngot: %d\n", name, args, want.Value, got.Value)
			}
		}
	}
}

func TestLowerUnsupported(t *testing.T) {
	info := mustBuild(t, `package main
	type point struct{ x, y int }
	func str(s string) int { return len(s) }
	func ptr(p *int) int { return *p }
	func shift(x, n int) int { return x << uint(n) }
	func pair() (int, int) { return 1, 2 }
	func closure(n int) func() int { return func() int { return n } }
	func field(p point) int { return p.x }
	func main() {}`)
	for _, name := range []string{"str", "ptr", "shift", "pair", "closure", "field"} {
		f, err := info.FindFunc("main." + name)
		if err != nil {
			t.Fatal(err)
		}
		_, err = ssa.Lower(f)
		if errors.Cause(err) != ssa.ErrUnsupported {
			t.Errorf("%s, want: %v\ngot: %v\n", name, ssa.ErrUnsupported, err)
			continue
		}
		if !strings.Contains(err.Error(), "tmp:") {
			t.Errorf("%s: error should carry the source position, got: %v", name, err)
		}
	}
}
