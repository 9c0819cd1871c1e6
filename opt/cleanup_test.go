package opt

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

// Tests that a chain of empty blocks and a dead diamond collapse into the
// start block.
func TestCleanupStraightLine(t *testing.T) {
	build := func() *ir.Graph {
		b := irtest.New("straight")
		p := b.Param(ir.Int32)
		bs := b.Blocks(3)
		b.Edge(b.G.StartBlock(), bs[0])
		b.Edge(bs[0], bs[1])
		b.Edge(bs[1], bs[2])
		b.At(bs[0]).Add(ir.Int32, p, p) // Dead.
		x := b.At(bs[1]).Bin(ir.OpMul, ir.Int32, p, b.Const(3, ir.Int32))
		b.At(bs[2]).Return(b.Phi(ir.Int32, x))
		return b.G
	}
	g := equivalent(t, build, func(g *ir.Graph) { RunPass(NewCleanup(g, DefaultOptions())) }, args(0, 5, -2)...)
	if want, got := 1, len(g.Blocks()); want != got {
		t.Errorf("blocks after cleanup, want: %d\ngot: %d\n%s", want, got, g)
	}
	for _, i := range g.StartBlock().AllInsts() {
		if i.Opcode() == ir.OpAdd || i.IsPhi() {
			t.Errorf("%v (%s) should be removed:\n%s", i, i.Opcode(), g)
		}
	}
}

// Tests that empty arms of a diamond are bypassed but phis keep one input
// per edge.
func TestCleanupDiamond(t *testing.T) {
	build := func() *ir.Graph {
		b := irtest.New("diamond")
		p := b.Param(ir.Int32)
		bs := b.Blocks(4)
		b.Edge(b.G.StartBlock(), bs[0])
		b.Edge(bs[0], bs[1], bs[2])
		b.Edge(bs[1], bs[3])
		b.Edge(bs[2], bs[3])
		b.At(bs[0]).If(b.Cmp(ir.CCLt, p, b.Const(0, ir.Int32)))
		b.At(bs[3]).Return(b.Phi(ir.Int32, b.Const(1, ir.Int32), b.Const(2, ir.Int32)))
		return b.G
	}
	g := equivalent(t, build, func(g *ir.Graph) { RunPass(NewCleanup(g, DefaultOptions())) }, args(-1, 0, 1)...)
	// One empty arm goes; the other would duplicate the edge.
	if want, got := 3, len(g.Blocks()); want != got {
		t.Errorf("blocks after cleanup, want: %d\ngot: %d\n%s", want, got, g)
	}
}

// Tests that phis with a single distinct input fold, including loop phis
// whose other input is the phi itself.
func TestCleanupTrivialPhi(t *testing.T) {
	build := func() *ir.Graph {
		b := irtest.New("phi")
		n := b.Param(ir.Int32)
		zero := b.Const(0, ir.Int32)
		l := b.CountingLoop(ir.Int32, zero, n, ir.CCLt, 1)
		k := b.At(l.Header).Phi(ir.Int32, n, n)
		k.SetInput(1, k)
		b.At(l.Exit).Return(b.Add(ir.Int32, k, l.Index))
		return b.G
	}
	g := equivalent(t, build, func(g *ir.Graph) { RunPass(NewCleanup(g, DefaultOptions())) }, args(0, 3)...)
	for _, b := range g.Blocks() {
		if n := len(b.PhiInsts()); n > 1 {
			t.Errorf("%v should keep only the index phi, got %d phis:\n%s", b, n, g)
		}
	}
}

func TestCleanupUnreachable(t *testing.T) {
	b := irtest.New("unreachable")
	p := b.Param(ir.Int32)
	dead := b.Block()
	b.Return(p)
	b.At(dead).Return(b.Add(ir.Int32, p, p))
	if !RunPass(NewCleanup(b.G, DefaultOptions())) {
		t.Fatalf("unreachable block should be removed")
	}
	check(t, b.G)
	if b.G.BlockByID(dead.ID()) != nil {
		t.Errorf("%v should be disconnected:\n%s", dead, b.G)
	}
	if RunPass(NewCleanup(b.G, DefaultOptions())) {
		t.Errorf("second cleanup should find nothing to do:\n%s", b.G)
	}
}
