package block

import (
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

func TestDomTreeDiamond(t *testing.T) {
	g, bs := diamond()
	g.RunAnalysis(ir.DomTreeAnalysis)
	if !g.IsAnalysisValid(ir.DomTreeAnalysis) {
		t.Fatalf("DomTree should be valid after RunAnalysis")
	}
	for _, b := range []*ir.Block{bs[1], bs[2], bs[3]} {
		if b.Dominator() != bs[0] {
			t.Errorf("idom(%v), want: %v got: %v", b, bs[0], b.Dominator())
		}
	}
	if bs[1].Dominates(bs[3]) {
		t.Errorf("%v must not dominate the join", bs[1])
	}
	if g.StartBlock().Dominator() != nil {
		t.Errorf("start block has no dominator")
	}
}

func TestDomTreeLoop(t *testing.T) {
	b := irtest.New("loop")
	l := b.CountingLoop(ir.Int32, b.Const(0, ir.Int32), b.Const(10, ir.Int32), ir.CCLt, 1)
	b.At(l.Exit).ReturnVoid()
	BuildDomTree(b.G)
	if l.Body.Dominator() != l.Header || l.Exit.Dominator() != l.Header {
		t.Errorf("header should dominate body and exit")
	}
	if err := CheckSSA(b.G); err != nil {
		t.Errorf("CheckSSA: %v", err)
	}
}

func TestLinearOrder(t *testing.T) {
	g, bs := diamond()
	bs[0].Terminator().SetProfile(1, 10)
	order := LinearOrder(g)
	if len(order) != 5 {
		t.Fatalf("linear order should hold all blocks, got %v", order)
	}
	pos := make(map[*ir.Block]int)
	for n, b := range order {
		pos[b] = n
	}
	if pos[bs[2]] != pos[bs[0]]+1 {
		t.Errorf("likely successor %v should follow %v: %v", bs[2], bs[0], order)
	}
	if order[len(order)-1] != bs[3] {
		t.Errorf("return block should be last: %v", order)
	}

	bs[0].Terminator().SetProfile(10, 1)
	g.InvalidateAnalysis(ir.LinearOrderAnalysis)
	g.RunAnalysis(ir.LinearOrderAnalysis)
	order = g.LinearBlocks()
	if order[2] != bs[1] {
		t.Errorf("likely successor %v should follow %v: %v", bs[1], bs[0], order)
	}
}

func TestCheck(t *testing.T) {
	g, bs := diamond()
	if err := Check(g); err != nil {
		t.Fatalf("Check of a valid graph: %v", err)
	}
	phi := bs[3].PhiInsts()[0]
	phi.RemoveInput(1)
	if err := Check(g); err == nil {
		t.Errorf("Check should reject a phi with missing inputs")
	}
	phi.AppendInput(g.FindOrCreateConstant(2, ir.Int32))
	bs[1].AppendInst(g.NewInst(ir.OpReturnVoid, ir.Void, 0))
	if err := Check(g); err == nil {
		t.Errorf("Check should reject a return in a fall-through block")
	}
}
