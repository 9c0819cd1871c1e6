package block

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/ir/irtest"
)

// diamond builds
//
//	start -> b0 -> (b1, b2) -> b3
func diamond() (*ir.Graph, []*ir.Block) {
	b := irtest.New("diamond")
	p := b.Param(ir.Int32)
	bs := b.Blocks(4)
	b.Edge(b.G.StartBlock(), bs[0])
	b.Edge(bs[0], bs[1], bs[2])
	b.Edge(bs[1], bs[3])
	b.Edge(bs[2], bs[3])
	b.At(bs[0]).If(b.Cmp(ir.CCLt, p, b.Const(0, ir.Int32)))
	b.At(bs[3]).Return(b.Phi(ir.Int32, b.Const(1, ir.Int32), b.Const(2, ir.Int32)))
	return b.G, bs
}

// Tests basic usage of VisitGraph.
func TestVisitGraph(t *testing.T) {
	g, bs := diamond()
	v := NewVisitGraph()
	if v.Size() != 0 {
		t.Errorf("New VisitGraph should have 0 node, got %d", v.Size())
	}
	v.Visit(g.StartBlock())
	v.VisitFrom(g.StartBlock(), bs[0])
	v.VisitFrom(bs[0], bs[1])
	v.VisitFrom(bs[1], bs[3])
	if v.Size() != 4 {
		t.Errorf("VisitGraph size, want: 4 got: %d", v.Size())
	}
	if v.LastNode().Blk() != bs[3] {
		t.Errorf("last node, want: %v got: %v", bs[3], v.LastNode().Blk())
	}
	if v.NodeVisited(bs[3]) {
		t.Errorf("%v is only partially visited", bs[3])
	}
	if !v.VisitedOnce(bs[3]) {
		t.Errorf("%v should be visited once", bs[3])
	}
	v.VisitFrom(bs[0], bs[2])
	v.VisitFrom(bs[2], bs[3])
	if !v.NodeVisited(bs[3]) {
		t.Errorf("all incoming edges of %v are visited", bs[3])
	}
	if v.EdgeCount(bs[2], bs[3]) != 1 || v.BlockCount(bs[3]) != 2 {
		t.Errorf("counters, got edge %d block %d", v.EdgeCount(bs[2], bs[3]), v.BlockCount(bs[3]))
	}
	nodes := v.Nodes()
	if len(nodes) != 6 || nodes[0] != g.StartBlock() {
		t.Errorf("trace, got %v", nodes)
	}
}

func TestApplyProfile(t *testing.T) {
	g, bs := diamond()
	v := NewProfile()
	for n := 0; n < 3; n++ {
		v.VisitFrom(bs[0], bs[2])
	}
	v.VisitFrom(bs[0], bs[1])
	v.ApplyProfile(g)
	taken, notTaken := bs[0].Terminator().Profile()
	if taken != 1 || notTaken != 3 {
		t.Errorf("profile, want: (1, 3) got: (%d, %d)", taken, notTaken)
	}
	if v.Size() != 0 {
		t.Errorf("profile-only VisitGraph should not keep nodes")
	}
	if Likely(bs[0]) != bs[2] {
		t.Errorf("likely successor, want: %v got: %v", bs[2], Likely(bs[0]))
	}
}

func TestTraverseEdges(t *testing.T) {
	g, bs := diamond()
	edges := make(map[[2]int]int)
	TraverseEdges(g, func(from, to *ir.Block) {
		id := -1
		if from != nil {
			id = from.ID()
		}
		edges[[2]int{id, to.ID()}]++
	})
	want := [][2]int{
		{-1, g.StartBlock().ID()},
		{g.StartBlock().ID(), bs[0].ID()},
		{bs[0].ID(), bs[1].ID()},
		{bs[0].ID(), bs[2].ID()},
		{bs[1].ID(), bs[3].ID()},
		{bs[2].ID(), bs[3].ID()},
	}
	if len(edges) != len(want) {
		t.Errorf("visited %d edges, want %d: %v", len(edges), len(want), edges)
	}
	for _, e := range want {
		if edges[e] != 1 {
			t.Errorf("edge %v visited %d times", e, edges[e])
		}
	}
}

func TestWriteDot(t *testing.T) {
	g, bs := diamond()
	bs[0].Terminator().SetProfile(3, 1)
	var buf bytes.Buffer
	if err := WriteDot(g, &buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		fmt.Sprintf("%q -> %q\n", g.StartBlock(), bs[0]),
		fmt.Sprintf("%q -> %q [label=\"T 3\"]\n", bs[0], bs[1]),
		fmt.Sprintf("%q -> %q [label=\"F 1\"]\n", bs[0], bs[2]),
		fmt.Sprintf("%q -> %q\n", bs[2], bs[3]),
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("dot output, want line: %s\ngot:\n%s\n", want, buf.String())
		}
	}
}
