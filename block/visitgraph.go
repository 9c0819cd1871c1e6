package block

import (
	"fmt"
	"log"
	"sync"

	"github.com/nickng/loopopt/ir"
)

type edge struct {
	from, to *ir.Block
}

// VisitGraph is a data structure to track the control flow of an execution
// of a Graph. Each node is the ir.Block visited at one step.
//
// VisitGraph, unlike the name suggests, is a doubly linked list.
// Traversing the VisitGraph is equivalent to replaying the execution. Edge
// counters are kept alongside so the trace doubles as a branch profile.
type VisitGraph struct {
	sync.Mutex

	nodes []*VisitNode

	// edges counts how many times each edge was taken.
	edges map[edge]int

	// blocks counts how many times each block was entered.
	blocks map[*ir.Block]int

	// keepNodes is false when only counters are recorded.
	keepNodes bool
}

// NewVisitGraph returns a new VisitGraph recording the full trace.
func NewVisitGraph() *VisitGraph {
	return &VisitGraph{
		edges:     make(map[edge]int),
		blocks:    make(map[*ir.Block]int),
		keepNodes: true,
	}
}

// NewProfile returns a VisitGraph keeping only the edge and block counters.
func NewProfile() *VisitGraph {
	g := NewVisitGraph()
	g.keepNodes = false
	return g
}

func (g *VisitGraph) appendNode(n *VisitNode) {
	if !g.keepNodes {
		return
	}
	g.nodes = append(g.nodes, n)
	if len(g.nodes) > 1 {
		n.Prev = g.nodes[len(g.nodes)-2]
		g.nodes[len(g.nodes)-2].Next = n
	}
}

// Visit enters a block without a predecessor, e.g. the start block.
func (g *VisitGraph) Visit(b *ir.Block) {
	g.Lock()
	defer g.Unlock()
	g.appendNode(NewVisitNode(b))
	g.blocks[b]++
}

// VisitFrom enters b through the edge prev -> b.
func (g *VisitGraph) VisitFrom(prev, b *ir.Block) {
	g.Lock()
	defer g.Unlock()
	if !prev.HasSucc(b) {
		log.Printf("VisitFrom: %v is not a successor of %v", b, prev)
	}
	g.appendNode(NewVisitNode(b))
	g.blocks[b]++
	g.edges[edge{prev, b}]++
}

// LastNode returns the last node in the VisitGraph.
func (g *VisitGraph) LastNode() *VisitNode {
	if len(g.nodes) == 0 {
		return nil
	}
	return g.nodes[len(g.nodes)-1]
}

// Size of the trace.
func (g *VisitGraph) Size() int {
	return len(g.nodes)
}

// Nodes returns the visited blocks in order.
func (g *VisitGraph) Nodes() []*ir.Block {
	out := make([]*ir.Block, len(g.nodes))
	for n, node := range g.nodes {
		out[n] = node.blk
	}
	return out
}

// NodeVisited returns true if every incoming edge of b has been taken. The
// start block is visited once it has been entered.
func (g *VisitGraph) NodeVisited(b *ir.Block) bool {
	g.Lock()
	defer g.Unlock()
	if b.NumPreds() == 0 {
		return g.blocks[b] > 0
	}
	for _, p := range b.Preds() {
		if g.edges[edge{p, b}] == 0 {
			return false
		}
	}
	return true
}

// VisitedOnce returns true if the block was entered at least once.
func (g *VisitGraph) VisitedOnce(b *ir.Block) bool {
	g.Lock()
	defer g.Unlock()
	return g.blocks[b] > 0
}

// EdgeVisited returns true if the edge from -> to has been taken.
func (g *VisitGraph) EdgeVisited(from, to *ir.Block) bool {
	return g.EdgeCount(from, to) > 0
}

// EdgeCount returns how many times the edge from -> to has been taken.
func (g *VisitGraph) EdgeCount(from, to *ir.Block) int {
	g.Lock()
	defer g.Unlock()
	return g.edges[edge{from, to}]
}

// BlockCount returns how many times b was entered.
func (g *VisitGraph) BlockCount(b *ir.Block) int {
	g.Lock()
	defer g.Unlock()
	return g.blocks[b]
}

// ApplyProfile stores the edge counters into the IfImm branch profiles of
// the blocks of gr.
func (g *VisitGraph) ApplyProfile(gr *ir.Graph) {
	for _, b := range gr.Blocks() {
		term := b.Terminator()
		if term == nil || term.Opcode() != ir.OpIfImm || b.NumSuccs() != 2 {
			continue
		}
		term.SetProfile(int64(g.EdgeCount(b, b.TrueSucc())), int64(g.EdgeCount(b, b.FalseSucc())))
	}
}

// VisitNode is one node in the VisitGraph.
type VisitNode struct {
	blk *ir.Block

	Prev, Next *VisitNode
}

// NewVisitNode returns a new VisitNode.
func NewVisitNode(b *ir.Block) *VisitNode {
	return &VisitNode{blk: b}
}

// Blk returns the underlying block.
func (n *VisitNode) Blk() *ir.Block {
	return n.blk
}

func (n *VisitNode) String() string {
	if n.Next != nil {
		return fmt.Sprintf("Block: %v\n%s", n.blk, n.Next.String())
	}
	return fmt.Sprintf("Block: %v\n-- end --\n", n.blk)
}
