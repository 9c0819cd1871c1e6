package block

import "github.com/nickng/loopopt/ir"

// TraverseEdges takes a Graph and applies visit to each edge reachable from
// the start block, breadth first. The start block is visited with a nil from.
func TraverseEdges(g *ir.Graph, visit func(from, to *ir.Block)) {
	visited := NewVisitGraph()
	type Edge struct {
		From, To *ir.Block
	}
	queue := []Edge{{To: g.StartBlock()}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e.From != nil && visited.EdgeVisited(e.From, e.To) {
			continue
		}
		first := !visited.VisitedOnce(e.To)
		if e.From == nil {
			visited.Visit(e.To)
		} else {
			visited.VisitFrom(e.From, e.To)
		}
		visit(e.From, e.To)
		if first {
			for _, succ := range e.To.Succs() {
				queue = append(queue, Edge{From: e.To, To: succ})
			}
		}
	}
}

// PostOrder returns the blocks reachable from the start of g in post-order.
func PostOrder(g *ir.Graph) []*ir.Block { return g.BlocksPostOrder() }

// RPO returns the blocks reachable from the start of g in reverse post-order.
func RPO(g *ir.Graph) []*ir.Block { return g.BlocksRPO() }
