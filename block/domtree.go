package block

import "github.com/nickng/loopopt/ir"

func init() {
	ir.RegisterAnalyzer(ir.DomTreeAnalysis, BuildDomTree)
}

// BuildDomTree computes the immediate dominators of the blocks reachable
// from the start of g (Cooper, Harvey, Kennedy) and links them through
// Block.SetDominator. Unreachable blocks get no dominator.
func BuildDomTree(g *ir.Graph) {
	for _, b := range g.Blocks() {
		b.ClearDominators()
	}
	post := g.BlocksPostOrder()
	idom := make(map[*ir.Block]*ir.Block, len(post))
	postnum := make(map[*ir.Block]int, len(post))
	for i, b := range post {
		postnum[b] = i
	}

	// The start block is its own dominator while relaxing.
	start := g.StartBlock()
	idom[start] = start
	for {
		changed := false
		for i := len(post) - 2; i >= 0; i-- {
			b := post[i]
			var d *ir.Block
			for _, p := range b.Preds() {
				if idom[p] == nil {
					continue
				}
				if d == nil {
					d = p
					continue
				}
				d = intersect(d, p, postnum, idom)
			}
			if d != idom[b] {
				idom[b] = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	// Link parents before children so Dominated lists follow RPO.
	for i := len(post) - 2; i >= 0; i-- {
		b := post[i]
		b.SetDominator(idom[b])
	}
}

// intersect finds the closest dominator of both b and c.
func intersect(b, c *ir.Block, postnum map[*ir.Block]int, idom map[*ir.Block]*ir.Block) *ir.Block {
	for b != c {
		if postnum[b] < postnum[c] {
			b = idom[b]
		} else {
			c = idom[c]
		}
	}
	return b
}
