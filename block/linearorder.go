package block

import "github.com/nickng/loopopt/ir"

func init() {
	ir.RegisterAnalyzer(ir.LinearOrderAnalysis, func(g *ir.Graph) {
		g.SetLinearBlocks(LinearOrder(g))
	})
}

// Likely returns the successor of b expected to be taken, or nil. The branch
// profile of the terminating IfImm decides; without a profile a successor
// leaving the loop of b is unlikely.
func Likely(b *ir.Block) *ir.Block {
	if b.NumSuccs() != 2 {
		return nil
	}
	if term := b.Terminator(); term != nil && term.Opcode() == ir.OpIfImm {
		taken, notTaken := term.Profile()
		switch {
		case taken > notTaken:
			return b.TrueSucc()
		case notTaken > taken:
			return b.FalseSucc()
		case taken > 0:
			return nil
		}
	}
	if !b.Graph().IsAnalysisValid(ir.LoopAnalysis) {
		return nil
	}
	l := b.Loop()
	if l == nil || l.IsRoot() {
		return nil
	}
	t, f := l.Contains(b.TrueSucc()), l.Contains(b.FalseSucc())
	switch {
	case t && !f:
		return b.TrueSucc()
	case f && !t:
		return b.FalseSucc()
	}
	return nil
}

// LinearOrder lays out the blocks reachable from the start of g. A block is
// followed by its likely successor when that one is not scheduled yet,
// otherwise by the successor with the fewest unscheduled predecessors.
// Blocks that can only reach a return are laid out last.
func LinearOrder(g *ir.Graph) []*ir.Block {
	blocks := g.BlocksRPO()
	reachable := make(map[*ir.Block]bool, len(blocks))
	for _, b := range blocks {
		reachable[b] = true
	}
	order := make([]*ir.Block, 0, len(blocks))
	scheduled := make(map[*ir.Block]bool, len(blocks))
	indegree := make(map[*ir.Block]int, len(blocks))
	exit := make(map[*ir.Block]bool)
	var exits, zerodegree, posdegree []*ir.Block

	for _, b := range blocks {
		if b.NumSuccs() == 0 {
			exit[b] = true
			exits = append(exits, b)
		}
	}
	// Expand exit to blocks whose successors all exit.
	for {
		changed := false
		for _, b := range exits {
		NextPred:
			for _, p := range b.Preds() {
				if exit[p] || !reachable[p] {
					continue
				}
				for _, s := range p.Succs() {
					if !exit[s] {
						continue NextPred
					}
				}
				exit[p] = true
				exits = append(exits, p)
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, b := range blocks {
		if exit[b] {
			continue
		}
		for _, p := range b.Preds() {
			if reachable[p] {
				indegree[b]++
			}
		}
		if indegree[b] == 0 {
			zerodegree = append(zerodegree, b)
		} else {
			posdegree = append(posdegree, b)
		}
	}

	pop := func(s *[]*ir.Block) *ir.Block {
		for len(*s) > 0 {
			b := (*s)[len(*s)-1]
			*s = (*s)[:len(*s)-1]
			if !scheduled[b] {
				return b
			}
		}
		return nil
	}

	b := g.StartBlock()
	for {
		order = append(order, b)
		scheduled[b] = true
		if len(order) == len(blocks) {
			break
		}
		for _, c := range b.Succs() {
			indegree[c]--
			if indegree[c] == 0 && !exit[c] {
				zerodegree = append(zerodegree, c)
			}
		}

		if likely := Likely(b); likely != nil && !scheduled[likely] {
			b = likely
			continue
		}

		var next *ir.Block
		mindegree := len(blocks) + 1
		for _, c := range b.Succs() {
			if scheduled[c] || exit[c] {
				continue
			}
			if indegree[c] < mindegree {
				mindegree = indegree[c]
				next = c
			}
		}
		if next == nil {
			next = pop(&zerodegree)
		}
		if next == nil {
			next = pop(&posdegree)
		}
		if next == nil {
			// Exits in RPO.
			for _, e := range blocks {
				if exit[e] && !scheduled[e] {
					next = e
					break
				}
			}
		}
		b = next
	}
	return order
}
