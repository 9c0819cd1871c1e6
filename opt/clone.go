package opt

import "github.com/nickng/loopopt/ir"

// bodyCloner copies the blocks of a loop. Header phis are never copied: a
// copy reads them through the entry map given to clone.
type bodyCloner struct {
	g                *ir.Graph
	blocks           []*ir.Block
	inLoop           map[*ir.Block]bool
	header, backEdge *ir.Block
	// backVal maps each header phi to its back-edge input.
	backVal map[*ir.Inst]*ir.Inst
}

func newBodyCloner(g *ir.Graph, l *ir.Loop) *bodyCloner {
	c := &bodyCloner{
		g:        g,
		blocks:   append([]*ir.Block(nil), l.Blocks()...),
		inLoop:   make(map[*ir.Block]bool),
		header:   l.Header(),
		backEdge: l.BackEdges()[0],
		backVal:  make(map[*ir.Inst]*ir.Inst),
	}
	for _, b := range c.blocks {
		c.inLoop[b] = true
	}
	for _, phi := range c.header.PhiInsts() {
		c.backVal[phi] = phi.PhiInput(c.backEdge)
	}
	return c
}

// loopCopy is one copy of the loop body.
type loopCopy struct {
	header, backEdge *ir.Block
	blocks           []*ir.Block
	values           map[*ir.Inst]*ir.Inst
}

func (cp *loopCopy) lookup(v *ir.Inst) *ir.Inst { return lookup(cp.values, v) }

func lookup(m map[*ir.Inst]*ir.Inst, v *ir.Inst) *ir.Inst {
	if c, ok := m[v]; ok {
		return c
	}
	return v
}

// exits returns true if b has a successor outside the loop.
func (c *bodyCloner) exits(b *ir.Block) bool {
	for _, s := range b.Succs() {
		if !c.inLoop[s] {
			return true
		}
	}
	return false
}

// clone copies the loop body. entry gives the value of each header phi in
// the copy. The back-edge copy branches to the original header, whose phis
// get the back-edge values of the copy. Edges leaving the loop go to exitTo,
// whose phis get the copied value of exitIn[phi]; with a nil exitTo they
// are dropped together with the branch.
func (c *bodyCloner) clone(entry map[*ir.Inst]*ir.Inst, exitTo *ir.Block, exitIn map[*ir.Inst]*ir.Inst) *loopCopy {
	cp := &loopCopy{values: make(map[*ir.Inst]*ir.Inst)}
	for k, v := range entry {
		cp.values[k] = v
	}
	bmap := make(map[*ir.Block]*ir.Block, len(c.blocks))
	orig := make(map[*ir.Block]*ir.Block, len(c.blocks))
	for _, b := range c.blocks {
		nb := c.g.NewBlock()
		bmap[b], orig[nb] = nb, b
		cp.blocks = append(cp.blocks, nb)
	}
	cp.header, cp.backEdge = bmap[c.header], bmap[c.backEdge]

	var cloned []*ir.Inst
	for _, b := range c.blocks {
		dropBranch := exitTo == nil && c.exits(b)
		for _, i := range b.AllInsts() {
			if i.Opcode() == ir.OpSafePoint || (b == c.header && i.IsPhi()) {
				continue
			}
			if dropBranch && i.Opcode() == ir.OpIfImm {
				continue
			}
			ni := i.Clone(c.g)
			cp.values[i] = ni
			bmap[b].AppendInst(ni)
			cloned = append(cloned, i)
		}
	}
	for _, b := range c.blocks {
		nb := bmap[b]
		for _, s := range b.Succs() {
			switch {
			case s == c.header:
				nb.AddSucc(c.header)
				for _, phi := range c.header.PhiInsts() {
					phi.AppendInput(cp.lookup(c.backVal[phi]))
				}
			case c.inLoop[s]:
				nb.AddSucc(bmap[s])
			case exitTo != nil:
				nb.AddSucc(exitTo)
				for _, phi := range exitTo.PhiInsts() {
					phi.AppendInput(cp.lookup(exitIn[phi]))
				}
			}
		}
	}
	for _, i := range cloned {
		ni := cp.values[i]
		if !i.IsPhi() {
			for _, in := range i.Inputs() {
				ni.AppendInput(cp.lookup(in))
			}
			continue
		}
		// Phi inputs follow the predecessor order of the copy.
		seen := make(map[*ir.Block]int)
		for _, np := range ni.Block().Preds() {
			op := orig[np]
			n := nthPred(i.Block(), op, seen[np])
			seen[np]++
			ni.AppendInput(cp.lookup(i.Input(n)))
		}
	}
	return cp
}

// nthPred returns the index of the k-th edge from p in the predecessors of b.
func nthPred(b, p *ir.Block, k int) int {
	for n, pred := range b.Preds() {
		if pred != p {
			continue
		}
		if k == 0 {
			return n
		}
		k--
	}
	panic("opt: " + p.String() + " is not a predecessor of " + b.String())
}
