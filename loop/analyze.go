package loop

import (
	"io"
	"io/ioutil"
	"log"
	"sort"

	_ "github.com/nickng/loopopt/block" // dominator tree analyzer
	"github.com/nickng/loopopt/ir"
)

func init() {
	ir.RegisterAnalyzer(ir.LoopAnalysis, func(g *ir.Graph) {
		NewAnalyzer().Analyze(g)
	})
}

// Analyzer builds the loop tree of a graph.
type Analyzer struct {
	logger *log.Logger
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{logger: log.New(ioutil.Discard, "loopanalysis: ", 0)}
}

func (a *Analyzer) SetLog(w io.Writer) {
	a.logger.SetOutput(w)
}

type header struct {
	block       *ir.Block
	backEdges   []*ir.Block
	retreating  []*ir.Block // Sources of edges entering an irreducible loop.
	irreducible bool
}

// Analyze computes the loop tree of g, creating pre-headers where needed,
// and installs it as the root loop of g. The dominator tree is rebuilt if
// the CFG had to change.
func (a *Analyzer) Analyze(g *ir.Graph) *ir.Loop {
	g.RunAnalysis(ir.DomTreeAnalysis)
	headers := a.findHeaders(g)
	if a.insertPreHeaders(g, headers) {
		g.InvalidateAnalysis(ir.DomTreeAnalysis)
		g.InvalidateAnalysis(ir.LinearOrderAnalysis)
		g.RunAnalysis(ir.DomTreeAnalysis)
	}

	root := ir.NewRootLoop(0)
	rpo := g.BlocksRPO()
	type loopSet struct {
		loop   *ir.Loop
		blocks map[*ir.Block]bool
	}
	var sets []loopSet
	for n, h := range headers {
		l := ir.NewLoop(n+1, h.block)
		blocks := naturalLoop(h)
		for _, e := range h.backEdges {
			l.AppendBackEdge(e)
		}
		for _, e := range h.retreating {
			l.AppendBackEdge(e)
		}
		l.SetIrreducible(h.irreducible)
		sets = append(sets, loopSet{loop: l, blocks: blocks})
	}
	// Innermost loops first.
	sort.SliceStable(sets, func(i, j int) bool { return len(sets[i].blocks) < len(sets[j].blocks) })

	outerOf := make(map[*ir.Loop]*ir.Loop, len(sets))
	for i, s := range sets {
		outer := root
		for _, o := range sets[i+1:] {
			if o.blocks[s.loop.Header()] && len(o.blocks) > len(s.blocks) {
				outer = o.loop
				break
			}
		}
		outerOf[s.loop] = outer
	}
	inRPO := make(map[*ir.Block]bool, len(rpo))
	for _, b := range rpo {
		inRPO[b] = true
		owner := root
		for _, s := range sets {
			if s.blocks[b] {
				owner = s.loop
				break
			}
		}
		owner.AppendBlock(b)
	}
	for _, b := range g.Blocks() {
		if !inRPO[b] {
			root.AppendBlock(b)
		}
	}
	// Attach in header order so inner loop lists are deterministic.
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].loop.ID() < sets[j].loop.ID() })
	for _, s := range sets {
		l := s.loop
		outerOf[l].AppendInner(l)
		for b := range s.blocks {
			if b.IsTry() || b.IsCatch() {
				l.SetTryCatchLoop(true)
			}
		}
		l.SetOsrLoop(l.Header().IsOsrEntry())
		l.SetInfinite(!hasExit(s.blocks))
		if !l.IsIrreducible() {
			var outside []*ir.Block
			for _, p := range l.Header().Preds() {
				if !s.blocks[p] {
					outside = append(outside, p)
				}
			}
			if len(outside) == 1 {
				l.SetPreHeader(outside[0])
			}
		}
		a.logger.Printf("%v: %d blocks, %d back-edges, irreducible=%v infinite=%v",
			l, len(s.blocks), len(l.BackEdges()), l.IsIrreducible(), l.IsInfinite())
	}
	g.SetRootLoop(root)
	return root
}

// findHeaders walks the CFG depth first and classifies edges to blocks on
// the DFS stack as back-edges (target dominates source) or irreducible
// entries.
func (a *Analyzer) findHeaders(g *ir.Graph) []*header {
	type frame struct {
		b    *ir.Block
		next int
	}
	byBlock := make(map[*ir.Block]*header)
	var order []*header
	get := func(b *ir.Block) *header {
		h, ok := byBlock[b]
		if !ok {
			h = &header{block: b}
			byBlock[b] = h
			order = append(order, h)
		}
		return h
	}
	onStack := make(map[*ir.Block]bool)
	seen := make(map[*ir.Block]bool)
	stack := []frame{{b: g.StartBlock()}}
	seen[g.StartBlock()] = true
	onStack[g.StartBlock()] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < top.b.NumSuccs() {
			s := top.b.Succ(top.next)
			top.next++
			switch {
			case onStack[s] && s.Dominates(top.b):
				h := get(s)
				h.backEdges = appendUnique(h.backEdges, top.b)
			case onStack[s]:
				h := get(s)
				h.irreducible = true
				h.retreating = appendUnique(h.retreating, top.b)
				a.logger.Printf("irreducible edge %v -> %v", top.b, s)
			case !seen[s]:
				seen[s] = true
				onStack[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		onStack[top.b] = false
		stack = stack[:len(stack)-1]
	}
	// Order headers by RPO for stable loop ids.
	rpoNum := make(map[*ir.Block]int)
	for n, b := range g.BlocksRPO() {
		rpoNum[b] = n
	}
	sort.SliceStable(order, func(i, j int) bool { return rpoNum[order[i].block] < rpoNum[order[j].block] })
	return order
}

func appendUnique(bs []*ir.Block, b *ir.Block) []*ir.Block {
	for _, x := range bs {
		if x == b {
			return bs
		}
	}
	return append(bs, b)
}

// naturalLoop returns the blocks of the loop of h: the header plus every
// block reaching a back-edge source without passing through the header.
// Irreducible loops are restricted to blocks reachable from the header.
func naturalLoop(h *header) map[*ir.Block]bool {
	var forward map[*ir.Block]bool
	if h.irreducible {
		forward = reachableFrom(h.block)
	}
	blocks := map[*ir.Block]bool{h.block: true}
	work := NewStack()
	for _, e := range append(append([]*ir.Block(nil), h.backEdges...), h.retreating...) {
		if !blocks[e] {
			blocks[e] = true
			work.Push(e)
		}
	}
	for !work.IsEmpty() {
		b, _ := work.Pop()
		for _, p := range b.Preds() {
			if blocks[p] || (forward != nil && !forward[p]) {
				continue
			}
			blocks[p] = true
			work.Push(p)
		}
	}
	return blocks
}

func reachableFrom(b *ir.Block) map[*ir.Block]bool {
	seen := map[*ir.Block]bool{b: true}
	work := NewStack()
	work.Push(b)
	for !work.IsEmpty() {
		x, _ := work.Pop()
		for _, s := range x.Succs() {
			if !seen[s] {
				seen[s] = true
				work.Push(s)
			}
		}
	}
	return seen
}

func hasExit(blocks map[*ir.Block]bool) bool {
	for b := range blocks {
		for _, s := range b.Succs() {
			if !blocks[s] {
				return true
			}
		}
	}
	return false
}

// insertPreHeaders gives each reducible loop header with several outside
// predecessors a new single pre-header. Header phis keep one input for the
// pre-header, merging the outside inputs with a phi in the pre-header when
// they differ.
func (a *Analyzer) insertPreHeaders(g *ir.Graph, headers []*header) bool {
	changed := false
	for _, h := range headers {
		if h.irreducible {
			continue
		}
		blocks := naturalLoop(h)
		var outside []*ir.Block
		for _, p := range h.block.Preds() {
			if !blocks[p] {
				outside = append(outside, p)
			}
		}
		if len(outside) < 2 {
			continue
		}
		hb := h.block
		phis := hb.PhiInsts()
		vals := make([][]*ir.Inst, len(phis))
		for n, phi := range phis {
			for _, p := range outside {
				vals[n] = append(vals[n], phi.PhiInput(p))
			}
		}
		pre := g.NewBlock()
		for _, p := range outside {
			p.ReplaceSucc(hb, pre)
		}
		pre.AddSucc(hb)
		for n, phi := range phis {
			v := vals[n][0]
			for _, other := range vals[n][1:] {
				if other != v {
					merged := g.NewPhi(phi.Type(), phi.PC(), vals[n]...)
					pre.AppendPhi(merged)
					v = merged
					break
				}
			}
			phi.AppendInput(v)
		}
		a.logger.Printf("new pre-header %v for %v", pre, hb)
		changed = true
	}
	return changed
}
