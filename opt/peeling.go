package opt

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
)

// LoopPeeling moves the exit test of loops left from the header to the
// back-edge. The first evaluation of the header is peeled into a new
// pre-header:
//
//	   [pre-header]              [pre-header]
//	        |                         |
//	/---->[header]---\            [header']-----\
//	|        |       |                |         |
//	|     [body]     |        /--->[header]     |
//	|        |       |        |       |         |
//	\---[back-edge]  |        |    [body]       |
//	                 v        |       |         |
//	              [exit]      \---[back-edge]-->[resolver]
//	                                                |
//	                                             [exit]
//
// header' holds clones of the header instructions, the original header
// instructions move to the back-edge and the header keeps only phis.
type LoopPeeling struct {
	cfgPass
}

// NewLoopPeeling returns the pass peeling the loops of g.
func NewLoopPeeling(g *ir.Graph, opts *Options) *LoopPeeling {
	p := &LoopPeeling{cfgPass{g: g, opts: opts}}
	p.SetLogger(NopLogger())
	return p
}

// SetLogger sets the logger of the pass.
func (p *LoopPeeling) SetLogger(l *Logger) {
	p.Logger = l.forModule(color.CyanString("peeling"))
}

func (p *LoopPeeling) PassName() string { return "LoopPeeling" }
func (p *LoopPeeling) IsEnable() bool   { return p.opts.Peeling }

// RunImpl peels every innermost loop left from its header.
func (p *LoopPeeling) RunImpl() bool {
	return NewLoopTransform(p.g, LoopExitHeader, p.TransformLoop).Run()
}

// TransformLoop peels l and returns true on success.
func (p *LoopPeeling) TransformLoop(l *ir.Loop) bool {
	h, pre, be := l.Header(), l.PreHeader(), l.BackEdges()[0]
	if h.IsPeeled() {
		return false
	}
	ifImm := h.Terminator()
	if ifImm == nil || ifImm.Opcode() != ir.OpIfImm || h.NumSuccs() != 2 {
		return false
	}
	var exit *ir.Block
	switch {
	case l.Contains(h.TrueSucc()) && !l.Contains(h.FalseSucc()):
		exit = h.FalseSucc()
	case l.Contains(h.FalseSucc()) && !l.Contains(h.TrueSucc()):
		exit = h.TrueSucc()
	default:
		return false
	}
	exitOnTrue := h.TrueSucc() == exit
	for _, i := range h.Insts() {
		if i.Opcode() == ir.OpReturnInlined || (i.Opcode() == ir.OpCall && i.IsInlined()) {
			p.Debugf("%s %v: inlined call in header", p.Module(), l)
			return false
		}
	}
	if h == be {
		return p.peelSingleBlock(l, exit, ifImm)
	}
	phis, insts := h.PhiInsts(), h.Insts()

	// Outside users, collected before the CFG changes.
	type use struct {
		value *ir.Inst
		user  ir.User
	}
	var outside []use
	for _, v := range append(append([]*ir.Inst(nil), phis...), insts...) {
		for _, u := range v.Users() {
			if !l.Contains(u.Inst.Block()) {
				outside = append(outside, use{v, u})
			}
		}
	}

	g := p.g
	// Peel the first header evaluation.
	peeled := pre.InsertNewBlockToSuccEdge(h)
	clones := make(map[*ir.Inst]*ir.Inst, len(insts))
	for _, i := range insts {
		if i.Opcode() == ir.OpSafePoint {
			continue
		}
		c := i.Clone(g)
		for _, in := range i.Inputs() {
			switch {
			case in.IsPhi() && in.Block() == h:
				in = in.PhiInput(peeled)
			case clones[in] != nil:
				in = clones[in]
			}
			c.AppendInput(in)
		}
		clones[i] = c
		peeled.AppendInst(c)
	}
	peeledVal := func(v *ir.Inst) *ir.Inst {
		if v.IsPhi() {
			return v.PhiInput(peeled)
		}
		return clones[v]
	}

	// Move the header test to the back-edge.
	latch := be.InsertNewBlockToSuccEdge(h)
	resolver := g.NewBlock()
	exit.ReplacePred(h, resolver)
	for _, i := range insts {
		h.RemoveInst(i)
		latch.AppendInst(i)
	}
	moved := make(map[*ir.Inst]bool, len(insts))
	for _, i := range insts {
		moved[i] = true
	}

	// cur is the header value seen by the body, nxt the value a header phi
	// takes on the next iteration.
	carried := make(map[*ir.Inst]*ir.Inst)
	cur := func(v *ir.Inst) *ir.Inst {
		if v.IsPhi() {
			return v
		}
		if c, ok := carried[v]; ok {
			return c
		}
		phi := g.NewPhi(v.Type(), v.PC(), make([]*ir.Inst, h.NumPreds())...)
		h.AppendPhi(phi)
		phi.SetPhiInput(peeled, peeledVal(v))
		phi.SetPhiInput(latch, v)
		carried[v] = phi
		return phi
	}
	isHeaderValue := func(v *ir.Inst) bool {
		return (v.IsPhi() && v.Block() == h) || moved[v]
	}
	next := make(map[*ir.Inst]*ir.Inst, len(phis))
	for _, phi := range phis {
		in := phi.PhiInput(latch)
		if isHeaderValue(in) {
			in = cur(in)
		}
		next[phi] = in
	}
	for _, i := range insts {
		for n, in := range i.Inputs() {
			if in.IsPhi() && in.Block() == h && next[in] != nil {
				i.SetInput(n, next[in])
			}
		}
		for _, u := range i.Users() {
			b := u.Inst.Block()
			if b != latch && b != h && l.Contains(b) {
				u.Inst.SetInput(u.Index, cur(i))
			}
		}
	}
	for _, phi := range phis {
		phi.SetPhiInput(latch, next[phi])
	}

	peeled.AddSucc(resolver)
	latch.AddSucc(resolver)
	if exitOnTrue {
		peeled.SwapTrueFalseSuccessors()
		latch.SwapTrueFalseSuccessors()
	}
	resolved := make(map[*ir.Inst]*ir.Inst)
	for _, o := range outside {
		r, ok := resolved[o.value]
		if !ok {
			first, last := peeledVal(o.value), o.value
			if o.value.IsPhi() {
				last = next[o.value]
			}
			r = first
			if first != last {
				r = g.NewPhi(o.value.Type(), o.value.PC(), first, last)
				resolver.AppendPhi(r)
			}
			resolved[o.value] = r
		}
		o.user.Inst.SetInput(o.user.Index, r)
	}
	for _, phi := range phis {
		if !phi.HasUsers() {
			h.EraseInst(phi)
		}
	}

	l.SetPreHeader(peeled)
	l.ReplaceBackEdge(be, latch)
	l.AppendBlock(latch)
	if outer := l.OuterLoop(); outer != nil {
		outer.AppendBlock(peeled)
		outer.AppendBlock(resolver)
	}
	p.Infof("%s %v peeled into %v, exit test moved to %v", p.Module(), l, peeled, latch)
	p.emit(EventPeeling, l, ifImm.PC(), "peeled", len(clones))
	return true
}

// peelSingleBlock peels the first iteration of a loop whose header is also
// its back-edge. The header already ends with the exit test and is kept as
// is; the peeled block runs one iteration and enters the loop with the
// values of the second:
//
//	   [pre-header]              [pre-header]
//	        |                         |
//	/--->[header]                 [header']------\
//	|       |                         |          |
//	\-------+                 /--->[header]      |
//	        |                 |       |          |
//	        v                 \-------+-->[resolver]
//	     [exit]                              |
//	                                      [exit]
func (p *LoopPeeling) peelSingleBlock(l *ir.Loop, exit *ir.Block, ifImm *ir.Inst) bool {
	g, h, pre := p.g, l.Header(), l.PreHeader()
	exitOnTrue := h.TrueSucc() == exit
	phis, insts := h.PhiInsts(), h.Insts()

	type use struct {
		value *ir.Inst
		user  ir.User
	}
	var outside []use
	for _, v := range append(append([]*ir.Inst(nil), phis...), insts...) {
		for _, u := range v.Users() {
			if !l.Contains(u.Inst.Block()) {
				outside = append(outside, use{v, u})
			}
		}
	}

	peeled := pre.InsertNewBlockToSuccEdge(h)
	clones := make(map[*ir.Inst]*ir.Inst, len(insts))
	// first maps a loop value to its value in the peeled iteration.
	first := func(v *ir.Inst) *ir.Inst {
		switch {
		case v.IsPhi() && v.Block() == h:
			return v.PhiInput(peeled)
		case clones[v] != nil:
			return clones[v]
		}
		return v
	}
	for _, i := range insts {
		if i.Opcode() == ir.OpSafePoint {
			continue
		}
		c := i.Clone(g)
		for _, in := range i.Inputs() {
			c.AppendInput(first(in))
		}
		clones[i] = c
		peeled.AppendInst(c)
	}

	// The loop now starts at the second iteration.
	entry := make([]*ir.Inst, len(phis))
	for n, phi := range phis {
		entry[n] = first(phi.PhiInput(h))
	}
	firstOf := make(map[*ir.Inst]*ir.Inst, len(outside))
	for _, o := range outside {
		if _, ok := firstOf[o.value]; !ok {
			firstOf[o.value] = first(o.value)
		}
	}
	for n, phi := range phis {
		phi.SetPhiInput(peeled, entry[n])
	}

	resolver := g.NewBlock()
	exit.ReplacePred(h, resolver)
	peeled.AddSucc(resolver)
	h.AddSucc(resolver)
	if exitOnTrue {
		peeled.SwapTrueFalseSuccessors()
		h.SwapTrueFalseSuccessors()
	}
	resolved := make(map[*ir.Inst]*ir.Inst)
	for _, o := range outside {
		r, ok := resolved[o.value]
		if !ok {
			r = firstOf[o.value]
			if r != o.value {
				r = g.NewPhi(o.value.Type(), o.value.PC(), r, o.value)
				resolver.AppendPhi(r)
			}
			resolved[o.value] = r
		}
		o.user.Inst.SetInput(o.user.Index, r)
	}

	h.SetPeeled(true)
	l.SetPreHeader(peeled)
	if outer := l.OuterLoop(); outer != nil {
		outer.AppendBlock(peeled)
		outer.AppendBlock(resolver)
	}
	p.Infof("%s %v: first iteration peeled into %v", p.Module(), l, peeled)
	p.emit(EventPeeling, l, ifImm.PC(), "peeled", len(clones))
	return true
}
