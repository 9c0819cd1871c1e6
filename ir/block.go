package ir

import "fmt"

// Block is a basic block. Phis come first in the instruction list. A block
// with two successors ends in an IfImm whose true successor is Succ(0) and
// false successor Succ(1); a block with no successors ends in a return; a
// block with one successor falls through.
type Block struct {
	id    int
	graph *Graph

	first, last *Inst
	lastPhi     *Inst

	preds []*Block
	succs []*Block

	loop *Loop

	dom       *Block
	dominated []*Block

	tryBegin, tryEnd, catch bool
	osrEntry                bool
	unrolled, peeled        bool

	marks marks
}

func (b *Block) ID() int           { return b.id }
func (b *Block) Graph() *Graph     { return b.graph }
func (b *Block) Loop() *Loop       { return b.loop }
func (b *Block) SetLoop(l *Loop)   { b.loop = l }
func (b *Block) Preds() []*Block   { return b.preds }
func (b *Block) Succs() []*Block   { return b.succs }
func (b *Block) Pred(n int) *Block { return b.preds[n] }
func (b *Block) Succ(n int) *Block { return b.succs[n] }
func (b *Block) NumPreds() int     { return len(b.preds) }
func (b *Block) NumSuccs() int     { return len(b.succs) }
func (b *Block) TrueSucc() *Block  { return b.succs[0] }
func (b *Block) FalseSucc() *Block { return b.succs[1] }
func (b *Block) IsStart() bool     { return b.graph.start == b }

func (b *Block) IsTry() bool            { return b.tryBegin || b.tryEnd }
func (b *Block) IsCatch() bool          { return b.catch }
func (b *Block) SetTry(begin, end bool) { b.tryBegin, b.tryEnd = begin, end }
func (b *Block) SetCatch(catch bool)    { b.catch = catch }
func (b *Block) IsOsrEntry() bool       { return b.osrEntry }
func (b *Block) SetOsrEntry(osr bool)   { b.osrEntry = osr }

// IsUnrolled is set on the header of a loop once LoopUnroll replicated it.
func (b *Block) IsUnrolled() bool   { return b.unrolled }
func (b *Block) SetUnrolled(v bool) { b.unrolled = v }

// IsPeeled is set on the header of a single-block loop once LoopPeeling
// peeled its first iteration.
func (b *Block) IsPeeled() bool   { return b.peeled }
func (b *Block) SetPeeled(v bool) { b.peeled = v }

func (b *Block) SetMarker(m Marker)     { b.marks.set(m) }
func (b *Block) ResetMarker(m Marker)   { b.marks.reset(m) }
func (b *Block) IsMarked(m Marker) bool { return b.marks.isSet(m) }

// Dominator returns the immediate dominator. Valid only while the
// DomTreeAnalysis is valid.
func (b *Block) Dominator() *Block { return b.dom }

// Dominated returns the blocks immediately dominated by b.
func (b *Block) Dominated() []*Block { return b.dominated }

// SetDominator is used by the dominator tree builder.
func (b *Block) SetDominator(d *Block) {
	b.dom = d
	if d != nil {
		d.dominated = append(d.dominated, b)
	}
}

// ClearDominators resets the dominator links of b.
func (b *Block) ClearDominators() {
	b.dom = nil
	b.dominated = nil
}

// Dominates returns true if b dominates other.
func (b *Block) Dominates(other *Block) bool {
	for d := other; d != nil; d = d.dom {
		if d == b {
			return true
		}
	}
	return false
}

// IsLoopHeader returns true if b is the header of its innermost loop.
func (b *Block) IsLoopHeader() bool {
	return b.loop != nil && b.loop.header == b && !b.loop.root
}

// PredIndex returns the position of pred in the predecessor list, or -1.
func (b *Block) PredIndex(pred *Block) int {
	for n, p := range b.preds {
		if p == pred {
			return n
		}
	}
	return -1
}

// SuccIndex returns the position of succ in the successor list, or -1.
func (b *Block) SuccIndex(succ *Block) int {
	for n, s := range b.succs {
		if s == succ {
			return n
		}
	}
	return -1
}

func (b *Block) HasSucc(s *Block) bool { return b.SuccIndex(s) >= 0 }
func (b *Block) HasPred(p *Block) bool { return b.PredIndex(p) >= 0 }

// AddSucc adds the edge b -> s. Phis of s must get their new input appended
// by the caller.
func (b *Block) AddSucc(s *Block) {
	b.succs = append(b.succs, s)
	s.preds = append(s.preds, b)
	b.graph.cfgChanged()
}

// RemoveSucc deletes the edge b -> s, together with the phi inputs of s for
// that edge.
func (b *Block) RemoveSucc(s *Block) {
	n := b.SuccIndex(s)
	if n < 0 {
		panic(fmt.Sprintf("ir: %v is not a successor of %v", s, b))
	}
	b.succs = append(b.succs[:n], b.succs[n+1:]...)
	s.removePred(b)
	b.graph.cfgChanged()
}

// RemovePred deletes the edge p -> b.
func (b *Block) RemovePred(p *Block) { p.RemoveSucc(b) }

func (b *Block) removePred(p *Block) {
	n := b.PredIndex(p)
	if n < 0 {
		panic(fmt.Sprintf("ir: %v is not a predecessor of %v", p, b))
	}
	b.preds = append(b.preds[:n], b.preds[n+1:]...)
	for _, phi := range b.PhiInsts() {
		phi.RemoveInput(n)
	}
}

func (b *Block) removeSuccOnly(s *Block) {
	n := b.SuccIndex(s)
	if n < 0 {
		panic(fmt.Sprintf("ir: %v is not a successor of %v", s, b))
	}
	b.succs = append(b.succs[:n], b.succs[n+1:]...)
}

// ReplaceSucc redirects the edge b -> old to b -> s, keeping the successor
// slot. Phi inputs of old for the edge are removed; phis of s must get their
// new input appended by the caller.
func (b *Block) ReplaceSucc(old, s *Block) {
	n := b.SuccIndex(old)
	if n < 0 {
		panic(fmt.Sprintf("ir: %v is not a successor of %v", old, b))
	}
	b.succs[n] = s
	s.preds = append(s.preds, b)
	old.removePred(b)
	b.graph.cfgChanged()
}

// ReplacePred makes p the source of the edge old -> b, keeping the
// predecessor slot and therefore the phi inputs.
func (b *Block) ReplacePred(old, p *Block) {
	n := b.PredIndex(old)
	if n < 0 {
		panic(fmt.Sprintf("ir: %v is not a predecessor of %v", old, b))
	}
	b.preds[n] = p
	old.removeSuccOnly(b)
	p.succs = append(p.succs, b)
	b.graph.cfgChanged()
}

// InsertNewBlockToSuccEdge splits the edge b -> s with a new empty block.
func (b *Block) InsertNewBlockToSuccEdge(s *Block) *Block {
	n := b.SuccIndex(s)
	p := s.PredIndex(b)
	if n < 0 || p < 0 {
		panic(fmt.Sprintf("ir: no edge %v -> %v", b, s))
	}
	nb := b.graph.NewBlock()
	b.succs[n] = nb
	nb.preds = append(nb.preds, b)
	nb.succs = append(nb.succs, s)
	s.preds[p] = nb
	b.graph.cfgChanged()
	return nb
}

// SwapTrueFalseSuccessors exchanges the two successors.
func (b *Block) SwapTrueFalseSuccessors() {
	if len(b.succs) != 2 {
		panic(fmt.Sprintf("ir: %v has %d successors", b, len(b.succs)))
	}
	b.succs[0], b.succs[1] = b.succs[1], b.succs[0]
	b.graph.cfgChanged()
}

// First returns the first instruction, phis included.
func (b *Block) First() *Inst { return b.first }

// Last returns the last instruction.
func (b *Block) Last() *Inst { return b.last }

// FirstInst returns the first non-phi instruction.
func (b *Block) FirstInst() *Inst {
	if b.lastPhi != nil {
		return b.lastPhi.next
	}
	return b.first
}

// Terminator returns the IfImm or return ending the block, or nil.
func (b *Block) Terminator() *Inst {
	if b.last != nil && b.last.op.IsTerminator() {
		return b.last
	}
	return nil
}

// IsEmpty returns true if the block holds no non-phi instruction.
func (b *Block) IsEmpty() bool { return b.FirstInst() == nil }

// HasPhi returns true if the block has at least one phi.
func (b *Block) HasPhi() bool { return b.lastPhi != nil }

// AllInsts returns a snapshot of all instructions, phis first.
func (b *Block) AllInsts() []*Inst {
	var out []*Inst
	for i := b.first; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// PhiInsts returns a snapshot of the phis.
func (b *Block) PhiInsts() []*Inst {
	var out []*Inst
	if b.lastPhi == nil {
		return nil
	}
	for i := b.first; ; i = i.next {
		out = append(out, i)
		if i == b.lastPhi {
			return out
		}
	}
}

// Insts returns a snapshot of the non-phi instructions.
func (b *Block) Insts() []*Inst {
	var out []*Inst
	for i := b.FirstInst(); i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// InstsSafeReverse returns the non-phi instructions in reverse order. The
// block may be mutated while iterating over the result.
func (b *Block) InstsSafeReverse() []*Inst {
	insts := b.Insts()
	for l, r := 0, len(insts)-1; l < r; l, r = l+1, r-1 {
		insts[l], insts[r] = insts[r], insts[l]
	}
	return insts
}

func (b *Block) link(i, prev *Inst) {
	if i.block != nil {
		panic(fmt.Sprintf("ir: %v already belongs to %v", i, i.block))
	}
	i.block = b
	i.prev = prev
	if prev == nil {
		i.next = b.first
		b.first = i
	} else {
		i.next = prev.next
		prev.next = i
	}
	if i.next != nil {
		i.next.prev = i
	} else {
		b.last = i
	}
	b.graph.instChanged()
}

// AppendPhi adds phi after the existing phis.
func (b *Block) AppendPhi(phi *Inst) {
	if !phi.IsPhi() {
		panic(fmt.Sprintf("ir: AppendPhi of %v %v", phi.op, phi))
	}
	b.link(phi, b.lastPhi)
	b.lastPhi = phi
}

// AppendInst adds i at the end of the block. Phis go after the last phi.
func (b *Block) AppendInst(i *Inst) {
	if i.IsPhi() {
		b.AppendPhi(i)
		return
	}
	b.link(i, b.last)
}

// PrependInst adds i before the first non-phi instruction.
func (b *Block) PrependInst(i *Inst) {
	if i.IsPhi() {
		b.AppendPhi(i)
		return
	}
	b.link(i, b.lastPhi)
}

// InsertBefore inserts i before at, which must not be a phi.
func (b *Block) InsertBefore(i, at *Inst) {
	if at.block != b || at.IsPhi() {
		panic(fmt.Sprintf("ir: bad insertion point %v", at))
	}
	b.link(i, at.prev)
}

// InsertAfter inserts i after at.
func (b *Block) InsertAfter(i, at *Inst) {
	if at.block != b {
		panic(fmt.Sprintf("ir: bad insertion point %v", at))
	}
	if at.IsPhi() && !i.IsPhi() && at != b.lastPhi {
		panic(fmt.Sprintf("ir: %v inserted among phis", i))
	}
	b.link(i, at)
	if i.IsPhi() && at == b.lastPhi {
		b.lastPhi = i
	}
}

// AppendRangeInst moves the detached instructions insts to the end of b.
func (b *Block) AppendRangeInst(insts []*Inst) {
	for _, i := range insts {
		b.AppendInst(i)
	}
}

// InsertRangeBefore moves the detached instructions insts before at.
func (b *Block) InsertRangeBefore(insts []*Inst, at *Inst) {
	for _, i := range insts {
		b.InsertBefore(i, at)
	}
}

// RemoveInst unlinks i from the block. Inputs and users are kept, so the
// instruction can be inserted elsewhere.
func (b *Block) RemoveInst(i *Inst) {
	if i.block != b {
		panic(fmt.Sprintf("ir: %v does not belong to %v", i, b))
	}
	if i == b.lastPhi {
		if i.prev != nil && i.prev.IsPhi() {
			b.lastPhi = i.prev
		} else {
			b.lastPhi = nil
		}
	}
	if i.prev != nil {
		i.prev.next = i.next
	} else {
		b.first = i.next
	}
	if i.next != nil {
		i.next.prev = i.prev
	} else {
		b.last = i.prev
	}
	i.prev, i.next, i.block = nil, nil, nil
	b.graph.instChanged()
}

// EraseInst unlinks i and drops its inputs. The instruction must not have
// users.
func (b *Block) EraseInst(i *Inst) {
	if i.HasUsers() {
		panic(fmt.Sprintf("ir: erase of %v which still has users", i))
	}
	b.RemoveInst(i)
	i.RemoveInputs()
}

func (b *Block) String() string { return fmt.Sprintf("BB%d", b.id) }
