package block

import (
	"github.com/nickng/loopopt/ir"
	"github.com/pkg/errors"
)

var ErrBadGraph = errors.New("malformed graph")

// Check verifies the structural invariants of g: symmetric pred/succ edges,
// symmetric input/user edges, one phi input per predecessor, a terminator
// matching the number of successors, and values defined before use in
// the same block.
func Check(g *ir.Graph) error {
	live := make(map[*ir.Block]bool)
	for _, b := range g.Blocks() {
		live[b] = true
	}
	for _, b := range g.Blocks() {
		for _, s := range b.Succs() {
			if !live[s] {
				return errors.Wrapf(ErrBadGraph, "%v: successor %v is not in the graph", b, s)
			}
			if count(s.Preds(), b) != count(b.Succs(), s) {
				return errors.Wrapf(ErrBadGraph, "%v -> %v: successor without matching predecessor", b, s)
			}
		}
		for _, p := range b.Preds() {
			if !live[p] {
				return errors.Wrapf(ErrBadGraph, "%v: predecessor %v is not in the graph", b, p)
			}
			if count(p.Succs(), b) != count(b.Preds(), p) {
				return errors.Wrapf(ErrBadGraph, "%v -> %v: predecessor without matching successor", p, b)
			}
		}
		if err := checkTerminator(b); err != nil {
			return err
		}
		seen := make(map[*ir.Inst]bool)
		for _, i := range b.AllInsts() {
			if i.Block() != b {
				return errors.Wrapf(ErrBadGraph, "%v: %v has block %v", b, i, i.Block())
			}
			if i.IsPhi() && i.NumInputs() != b.NumPreds() {
				return errors.Wrapf(ErrBadGraph, "%v: phi %v has %d inputs for %d predecessors",
					b, i, i.NumInputs(), b.NumPreds())
			}
			for n, in := range i.Inputs() {
				if in == nil || in.Block() == nil || !live[in.Block()] {
					return errors.Wrapf(ErrBadGraph, "%v: input %d of %v is not in the graph", b, n, i)
				}
				if !hasUser(in, i, n) {
					return errors.Wrapf(ErrBadGraph, "%v: %v uses %v without user edge", b, i, in)
				}
				if !i.IsPhi() && in.Block() == b && !seen[in] {
					return errors.Wrapf(ErrBadGraph, "%v: %v used by %v before definition", b, in, i)
				}
			}
			for _, u := range i.Users() {
				if u.Index >= u.Inst.NumInputs() || u.Inst.Input(u.Index) != i {
					return errors.Wrapf(ErrBadGraph, "%v: stale user edge %v -> %v", b, i, u.Inst)
				}
			}
			seen[i] = true
		}
	}
	return nil
}

func checkTerminator(b *ir.Block) error {
	term := b.Terminator()
	for _, i := range b.AllInsts() {
		if i.Opcode().IsTerminator() && i != term {
			return errors.Wrapf(ErrBadGraph, "%v: %v %v is not last", b, i.Opcode(), i)
		}
	}
	switch b.NumSuccs() {
	case 0:
		if term == nil || term.Opcode() == ir.OpIfImm {
			return errors.Wrapf(ErrBadGraph, "%v: block without successors must return", b)
		}
	case 1:
		if term != nil {
			return errors.Wrapf(ErrBadGraph, "%v: fall-through block ends in %v", b, term.Opcode())
		}
	case 2:
		if term == nil || term.Opcode() != ir.OpIfImm {
			return errors.Wrapf(ErrBadGraph, "%v: two-way block must end in IfImm", b)
		}
	default:
		return errors.Wrapf(ErrBadGraph, "%v: %d successors", b, b.NumSuccs())
	}
	return nil
}

func count(bs []*ir.Block, b *ir.Block) int {
	n := 0
	for _, x := range bs {
		if x == b {
			n++
		}
	}
	return n
}

func hasUser(v, user *ir.Inst, n int) bool {
	for _, u := range v.Users() {
		if u.Inst == user && u.Index == n {
			return true
		}
	}
	return false
}

// CheckSSA runs Check and verifies that every definition dominates its uses;
// a phi input must dominate the end of the matching predecessor. Only
// blocks reachable from the start are inspected.
func CheckSSA(g *ir.Graph) error {
	if err := Check(g); err != nil {
		return err
	}
	BuildDomTree(g)
	rpo := g.BlocksRPO()
	reachable := make(map[*ir.Block]bool, len(rpo))
	for _, b := range rpo {
		reachable[b] = true
	}
	for _, b := range rpo {
		for _, i := range b.AllInsts() {
			for n, in := range i.Inputs() {
				use := b
				if i.IsPhi() {
					use = b.Pred(n)
					if !reachable[use] {
						continue
					}
				}
				if in.Block() == b && !i.IsPhi() {
					continue
				}
				if !in.Block().Dominates(use) {
					return errors.Wrapf(ErrBadGraph, "%v: %v (%v) does not dominate its use in %v", b, in, in.Block(), i)
				}
			}
		}
	}
	return nil
}
