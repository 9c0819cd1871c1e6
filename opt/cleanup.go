package opt

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
)

// Cleanup removes dead instructions, trivial phis, empty blocks and
// unreachable blocks, and merges straight-line block pairs.
type Cleanup struct {
	cfgPass
}

// NewCleanup returns the pass simplifying the CFG of g.
func NewCleanup(g *ir.Graph, opts *Options) *Cleanup {
	c := &Cleanup{cfgPass{g: g, opts: opts}}
	c.SetLogger(NopLogger())
	return c
}

// SetLogger sets the logger of the pass.
func (c *Cleanup) SetLogger(l *Logger) {
	c.Logger = l.forModule(color.YellowString("cleanup"))
}

func (c *Cleanup) PassName() string { return "Cleanup" }
func (c *Cleanup) IsEnable() bool   { return true }

// RunImpl repeats the simplifications until none applies.
func (c *Cleanup) RunImpl() bool {
	changed := false
	for {
		step := c.removeUnreachable()
		step = c.foldPhis() || step
		step = c.removeDead() || step
		step = c.removeEmptyBlocks() || step
		step = c.mergeBlocks() || step
		if !step {
			return changed
		}
		changed = true
	}
}

func (c *Cleanup) removeUnreachable() bool {
	reachable := make(map[*ir.Block]bool)
	for _, b := range c.g.BlocksRPO() {
		reachable[b] = true
	}
	var dead []*ir.Block
	for _, b := range c.g.Blocks() {
		if !reachable[b] {
			dead = append(dead, b)
		}
	}
	if len(dead) == 0 {
		return false
	}
	c.Debugf("%s remove unreachable %v", c.Module(), dead)
	c.g.DisconnectBlocks(dead...)
	return true
}

// onlySelfUsed returns true if every user of phi is phi itself.
func onlySelfUsed(phi *ir.Inst) bool {
	for _, u := range phi.Users() {
		if u.Inst != phi {
			return false
		}
	}
	return true
}

// trivialValue returns the single value a phi can take, or nil.
func trivialValue(phi *ir.Inst) *ir.Inst {
	var v *ir.Inst
	for _, in := range phi.Inputs() {
		if in == phi || in == v {
			continue
		}
		if v != nil {
			return nil
		}
		v = in
	}
	return v
}

func (c *Cleanup) foldPhis() bool {
	changed := false
	for _, b := range c.g.Blocks() {
		for _, phi := range b.PhiInsts() {
			v := trivialValue(phi)
			if v == nil {
				continue
			}
			phi.ReplaceUsers(v)
			b.EraseInst(phi)
			changed = true
		}
	}
	return changed
}

func (c *Cleanup) removeDead() bool {
	changed := false
	for again := true; again; {
		again = false
		for _, b := range c.g.Blocks() {
			for _, i := range b.AllInsts() {
				if !i.IsRemovable() || i.Block() == nil {
					continue
				}
				if i.IsPhi() && onlySelfUsed(i) {
					i.RemoveInputs()
				}
				if i.HasUsers() {
					continue
				}
				b.EraseInst(i)
				again, changed = true, true
			}
		}
	}
	return changed
}

// removeEmptyBlocks bypasses blocks holding nothing but a fall-through.
func (c *Cleanup) removeEmptyBlocks() bool {
	changed := false
	for _, b := range c.g.Blocks() {
		if b.IsStart() || !b.IsEmpty() || b.HasPhi() || b.NumPreds() != 1 || b.NumSuccs() != 1 {
			continue
		}
		p, s := b.Pred(0), b.Succ(0)
		if s == b || p == b || p.HasSucc(s) {
			continue
		}
		var vals []*ir.Inst
		for _, phi := range s.PhiInsts() {
			vals = append(vals, phi.PhiInput(b))
		}
		p.ReplaceSucc(b, s)
		for n, phi := range s.PhiInsts() {
			phi.AppendInput(vals[n])
		}
		b.RemoveSucc(s)
		c.g.DisconnectBlock(b)
		c.Debugf("%s remove empty %v", c.Module(), b)
		changed = true
	}
	return changed
}

// mergeBlocks appends a block to its single predecessor when that one has
// no other successor.
func (c *Cleanup) mergeBlocks() bool {
	changed := false
	for _, b := range c.g.Blocks() {
		if c.g.BlockByID(b.ID()) != b || b.NumSuccs() != 1 {
			continue
		}
		s := b.Succ(0)
		if s == b || s.IsStart() || s.NumPreds() != 1 {
			continue
		}
		for _, phi := range s.PhiInsts() {
			phi.ReplaceUsers(phi.Input(0))
			s.EraseInst(phi)
		}
		b.RemoveSucc(s)
		for _, i := range s.AllInsts() {
			s.RemoveInst(i)
			b.AppendInst(i)
		}
		for _, t := range append([]*ir.Block(nil), s.Succs()...) {
			t.ReplacePred(s, b)
		}
		c.g.DisconnectBlock(s)
		c.Debugf("%s merge %v into %v", c.Module(), s, b)
		changed = true
	}
	return changed
}
