package opt

import (
	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// RedundantLoopElimination deletes finite loops whose work is never
// observed: every instruction is removable and no value is used after the
// loop.
type RedundantLoopElimination struct {
	cfgPass
}

// NewRedundantLoopElimination returns the pass deleting the redundant
// loops of g.
func NewRedundantLoopElimination(g *ir.Graph, opts *Options) *RedundantLoopElimination {
	r := &RedundantLoopElimination{cfgPass{g: g, opts: opts}}
	r.SetLogger(NopLogger())
	return r
}

// SetLogger sets the logger of the pass.
func (r *RedundantLoopElimination) SetLogger(l *Logger) {
	r.Logger = l.forModule(color.RedString("rle"))
}

func (r *RedundantLoopElimination) PassName() string { return "RedundantLoopElimination" }
func (r *RedundantLoopElimination) IsEnable() bool   { return r.opts.RedundantLoopElimination }

// RunImpl visits the loops of g innermost first, so an outer loop can be
// deleted once its inner loops are gone.
func (r *RedundantLoopElimination) RunImpl() bool {
	return NewLoopTransform(r.g, AllLoop, r.TransformLoop).Run()
}

// IsRedundant returns true if l can be deleted. It also returns the single
// edge leaving l.
func IsRedundant(l *ir.Loop) (from, to *ir.Block, ok bool) {
	if len(l.InnerLoops()) > 0 || l.IsInfinite() {
		return nil, nil, false
	}
	exits := 0
	for _, b := range l.Blocks() {
		for _, s := range b.Succs() {
			if !l.Contains(s) {
				exits++
				from, to = b, s
			}
		}
		for _, i := range b.AllInsts() {
			op := i.Opcode()
			if !i.IsRemovable() && op != ir.OpIfImm && op != ir.OpSafePoint {
				return nil, nil, false
			}
			for _, u := range i.Users() {
				if !l.Contains(u.Inst.Block()) {
					return nil, nil, false
				}
			}
		}
	}
	if exits != 1 {
		return nil, nil, false
	}
	info, countable := loop.ParseCountable(l)
	if !countable || !info.IsFinite() {
		return nil, nil, false
	}
	return from, to, true
}

// TransformLoop deletes l if it is redundant.
func (r *RedundantLoopElimination) TransformLoop(l *ir.Loop) bool {
	from, to, ok := IsRedundant(l)
	if !ok {
		return false
	}
	h, pre := l.Header(), l.PreHeader()
	vals := make([]*ir.Inst, 0, len(to.PhiInsts()))
	for _, phi := range to.PhiInsts() {
		vals = append(vals, phi.PhiInput(from))
	}
	src := pre
	if pre.HasSucc(to) {
		src = pre.InsertNewBlockToSuccEdge(h)
		appendBlocks(l.OuterLoop(), []*ir.Block{src})
	}
	src.ReplaceSucc(h, to)
	for n, phi := range to.PhiInsts() {
		phi.AppendInput(vals[n])
	}
	pc := from.Terminator().PC()
	blocks := append([]*ir.Block(nil), l.Blocks()...)
	r.g.DisconnectBlocks(blocks...)
	if outer := l.OuterLoop(); outer != nil {
		outer.RemoveInner(l)
	}
	r.Infof("%s %v removed, %v now branches to %v", r.Module(), l, src, to)
	r.emit(EventRedundant, l, pc, "blocks", len(blocks))
	return true
}
