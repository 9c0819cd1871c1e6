package opt

import (
	"math/big"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/loop"
)

// LoopUnroll replicates the body of loops left from the back-edge.
//
// A countable loop guarded by its pre-header is unrolled without side
// exits: only the last copy tests the (adjusted) exit condition, and a
// remainder of factor-1 copies with side exits runs the last iterations.
// Other loops are unrolled with side exits, every copy keeping its test.
type LoopUnroll struct {
	cfgPass
}

// NewLoopUnroll returns the pass unrolling the loops of g.
func NewLoopUnroll(g *ir.Graph, opts *Options) *LoopUnroll {
	u := &LoopUnroll{cfgPass{g: g, opts: opts}}
	u.SetLogger(NopLogger())
	return u
}

// SetLogger sets the logger of the pass.
func (u *LoopUnroll) SetLogger(l *Logger) {
	u.Logger = l.forModule(color.MagentaString("unroll"))
}

func (u *LoopUnroll) PassName() string { return "LoopUnroll" }
func (u *LoopUnroll) IsEnable() bool   { return u.opts.Unroll }

// RunImpl unrolls every innermost loop left from its back-edge.
func (u *LoopUnroll) RunImpl() bool {
	return NewLoopTransform(u.g, LoopExitBackEdge, u.TransformLoop).Run()
}

// UnrollFactor returns the number of body copies for l within the
// instruction limit, and the instruction count of l.
func (u *LoopUnroll) UnrollFactor(l *ir.Loop) (factor, count int) {
	cloneable := 0
	for _, b := range l.Blocks() {
		for _, i := range b.AllInsts() {
			count++
			if i.Opcode() == ir.OpSafePoint || (b == l.Header() && i.IsPhi()) {
				continue
			}
			cloneable++
		}
	}
	factor = u.opts.UnrollFactor
	if count > u.opts.InstLimit {
		return 1, count
	}
	if cloneable > 0 {
		if f := 1 + (u.opts.InstLimit-count)/cloneable; f < factor {
			factor = f
		}
	}
	return factor, count
}

func hasCalls(l *ir.Loop) bool {
	for _, b := range l.Blocks() {
		for _, i := range b.Insts() {
			if i.Opcode() == ir.OpCall {
				return true
			}
		}
	}
	return false
}

// TransformLoop unrolls l and returns true on success.
func (u *LoopUnroll) TransformLoop(l *ir.Loop) bool {
	h, be := l.Header(), l.BackEdges()[0]
	if h.IsUnrolled() {
		return false
	}
	ifImm := be.Terminator()
	if ifImm == nil || ifImm.Opcode() != ir.OpIfImm || be.NumSuccs() != 2 {
		return false
	}
	if loopExit(l, be) == nil {
		return false
	}
	factor, count := u.UnrollFactor(l)
	if factor <= 1 {
		u.Debugf("%s %v: %d instructions, no room to unroll", u.Module(), l, count)
		return false
	}
	if !u.opts.UnrollWithCalls && hasCalls(l) {
		u.Debugf("%s %v: loop has calls", u.Module(), l)
		return false
	}
	kind := "countable"
	if !u.unrollCountable(l, factor) {
		if !u.opts.UnrollWithSideExits {
			return false
		}
		u.unrollWithSideExits(l, factor)
		kind = "side-exits"
	}
	h.SetUnrolled(true)
	u.Infof("%s %v unrolled %d times (%s)", u.Module(), l, factor, kind)
	u.emit(EventUnroll, l, ifImm.PC(), "insts", count, "unroll_factor", factor, "kind", kind)
	return true
}

// loopExit returns the successor of b outside l, if b has exactly one
// successor in l and one outside.
func loopExit(l *ir.Loop, b *ir.Block) *ir.Block {
	if b.NumSuccs() != 2 {
		return nil
	}
	t, f := b.TrueSucc(), b.FalseSucc()
	switch {
	case l.Contains(t) && !l.Contains(f):
		return f
	case l.Contains(f) && !l.Contains(t):
		return t
	}
	return nil
}

// chain links the copies: the back-edge of each copy, starting with the
// original one, branches to the header of the next copy instead of the
// loop header.
func chain(h, be *ir.Block, copies []*loopCopy) *ir.Block {
	prev := be
	for _, cp := range copies {
		prev.ReplaceSucc(h, cp.header)
		prev = cp.backEdge
	}
	return prev
}

func appendBlocks(l *ir.Loop, bs []*ir.Block) {
	if l == nil {
		return
	}
	for _, b := range bs {
		l.AppendBlock(b)
	}
}

// unrollWithSideExits makes factor-1 copies of the body, each leaving the
// loop to a common resolver block.
func (u *LoopUnroll) unrollWithSideExits(l *ir.Loop, factor int) {
	h, be := l.Header(), l.BackEdges()[0]
	c := newBodyCloner(u.g, l)
	resolver := be.InsertNewBlockToSuccEdge(loopExit(l, be))
	exitIn := make(map[*ir.Inst]*ir.Inst)
	for _, b := range c.blocks {
		for _, v := range b.AllInsts() {
			var phi *ir.Inst
			for _, us := range v.Users() {
				if l.Contains(us.Inst.Block()) {
					continue
				}
				if phi == nil {
					phi = u.g.NewPhi(v.Type(), v.PC(), v)
					resolver.AppendPhi(phi)
					exitIn[phi] = v
				}
				us.Inst.SetInput(us.Index, phi)
			}
		}
	}
	var copies []*loopCopy
	prev := map[*ir.Inst]*ir.Inst{}
	for k := 1; k < factor; k++ {
		entry := make(map[*ir.Inst]*ir.Inst)
		for phi, v := range c.backVal {
			entry[phi] = lookup(prev, v)
		}
		cp := c.clone(entry, resolver, exitIn)
		copies = append(copies, cp)
		appendBlocks(l, cp.blocks)
		prev = cp.values
	}
	l.ReplaceBackEdge(be, chain(h, be, copies))
	appendBlocks(l.OuterLoop(), []*ir.Block{resolver})
}

// branchCC returns the Compare deciding the IfImm ending b and the
// condition under which b branches to target.
func branchCC(b, target *ir.Block) (*ir.Inst, ir.ConditionCode, bool) {
	ifImm := b.Terminator()
	if ifImm == nil || ifImm.Opcode() != ir.OpIfImm || b.NumSuccs() != 2 || ifImm.Imm() != 0 {
		return nil, 0, false
	}
	if ifImm.CC() != ir.CCNe && ifImm.CC() != ir.CCEq {
		return nil, 0, false
	}
	cmp := ifImm.Input(0)
	if cmp.Opcode() != ir.OpCompare || cmp.Block() != b {
		return nil, 0, false
	}
	onTrue := b.TrueSucc() == target
	if !onTrue && b.FalseSucc() != target {
		return nil, 0, false
	}
	cc := cmp.CC()
	if (ifImm.CC() == ir.CCNe) != onTrue {
		cc = cc.Inverse()
	}
	return cmp, cc, true
}

// normalizeBranch rewrites the branch ending b as IfImm NE 0 over
// Compare(cc, x, y), with target as the true successor.
func (u *LoopUnroll) normalizeBranch(b, target *ir.Block, cc ir.ConditionCode, x, y *ir.Inst) *ir.Inst {
	ifImm := b.Terminator()
	old := ifImm.Input(0)
	cmp := u.g.NewCompare(cc, x.Type(), old.PC(), x, y)
	b.InsertBefore(cmp, ifImm)
	ifImm.SetInput(0, cmp)
	ifImm.SetCC(ir.CCNe)
	if b.TrueSucc() != target {
		b.SwapTrueFalseSuccessors()
		ifImm.SwapProfile()
	}
	if !old.HasUsers() {
		b.EraseInst(old)
	}
	return cmp
}

// countableGuard checks that the pre-header of l enters the loop under the
// same condition as the back-edge continues it, with init in place of the
// update, and otherwise branches to the loop exit.
func countableGuard(l *ir.Loop, info *loop.CountableLoopInfo, exit *ir.Block) bool {
	pre := l.PreHeader()
	cmp, cc, ok := branchCC(pre, l.Header())
	if !ok || pre.SuccIndex(exit) < 0 || cmp.OperandType() != info.Update.Type() {
		return false
	}
	switch {
	case cmp.Input(0) == info.Init && cmp.Input(1) == info.Test:
	case cmp.Input(1) == info.Init && cmp.Input(0) == info.Test:
		cc = cc.Swap()
	default:
		return false
	}
	return cc == info.NormalizedCC || (info.FromNE && cc == ir.CCNe)
}

// escapesThroughExit returns true if every use of a loop value outside l is
// an input of a phi of exit on the edge from be.
func escapesThroughExit(l *ir.Loop, be, exit *ir.Block) bool {
	for _, b := range l.Blocks() {
		for _, v := range b.AllInsts() {
			for _, us := range v.Users() {
				ub := us.Inst.Block()
				if l.Contains(ub) {
					continue
				}
				if ub != exit || !us.Inst.IsPhi() || exit.Pred(us.Index) != be {
					return false
				}
			}
		}
	}
	return true
}

// ConditionOverflow returns true if the bound of the unrolled loop, test
// moved by (factor-1) steps against the direction of the loop, can not be
// represented in the type of the index.
func ConditionOverflow(info *loop.CountableLoopInfo, factor int) bool {
	if factor <= 1 {
		return false
	}
	min, max := loop.Bounds(info.Update.Type())
	span := new(big.Int).Mul(big.NewInt(int64(factor-1)), new(big.Int).SetUint64(info.Step))
	if span.Cmp(max) > 0 {
		return true
	}
	if !info.Test.IsConst() {
		return false
	}
	t := loop.Value(info.Test)
	if info.Increment {
		return new(big.Int).Add(min, span).Cmp(t) > 0
	}
	return new(big.Int).Sub(max, span).Cmp(t) < 0
}

func bigToImm(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	return int64(v.Uint64())
}

// unrollCountable unrolls a countable loop without side exits:
//
//	[pre-header]--------------\
//	     |                    |
//	/->[body x factor]        |
//	\----[back-edge]------>[fix]------>[remainder x factor-1]--->[exit]
//
// The pre-header and back-edge test against test -/+ (factor-1)*step, the
// fix block re-tests the original bound before the remainder copies.
func (u *LoopUnroll) unrollCountable(l *ir.Loop, factor int) bool {
	info, ok := loop.ParseCountable(l)
	if !ok || !info.IsFinite() {
		return false
	}
	h, pre, be := l.Header(), l.PreHeader(), l.BackEdges()[0]
	exit := loopExit(l, be)
	if exit == nil || !countableGuard(l, info, exit) || !escapesThroughExit(l, be, exit) {
		return false
	}
	if ConditionOverflow(info, factor) {
		u.Debugf("%s %v: bound overflows for factor %d", u.Module(), l, factor)
		return false
	}
	g, typ, cc := u.g, info.Update.Type(), info.NormalizedCC

	c := newBodyCloner(g, l)
	exitIn := make(map[*ir.Inst]*ir.Inst)
	fromPre := make(map[*ir.Inst]*ir.Inst)
	for _, phi := range exit.PhiInsts() {
		exitIn[phi] = phi.PhiInput(be)
		fromPre[phi] = phi.PhiInput(pre)
	}
	beCmp := u.normalizeBranch(be, h, cc, info.Update, info.Test)
	preCmp := u.normalizeBranch(pre, h, cc, info.Init, info.Test)

	// The fix block receives the loop-carried values from the pre-header
	// and from the last copy.
	fix := g.NewBlock()
	pre.ReplaceSucc(exit, fix)
	fixIn := make(map[*ir.Inst]*ir.Inst)
	fixPhi := make(map[*ir.Inst]*ir.Inst)
	for _, phi := range h.PhiInsts() {
		fp := g.NewPhi(phi.Type(), phi.PC(), phi.PhiInput(pre))
		fix.AppendPhi(fp)
		fixIn[fp] = c.backVal[phi]
		fixPhi[phi] = fp
	}
	psi := make(map[*ir.Inst]*ir.Inst)
	for _, phi := range exit.PhiInsts() {
		fp := g.NewPhi(phi.Type(), phi.PC(), fromPre[phi])
		fix.AppendPhi(fp)
		fixIn[fp] = exitIn[phi]
		psi[phi] = fp
	}

	var main []*loopCopy
	prev := map[*ir.Inst]*ir.Inst{}
	for k := 2; k <= factor; k++ {
		entry := make(map[*ir.Inst]*ir.Inst)
		for phi, v := range c.backVal {
			entry[phi] = lookup(prev, v)
		}
		var cp *loopCopy
		if k < factor {
			cp = c.clone(entry, nil, nil)
		} else {
			cp = c.clone(entry, fix, fixIn)
		}
		main = append(main, cp)
		prev = cp.values
	}
	last := main[len(main)-1]

	var rem []*loopCopy
	for k := 1; k < factor; k++ {
		entry := make(map[*ir.Inst]*ir.Inst)
		for phi, v := range c.backVal {
			if k == 1 {
				entry[phi] = fixPhi[phi]
			} else {
				entry[phi] = lookup(prev, v)
			}
		}
		cp := c.clone(entry, exit, exitIn)
		rem = append(rem, cp)
		prev = cp.values
	}

	// Only the last copy of the main loop tests the exit condition.
	chain(h, be, main)
	ifImm := be.Terminator()
	be.RemoveSucc(exit)
	be.EraseInst(ifImm)
	if !beCmp.HasUsers() {
		be.EraseInst(beCmp)
	}

	// The remainder copies run one after the other, the last one falls
	// through to the exit.
	fixCmp := g.NewCompare(cc, typ, beCmp.PC(), fixPhi[info.Index], info.Test)
	fix.AppendInst(fixCmp)
	fix.AppendInst(g.NewIfImm(ir.CCNe, 0, ifImm.PC(), fixCmp))
	fix.AddSucc(rem[0].header)
	fix.AddSucc(exit)
	for _, phi := range exit.PhiInsts() {
		phi.AppendInput(psi[phi])
	}
	for n := 0; n+1 < len(rem); n++ {
		rem[n].backEdge.ReplaceSucc(h, rem[n+1].header)
	}
	tail := rem[len(rem)-1].backEdge
	tailIf := tail.Terminator()
	tailCmp := tailIf.Input(0)
	tail.RemoveSucc(h)
	tail.EraseInst(tailIf)
	if !tailCmp.HasUsers() {
		tail.EraseInst(tailCmp)
	}

	// Move the bound by the iterations of the copies.
	span := new(big.Int).Mul(big.NewInt(int64(factor-1)), new(big.Int).SetUint64(info.Step))
	var newTest *ir.Inst
	if info.Test.IsConst() {
		t := loop.Value(info.Test)
		if info.Increment {
			t.Sub(t, span)
		} else {
			t.Add(t, span)
		}
		newTest = g.FindOrCreateConstant(bigToImm(t), typ)
	} else {
		op := ir.OpSub
		if !info.Increment {
			op = ir.OpAdd
		}
		newTest = g.NewBinary(op, typ, preCmp.PC(), info.Test, g.FindOrCreateConstant(bigToImm(span), typ))
		pre.InsertBefore(newTest, pre.Terminator())
	}
	// New constants land before the terminator of the start block, which
	// may be the pre-header.
	pre.RemoveInst(preCmp)
	pre.InsertBefore(preCmp, pre.Terminator())
	preCmp.SetInput(1, newTest)
	last.lookup(beCmp).SetInput(1, newTest)
	if !info.Test.IsConst() {
		// The moved bound must not wrap around.
		guardCC := ir.CCLt
		switch {
		case info.Increment && !typ.IsSigned():
			guardCC = ir.CCB
		case !info.Increment && typ.IsSigned():
			guardCC = ir.CCGt
		case !info.Increment:
			guardCC = ir.CCA
		}
		preIf := pre.Terminator()
		guard := g.NewCompare(guardCC, typ, preCmp.PC(), newTest, info.Test)
		pre.InsertBefore(guard, preIf)
		and := g.NewBinary(ir.OpAnd, ir.Bool, preCmp.PC(), preCmp, guard)
		pre.InsertBefore(and, preIf)
		preIf.SetInput(0, and)
	}

	l.ReplaceBackEdge(be, last.backEdge)
	for _, cp := range main {
		appendBlocks(l, cp.blocks)
	}
	outer := l.OuterLoop()
	appendBlocks(outer, []*ir.Block{fix})
	for _, cp := range rem {
		appendBlocks(outer, cp.blocks)
	}
	return true
}
