package ssa

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/nickng/loopopt/fn"
	"github.com/nickng/loopopt/ir"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// Lower converts the body of fn into an ir.Graph.
//
// Only functions over booleans, integers and floats are supported: params,
// constants, arithmetic, comparisons, conversions, control flow, phis and
// static calls of such functions. int and uint are 64-bit. Shift counts
// must be constants smaller than the operand width. Anything else fails with
// an error whose cause is ErrUnsupported.
func Lower(f *ssa.Function) (*ir.Graph, error) {
	l := newLowerer(f)
	l.EnterFunc(f)
	l.ExitFunc(f)
	if l.err != nil {
		return nil, l.err
	}
	return l.g, nil
}

// lowerer is a fn.Analyser building the graph of a single function.
type lowerer struct {
	g      *ir.Graph
	fset   *token.FileSet
	blocks map[*ssa.BasicBlock]*ir.Block
	values map[ssa.Value]*ir.Inst
	phis   []*ssa.Phi
	pc     uint32
	err    error
}

var _ fn.Analyser = (*lowerer)(nil)

func newLowerer(f *ssa.Function) *lowerer {
	return &lowerer{
		g:      ir.New(f.String()),
		fset:   f.Prog.Fset,
		blocks: make(map[*ssa.BasicBlock]*ir.Block),
		values: make(map[ssa.Value]*ir.Inst),
	}
}

func (l *lowerer) fail(pos token.Pos, format string, args ...interface{}) {
	if l.err != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if pos.IsValid() {
		l.err = errors.Wrapf(ErrUnsupported, "%s: %s", l.fset.Position(pos), msg)
		return
	}
	l.err = errors.Wrap(ErrUnsupported, msg)
}

func (l *lowerer) nextPC() uint32 {
	l.pc++
	return l.pc
}

// EnterFunc creates the params and blocks of f and lowers every instruction
// except phi inputs, visiting blocks in dominator preorder.
func (l *lowerer) EnterFunc(f *ssa.Function) {
	switch {
	case f.Blocks == nil:
		l.fail(f.Pos(), "%s has no body", f)
		return
	case len(f.FreeVars) > 0:
		l.fail(f.Pos(), "%s is a closure", f)
		return
	case f.Recover != nil:
		l.fail(f.Pos(), "%s recovers", f)
		return
	}
	results := f.Signature.Results()
	if results.Len() > 1 {
		l.fail(f.Pos(), "%s has %d results", f, results.Len())
		return
	}
	for _, p := range f.Params {
		t, ok := l.typeOf(p.Type(), p.Pos())
		if !ok {
			return
		}
		l.values[p] = l.g.NewParameter(t)
	}
	for _, b := range f.Blocks {
		l.blocks[b] = l.g.NewBlock()
	}
	l.g.StartBlock().AddSucc(l.blocks[f.Blocks[0]])
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			l.blocks[b].AddSucc(l.blocks[s])
		}
	}
	// Dominator preorder visits definitions before their uses; only phi
	// inputs may refer forward and those are connected by ExitFunc.
	for _, b := range lowerOrder(f) {
		for _, instr := range b.Instrs {
			if l.err != nil {
				return
			}
			l.visitInstr(l.blocks[b], instr)
		}
	}
}

// lowerOrder returns the blocks of f in dominator preorder, followed by
// any block the dominator tree does not reach.
func lowerOrder(f *ssa.Function) []*ssa.BasicBlock {
	order := f.DomPreorder()
	if len(order) == len(f.Blocks) {
		return order
	}
	seen := make(map[*ssa.BasicBlock]bool, len(order))
	for _, b := range order {
		seen[b] = true
	}
	for _, b := range f.Blocks {
		if !seen[b] {
			order = append(order, b)
		}
	}
	return order
}

// ExitFunc connects the phi inputs once every value is defined.
func (l *lowerer) ExitFunc(f *ssa.Function) {
	if l.err != nil {
		return
	}
	for _, phi := range l.phis {
		b := phi.Block()
		inst := l.values[phi]
		seen := make(map[*ir.Block]int)
		for _, p := range l.blocks[b].Preds() {
			n := seen[p]
			seen[p]++
			edge := nthPred(b, p, n, l.blocks)
			if edge < 0 {
				// Only the start block edge has no SSA counterpart.
				l.fail(phi.Pos(), "phi %s in entry block", phi.Name())
				return
			}
			v := l.value(phi.Edges[edge], phi.Pos())
			if v == nil {
				return
			}
			inst.AppendInput(v)
		}
	}
}

// nthPred returns the index of the n-th SSA predecessor of b lowered to p.
func nthPred(b *ssa.BasicBlock, p *ir.Block, n int, blocks map[*ssa.BasicBlock]*ir.Block) int {
	for i, pred := range b.Preds {
		if blocks[pred] != p {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

func (l *lowerer) visitInstr(b *ir.Block, instr ssa.Instruction) {
	switch instr := instr.(type) {
	case *ssa.DebugRef:
	case *ssa.Jump:
	case *ssa.Phi:
		t, ok := l.typeOf(instr.Type(), instr.Pos())
		if !ok {
			return
		}
		phi := l.g.NewPhi(t, l.nextPC())
		b.AppendPhi(phi)
		l.values[instr] = phi
		l.phis = append(l.phis, instr)
	case *ssa.BinOp:
		l.binOp(b, instr)
	case *ssa.UnOp:
		l.unOp(b, instr)
	case *ssa.Convert:
		l.convert(b, instr)
	case *ssa.ChangeType:
		if _, ok := l.typeOf(instr.Type(), instr.Pos()); ok {
			l.values[instr] = l.value(instr.X, instr.Pos())
		}
	case *ssa.Call:
		l.call(b, instr)
	case *ssa.If:
		if cond := l.value(instr.Cond, instr.Pos()); cond != nil {
			b.AppendInst(l.g.NewIfImm(ir.CCNe, 0, l.nextPC(), cond))
		}
	case *ssa.Return:
		l.ret(b, instr)
	default:
		l.fail(instr.Pos(), "instruction %T: %s", instr, instr)
	}
}

// typeOf maps basic Go types to ir types.
func (l *lowerer) typeOf(t types.Type, pos token.Pos) (ir.Type, bool) {
	if basic, ok := t.Underlying().(*types.Basic); ok {
		switch basic.Kind() {
		case types.Bool, types.UntypedBool:
			return ir.Bool, true
		case types.Int, types.Int64:
			return ir.Int64, true
		case types.Int32:
			return ir.Int32, true
		case types.Uint, types.Uint64, types.Uintptr:
			return ir.Uint64, true
		case types.Uint32:
			return ir.Uint32, true
		case types.Float32:
			return ir.Float32, true
		case types.Float64:
			return ir.Float64, true
		}
	}
	l.fail(pos, "type %s", t)
	return ir.Void, false
}

// value returns the instruction computing v, creating constants on demand.
func (l *lowerer) value(v ssa.Value, pos token.Pos) *ir.Inst {
	if c, ok := v.(*ssa.Const); ok {
		return l.constant(c, pos)
	}
	inst, ok := l.values[v]
	if !ok {
		l.fail(pos, "value %s (%T)", v.Name(), v)
		return nil
	}
	return inst
}

func (l *lowerer) constant(c *ssa.Const, pos token.Pos) *ir.Inst {
	t, ok := l.typeOf(c.Type(), pos)
	if !ok {
		return nil
	}
	if c.Value == nil {
		return l.g.FindOrCreateConstant(0, t)
	}
	switch {
	case t == ir.Bool:
		if constant.BoolVal(c.Value) {
			return l.g.FindOrCreateConstant(1, t)
		}
		return l.g.FindOrCreateConstant(0, t)
	case t.IsFloat():
		return l.g.FindOrCreateFloatConstant(c.Float64(), t)
	case t == ir.Uint64:
		return l.g.FindOrCreateConstant(int64(c.Uint64()), t)
	}
	return l.g.FindOrCreateConstant(c.Int64(), t)
}

var binOps = map[token.Token]ir.Opcode{
	token.ADD: ir.OpAdd,
	token.SUB: ir.OpSub,
	token.MUL: ir.OpMul,
	token.QUO: ir.OpDiv,
	token.REM: ir.OpMod,
	token.AND: ir.OpAnd,
	token.OR:  ir.OpOr,
	token.XOR: ir.OpXor,
}

func (l *lowerer) binOp(b *ir.Block, instr *ssa.BinOp) {
	x := l.value(instr.X, instr.Pos())
	if x == nil {
		return
	}
	t := x.Type()
	switch instr.Op {
	case token.SHL, token.SHR:
		c, ok := instr.Y.(*ssa.Const)
		if !ok || c.Value == nil || c.Int64() < 0 || uint64(c.Int64()) >= uint64(t.Bits()) {
			l.fail(instr.Pos(), "shift count %s", instr.Y)
			return
		}
		op := ir.OpShl
		if instr.Op == token.SHR {
			op = ir.OpShr
			if t.IsSigned() {
				op = ir.OpAShr
			}
		}
		l.define(b, instr, l.g.NewBinary(op, t, l.nextPC(), x, l.g.FindOrCreateConstant(c.Int64(), t)))
		return
	}
	y := l.value(instr.Y, instr.Pos())
	if y == nil {
		return
	}
	if cc, ok := compareCC(instr.Op, t); ok {
		l.define(b, instr, l.g.NewCompare(cc, t, l.nextPC(), x, y))
		return
	}
	if instr.Op == token.AND_NOT {
		not := l.g.NewInst(ir.OpNot, t, l.nextPC())
		not.AppendInput(y)
		b.AppendInst(not)
		l.define(b, instr, l.g.NewBinary(ir.OpAnd, t, l.nextPC(), x, not))
		return
	}
	op, ok := binOps[instr.Op]
	if !ok || (t.IsFloat() && op != ir.OpAdd && op != ir.OpSub && op != ir.OpMul && op != ir.OpDiv) {
		l.fail(instr.Pos(), "operator %s on %s", instr.Op, t)
		return
	}
	l.define(b, instr, l.g.NewBinary(op, t, l.nextPC(), x, y))
}

func compareCC(op token.Token, t ir.Type) (ir.ConditionCode, bool) {
	unsigned := t.IsInteger() && !t.IsSigned()
	switch op {
	case token.EQL:
		return ir.CCEq, true
	case token.NEQ:
		return ir.CCNe, true
	case token.LSS:
		if unsigned {
			return ir.CCB, true
		}
		return ir.CCLt, true
	case token.LEQ:
		if unsigned {
			return ir.CCBe, true
		}
		return ir.CCLe, true
	case token.GTR:
		if unsigned {
			return ir.CCA, true
		}
		return ir.CCGt, true
	case token.GEQ:
		if unsigned {
			return ir.CCAe, true
		}
		return ir.CCGe, true
	}
	return 0, false
}

func (l *lowerer) unOp(b *ir.Block, instr *ssa.UnOp) {
	var op ir.Opcode
	switch instr.Op {
	case token.SUB:
		op = ir.OpNeg
	case token.XOR, token.NOT:
		op = ir.OpNot
	default:
		l.fail(instr.Pos(), "operator %s", instr.Op)
		return
	}
	x := l.value(instr.X, instr.Pos())
	if x == nil {
		return
	}
	if op == ir.OpNot && x.Type().IsFloat() {
		l.fail(instr.Pos(), "operator %s on %s", instr.Op, x.Type())
		return
	}
	u := l.g.NewInst(op, x.Type(), l.nextPC())
	u.AppendInput(x)
	l.define(b, instr, u)
}

func (l *lowerer) convert(b *ir.Block, instr *ssa.Convert) {
	t, ok := l.typeOf(instr.Type(), instr.Pos())
	if !ok {
		return
	}
	x := l.value(instr.X, instr.Pos())
	if x == nil {
		return
	}
	if x.Type() == t {
		l.values[instr] = x
		return
	}
	cast := l.g.NewInst(ir.OpCast, t, l.nextPC())
	cast.AppendInput(x)
	l.define(b, instr, cast)
}

func (l *lowerer) call(b *ir.Block, instr *ssa.Call) {
	common := instr.Common()
	callee := common.StaticCallee()
	if common.IsInvoke() || callee == nil {
		l.fail(instr.Pos(), "dynamic call %s", common)
		return
	}
	t := ir.Void
	switch results := callee.Signature.Results(); results.Len() {
	case 0:
	case 1:
		var ok bool
		if t, ok = l.typeOf(results.At(0).Type(), instr.Pos()); !ok {
			return
		}
	default:
		l.fail(instr.Pos(), "call of %s with %d results", callee, results.Len())
		return
	}
	args := make([]*ir.Inst, 0, len(common.Args))
	for _, a := range common.Args {
		v := l.value(a, instr.Pos())
		if v == nil {
			return
		}
		args = append(args, v)
	}
	l.define(b, instr, l.g.NewCall(callee.String(), t, l.nextPC(), args...))
}

func (l *lowerer) ret(b *ir.Block, instr *ssa.Return) {
	if len(instr.Results) == 0 {
		b.AppendInst(l.g.NewInst(ir.OpReturnVoid, ir.Void, l.nextPC()))
		return
	}
	v := l.value(instr.Results[0], instr.Pos())
	if v == nil {
		return
	}
	r := l.g.NewInst(ir.OpReturn, v.Type(), l.nextPC())
	r.AppendInput(v)
	b.AppendInst(r)
}

// define appends inst to b as the value of v.
func (l *lowerer) define(b *ir.Block, v ssa.Value, inst *ir.Inst) {
	b.AppendInst(inst)
	l.values[v] = inst
}
