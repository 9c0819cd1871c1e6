// Package irtest builds small graphs for tests.
package irtest

import "github.com/nickng/loopopt/ir"

// Builder appends instructions to a current block.
type Builder struct {
	G   *ir.Graph
	cur *ir.Block
	pc  uint32
}

// New returns a Builder positioned at the start block.
func New(name string) *Builder {
	g := ir.New(name)
	return &Builder{G: g, cur: g.StartBlock()}
}

// Block creates a new block.
func (b *Builder) Block() *ir.Block { return b.G.NewBlock() }

// Blocks creates n new blocks.
func (b *Builder) Blocks(n int) []*ir.Block {
	bs := make([]*ir.Block, n)
	for k := range bs {
		bs[k] = b.G.NewBlock()
	}
	return bs
}

// Edge adds edges from to each of succs, in order.
func (b *Builder) Edge(from *ir.Block, succs ...*ir.Block) {
	for _, s := range succs {
		from.AddSucc(s)
	}
}

// At moves the insertion point to the end of blk.
func (b *Builder) At(blk *ir.Block) *Builder {
	b.cur = blk
	return b
}

func (b *Builder) add(i *ir.Inst) *ir.Inst {
	b.cur.AppendInst(i)
	return i
}

func (b *Builder) nextPC() uint32 {
	b.pc++
	return b.pc
}

func (b *Builder) Param(t ir.Type) *ir.Inst { return b.G.NewParameter(t) }

func (b *Builder) Const(v int64, t ir.Type) *ir.Inst { return b.G.FindOrCreateConstant(v, t) }

func (b *Builder) Float(f float64) *ir.Inst { return b.G.FindOrCreateFloatConstant(f, ir.Float64) }

// Bin appends op(x, y).
func (b *Builder) Bin(op ir.Opcode, t ir.Type, x, y *ir.Inst) *ir.Inst {
	return b.add(b.G.NewBinary(op, t, b.nextPC(), x, y))
}

func (b *Builder) Add(t ir.Type, x, y *ir.Inst) *ir.Inst { return b.Bin(ir.OpAdd, t, x, y) }

func (b *Builder) Sub(t ir.Type, x, y *ir.Inst) *ir.Inst { return b.Bin(ir.OpSub, t, x, y) }

// Cmp appends a Compare of x and y, typed after x.
func (b *Builder) Cmp(cc ir.ConditionCode, x, y *ir.Inst) *ir.Inst {
	return b.add(b.G.NewCompare(cc, x.Type(), b.nextPC(), x, y))
}

// If appends IfImm NE 0 on cond.
func (b *Builder) If(cond *ir.Inst) *ir.Inst {
	return b.add(b.G.NewIfImm(ir.CCNe, 0, b.nextPC(), cond))
}

// Phi appends a phi. Inputs follow the predecessor order of the block.
func (b *Builder) Phi(t ir.Type, inputs ...*ir.Inst) *ir.Inst {
	return b.add(b.G.NewPhi(t, b.nextPC(), inputs...))
}

func (b *Builder) Return(v *ir.Inst) *ir.Inst {
	r := b.G.NewInst(ir.OpReturn, v.Type(), b.nextPC())
	r.AppendInput(v)
	return b.add(r)
}

func (b *Builder) ReturnVoid() *ir.Inst {
	return b.add(b.G.NewInst(ir.OpReturnVoid, ir.Void, b.nextPC()))
}

func (b *Builder) Call(callee string, t ir.Type, args ...*ir.Inst) *ir.Inst {
	return b.add(b.G.NewCall(callee, t, b.nextPC(), args...))
}

func (b *Builder) SafePoint() *ir.Inst {
	return b.add(b.G.NewInst(ir.OpSafePoint, ir.Void, b.nextPC()))
}

func (b *Builder) Load(t ir.Type, addr *ir.Inst) *ir.Inst {
	l := b.G.NewInst(ir.OpLoad, t, b.nextPC())
	l.AppendInput(addr)
	return b.add(l)
}

func (b *Builder) Store(addr, v *ir.Inst) *ir.Inst {
	s := b.G.NewInst(ir.OpStore, ir.Void, b.nextPC())
	s.AppendInput(addr)
	s.AppendInput(v)
	return b.add(s)
}

// Loop describes a loop made by CountingLoop.
type Loop struct {
	PreHeader, Header, Body, Exit *ir.Block
	Index, Update, Compare        *ir.Inst
}

// CountingLoop builds
//
//	for i := init; i cc test; i += step { }
//
// with the exit test in the header: pre-header -> header -> (body, exit),
// body -> header. The update is the first instruction of the body, so
// callers append the rest of the body after it.
func (b *Builder) CountingLoop(t ir.Type, init, test *ir.Inst, cc ir.ConditionCode, step int64) *Loop {
	pre := b.cur
	l := &Loop{PreHeader: pre, Header: b.Block(), Body: b.Block(), Exit: b.Block()}
	b.Edge(pre, l.Header)
	b.Edge(l.Header, l.Body, l.Exit)
	b.Edge(l.Body, l.Header)
	b.At(l.Header)
	l.Index = b.Phi(t, init, init)
	l.Compare = b.Cmp(cc, l.Index, test)
	b.If(l.Compare)
	b.At(l.Body)
	if step >= 0 {
		l.Update = b.Add(t, l.Index, b.Const(step, t))
	} else {
		l.Update = b.Sub(t, l.Index, b.Const(-step, t))
	}
	l.Index.SetInput(1, l.Update)
	return l
}

// DoWhileLoop builds
//
//	i := init; do { i += step } while (i cc test)
//
// as a single block loop testing the update at the back-edge:
// pre-header -> header -> (header, exit). More body instructions can be
// placed with InsertBefore(inst, l.Compare).
func (b *Builder) DoWhileLoop(t ir.Type, init, test *ir.Inst, cc ir.ConditionCode, step int64) *Loop {
	pre := b.cur
	h := b.Block()
	l := &Loop{PreHeader: pre, Header: h, Body: h, Exit: b.Block()}
	b.Edge(pre, h)
	b.Edge(h, h, l.Exit)
	b.At(h)
	l.Index = b.Phi(t, init, init)
	if step >= 0 {
		l.Update = b.Add(t, l.Index, b.Const(step, t))
	} else {
		l.Update = b.Sub(t, l.Index, b.Const(-step, t))
	}
	l.Compare = b.Cmp(cc, l.Update, test)
	b.If(l.Compare)
	l.Index.SetInput(1, l.Update)
	return l
}
