// Package ir is the intermediate representation transformed by the loop
// optimizer: a control-flow graph of basic blocks, each holding a doubly
// linked list of instructions connected by def/use edges.
package ir

import (
	"fmt"
	"math"
)

type constKey struct {
	typ Type
	val int64
}

// Graph owns every block and instruction of one function.
type Graph struct {
	name string

	blocks []*Block // Indexed by block id, nil once disconnected.
	start  *Block

	nextInstID int
	consts     map[constKey]*Inst
	params     []*Inst

	markers markerPool

	valid    [numAnalyses]bool
	rootLoop *Loop
	linear   []*Block

	events EventWriter

	cfgVersion  uint64
	instVersion uint64
}

// New returns a graph holding only the start block.
func New(name string) *Graph {
	g := &Graph{
		name:   name,
		consts: make(map[constKey]*Inst),
		events: NopEventWriter{},
	}
	g.start = g.NewBlock()
	return g
}

func (g *Graph) Name() string { return g.name }

// StartBlock returns the entry block, which holds parameters and constants.
func (g *Graph) StartBlock() *Block { return g.start }

// Params returns the parameters in argument order.
func (g *Graph) Params() []*Inst { return g.params }

// Blocks returns the live blocks in id order.
func (g *Graph) Blocks() []*Block {
	var out []*Block
	for _, b := range g.blocks {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// BlockByID returns the block with the given id, or nil.
func (g *Graph) BlockByID(id int) *Block {
	if id < 0 || id >= len(g.blocks) {
		return nil
	}
	return g.blocks[id]
}

// NumInsts returns the number of instructions in live blocks.
func (g *Graph) NumInsts() int {
	n := 0
	for _, b := range g.Blocks() {
		for i := b.first; i != nil; i = i.next {
			n++
		}
	}
	return n
}

// NewBlock creates an unconnected block.
func (g *Graph) NewBlock() *Block {
	b := &Block{id: len(g.blocks), graph: g}
	g.blocks = append(g.blocks, b)
	g.cfgChanged()
	return b
}

// NewInst creates an instruction not yet placed in a block.
func (g *Graph) NewInst(op Opcode, t Type, pc uint32) *Inst {
	i := &Inst{id: g.nextInstID, op: op, typ: t, pc: pc}
	g.nextInstID++
	return i
}

// NewBinary creates op(a, b).
func (g *Graph) NewBinary(op Opcode, t Type, pc uint32, a, b *Inst) *Inst {
	i := g.NewInst(op, t, pc)
	i.AppendInput(a)
	i.AppendInput(b)
	return i
}

// NewCompare creates a bool Compare of a and b.
func (g *Graph) NewCompare(cc ConditionCode, operand Type, pc uint32, a, b *Inst) *Inst {
	i := g.NewBinary(OpCompare, Bool, pc, a, b)
	i.cc = cc
	i.srcType = operand
	return i
}

// NewIfImm creates a branch comparing cond against imm with cc.
func (g *Graph) NewIfImm(cc ConditionCode, imm int64, pc uint32, cond *Inst) *Inst {
	i := g.NewInst(OpIfImm, Void, pc)
	i.cc = cc
	i.imm = imm
	i.srcType = cond.typ
	i.AppendInput(cond)
	return i
}

// NewPhi creates a phi with the given inputs.
func (g *Graph) NewPhi(t Type, pc uint32, inputs ...*Inst) *Inst {
	i := g.NewInst(OpPhi, t, pc)
	for _, in := range inputs {
		i.AppendInput(in)
	}
	return i
}

// NewCall creates a call of callee with args.
func (g *Graph) NewCall(callee string, t Type, pc uint32, args ...*Inst) *Inst {
	i := g.NewInst(OpCall, t, pc)
	i.callee = callee
	for _, a := range args {
		i.AppendInput(a)
	}
	return i
}

// NewParameter appends a parameter to the start block.
func (g *Graph) NewParameter(t Type) *Inst {
	i := g.NewInst(OpParameter, t, 0)
	i.imm = int64(len(g.params))
	g.params = append(g.params, i)
	g.appendToStart(i)
	return i
}

// FindOrCreateConstant returns the constant v of type t, creating it in the
// start block if needed.
func (g *Graph) FindOrCreateConstant(v int64, t Type) *Inst {
	v = t.Wrap(v)
	k := constKey{typ: t, val: v}
	if c, ok := g.consts[k]; ok && c.block != nil {
		return c
	}
	c := g.NewInst(OpConstant, t, 0)
	c.imm = v
	g.consts[k] = c
	g.appendToStart(c)
	return c
}

// appendToStart adds i to the start block, before its branch if any.
func (g *Graph) appendToStart(i *Inst) {
	if t := g.start.Terminator(); t != nil {
		g.start.InsertBefore(i, t)
		return
	}
	g.start.AppendInst(i)
}

// FindOrCreateFloatConstant returns the float constant f of type t.
func (g *Graph) FindOrCreateFloatConstant(f float64, t Type) *Inst {
	return g.FindOrCreateConstant(int64(math.Float64bits(f)), t)
}

// DisconnectBlock removes b from the graph, see DisconnectBlocks.
func (g *Graph) DisconnectBlock(b *Block) { g.DisconnectBlocks(b) }

// DisconnectBlocks removes the blocks from the graph: their edges are
// deleted (with the phi inputs of remaining successors) and their
// instructions erased. No instruction outside the set may use a value
// defined inside it.
func (g *Graph) DisconnectBlocks(blocks ...*Block) {
	inSet := make(map[*Block]bool, len(blocks))
	for _, b := range blocks {
		inSet[b] = true
	}
	// Edges crossing the set boundary first, while phi inputs still line up
	// with predecessors.
	for _, b := range blocks {
		for _, s := range append([]*Block(nil), b.succs...) {
			if !inSet[s] {
				b.RemoveSucc(s)
			}
		}
		for _, p := range append([]*Block(nil), b.preds...) {
			if !inSet[p] {
				p.RemoveSucc(b)
			}
		}
	}
	for _, b := range blocks {
		b.succs, b.preds = nil, nil
		for i := b.first; i != nil; i = i.next {
			i.RemoveInputs()
		}
	}
	for _, b := range blocks {
		for i := b.first; i != nil; i = i.next {
			if i.HasUsers() {
				panic(fmt.Sprintf("ir: %v of disconnected %v is used by %v", i, b, i.users[0].Inst))
			}
		}
	}
	for _, b := range blocks {
		for i := b.first; i != nil; {
			next := i.next
			i.prev, i.next, i.block = nil, nil, nil
			i = next
		}
		b.first, b.last, b.lastPhi = nil, nil, nil
		if b.loop != nil {
			b.loop.RemoveBlock(b)
		}
		g.blocks[b.id] = nil
	}
	g.cfgChanged()
	g.instChanged()
}

// RootLoop returns the root of the loop tree. Valid only while the
// LoopAnalysis is valid.
func (g *Graph) RootLoop() *Loop { return g.rootLoop }

// SetRootLoop is used by the loop analyzer.
func (g *Graph) SetRootLoop(l *Loop) { g.rootLoop = l }

// LinearBlocks returns the block layout computed by LinearOrderAnalysis.
func (g *Graph) LinearBlocks() []*Block { return g.linear }

// SetLinearBlocks is used by the linear order builder.
func (g *Graph) SetLinearBlocks(order []*Block) { g.linear = order }

// EventWriter returns the sink for pass events.
func (g *Graph) EventWriter() EventWriter { return g.events }

// SetEventWriter replaces the event sink; nil discards events.
func (g *Graph) SetEventWriter(w EventWriter) {
	if w == nil {
		w = NopEventWriter{}
	}
	g.events = w
}

// CFGVersion is incremented on every change of blocks or edges.
func (g *Graph) CFGVersion() uint64 { return g.cfgVersion }

// InstVersion is incremented on every insertion or removal of an
// instruction.
func (g *Graph) InstVersion() uint64 { return g.instVersion }

func (g *Graph) cfgChanged()  { g.cfgVersion++ }
func (g *Graph) instChanged() { g.instVersion++ }

// BlocksRPO returns the blocks reachable from the start block in reverse
// post-order, visiting true successors first.
func (g *Graph) BlocksRPO() []*Block {
	po := g.BlocksPostOrder()
	for l, r := 0, len(po)-1; l < r; l, r = l+1, r-1 {
		po[l], po[r] = po[r], po[l]
	}
	return po
}

// BlocksPostOrder returns the reachable blocks in post-order.
func (g *Graph) BlocksPostOrder() []*Block {
	type frame struct {
		b    *Block
		next int
	}
	seen := make([]bool, len(g.blocks))
	var po []*Block
	stack := []frame{{b: g.start}}
	seen[g.start.id] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.b.succs) {
			s := top.b.succs[top.next]
			top.next++
			if !seen[s.id] {
				seen[s.id] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		po = append(po, top.b)
		stack = stack[:len(stack)-1]
	}
	return po
}
