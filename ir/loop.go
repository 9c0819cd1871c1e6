package ir

import "fmt"

// Loop is a node of the loop tree. The root loop holds every block that is
// not inside a real loop.
type Loop struct {
	id        int
	header    *Block
	preHeader *Block
	backEdges []*Block
	blocks    []*Block
	inner     []*Loop
	outer     *Loop

	root        bool
	irreducible bool
	osr         bool
	tryCatch    bool
	infinite    bool
}

// NewLoop creates a loop headed by header.
func NewLoop(id int, header *Block) *Loop {
	return &Loop{id: id, header: header}
}

// NewRootLoop creates the root of a loop tree.
func NewRootLoop(id int) *Loop {
	return &Loop{id: id, root: true}
}

func (l *Loop) ID() int                { return l.id }
func (l *Loop) Header() *Block         { return l.header }
func (l *Loop) PreHeader() *Block      { return l.preHeader }
func (l *Loop) SetPreHeader(b *Block)  { l.preHeader = b }
func (l *Loop) BackEdges() []*Block    { return l.backEdges }
func (l *Loop) Blocks() []*Block       { return l.blocks }
func (l *Loop) InnerLoops() []*Loop    { return l.inner }
func (l *Loop) OuterLoop() *Loop       { return l.outer }
func (l *Loop) IsRoot() bool           { return l.root }
func (l *Loop) IsIrreducible() bool    { return l.irreducible }
func (l *Loop) SetIrreducible(v bool)  { l.irreducible = v }
func (l *Loop) IsOsrLoop() bool        { return l.osr }
func (l *Loop) SetOsrLoop(v bool)      { l.osr = v }
func (l *Loop) IsTryCatchLoop() bool   { return l.tryCatch }
func (l *Loop) SetTryCatchLoop(v bool) { l.tryCatch = v }
func (l *Loop) IsInfinite() bool       { return l.infinite }
func (l *Loop) SetInfinite(v bool)     { l.infinite = v }

// AppendBackEdge records b as a source of an edge to the header.
func (l *Loop) AppendBackEdge(b *Block) { l.backEdges = append(l.backEdges, b) }

// ReplaceBackEdge replaces the back-edge old with b.
func (l *Loop) ReplaceBackEdge(old, b *Block) {
	for n, e := range l.backEdges {
		if e == old {
			l.backEdges[n] = b
			return
		}
	}
	panic(fmt.Sprintf("ir: %v is not a back-edge of loop %d", old, l.id))
}

// AppendBlock makes l the innermost loop of b.
func (l *Loop) AppendBlock(b *Block) {
	l.blocks = append(l.blocks, b)
	b.loop = l
}

// RemoveBlock drops b from the blocks of l.
func (l *Loop) RemoveBlock(b *Block) {
	for n, lb := range l.blocks {
		if lb == b {
			l.blocks = append(l.blocks[:n], l.blocks[n+1:]...)
			break
		}
	}
	if b.loop == l {
		b.loop = nil
	}
}

// AppendInner makes inner a child of l.
func (l *Loop) AppendInner(inner *Loop) {
	l.inner = append(l.inner, inner)
	inner.outer = l
}

// RemoveInner detaches inner from l.
func (l *Loop) RemoveInner(inner *Loop) {
	for n, c := range l.inner {
		if c == inner {
			l.inner = append(l.inner[:n], l.inner[n+1:]...)
			break
		}
	}
	inner.outer = nil
}

// IsInside returns true if l is other or nested in other.
func (l *Loop) IsInside(other *Loop) bool {
	for o := l; o != nil; o = o.outer {
		if o == other {
			return true
		}
	}
	return false
}

// Contains returns true if b belongs to l or to a loop nested in l.
func (l *Loop) Contains(b *Block) bool {
	return b.loop != nil && b.loop.IsInside(l)
}

// AllBlocks returns the blocks of l and of its inner loops.
func (l *Loop) AllBlocks() []*Block {
	out := append([]*Block(nil), l.blocks...)
	for _, in := range l.inner {
		out = append(out, in.AllBlocks()...)
	}
	return out
}

func (l *Loop) String() string {
	if l.root {
		return fmt.Sprintf("loop %d (root)", l.id)
	}
	return fmt.Sprintf("loop %d (header %v)", l.id, l.header)
}
