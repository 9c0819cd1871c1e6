package ir

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
)

// WriteTo writes the graph in a human readable form, blocks in id order.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	bufw := bufio.NewWriter(&buf)
	fmt.Fprintf(bufw, "function %s\n", g.name)
	for _, b := range g.Blocks() {
		writeBlock(bufw, b)
	}
	bufw.Flush()
	return buf.WriteTo(w)
}

func (g *Graph) String() string {
	var buf bytes.Buffer
	g.WriteTo(&buf)
	return buf.String()
}

func blockList(bs []*Block) string {
	s := make([]string, len(bs))
	for n, b := range bs {
		s[n] = b.String()
	}
	return "[" + strings.Join(s, " ") + "]"
}

func writeBlock(w *bufio.Writer, b *Block) {
	fmt.Fprintf(w, "%v preds: %s succs: %s", b, blockList(b.preds), blockList(b.succs))
	if b.loop != nil && !b.loop.root {
		fmt.Fprintf(w, " loop %d", b.loop.id)
		if b.loop.header == b {
			w.WriteString(" header")
		}
	}
	w.WriteString("\n")
	for i := b.first; i != nil; i = i.next {
		fmt.Fprintf(w, "    %s\n", i.Format())
	}
}

// Format renders the instruction with its inputs.
func (i *Inst) Format() string {
	var buf bytes.Buffer
	if i.typ == Void {
		fmt.Fprintf(&buf, "%v %s", i, i.op)
	} else {
		fmt.Fprintf(&buf, "%v.%s %s", i, i.typ, i.op)
	}
	switch i.op {
	case OpConstant:
		if i.typ.IsFloat() {
			fmt.Fprintf(&buf, " %g", math.Float64frombits(uint64(i.imm)))
		} else {
			fmt.Fprintf(&buf, " %d", i.imm)
		}
		return buf.String()
	case OpParameter:
		fmt.Fprintf(&buf, " arg %d", i.imm)
		return buf.String()
	case OpCompare:
		fmt.Fprintf(&buf, " %s %s", i.cc, i.srcType)
	case OpIfImm:
		fmt.Fprintf(&buf, " %s 0x%x", i.cc, i.imm)
	case OpCall:
		fmt.Fprintf(&buf, " %s", i.callee)
		if i.inlined {
			buf.WriteString(" inlined")
		}
	}
	for n, in := range i.inputs {
		if n == 0 {
			buf.WriteString(" ")
		} else {
			buf.WriteString(", ")
		}
		buf.WriteString(in.String())
		if i.op == OpPhi && i.block != nil && n < len(i.block.preds) {
			fmt.Fprintf(&buf, "(%v)", i.block.preds[n])
		}
	}
	return buf.String()
}
