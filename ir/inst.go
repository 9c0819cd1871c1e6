package ir

import (
	"fmt"
	"math"
)

// User is a back-reference from a value to an instruction consuming it as
// input number Index.
type User struct {
	Inst  *Inst
	Index int
}

// Inst is an instruction. Input edges and user edges are kept in sync by the
// mutators of this type; never touch inputs or users directly.
type Inst struct {
	id    int
	op    Opcode
	typ   Type
	pc    uint32
	block *Block

	prev, next *Inst

	inputs []*Inst
	users  []User

	cc      ConditionCode // Compare, IfImm.
	imm     int64         // IfImm immediate, Constant value, Parameter index.
	srcType Type          // Compare operand type.
	callee  string        // Call target.
	inlined bool          // Call was inlined; paired with a ReturnInlined.

	// Branch profile of an IfImm: times the true and false successors were
	// taken.
	trueCount, falseCount int64

	marks marks
}

func (i *Inst) ID() int                 { return i.id }
func (i *Inst) Opcode() Opcode          { return i.op }
func (i *Inst) Type() Type              { return i.typ }
func (i *Inst) SetType(t Type)          { i.typ = t }
func (i *Inst) PC() uint32              { return i.pc }
func (i *Inst) Block() *Block           { return i.block }
func (i *Inst) Prev() *Inst             { return i.prev }
func (i *Inst) Next() *Inst             { return i.next }
func (i *Inst) IsPhi() bool             { return i.op == OpPhi }
func (i *Inst) IsConst() bool           { return i.op == OpConstant }
func (i *Inst) IsCommutative() bool     { return i.op.IsCommutative() }
func (i *Inst) IsRemovable() bool       { return i.op.IsRemovable() }
func (i *Inst) CC() ConditionCode       { return i.cc }
func (i *Inst) SetCC(cc ConditionCode)  { i.cc = cc }
func (i *Inst) Imm() int64              { return i.imm }
func (i *Inst) OperandType() Type       { return i.srcType }
func (i *Inst) SetOperandType(t Type)   { i.srcType = t }
func (i *Inst) Callee() string          { return i.callee }
func (i *Inst) SetCallee(name string)   { i.callee = name }
func (i *Inst) IsInlined() bool         { return i.inlined }
func (i *Inst) SetInlined(inlined bool) { i.inlined = inlined }

// ParamIndex returns the argument index of a Parameter.
func (i *Inst) ParamIndex() int { return int(i.imm) }

// Int64 returns the value of an integer constant.
func (i *Inst) Int64() int64 {
	if i.op != OpConstant {
		panic(fmt.Sprintf("ir: Int64 of non-constant %v", i))
	}
	return i.imm
}

// Uint64 returns the value of an integer constant as unsigned bits.
func (i *Inst) Uint64() uint64 { return uint64(i.Int64()) }

// Float64 returns the value of a float constant.
func (i *Inst) Float64() float64 { return math.Float64frombits(uint64(i.Int64())) }

// Profile returns how many times the true and false successors of an IfImm
// were taken.
func (i *Inst) Profile() (taken, notTaken int64) { return i.trueCount, i.falseCount }

// SetProfile sets the branch profile of an IfImm.
func (i *Inst) SetProfile(taken, notTaken int64) {
	i.trueCount, i.falseCount = taken, notTaken
}

// SwapProfile exchanges the counters, following a true/false successor swap.
func (i *Inst) SwapProfile() { i.trueCount, i.falseCount = i.falseCount, i.trueCount }

func (i *Inst) SetMarker(m Marker)           { i.marks.set(m) }
func (i *Inst) ResetMarker(m Marker)         { i.marks.reset(m) }
func (i *Inst) IsMarked(m Marker) bool       { return i.marks.isSet(m) }
func (i *Inst) SetMarkerTo(m Marker, v bool) { i.marks.setTo(m, v) }

// NumInputs returns the number of inputs.
func (i *Inst) NumInputs() int { return len(i.inputs) }

// Input returns input number n.
func (i *Inst) Input(n int) *Inst { return i.inputs[n] }

// Inputs returns a copy of the inputs.
func (i *Inst) Inputs() []*Inst {
	in := make([]*Inst, len(i.inputs))
	copy(in, i.inputs)
	return in
}

// Users returns a copy of the user edges.
func (i *Inst) Users() []User {
	u := make([]User, len(i.users))
	copy(u, i.users)
	return u
}

// HasUsers returns true if the value is consumed by any instruction.
func (i *Inst) HasUsers() bool { return len(i.users) > 0 }

// HasSingleUser returns true if exactly one input edge refers to i.
func (i *Inst) HasSingleUser() bool { return len(i.users) == 1 }

// SetInput replaces input n with v.
func (i *Inst) SetInput(n int, v *Inst) {
	if old := i.inputs[n]; old != nil {
		old.removeUser(i, n)
	}
	i.inputs[n] = v
	if v != nil {
		v.users = append(v.users, User{Inst: i, Index: n})
	}
}

// AppendInput adds v as the last input.
func (i *Inst) AppendInput(v *Inst) {
	i.inputs = append(i.inputs, nil)
	i.SetInput(len(i.inputs)-1, v)
}

// SetInputs replaces all inputs.
func (i *Inst) SetInputs(vs ...*Inst) {
	i.RemoveInputs()
	for _, v := range vs {
		i.AppendInput(v)
	}
}

// RemoveInput deletes input n, shifting the following inputs down.
func (i *Inst) RemoveInput(n int) {
	if old := i.inputs[n]; old != nil {
		old.removeUser(i, n)
	}
	for k := n + 1; k < len(i.inputs); k++ {
		if in := i.inputs[k]; in != nil {
			in.renumberUser(i, k, k-1)
		}
	}
	i.inputs = append(i.inputs[:n], i.inputs[n+1:]...)
}

// RemoveInputs drops every input edge.
func (i *Inst) RemoveInputs() {
	for n, in := range i.inputs {
		if in != nil {
			in.removeUser(i, n)
		}
	}
	i.inputs = i.inputs[:0]
}

// ReplaceUsers redirects every user of i to v.
func (i *Inst) ReplaceUsers(v *Inst) {
	for _, u := range i.Users() {
		u.Inst.SetInput(u.Index, v)
	}
}

// ReplaceInput replaces every input equal to old with v.
func (i *Inst) ReplaceInput(old, v *Inst) {
	for n, in := range i.inputs {
		if in == old {
			i.SetInput(n, v)
		}
	}
}

// Clone returns a copy of i with the same attributes, no inputs, no users and
// no block.
func (i *Inst) Clone(g *Graph) *Inst {
	c := g.NewInst(i.op, i.typ, i.pc)
	c.cc = i.cc
	c.imm = i.imm
	c.srcType = i.srcType
	c.callee = i.callee
	c.inlined = i.inlined
	c.trueCount, c.falseCount = i.trueCount, i.falseCount
	return c
}

func (i *Inst) removeUser(user *Inst, n int) {
	for k, u := range i.users {
		if u.Inst == user && u.Index == n {
			last := len(i.users) - 1
			i.users[k] = i.users[last]
			i.users = i.users[:last]
			return
		}
	}
	panic(fmt.Sprintf("ir: %v is not a user of %v at input %d", user, i, n))
}

func (i *Inst) renumberUser(user *Inst, from, to int) {
	for k, u := range i.users {
		if u.Inst == user && u.Index == from {
			i.users[k].Index = to
			return
		}
	}
	panic(fmt.Sprintf("ir: %v is not a user of %v at input %d", user, i, from))
}

// PhiInput returns the input of phi i flowing from pred.
func (i *Inst) PhiInput(pred *Block) *Inst {
	return i.inputs[i.block.PredIndex(pred)]
}

// SetPhiInput sets the input of phi i flowing from pred.
func (i *Inst) SetPhiInput(pred *Block, v *Inst) {
	i.SetInput(i.block.PredIndex(pred), v)
}

func (i *Inst) String() string {
	return fmt.Sprintf("v%d", i.id)
}
