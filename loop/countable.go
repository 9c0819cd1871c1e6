package loop

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/nickng/loopopt/ir"
)

// CountableLoopInfo describes a loop
//
//	for (index = init; update cc test; index = update)
//
// where update is index plus or minus a constant Step, and the loop keeps
// running while NormalizedCC holds between update and test.
type CountableLoopInfo struct {
	IfImm   *ir.Inst // Branch ending the back-edge block.
	Compare *ir.Inst // Compare feeding IfImm.
	Index   *ir.Inst // Header phi.
	Init    *ir.Inst // Pre-header input of Index.
	Test    *ir.Inst // Loop-invariant bound.
	Update  *ir.Inst // Back-edge input of Index.
	Const   *ir.Inst // Step operand of Update.

	Step      uint64 // Magnitude of the step, never 0.
	Increment bool

	// NormalizedCC is the condition update NormalizedCC test under which the
	// loop continues.
	NormalizedCC ir.ConditionCode

	// UpdateOnLeft is true when Update is the first input of Compare.
	UpdateOnLeft bool
	// ContinueOnTrue is true when the back-edge continues the loop if Compare
	// is true.
	ContinueOnTrue bool
	// FromNE is true when NormalizedCC was derived from an NE condition.
	FromNE bool
}

// ParseCountable recognizes a countable loop. The loop must have a single
// back-edge, ending in an IfImm over a Compare of the update and a test
// defined outside the loop; the update must be an Add or Sub of the header
// phi and an integer constant.
func ParseCountable(l *ir.Loop) (*CountableLoopInfo, bool) {
	if l.IsRoot() || l.IsIrreducible() || len(l.BackEdges()) != 1 || l.PreHeader() == nil {
		return nil, false
	}
	header, be := l.Header(), l.BackEdges()[0]
	ifImm := be.Terminator()
	if ifImm == nil || ifImm.Opcode() != ir.OpIfImm || be.NumSuccs() != 2 {
		return nil, false
	}
	if ifImm.Imm() != 0 || (ifImm.CC() != ir.CCNe && ifImm.CC() != ir.CCEq) {
		return nil, false
	}
	cmp := ifImm.Input(0)
	if cmp.Opcode() != ir.OpCompare || cmp.Block() != be {
		return nil, false
	}
	var headerIsTrue bool
	switch {
	case be.TrueSucc() == header && !l.Contains(be.FalseSucc()):
		headerIsTrue = true
	case be.FalseSucc() == header && !l.Contains(be.TrueSucc()):
		headerIsTrue = false
	default:
		return nil, false
	}
	info := &CountableLoopInfo{IfImm: ifImm, Compare: cmp}
	info.ContinueOnTrue = (ifImm.CC() == ir.CCNe) == headerIsTrue
	cc := cmp.CC()
	if !info.ContinueOnTrue {
		cc = cc.Inverse()
	}

	update, test := cmp.Input(0), cmp.Input(1)
	info.UpdateOnLeft = true
	if !IsUpdateOf(update, header) {
		update, test = test, update
		cc = cc.Swap()
		info.UpdateOnLeft = false
	}
	index, step, ok := updateParts(update, header)
	if !ok || l.Contains(test.Block()) {
		return nil, false
	}
	typ := update.Type()
	if !typ.IsInteger() || cmp.OperandType() != typ || test.Type() != typ {
		return nil, false
	}
	if !index.IsPhi() || index.NumInputs() != 2 || index.PhiInput(be) != update {
		return nil, false
	}
	delta := signedConst(step)
	if update.Opcode() == ir.OpSub {
		if delta == minInt(typ) {
			return nil, false
		}
		delta = -delta
	}
	if delta == 0 || delta == minInt(typ) {
		return nil, false
	}
	info.Index, info.Update, info.Test, info.Const = index, update, test, step
	info.Init = index.PhiInput(l.PreHeader())
	info.Increment = delta > 0
	if delta < 0 {
		delta = -delta
	}
	info.Step = uint64(delta)

	switch {
	case cc == ir.CCNe:
		normalized, ok := normalizeNE(info)
		if !ok {
			return nil, false
		}
		cc = normalized
		info.FromNE = true
	case info.Increment && typ.IsSigned() && (cc == ir.CCLt || cc == ir.CCLe):
	case info.Increment && !typ.IsSigned() && (cc == ir.CCB || cc == ir.CCBe):
	case !info.Increment && typ.IsSigned() && (cc == ir.CCGt || cc == ir.CCGe):
	case !info.Increment && !typ.IsSigned() && (cc == ir.CCA || cc == ir.CCAe):
	default:
		return nil, false
	}
	info.NormalizedCC = cc
	return info, true
}

// updateParts splits an Add/Sub of a phi of header and a constant into the
// phi and the constant.
func updateParts(v *ir.Inst, header *ir.Block) (phi, c *ir.Inst, ok bool) {
	if v.Opcode() != ir.OpAdd && v.Opcode() != ir.OpSub {
		return nil, nil, false
	}
	phi, c = v.Input(0), v.Input(1)
	if v.Opcode() == ir.OpAdd && c.IsPhi() && c.Block() == header {
		phi, c = c, phi
	}
	if !phi.IsPhi() || phi.Block() != header || !c.IsConst() {
		return nil, nil, false
	}
	return phi, c, true
}

// IsUpdateOf returns true for Add/Sub of a phi of header and a constant.
func IsUpdateOf(v *ir.Inst, header *ir.Block) bool {
	_, _, ok := updateParts(v, header)
	return ok
}

// normalizeNE turns update != test into update < test (or > for decrement)
// when init and test are constants and the index reaches test exactly.
func normalizeNE(info *CountableLoopInfo) (ir.ConditionCode, bool) {
	if !info.Init.IsConst() || !info.Test.IsConst() {
		return 0, false
	}
	typ := info.Update.Type()
	diff := new(big.Int).Sub(Value(info.Test), Value(info.Init))
	if !info.Increment {
		diff.Neg(diff)
	}
	step := new(big.Int).SetUint64(info.Step)
	if diff.Sign() <= 0 || new(big.Int).Mod(diff, step).Sign() != 0 {
		return 0, false
	}
	switch {
	case info.Increment && typ.IsSigned():
		return ir.CCLt, true
	case info.Increment:
		return ir.CCB, true
	case typ.IsSigned():
		return ir.CCGt, true
	}
	return ir.CCA, true
}

// signedConst returns the value of an integer constant as a signed number of
// its width.
func signedConst(c *ir.Inst) int64 {
	v := c.Int64()
	if c.Type() == ir.Uint32 {
		return int64(int32(v))
	}
	return v
}

func minInt(t ir.Type) int64 {
	if t.Bits() == 32 {
		return -1 << 31
	}
	return -1 << 63
}

// Value returns the value of an integer constant, interpreting its bits
// according to its type.
func Value(c *ir.Inst) *big.Int {
	if c.Type() == ir.Uint64 {
		return new(big.Int).SetUint64(c.Uint64())
	}
	return big.NewInt(c.Int64())
}

// Bounds returns the smallest and largest value of an integer type.
func Bounds(t ir.Type) (min, max *big.Int) {
	one := big.NewInt(1)
	if t.IsSigned() {
		max = new(big.Int).Lsh(one, t.Bits()-1)
		min = new(big.Int).Neg(max)
		max.Sub(max, one)
		return min, max
	}
	max = new(big.Int).Lsh(one, t.Bits())
	return big.NewInt(0), max.Sub(max, one)
}

// IsFinite returns true if the loop is proven to terminate: the index can
// not wrap around before the condition fails.
func (info *CountableLoopInfo) IsFinite() bool {
	if info.FromNE {
		return true
	}
	cc := info.NormalizedCC
	inclusive := cc.IsInclusive()
	if info.Step == 1 && !inclusive {
		return true
	}
	if !info.Test.IsConst() {
		return false
	}
	min, max := Bounds(info.Update.Type())
	t := Value(info.Test)
	s := new(big.Int).SetUint64(info.Step)
	last := new(big.Int).Set(t)
	if info.Increment {
		// Largest value continuing the loop, plus one step, must fit.
		if !inclusive {
			last.Sub(last, big.NewInt(1))
		}
		return last.Add(last, s).Cmp(max) <= 0
	}
	if !inclusive {
		last.Add(last, big.NewInt(1))
	}
	return last.Sub(last, s).Cmp(min) >= 0
}

func (info *CountableLoopInfo) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%v = %v; ", info.Index, operand(info.Init)))
	buf.WriteString(fmt.Sprintf("(%v %s %v); ", info.Update, info.NormalizedCC, operand(info.Test)))
	if info.Increment {
		buf.WriteString(fmt.Sprintf("%v = %v + %d", info.Index, info.Index, info.Step))
	} else {
		buf.WriteString(fmt.Sprintf("%v = %v - %d", info.Index, info.Index, info.Step))
	}
	return buf.String()
}

func operand(v *ir.Inst) string {
	if v.IsConst() {
		return Value(v).String()
	}
	return v.String()
}
