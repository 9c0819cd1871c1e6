package ir

import (
	"fmt"
	"math"
)

// Type is the data type of an instruction result.
type Type uint8

const (
	Void Type = iota
	Bool
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var typeNames = [...]string{
	Void:    "void",
	Bool:    "b",
	Int32:   "i32",
	Uint32:  "u32",
	Int64:   "i64",
	Uint64:  "u64",
	Float32: "f32",
	Float64: "f64",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// IsFloat returns true for floating point types.
func (t Type) IsFloat() bool { return t == Float32 || t == Float64 }

// IsInteger returns true for integer types (Bool excluded).
func (t Type) IsInteger() bool { return t >= Int32 && t <= Uint64 }

// IsSigned returns true for signed integer types.
func (t Type) IsSigned() bool { return t == Int32 || t == Int64 }

// Bits returns the width of the type in bits.
func (t Type) Bits() uint {
	switch t {
	case Bool:
		return 1
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64:
		return 64
	}
	return 0
}

// Wrap truncates v to the width of t and returns the canonical form of the
// value: signed types are sign extended, unsigned types zero extended, Uint64
// keeps its raw bits. Floats are canonicalised to float64 bits.
func (t Type) Wrap(v int64) int64 {
	switch t {
	case Bool:
		return v & 1
	case Int32:
		return int64(int32(v))
	case Uint32:
		return int64(uint32(v))
	case Float32:
		return int64(math.Float64bits(float64(float32(math.Float64frombits(uint64(v))))))
	}
	return v
}

// ConditionCode is the predicate of Compare and IfImm.
type ConditionCode uint8

const (
	CCEq ConditionCode = iota
	CCNe
	CCLt // signed <
	CCLe // signed <=
	CCGt // signed >
	CCGe // signed >=
	CCB  // unsigned <
	CCBe // unsigned <=
	CCA  // unsigned >
	CCAe // unsigned >=
)

var ccNames = [...]string{
	CCEq: "EQ", CCNe: "NE",
	CCLt: "LT", CCLe: "LE", CCGt: "GT", CCGe: "GE",
	CCB: "B", CCBe: "BE", CCA: "A", CCAe: "AE",
}

func (cc ConditionCode) String() string {
	if int(cc) < len(ccNames) {
		return ccNames[cc]
	}
	return fmt.Sprintf("cc(%d)", cc)
}

// Inverse returns the condition code that holds exactly when cc does not.
func (cc ConditionCode) Inverse() ConditionCode {
	switch cc {
	case CCEq:
		return CCNe
	case CCNe:
		return CCEq
	case CCLt:
		return CCGe
	case CCLe:
		return CCGt
	case CCGt:
		return CCLe
	case CCGe:
		return CCLt
	case CCB:
		return CCAe
	case CCBe:
		return CCA
	case CCA:
		return CCBe
	case CCAe:
		return CCB
	}
	panic(fmt.Sprintf("ir: unknown condition code %d", cc))
}

// Swap returns the condition code to use when the operands are exchanged.
func (cc ConditionCode) Swap() ConditionCode {
	switch cc {
	case CCEq, CCNe:
		return cc
	case CCLt:
		return CCGt
	case CCLe:
		return CCGe
	case CCGt:
		return CCLt
	case CCGe:
		return CCLe
	case CCB:
		return CCA
	case CCBe:
		return CCAe
	case CCA:
		return CCB
	case CCAe:
		return CCBe
	}
	panic(fmt.Sprintf("ir: unknown condition code %d", cc))
}

// IsUnsigned returns true for the unsigned relational codes.
func (cc ConditionCode) IsUnsigned() bool { return cc >= CCB && cc <= CCAe }

// IsSigned returns true for the signed relational codes.
func (cc ConditionCode) IsSigned() bool { return cc >= CCLt && cc <= CCGe }

// IsLess returns true for the codes testing a < b or a <= b.
func (cc ConditionCode) IsLess() bool {
	return cc == CCLt || cc == CCLe || cc == CCB || cc == CCBe
}

// IsGreater returns true for the codes testing a > b or a >= b.
func (cc ConditionCode) IsGreater() bool {
	return cc == CCGt || cc == CCGe || cc == CCA || cc == CCAe
}

// IsInclusive returns true when equality satisfies cc.
func (cc ConditionCode) IsInclusive() bool {
	return cc == CCLe || cc == CCGe || cc == CCBe || cc == CCAe || cc == CCEq
}

// Eval evaluates a cc b for canonical values of operand type t.
func (cc ConditionCode) Eval(a, b int64, t Type) bool {
	if t.IsFloat() {
		x, y := math.Float64frombits(uint64(a)), math.Float64frombits(uint64(b))
		switch cc {
		case CCEq:
			return x == y
		case CCNe:
			return x != y
		case CCLt, CCB:
			return x < y
		case CCLe, CCBe:
			return x <= y
		case CCGt, CCA:
			return x > y
		case CCGe, CCAe:
			return x >= y
		}
	}
	switch cc {
	case CCEq:
		return a == b
	case CCNe:
		return a != b
	case CCLt:
		return a < b
	case CCLe:
		return a <= b
	case CCGt:
		return a > b
	case CCGe:
		return a >= b
	case CCB:
		return uint64(a) < uint64(b)
	case CCBe:
		return uint64(a) <= uint64(b)
	case CCA:
		return uint64(a) > uint64(b)
	case CCAe:
		return uint64(a) >= uint64(b)
	}
	panic(fmt.Sprintf("ir: unknown condition code %d", cc))
}
