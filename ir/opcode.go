package ir

import "fmt"

// Opcode identifies the operation of an instruction.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpParameter
	OpConstant
	OpPhi
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpAShr
	OpNeg
	OpNot
	OpCast
	OpCompare
	OpIfImm
	OpReturn
	OpReturnVoid
	OpSafePoint
	OpCall
	OpReturnInlined
	OpLoad
	OpStore
	numOpcodes
)

const (
	propCommutative = 1 << iota
	propRemovable
	propTerminator
	propBinary
	propSideEffect
)

type opcodeInfo struct {
	name  string
	props uint8
}

var opcodes = [numOpcodes]opcodeInfo{
	OpInvalid:       {"Invalid", 0},
	OpParameter:     {"Parameter", 0},
	OpConstant:      {"Constant", propRemovable},
	OpPhi:           {"Phi", propRemovable},
	OpAdd:           {"Add", propCommutative | propRemovable | propBinary},
	OpSub:           {"Sub", propRemovable | propBinary},
	OpMul:           {"Mul", propCommutative | propRemovable | propBinary},
	OpDiv:           {"Div", propBinary},
	OpMod:           {"Mod", propBinary},
	OpAnd:           {"And", propCommutative | propRemovable | propBinary},
	OpOr:            {"Or", propCommutative | propRemovable | propBinary},
	OpXor:           {"Xor", propCommutative | propRemovable | propBinary},
	OpShl:           {"Shl", propRemovable | propBinary},
	OpShr:           {"Shr", propRemovable | propBinary},
	OpAShr:          {"AShr", propRemovable | propBinary},
	OpNeg:           {"Neg", propRemovable},
	OpNot:           {"Not", propRemovable},
	OpCast:          {"Cast", propRemovable},
	OpCompare:       {"Compare", propRemovable},
	OpIfImm:         {"IfImm", propTerminator},
	OpReturn:        {"Return", propTerminator},
	OpReturnVoid:    {"ReturnVoid", propTerminator},
	OpSafePoint:     {"SafePoint", 0},
	OpCall:          {"Call", propSideEffect},
	OpReturnInlined: {"ReturnInlined", 0},
	OpLoad:          {"Load", propRemovable},
	OpStore:         {"Store", propSideEffect},
}

func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodes[op].name
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// IsCommutative returns true if the operands of op can be exchanged.
func (op Opcode) IsCommutative() bool { return opcodes[op].props&propCommutative != 0 }

// IsRemovable returns true if an instruction with op can be deleted once it
// has no users.
func (op Opcode) IsRemovable() bool { return opcodes[op].props&propRemovable != 0 }

// IsTerminator returns true for block-ending control instructions.
func (op Opcode) IsTerminator() bool { return opcodes[op].props&propTerminator != 0 }

// IsBinary returns true for two-operand arithmetic and bitwise operations.
func (op Opcode) IsBinary() bool { return opcodes[op].props&propBinary != 0 }

// HasSideEffect returns true if op writes memory or transfers control to
// another function.
func (op Opcode) HasSideEffect() bool { return opcodes[op].props&propSideEffect != 0 }
