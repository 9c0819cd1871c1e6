// Package instr provides the Analyser interface for instructions.
package instr

import "github.com/nickng/loopopt/ir"

// Analyser is an interface for Instruction analysis,
// handles each defined Opcode.
type Analyser interface {
	VisitInstr(i *ir.Inst)
	VisitParameter(i *ir.Inst)
	VisitConstant(i *ir.Inst)
	VisitPhi(i *ir.Inst)
	VisitBinOp(i *ir.Inst)
	VisitUnOp(i *ir.Inst)
	VisitCast(i *ir.Inst)
	VisitCompare(i *ir.Inst)
	VisitIfImm(i *ir.Inst)
	VisitReturn(i *ir.Inst)
	VisitCall(i *ir.Inst)
	VisitReturnInlined(i *ir.Inst)
	VisitLoad(i *ir.Inst)
	VisitStore(i *ir.Inst)
	VisitSafePoint(i *ir.Inst)
}

// Visit calls VisitInstr then the method of v handling the opcode of i.
func Visit(v Analyser, i *ir.Inst) {
	v.VisitInstr(i)
	switch op := i.Opcode(); {
	case op == ir.OpParameter:
		v.VisitParameter(i)
	case op == ir.OpConstant:
		v.VisitConstant(i)
	case op == ir.OpPhi:
		v.VisitPhi(i)
	case op.IsBinary():
		v.VisitBinOp(i)
	case op == ir.OpNeg || op == ir.OpNot:
		v.VisitUnOp(i)
	case op == ir.OpCast:
		v.VisitCast(i)
	case op == ir.OpCompare:
		v.VisitCompare(i)
	case op == ir.OpIfImm:
		v.VisitIfImm(i)
	case op == ir.OpReturn || op == ir.OpReturnVoid:
		v.VisitReturn(i)
	case op == ir.OpCall:
		v.VisitCall(i)
	case op == ir.OpReturnInlined:
		v.VisitReturnInlined(i)
	case op == ir.OpLoad:
		v.VisitLoad(i)
	case op == ir.OpStore:
		v.VisitStore(i)
	case op == ir.OpSafePoint:
		v.VisitSafePoint(i)
	}
}
