package interp

import (
	"fmt"

	"github.com/nickng/loopopt/ir"
	"github.com/pkg/errors"
)

var (
	ErrStepLimit = errors.New("step limit exceeded")
	ErrDivByZero = errors.New("integer division by zero")
	ErrNoReturn  = errors.New("block has no successor and no return")
	ErrNumArgs   = errors.New("wrong number of arguments")
	ErrRecursion = errors.New("call depth limit exceeded")
)

// ErrBadInst is returned when an instruction can not be evaluated.
type ErrBadInst struct {
	Inst *ir.Inst
}

func (e ErrBadInst) Error() string {
	return fmt.Sprintf("cannot evaluate %v (opcode %s)", e.Inst, e.Inst.Opcode())
}
