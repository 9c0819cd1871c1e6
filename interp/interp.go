// Package interp executes an ir.Graph.
//
// The interpreter walks the graph block by block (as a block.Analyser) and
// evaluates each instruction (as an instr.Analyser), keeping values in a
// store.Store. It is the reference semantics the loop transformations are
// checked against: a transformed graph must compute the same result, memory
// and calls as the original for every input.
package interp

import (
	"math"

	"github.com/nickng/loopopt/block"
	"github.com/nickng/loopopt/instr"
	"github.com/nickng/loopopt/ir"
	"github.com/nickng/loopopt/store"
	"github.com/pkg/errors"
)

const (
	DefaultStepLimit = 1000000
	maxCallDepth     = 64
)

// Config controls the execution.
type Config struct {
	// StepLimit bounds the number of executed instructions (calls included).
	StepLimit int

	// Funcs holds graphs called by name. Calls to other functions go to
	// Callee, or return 0 when Callee is nil.
	Funcs  map[string]*ir.Graph
	Callee func(name string, args []int64) int64

	// Trace keeps the full block trace instead of only edge counters.
	Trace bool
}

// Call is a call made during the execution.
type Call struct {
	Callee string
	Args   []int64
}

// Result is the observable outcome of an execution.
type Result struct {
	Value    int64
	HasValue bool
	Memory   map[int64]int64
	Calls    []Call
	Steps    int

	// Trace of the blocks of the executed graph. The edge counters can be
	// stored as branch profiles with ApplyProfile.
	Trace *block.VisitGraph
}

// run is the state shared by nested calls.
type run struct {
	steps int
	limit int
	calls []Call
}

// Interp is the interpreter of one graph.
type Interp struct {
	*block.VisitGraph

	g     *ir.Graph
	conf  Config
	store *store.Store
	run   *run
	depth int

	curr, prev *ir.Block
	next       *ir.Block // Successor chosen by the current block.
	done       bool
	ret        int64
	hasRet     bool
	err        error

	*Logger
}

// New returns an interpreter for g.
func New(g *ir.Graph, conf Config) *Interp {
	if conf.StepLimit <= 0 {
		conf.StepLimit = DefaultStepLimit
	}
	return &Interp{
		g:      g,
		conf:   conf,
		store:  store.New(),
		Logger: nopLogger(),
	}
}

// Store returns the storage of the interpreter, e.g. to preset memory.
func (i *Interp) Store() *store.Store { return i.store }

// Run executes the graph with args bound to its parameters.
func (i *Interp) Run(args ...int64) (*Result, error) {
	if i.run == nil {
		i.run = &run{limit: i.conf.StepLimit}
	}
	if i.conf.Trace {
		i.VisitGraph = block.NewVisitGraph()
	} else {
		i.VisitGraph = block.NewProfile()
	}
	if err := i.exec(args); err != nil {
		return nil, err
	}
	return &Result{
		Value:    i.ret,
		HasValue: i.hasRet,
		Memory:   i.store.Memory(),
		Calls:    i.run.calls,
		Steps:    i.run.steps,
		Trace:    i.VisitGraph,
	}, nil
}

func (i *Interp) exec(args []int64) error {
	params := i.g.Params()
	if len(args) != len(params) {
		return errors.Wrapf(ErrNumArgs, "%s: want %d, got %d", i.g.Name(), len(params), len(args))
	}
	for n, p := range params {
		i.store.Put(p, p.Type().Wrap(args[n]))
	}
	i.EnterBlk(i.g.StartBlock())
	for !i.done && i.err == nil {
		if i.next == nil {
			i.err = errors.Wrapf(ErrNoReturn, "%s: %v", i.g.Name(), i.curr)
			break
		}
		i.JumpBlk(i.curr, i.next)
	}
	return i.err
}

// EnterBlk executes the start block.
func (i *Interp) EnterBlk(blk *ir.Block) {
	i.Debugf("%s Enter %s:%v", i.Module(), i.g.Name(), blk)
	i.Visit(blk)
	i.curr = blk
	i.execInsts(blk)
}

// JumpBlk executes next, entered from curr. Phis of next are evaluated in
// parallel: all read their input before any is written.
func (i *Interp) JumpBlk(curr, next *ir.Block) {
	i.Debugf("%s Jump %s:%v → %v", i.Module(), i.g.Name(), curr, next)
	i.VisitFrom(curr, next)
	phis := next.PhiInsts()
	vals := make([]int64, len(phis))
	for n, phi := range phis {
		if !i.step() {
			return
		}
		v, err := i.store.Get(phi.PhiInput(curr))
		if err != nil {
			i.err = err
			return
		}
		vals[n] = v
	}
	for n, phi := range phis {
		i.store.Put(phi, vals[n])
	}
	i.prev, i.curr = curr, next
	i.execInsts(next)
}

// ExitBlk finishes the execution at a returning block.
func (i *Interp) ExitBlk(blk *ir.Block) {
	i.Debugf("%s Exit %s:%v", i.Module(), i.g.Name(), blk)
	i.done = true
}

func (i *Interp) CurrBlk() *ir.Block { return i.curr }

func (i *Interp) PrevBlk() *ir.Block { return i.prev }

func (i *Interp) execInsts(blk *ir.Block) {
	i.next = nil
	if blk.NumSuccs() == 1 {
		i.next = blk.Succ(0)
	}
	for _, inst := range blk.Insts() {
		if !i.step() {
			return
		}
		instr.Visit(i, inst)
		if i.err != nil {
			return
		}
	}
	if i.done {
		i.ExitBlk(blk)
	}
}

func (i *Interp) step() bool {
	i.run.steps++
	if i.run.steps > i.run.limit {
		i.err = errors.Wrapf(ErrStepLimit, "%s: %d steps", i.g.Name(), i.run.limit)
		return false
	}
	return true
}

func (i *Interp) get(v *ir.Inst) int64 {
	x, err := i.store.Get(v)
	if err != nil && i.err == nil {
		i.err = err
	}
	return x
}

func (i *Interp) put(v *ir.Inst, x int64) {
	i.store.Put(v, v.Type().Wrap(x))
}

func (i *Interp) VisitInstr(inst *ir.Inst) {}

func (i *Interp) VisitParameter(inst *ir.Inst) {}

func (i *Interp) VisitConstant(inst *ir.Inst) {}

func (i *Interp) VisitPhi(inst *ir.Inst) {
	i.err = ErrBadInst{Inst: inst}
}

func (i *Interp) VisitBinOp(inst *ir.Inst) {
	a, b := i.get(inst.Input(0)), i.get(inst.Input(1))
	if i.err != nil {
		return
	}
	t := inst.Type()
	if t.IsFloat() {
		i.put(inst, int64(math.Float64bits(floatOp(inst.Opcode(), f64(a), f64(b)))))
		return
	}
	v, err := intOp(inst.Opcode(), t, a, b)
	if err != nil {
		i.err = errors.Wrapf(err, "%v at pc %d", inst, inst.PC())
		return
	}
	i.put(inst, v)
}

func (i *Interp) VisitUnOp(inst *ir.Inst) {
	a := i.get(inst.Input(0))
	t := inst.Type()
	switch {
	case inst.Opcode() == ir.OpNeg && t.IsFloat():
		i.put(inst, int64(math.Float64bits(-f64(a))))
	case inst.Opcode() == ir.OpNeg:
		i.put(inst, -a)
	case t == ir.Bool:
		i.put(inst, a^1)
	default:
		i.put(inst, ^a)
	}
}

func (i *Interp) VisitCast(inst *ir.Inst) {
	x := inst.Input(0)
	a := i.get(x)
	from, to := x.Type(), inst.Type()
	switch {
	case from.IsFloat() && to.IsFloat():
		i.put(inst, a)
	case from.IsFloat():
		f := f64(a)
		if to == ir.Uint64 {
			i.put(inst, int64(uint64(f)))
			return
		}
		i.put(inst, int64(f))
	case to.IsFloat():
		if from == ir.Uint64 {
			i.put(inst, int64(math.Float64bits(float64(uint64(a)))))
			return
		}
		i.put(inst, int64(math.Float64bits(float64(a))))
	case to == ir.Bool:
		if a != 0 {
			i.put(inst, 1)
			return
		}
		i.put(inst, 0)
	default:
		i.put(inst, a)
	}
}

func (i *Interp) VisitCompare(inst *ir.Inst) {
	a, b := i.get(inst.Input(0)), i.get(inst.Input(1))
	if inst.CC().Eval(a, b, inst.OperandType()) {
		i.put(inst, 1)
		return
	}
	i.put(inst, 0)
}

func (i *Interp) VisitIfImm(inst *ir.Inst) {
	blk := inst.Block()
	cond := i.get(inst.Input(0))
	if blk.NumSuccs() != 2 {
		i.err = ErrBadInst{Inst: inst}
		return
	}
	if inst.CC().Eval(cond, inst.Imm(), inst.OperandType()) {
		i.next = blk.TrueSucc()
		return
	}
	i.next = blk.FalseSucc()
}

func (i *Interp) VisitReturn(inst *ir.Inst) {
	if inst.Opcode() == ir.OpReturn {
		i.ret = i.get(inst.Input(0))
		i.hasRet = true
	}
	i.done = true
}

func (i *Interp) VisitCall(inst *ir.Inst) {
	args := make([]int64, inst.NumInputs())
	for n, a := range inst.Inputs() {
		args[n] = i.get(a)
	}
	if i.err != nil {
		return
	}
	i.run.calls = append(i.run.calls, Call{Callee: inst.Callee(), Args: args})
	if fg, ok := i.conf.Funcs[inst.Callee()]; ok {
		if i.depth >= maxCallDepth {
			i.err = errors.Wrapf(ErrRecursion, "call of %s", inst.Callee())
			return
		}
		callee := &Interp{
			VisitGraph: block.NewProfile(),
			g:          fg,
			conf:       i.conf,
			store:      store.Extend(i.store),
			run:        i.run,
			depth:      i.depth + 1,
			Logger:     i.Logger,
		}
		if err := callee.exec(args); err != nil {
			i.err = err
			return
		}
		i.put(inst, callee.ret)
		return
	}
	if i.conf.Callee != nil {
		i.put(inst, i.conf.Callee(inst.Callee(), args))
		return
	}
	i.put(inst, 0)
}

func (i *Interp) VisitReturnInlined(inst *ir.Inst) {}

func (i *Interp) VisitLoad(inst *ir.Inst) {
	i.put(inst, i.store.Load(i.get(inst.Input(0))))
}

func (i *Interp) VisitStore(inst *ir.Inst) {
	addr, v := i.get(inst.Input(0)), i.get(inst.Input(1))
	if i.err == nil {
		i.store.Store(addr, v)
	}
}

func (i *Interp) VisitSafePoint(inst *ir.Inst) {}

func f64(v int64) float64 { return math.Float64frombits(uint64(v)) }

func floatOp(op ir.Opcode, a, b float64) float64 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpDiv:
		return a / b
	case ir.OpMod:
		return math.Mod(a, b)
	}
	return math.NaN()
}

// intOp evaluates op over canonical values of t. The result is not wrapped.
func intOp(op ir.Opcode, t ir.Type, a, b int64) (int64, error) {
	bits := t.Bits()
	shift := uint(b) & uint(bits-1)
	switch op {
	case ir.OpAdd:
		return a + b, nil
	case ir.OpSub:
		return a - b, nil
	case ir.OpMul:
		return a * b, nil
	case ir.OpDiv, ir.OpMod:
		if t.Wrap(b) == 0 {
			return 0, ErrDivByZero
		}
		if t.IsSigned() {
			if op == ir.OpDiv {
				return a / b, nil
			}
			return a % b, nil
		}
		if op == ir.OpDiv {
			return int64(uint64(a) / uint64(b)), nil
		}
		return int64(uint64(a) % uint64(b)), nil
	case ir.OpAnd:
		return a & b, nil
	case ir.OpOr:
		return a | b, nil
	case ir.OpXor:
		return a ^ b, nil
	case ir.OpShl:
		return a << shift, nil
	case ir.OpShr:
		if bits == 32 {
			return int64(uint32(a) >> shift), nil
		}
		return int64(uint64(a) >> shift), nil
	case ir.OpAShr:
		if bits == 32 {
			return int64(int32(a) >> shift), nil
		}
		return a >> shift, nil
	}
	return 0, errors.Errorf("unknown binary opcode %s", op)
}
