package opt

// Options configures the loop passes.
type Options struct {
	Peeling bool
	Unroll  bool

	// UnrollFactor is the number of body copies per iteration of an
	// unrolled loop.
	UnrollFactor int
	// InstLimit bounds the instruction count of an unrolled loop.
	InstLimit int
	// UnrollWithCalls allows unrolling loops containing calls.
	UnrollWithCalls bool
	// UnrollWithSideExits allows unrolling loops which are not countable,
	// keeping the exit test in every copy.
	UnrollWithSideExits bool

	RedundantLoopElimination bool
	Balance                  bool
}

const (
	DefaultUnrollFactor = 6
	DefaultInstLimit    = 1000
)

// DefaultOptions returns the options with every pass enabled.
func DefaultOptions() *Options {
	return &Options{
		Peeling:                  true,
		Unroll:                   true,
		UnrollFactor:             DefaultUnrollFactor,
		InstLimit:                DefaultInstLimit,
		UnrollWithCalls:          false,
		UnrollWithSideExits:      true,
		RedundantLoopElimination: true,
		Balance:                  true,
	}
}

// WithPeeling enables or disables LoopPeeling.
func (o *Options) WithPeeling(on bool) *Options {
	o.Peeling = on
	return o
}

// WithUnroll enables or disables LoopUnroll.
func (o *Options) WithUnroll(on bool) *Options {
	o.Unroll = on
	return o
}

// WithUnrollFactor sets the maximum number of body copies.
func (o *Options) WithUnrollFactor(factor int) *Options {
	o.UnrollFactor = factor
	return o
}

// WithInstLimit sets the instruction budget of an unrolled loop.
func (o *Options) WithInstLimit(limit int) *Options {
	o.InstLimit = limit
	return o
}

// WithUnrollCalls allows unrolling loops containing calls.
func (o *Options) WithUnrollCalls(on bool) *Options {
	o.UnrollWithCalls = on
	return o
}

// WithSideExits allows unrolling loops which are not countable, keeping
// every exit test.
func (o *Options) WithSideExits(on bool) *Options {
	o.UnrollWithSideExits = on
	return o
}

// WithRedundantLoopElimination enables or disables deleting dead loops.
func (o *Options) WithRedundantLoopElimination(on bool) *Options {
	o.RedundantLoopElimination = on
	return o
}

// WithBalance enables or disables BalanceExpressions.
func (o *Options) WithBalance(on bool) *Options {
	o.Balance = on
	return o
}
