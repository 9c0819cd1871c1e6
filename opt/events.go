package opt

import "github.com/nickng/loopopt/ir"

// Event names.
const (
	EventPeeling   = "loop-peeling"
	EventUnroll    = "loop-unroll"
	EventRedundant = "redundant-loop-elimination"
	EventBalance   = "balance-expressions"
)

// EventLogger writes pass events as structured log entries.
type EventLogger struct {
	*Logger
}

// NewEventLogger returns an ir.EventWriter logging to l.
func NewEventLogger(l *Logger) *EventLogger {
	return &EventLogger{Logger: l.forModule(l.Module())}
}

// Emit logs ev at info level, message being the pass name.
func (e *EventLogger) Emit(ev ir.Event) {
	kv := append([]interface{}{"loop", ev.LoopID, "pc", ev.PC}, ev.Args...)
	e.Infow(ev.Pass, kv...)
}
