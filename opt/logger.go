package opt

import (
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Logger encapsulates a Logger and module which it belongs to.
// Use this through SetLogger() of a pass.
type Logger struct {
	*zap.SugaredLogger
	module string
}

type LogSetter interface {
	SetLogger(*Logger)
}

// NewLogger wraps l for use by the passes.
func NewLogger(l *zap.SugaredLogger) *Logger {
	return NewModuleLogger(l, color.WhiteString("opt"))
}

// NewModuleLogger wraps l for a module outside the passes.
func NewModuleLogger(l *zap.SugaredLogger, module string) *Logger {
	return &Logger{SugaredLogger: l, module: module}
}

// NopLogger returns a Logger discarding everything.
func NopLogger() *Logger {
	return NewLogger(zap.NewNop().Sugar())
}

// Module returns (stylised) module name.
func (l *Logger) Module() string {
	return l.module
}

// forModule returns a copy of l logging for module.
func (l *Logger) forModule(module string) *Logger {
	if l == nil {
		l = NopLogger()
	}
	return &Logger{SugaredLogger: l.SugaredLogger, module: module}
}
