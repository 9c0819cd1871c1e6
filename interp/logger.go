package interp

import (
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Logger encapsulates a Logger and module which it belongs to.
type Logger struct {
	*zap.SugaredLogger
	module string
}

// Module returns (stylised) module name.
func (l *Logger) Module() string {
	return l.module
}

func nopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), module: "interp"}
}

// SetLogger sets logger for the interpreter.
func (i *Interp) SetLogger(l *zap.SugaredLogger) {
	i.Logger = &Logger{
		SugaredLogger: l,
		module:        color.HiBlueString("interp"),
	}
}
