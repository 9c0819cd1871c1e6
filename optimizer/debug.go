//go:build debug
// +build debug

package optimizer

import (
	"log"

	"github.com/fatih/color"
	"github.com/nickng/loopopt/opt"
	"go.uber.org/zap"
)

// newLogger returns a new logger with default options.
func newLogger() *opt.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Cannot create new logger:", err)
	}
	return opt.NewModuleLogger(l.Sugar(), color.HiMagentaString("loopopt"))
}

// newFileLogger returns a new logger and also writes the log output to files.
func newFileLogger(files ...string) *opt.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = append(cfg.OutputPaths, files...)
	l, err := cfg.Build()
	if err != nil {
		log.Fatal("Cannot create new logger:", err)
	}
	return opt.NewModuleLogger(l.Sugar(), color.HiMagentaString("loopopt"))
}
