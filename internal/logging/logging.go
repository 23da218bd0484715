// Package logging wires zap for the runtime. Every subsystem gets a named
// sugared logger so log lines can be traced back to the persona engine,
// the world registry, the HTTP surface, and so on.
package logging

import (
	"go.uber.org/zap"
)

// New builds a named sugared logger. debug switches to the development
// config (console encoding, debug level).
func New(name string, debug bool) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		// zap's default configs only fail on bad sink paths; fall back to nop
		// rather than taking the process down over logging.
		return zap.NewNop().Sugar()
	}
	return logger.Named(name).Sugar()
}

// Nop returns a logger that discards everything. Used by tests and as the
// default when a component is constructed without an explicit logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
