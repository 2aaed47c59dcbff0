// Package telemetry defines the logging seam the rest of meshnet depends
// on. Components never import a concrete logging package; they take a
// Logger interface, the same discipline the teacher's NodeConfig.Logger
// field follows.
package telemetry

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is the minimal printf-style sink components log through.
type Logger interface {
	Printf(format string, args ...any)
}

// slogPrintf adapts a *slog.Logger to the Printf-style Logger interface so
// the core can keep the teacher's simple logging call sites while the
// default sink is structured.
type slogPrintf struct {
	l *slog.Logger
}

func (s slogPrintf) Printf(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

// NewDefault returns a Logger backed by log/slog's default text handler on
// stderr, with a fixed "component" field so log lines can be filtered by
// subsystem without every call site threading it through manually.
func NewDefault(component string) Logger {
	h := slog.NewTextHandler(os.Stderr, nil)
	return slogPrintf{l: slog.New(h).With("component", component)}
}

// Discard is a Logger that drops everything, used as the zero-value
// default so components never have to nil-check their logger.
type discard struct{}

func (discard) Printf(string, ...any) {}

// Discard is the no-op Logger.
var Discard Logger = discard{}
