package rk0

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// stumpyEvent is the concrete logiface event type this module logs
// through. Aliased so the rest of the package (and KernelOption
// signatures) never has to spell out the generic instantiation.
type stumpyEvent = stumpy.Event

// Logger is the structured-logger handle accepted by WithLogger and
// returned by Kernel.Logger. It is a thin alias over logiface's
// generic Logger, instantiated for the stumpy JSON backend — the same
// pairing demonstrated in the pack's logiface-stumpy example.
type Logger = logiface.Logger[*stumpyEvent]

// defaultLogger builds the kernel's default logger: stumpy's JSON
// encoder writing to stderr, matching stumpy.L.New()'s own default.
func defaultLogger() *Logger {
	return stumpy.L.New()
}

// NewNopLogger returns a logger that discards everything, for tests
// and hosts that don't want kernel diagnostics.
func NewNopLogger() *Logger {
	return stumpy.L.New(logiface.WithLevel[*stumpyEvent](logiface.LevelDisabled))
}
