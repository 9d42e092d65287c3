package quickentity

import (
	"sync"

	"go.uber.org/zap"
)

// Logger is the logging surface the converters and patch engine emit to.
// Callers may supply their own implementation via ConvertOptions/PatchOptions;
// NewDefaultLogger and NewNopLogger cover the common cases.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger backs Logger with a zap.SugaredLogger. Debug-level
// conversion tracing (one line per conversion or patch call) is gated behind
// debug so a production caller doesn't pay for it by default.
type DefaultLogger struct {
	mu    sync.Mutex
	debug bool
	sugar *zap.SugaredLogger
}

// NewDefaultLogger builds a DefaultLogger around a production zap config,
// named with prefix so multiple conversions running concurrently can be
// told apart in shared output.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	named := base
	if prefix != "" {
		named = base.Named(prefix)
	}
	return &DefaultLogger{
		debug: debug,
		sugar: named.Sugar(),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything; the default
// when ConvertOptions/PatchOptions don't specify one.
func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
