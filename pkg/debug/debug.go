// Package debug provides conditional debug logging for docview.
//
// Debug logging is enabled by setting DOCVIEW_DEBUG:
//
//	DOCVIEW_DEBUG=1 docview --dir ./docs
//
// The TUI owns the terminal, so messages go to a file: DOCVIEW_DEBUG_FILE, or
// docview-debug.log in the working directory. When disabled every function is
// a no-op backed by zap's no-op logger.
package debug

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is where debug output goes when DOCVIEW_DEBUG_FILE is unset.
const DefaultFile = "docview-debug.log"

var (
	mu      sync.RWMutex
	enabled bool
	logger  = zap.NewNop().Sugar()
)

func init() {
	if os.Getenv("DOCVIEW_DEBUG") != "" {
		SetEnabled(true)
	}
}

func newFileLogger(path string) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Named("docview").Sugar(), nil
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled switches debug logging on or off. Turning it on opens the
// debug file; if that fails logging stays off.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	if !e {
		_ = logger.Sync()
		enabled = false
		logger = zap.NewNop().Sugar()
		return
	}
	path := os.Getenv("DOCVIEW_DEBUG_FILE")
	if path == "" {
		path = DefaultFile
	}
	l, err := newFileLogger(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docview: debug log disabled: %v\n", err)
		return
	}
	enabled = true
	logger = l
}

// SetLogger replaces the backing logger. Tests use zaptest/observer cores here.
func SetLogger(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	enabled = l != nil
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logger = l
}

func current() (*zap.SugaredLogger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, enabled
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l, ok := current(); ok {
		l.Debugf(format, args...)
	}
}

// LogTiming records how long a named step took.
func LogTiming(name string, d time.Duration) {
	if l, ok := current(); ok {
		l.Debugw("timing", "op", name, "elapsed", d)
	}
}

// LogIf writes a debug message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogFunc returns a function that logs msg when called:
//
//	defer debug.LogFunc("export done")()
func LogFunc(msg string) func() {
	if _, ok := current(); !ok {
		return func() {}
	}
	return func() { Log("%s", msg) }
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if l, ok := current(); ok {
		l.Debugf("%s: %T = %+v", name, v, v)
	}
}

// Section logs a section header.
func Section(name string) {
	if l, ok := current(); ok {
		l.Debugf("=== %s ===", name)
	}
}

// Sync flushes buffered output. Call before exit.
func Sync() {
	if l, ok := current(); ok {
		_ = l.Sync()
	}
}
