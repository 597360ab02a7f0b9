package tchannel2

import (
	"fmt"
	"os"
	"time"
)

// Logger is the injection point for structured, leveled logging. Components
// never call fmt.Println directly; they log through a Logger so a host
// process can route our output into its own logging stack.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// stderrLogger is the default Logger: a vv-style timestamped stderr printer.
type stderrLogger struct {
	debug bool
}

// NewStderrLogger returns a Logger that writes timestamped lines to stderr.
// debug controls whether Debugf lines are emitted at all.
func NewStderrLogger(debug bool) Logger {
	return &stderrLogger{debug: debug}
}

func (l *stderrLogger) Debugf(format string, args ...any) {
	if !l.debug {
		return
	}
	l.logf("DEBU", format, args...)
}

func (l *stderrLogger) Infof(format string, args ...any) {
	l.logf("INFO", format, args...)
}

func (l *stderrLogger) Warnf(format string, args ...any) {
	l.logf("WARN", format, args...)
}

func (l *stderrLogger) Errorf(format string, args ...any) {
	l.logf("ERRO", format, args...)
}

func (l *stderrLogger) logf(level, format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}

// nopLogger discards everything; used as the zero-value default so a
// Config{} with no Logger set never nil-derefs.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// panicOn panics if err is non-nil. Reserved for invariants we own the both
// sides of -- our own bookkeeping structures (the pq index, the op tables) --
// never for errors that can originate from a remote peer or the network.
func panicOn(err error) {
	if err != nil {
		panic(err)
	}
}
