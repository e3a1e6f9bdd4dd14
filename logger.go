package originserver

import (
	"log"
	"os"
)

// Logger is the injection point for diagnostic output, matching the
// teacher's own single-method logging interface in server.go.
type Logger interface {
	// Printf must have the same semantics as log.Printf.
	Printf(format string, args ...interface{})
}

// defaultLogger wraps the standard library logger so a Server works
// without any caller-supplied Logger.
type defaultLogger struct {
	*log.Logger
}

func newDefaultLogger() Logger {
	return &defaultLogger{log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *defaultLogger) Printf(format string, args ...interface{}) {
	l.Logger.Printf(format, args...)
}
