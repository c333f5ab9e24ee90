package taskchain

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

type logCtxKey uint8

const loggerKey logCtxKey = iota

// Logger is the leveled logging interface used throughout this module.
// It is intentionally small so that both the standard library logger and
// logrus can back it without adapters leaking into the engine.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
	Fatalf(string, ...interface{})
}

// NopLogger drops all log statements, except for Fatalf which still exits.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (n *nopLogger) Debugf(string, ...interface{}) {}
func (n *nopLogger) Infof(string, ...interface{})  {}
func (n *nopLogger) Warnf(string, ...interface{})  {}
func (n *nopLogger) Errorf(string, ...interface{}) {}
func (n *nopLogger) Fatalf(string, ...interface{}) { os.Exit(1) }

// GoLog creates a leveled logger backed by the standard library logger.
// A nil writer logs to stderr.
func GoLog(w io.Writer, prefix string, flags int) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &goLog{log.New(w, prefix, flags)}
}

type goLog struct {
	l *log.Logger
}

func (g *goLog) Debugf(format string, args ...interface{}) {
	g.l.Printf("[DEBUG] "+format, args...)
}
func (g *goLog) Infof(format string, args ...interface{}) {
	g.l.Printf("[INFO]  "+format, args...)
}
func (g *goLog) Warnf(format string, args ...interface{}) {
	g.l.Printf("[WARN]  "+format, args...)
}
func (g *goLog) Errorf(format string, args ...interface{}) {
	g.l.Printf("[ERROR] "+format, args...)
}
func (g *goLog) Fatalf(format string, args ...interface{}) {
	g.l.Fatalf(format, args...)
}

// Logrus wraps a logrus field logger in the Logger interface.
func Logrus(fl logrus.FieldLogger) Logger {
	return &logrusLog{fl}
}

type logrusLog struct {
	l logrus.FieldLogger
}

func (l *logrusLog) Debugf(format string, args ...interface{}) { l.l.Debugf(format, args...) }
func (l *logrusLog) Infof(format string, args ...interface{})  { l.l.Infof(format, args...) }
func (l *logrusLog) Warnf(format string, args ...interface{})  { l.l.Warnf(format, args...) }
func (l *logrusLog) Errorf(format string, args ...interface{}) { l.l.Errorf(format, args...) }
func (l *logrusLog) Fatalf(format string, args ...interface{}) { l.l.Fatalf(format, args...) }

// SetLogger stores a logger on the context for use deeper in the call tree.
func SetLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// ContextLogger retrieves the logger from the context, or NopLogger when absent.
func ContextLogger(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger
}
