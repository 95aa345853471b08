// Package hlog provides the engine's structured logging setup: a
// logrus logger with stream-separated output (errors to stderr,
// everything else to stdout) and a context-aware wrapper for
// attaching request/transaction metadata to a run of related log
// lines.
package hlog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is one of the five standard severities a Config accepts.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Config configures a logger built by New.
type Config struct {
	Level      Level
	Format     string // "json" or "text"
	AddCaller  bool
	TimeFormat string
}

func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "text", TimeFormat: time.RFC3339}
}

// outputSplitter routes formatted error-level lines to stderr and
// everything else to stdout, so container log collectors can treat
// the two streams differently without parsing structured fields.
type outputSplitter struct{}

func (outputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// New builds a logrus.Logger from cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}

	logger.SetReportCaller(cfg.AddCaller)
	logger.SetOutput(outputSplitter{})
	return logger
}

// ctxKey namespaces context values this package reads in WithContext,
// avoiding collision with unrelated string-keyed context values.
type ctxKey string

const (
	keyTxID    ctxKey = "hareql_tx_id"
	keyEntity  ctxKey = "hareql_entity"
	keyQueryID ctxKey = "hareql_query_id"
)

func WithTxID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTxID, id)
}

func WithEntity(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyEntity, name)
}

func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyQueryID, id)
}

// Entry wraps a *logrus.Entry, the same carried-field pattern every
// catalogue constructor already threads through as *logrus.Entry —
// this just adds the context-extraction convenience on top.
type Entry struct {
	*logrus.Entry
}

func NewEntry(logger *logrus.Logger) Entry {
	return Entry{Entry: logrus.NewEntry(logger)}
}

// WithContext pulls the transaction id, entity name, and query id out
// of ctx, if present, and attaches them as fields.
func (e Entry) WithContext(ctx context.Context) Entry {
	fields := logrus.Fields{}
	if v := ctx.Value(keyTxID); v != nil {
		fields["tx_id"] = v
	}
	if v := ctx.Value(keyEntity); v != nil {
		fields["entity"] = v
	}
	if v := ctx.Value(keyQueryID); v != nil {
		fields["query_id"] = v
	}
	if len(fields) == 0 {
		return e
	}
	return Entry{Entry: e.Entry.WithFields(fields)}
}

func (e Entry) WithField(key string, value any) Entry {
	return Entry{Entry: e.Entry.WithField(key, value)}
}

func (e Entry) WithFields(fields logrus.Fields) Entry {
	return Entry{Entry: e.Entry.WithFields(fields)}
}

func (e Entry) WithError(err error) Entry {
	return Entry{Entry: e.Entry.WithError(err)}
}

// Timed logs operation's start and completion (or failure) with
// duration, returning fn's error unchanged.
func Timed(e Entry, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	fields := e.WithFields(logrus.Fields{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		fields.WithError(err).Error("operation failed")
		return err
	}
	fields.Info("operation completed")
	return nil
}

// RecoverPanic logs a recovered panic with its stack trace. Call it
// deferred at the top of a goroutine boundary (e.g. a ParallelFullscanKnn
// worker or a server request handler) that must not take the process
// down with it.
func RecoverPanic(e Entry) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		e.WithFields(logrus.Fields{
			"panic": fmt.Sprintf("%v", r),
			"stack": string(buf[:n]),
		}).Error("panic recovered")
	}
}
