// Package log holds the process-wide log15 root logger and the helpers used
// to derive per-module loggers and attach request ids to log lines.
package log

import (
	"context"
	"io"
	"os"

	"github.com/inconshreveable/log15"
)

var rootLog = log15.New()

const DefaultLevel = log15.LvlInfo

// RequestIDKey is the log key under which request ids are emitted.
const RequestIDKey = "request_id"

type requestIDKey struct{}

func init() {
	SetLevel(DefaultLevel)
}

// SetLevel filters the root logger at level, writing logfmt to stderr.
func SetLevel(level log15.Lvl) {
	SetOutput(os.Stderr, level)
}

// SetOutput redirects the root logger to w at the given level.
func SetOutput(w io.Writer, level log15.Lvl) {
	rootLog.SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(w, log15.LogfmtFormat())))
}

// ParseLevel is log15.LvlFromString with DefaultLevel as the fallback for
// the empty string.
func ParseLevel(s string) (log15.Lvl, error) {
	if s == "" {
		return DefaultLevel, nil
	}
	return log15.LvlFromString(s)
}

// NewLog returns a logger tagged with module. The empty module is the root.
func NewLog(module string) log15.Logger {
	if module == "" {
		return rootLog
	}

	return rootLog.New("module", module)
}

// Discard returns a logger that drops everything.
func Discard() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

// ContextWithRequestID stores id for later retrieval by WithRequestID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// WithRequestID appends the request id of ctx to the key/value list keys.
func WithRequestID(ctx context.Context, keys ...interface{}) []interface{} {
	id, _ := RequestID(ctx)
	return append(keys, RequestIDKey, id)
}
